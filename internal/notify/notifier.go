// Package notify delivers operator alerts over one or more channels.
// Delivery is strictly best-effort: a failed sender is logged and never
// interrupts the caller.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// Sender is one notification channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a short identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier fans a message out to every configured sender.
type Notifier struct {
	senders []Sender
	title   string
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. title
// prefixes every message; empty defaults to "basketarb".
func NewNotifier(senders []Sender, title string, logger *slog.Logger) *Notifier {
	if title == "" {
		title = "basketarb"
	}
	return &Notifier{
		senders: senders,
		title:   title,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers a message to every sender, logging failures. It satisfies
// the execution engine's notifier contract, which must never see an error.
func (n *Notifier) Notify(ctx context.Context, msg string) {
	if err := n.Send(ctx, n.title, msg); err != nil {
		n.logger.Error("notification delivery incomplete", slog.String("error", err.Error()))
	}
}

// Send delivers to every sender and returns a combined error. One sender
// failing does not stop delivery to the rest.
func (n *Notifier) Send(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// CandidateMessage formats a qualified candidate for an operator alert.
func CandidateMessage(cand domain.Candidate) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s]\n", cand.Title, cand.Strategy)
	fmt.Fprintf(&sb, "net edge $%.3f (%.2f%%) on %g shares/leg\n", cand.NetEdge, cand.EdgePct*100, cand.SharesPerLeg)
	fmt.Fprintf(&sb, "cost $%.3f payout $%.3f", cand.BasketCost, cand.PayoutAfterFee)
	if cand.ExecEdge != 0 {
		fmt.Fprintf(&sb, " exec edge $%.3f", cand.ExecEdge)
	}
	for _, lc := range cand.Legs {
		fmt.Fprintf(&sb, "\n  %s: cost $%.3f limit %.3f", lc.Leg.Label, lc.Cost, lc.LimitPrice)
	}
	return sb.String()
}
