// Package executor turns qualifying candidates into orders: pre-flight risk
// gating, execution-time book revalidation, batch submission with fill
// polling, cancel and unwind of partial fills, and runtime-state bookkeeping
// with a sticky halt.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// OrderBackend is the order-book execution venue.
type OrderBackend interface {
	SubmitBatch(ctx context.Context, orders []domain.Order) (orderIDs []string, err error)
	CreateOrder(ctx context.Context, order domain.Order) (orderID string, err error)
	CancelOrders(ctx context.Context, orderIDs []string) error
	OpenOrders(ctx context.Context) ([]domain.OpenOrder, error)
	TradesSince(ctx context.Context, tokenID string, since time.Time) ([]domain.Trade, error)
}

// AltBackend is the alternate execution venue: batch trades keyed by an
// external market ID, with a position listing for post-hoc reconciliation.
type AltBackend interface {
	SubmitTrades(ctx context.Context, trades []domain.AltTrade) ([]domain.AltTradeResult, error)
	SubmitTrade(ctx context.Context, trade domain.AltTrade) error
	Positions(ctx context.Context) ([]domain.Position, error)
}

// BookView is the read side of the book cache, used for the execution-time
// precheck and for unwind pricing.
type BookView interface {
	Get(tokenID string) *domain.LocalBook
}

// StateStore persists the runtime state after every attempt outcome.
type StateStore interface {
	Save(ctx context.Context, st domain.RuntimeState) error
}

// Notifier pushes a free-text message. Delivery failures must not interrupt
// the engine, so the method returns nothing.
type Notifier interface {
	Notify(ctx context.Context, msg string)
}

// Config tunes the execution engine.
type Config struct {
	MaxLegs                int
	MaxDailyExecutions     int
	MaxDailyNotional       float64
	MaxConsecutiveFailures int
	MaxOpenOrders          int

	MaxAttempts  int
	AttemptDelay time.Duration
	PollInterval time.Duration
	MaxPolls     int
	MinFillRatio float64

	StalenessCeiling time.Duration
	AllowSynthetic   bool

	// UnwindSlippage discounts the best bid when selling back a partial fill,
	// e.g. 0.02 for 200 bps.
	UnwindSlippage  float64
	DefaultTickSize float64

	// AltPositionCapMult bounds which alternate-venue positions the flatten
	// step may touch, as a multiple of the daily notional cap. Larger
	// positions are assumed to be unrelated inventory and are only logged.
	AltPositionCapMult float64
}

// Engine executes candidates. It owns the runtime state and is driven
// exclusively from the reactive task.
type Engine struct {
	backend OrderBackend
	alt     AltBackend // nil unless alternate-venue execution is configured
	books   BookView
	store   StateStore
	notify  Notifier // nil disables notifications
	state   *domain.RuntimeState
	cfg     Config
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration)
	logger  *slog.Logger
}

// New creates an Engine around a previously loaded runtime state. alt and
// notify may be nil.
func New(backend OrderBackend, alt AltBackend, books BookView, store StateStore, notify Notifier, state *domain.RuntimeState, cfg Config, logger *slog.Logger) *Engine {
	if cfg.MaxLegs <= 0 {
		cfg.MaxLegs = 6
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MinFillRatio <= 0 {
		cfg.MinFillRatio = 1
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 3
	}
	if cfg.StalenessCeiling <= 0 {
		cfg.StalenessCeiling = 30 * time.Second
	}
	if cfg.DefaultTickSize <= 0 {
		cfg.DefaultTickSize = 0.01
	}
	if cfg.AltPositionCapMult <= 0 {
		cfg.AltPositionCapMult = 2
	}
	return &Engine{
		backend: backend,
		alt:     alt,
		books:   books,
		store:   store,
		notify:  notify,
		state:   state,
		cfg:     cfg,
		now:     time.Now,
		sleep:   sleepCtx,
		logger:  logger.With(slog.String("component", "executor")),
	}
}

// State returns the engine's runtime state.
func (e *Engine) State() *domain.RuntimeState { return e.state }

// Backend selects which execution path a candidate takes.
type Backend string

const (
	BackendOrderBook Backend = "orderbook"
	BackendAlternate Backend = "alternate"
)

// CanExecute runs the pre-flight risk gate. Reaching the consecutive-failure
// cap here flips the sticky halt immediately.
func (e *Engine) CanExecute(ctx context.Context, bk *domain.EventBasket, cand *domain.Candidate, backend Backend) (bool, string) {
	if e.state.Halted {
		return false, "halted: " + e.state.HaltReason
	}
	if len(cand.Legs) > e.cfg.MaxLegs {
		return false, fmt.Sprintf("leg count %d exceeds cap %d", len(cand.Legs), e.cfg.MaxLegs)
	}
	if backend == BackendAlternate && !bk.HasAltMapping() {
		return false, "basket lacks alternate-venue market mapping"
	}
	if e.cfg.MaxDailyExecutions > 0 && e.state.ExecutionsToday >= e.cfg.MaxDailyExecutions {
		return false, fmt.Sprintf("daily execution cap reached (%d)", e.cfg.MaxDailyExecutions)
	}
	if e.cfg.MaxDailyNotional > 0 {
		cost := candidateNotional(cand)
		if e.state.NotionalToday+cost > e.cfg.MaxDailyNotional {
			return false, fmt.Sprintf("daily notional cap %.2f would be exceeded (today %.2f + candidate %.2f)",
				e.cfg.MaxDailyNotional, e.state.NotionalToday, cost)
		}
	}
	if e.state.ConsecutiveFailures >= e.cfg.MaxConsecutiveFailures {
		e.haltNow(ctx, e.state.ConsecutiveFailures)
		return false, "halted: " + e.state.HaltReason
	}
	if backend == BackendOrderBook {
		if cand.SharesPerLeg != math.Trunc(cand.SharesPerLeg) {
			return false, fmt.Sprintf("order-book backend requires whole shares, got %.4f", cand.SharesPerLeg)
		}
		if e.cfg.MaxOpenOrders > 0 {
			open, err := e.backend.OpenOrders(ctx)
			if err != nil {
				return false, "open-order lookup failed: " + err.Error()
			}
			if len(open) >= e.cfg.MaxOpenOrders {
				return false, fmt.Sprintf("open-order count %d at cap %d", len(open), e.cfg.MaxOpenOrders)
			}
		}
	}
	return true, ""
}

// candidateNotional prefers the execution-adjusted cost when available.
func candidateNotional(cand *domain.Candidate) float64 {
	if cand.ExecCost > 0 {
		return cand.ExecCost
	}
	return cand.BasketCost
}

// haltNow flips the sticky halt. Only an external reset clears it.
func (e *Engine) haltNow(ctx context.Context, failures int) {
	e.state.Halted = true
	e.state.HaltReason = fmt.Sprintf("consecutive failures %d/%d", failures, e.cfg.MaxConsecutiveFailures)
	e.persist(ctx)
	e.logger.Error("engine halted", slog.String("reason", e.state.HaltReason))
	e.notifyMsg(ctx, "HALTED: "+e.state.HaltReason)
}

func (e *Engine) persist(ctx context.Context) {
	if err := e.store.Save(ctx, *e.state); err != nil {
		e.logger.Error("state persist failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) notifyMsg(ctx context.Context, msg string) {
	if e.notify != nil {
		e.notify.Notify(ctx, msg)
	}
}

// failureSummary extracts a short human-readable summary from an error chain.
func failureSummary(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
