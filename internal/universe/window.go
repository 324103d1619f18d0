package universe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// buildWindows targets recurring fixed-window events (hourly or daily
// up/down markets) whose slugs encode the epoch-aligned window start. The
// listing API often lags for these, so the builder derives the candidate
// slugs directly and looks each event up by slug, scanning a few windows back
// and forward from the current one.
func (b *Builder) buildWindows(ctx context.Context, now time.Time) ([]*domain.EventBasket, error) {
	if b.cfg.WindowSlugPrefix == "" || b.cfg.WindowSize <= 0 {
		return nil, nil
	}

	back := b.cfg.WindowLookBack
	fwd := b.cfg.WindowLookForward
	if back <= 0 && fwd <= 0 {
		fwd = 1
	}

	current := now.Truncate(b.cfg.WindowSize)
	var out []*domain.EventBasket
	var lastErr error
	for i := -back; i <= fwd; i++ {
		start := current.Add(time.Duration(i) * b.cfg.WindowSize)
		slug := fmt.Sprintf("%s-%d", b.cfg.WindowSlugPrefix, start.Unix())
		ev, err := b.source.FetchEventBySlug(ctx, slug)
		if err != nil {
			// Absent windows are routine (the venue creates them on a lag);
			// remember the error but keep scanning.
			lastErr = err
			b.logger.Debug("window event lookup missed",
				slog.String("slug", slug),
				slog.String("error", err.Error()),
			)
			continue
		}
		if bk := b.windowBasket(ev, start); bk != nil {
			out = append(out, bk)
		}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, fmt.Errorf("universe: no window events resolved: %w", lastErr)
	}
	return out, nil
}

// windowBasket converts one fixed-window event into a yes-no basket on its
// binary market. Windows that have already resolved are skipped.
func (b *Builder) windowBasket(ev domain.EventInfo, start time.Time) *domain.EventBasket {
	for _, m := range ev.Markets {
		yes, no, ok := m.YesNoTokens()
		if !ok || !m.EnableOrderBook {
			continue
		}
		bk := &domain.EventBasket{
			Key:      ev.Slug + "/window",
			Title:    ev.Title,
			Strategy: domain.StrategyWindow,
			Legs: []domain.Leg{
				{MarketID: m.ID, Question: m.Question, TokenID: yes, Side: domain.SideYes, ConditionID: m.ConditionID},
				{MarketID: m.ID, Question: m.Question, TokenID: no, Side: domain.SideNo, ConditionID: m.ConditionID},
			},
		}
		accumulateEnrichment(bk, m)
		if bk.EndTime.IsZero() {
			bk.EndTime = start.Add(b.cfg.WindowSize)
		}
		return bk
	}
	return nil
}
