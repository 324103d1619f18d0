package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/basketarb/internal/domain"
	"github.com/alanyoungcy/basketarb/internal/evaluator"
	"github.com/alanyoungcy/basketarb/internal/executor"
	"github.com/alanyoungcy/basketarb/internal/notify"
	"github.com/alanyoungcy/basketarb/internal/universe"
)

// run builds the initial universe, connects the feed, and drives the two
// long-lived loops: the periodic universe refresh and the reactive event loop.
// The event loop alone touches books, baskets, and runtime state; the refresh
// loop hands over fully built universes through a channel.
func (a *App) run(ctx context.Context, deps *Dependencies) error {
	uni, err := deps.Builder.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("app: initial universe: %w", err)
	}
	if deps.Augmenter != nil {
		deps.Augmenter.Augment(ctx, basketList(uni))
	}
	if len(uni.TokenList) == 0 {
		a.logger.Warn("initial universe is empty; waiting for the next refresh")
	}

	if err := deps.Feed.Connect(ctx); err != nil {
		return fmt.Errorf("app: connect feed: %w", err)
	}
	if err := deps.Feed.Subscribe(ctx, uni.TokenList); err != nil {
		return fmt.Errorf("app: subscribe feed: %w", err)
	}

	refreshCh := make(chan *universe.Universe, 1)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.refreshLoop(ctx, deps, refreshCh) })
	g.Go(func() error { return a.eventLoop(ctx, deps, uni, refreshCh) })
	return g.Wait()
}

// refreshLoop rebuilds the universe on a fixed interval. The wallet-signal
// pass runs here, on the freshly built baskets, before the universe becomes
// visible to the event loop, so basket state never sees concurrent writers.
func (a *App) refreshLoop(ctx context.Context, deps *Dependencies, refreshCh chan *universe.Universe) error {
	interval := a.cfg.Universe.RefreshInterval.Duration
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			uni, err := deps.Builder.Refresh(ctx)
			if err != nil {
				a.logger.Warn("universe refresh failed", slog.String("error", err.Error()))
				continue
			}
			if deps.Augmenter != nil {
				deps.Augmenter.Augment(ctx, basketList(uni))
			}
			// Replace any universe still waiting in the channel; only the
			// newest one matters.
			select {
			case refreshCh <- uni:
			default:
				select {
				case <-refreshCh:
				default:
				}
				refreshCh <- uni
			}
		}
	}
}

// eventLoop is the single reactive task. It applies feed messages to the book
// cache, re-evaluates impacted baskets, and drives alerting and execution.
func (a *App) eventLoop(ctx context.Context, deps *Dependencies, uni *universe.Universe, refreshCh <-chan *universe.Universe) error {
	day := time.Now().UTC().Format("2006-01-02")
	rollover := time.NewTicker(time.Minute)
	defer rollover.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case next := <-refreshCh:
			uni = next
			if err := deps.Feed.Subscribe(ctx, uni.TokenList); err != nil {
				a.logger.Warn("resubscribe after refresh failed", slog.String("error", err.Error()))
			}
			a.logger.Info("universe swapped",
				slog.Int("baskets", len(uni.Baskets)),
				slog.Int("tokens", len(uni.TokenList)),
			)

		case <-rollover.C:
			day = a.maybeRollover(ctx, deps, day)

		// The feed channel is never closed; the feed reconnects internally
		// and the channel just goes quiet during an outage.
		case raw := <-deps.Feed.Messages():
			a.handleMessage(ctx, deps, uni, raw)
		}
	}
}

// handleMessage applies one raw feed message and re-evaluates every basket
// holding a touched token.
func (a *App) handleMessage(ctx context.Context, deps *Dependencies, uni *universe.Universe, raw []byte) {
	impacted := deps.Books.Apply(raw)
	if len(impacted) == 0 {
		return
	}

	now := time.Now()
	for _, bk := range uni.ImpactedBy(impacted) {
		res := deps.Evaluator.Evaluate(bk, now)
		if res.Outcome != evaluator.OutcomeQualified {
			continue
		}
		cand := res.Candidate

		if deps.History != nil {
			if err := deps.History.SaveCandidate(ctx, *cand); err != nil {
				a.logger.Warn("candidate persist failed", slog.String("error", err.Error()))
			}
		}
		if res.ShouldAlert {
			deps.Notifier.Notify(ctx, notify.CandidateMessage(*cand))
		}
		if deps.Executor != nil {
			a.execute(ctx, deps, bk, cand)
		}
	}
}

// execute routes a qualifying candidate to the right backend and records the
// outcome. Baskets with a configured alternate-venue mapping go to the
// alternate backend; everything else goes through the order book.
func (a *App) execute(ctx context.Context, deps *Dependencies, bk *domain.EventBasket, cand *domain.Candidate) {
	backend := executor.BackendOrderBook
	started := time.Now()

	var res executor.Result
	if a.cfg.Kalshi.Enabled && bk.HasAltMapping() {
		backend = executor.BackendAlternate
		res = deps.Executor.ExecuteAlternate(ctx, bk, cand)
	} else {
		res = deps.Executor.Execute(ctx, bk, cand)
	}

	a.logger.Info("execution finished",
		slog.String("basket", cand.BasketKey),
		slog.String("backend", string(backend)),
		slog.String("status", string(res.Status)),
		slog.Int("attempts", res.Attempts),
		slog.String("reason", res.Reason),
	)

	if deps.History != nil {
		if err := deps.History.SaveExecution(ctx, *cand, string(backend), res, started, time.Now()); err != nil {
			a.logger.Warn("execution persist failed", slog.String("error", err.Error()))
		}
	}
}

// maybeRollover resets the daily risk counters once per UTC day. The sticky
// halt and the failure streak survive the rollover on purpose.
func (a *App) maybeRollover(ctx context.Context, deps *Dependencies, day string) string {
	today := time.Now().UTC().Format("2006-01-02")
	if today == day || deps.Executor == nil {
		return today
	}

	st := deps.Executor.State()
	st.ExecutionsToday = 0
	st.NotionalToday = 0
	if err := deps.StateStore.Save(ctx, *st); err != nil {
		a.logger.Warn("state persist failed after rollover", slog.String("error", err.Error()))
	}
	a.logger.Info("daily risk counters reset", slog.String("day", today))
	return today
}

func basketList(uni *universe.Universe) []*domain.EventBasket {
	out := make([]*domain.EventBasket, 0, len(uni.Baskets))
	for _, bk := range uni.Baskets {
		out = append(out, bk)
	}
	return out
}
