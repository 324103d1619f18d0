package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// ExecuteAlternate runs the candidate through the alternate batch-trade
// backend. The retry/unwind shape matches the order-book path, but partial
// failure is measured from the batch response's per-trade success flags plus
// a post-hoc position lookup, and "unwind" means flattening any matching
// open position.
func (e *Engine) ExecuteAlternate(ctx context.Context, bk *domain.EventBasket, cand *domain.Candidate) Result {
	if e.alt == nil {
		return Result{Status: StatusSkipped, Reason: "alternate backend not configured"}
	}
	if ok, reason := e.CanExecute(ctx, bk, cand, BackendAlternate); !ok {
		e.logger.Info("alternate execution skipped",
			slog.String("basket", cand.BasketKey),
			slog.String("reason", reason),
		)
		return Result{Status: StatusSkipped, Reason: reason}
	}

	trades := make([]domain.AltTrade, 0, len(cand.Legs))
	perLegNotional := candidateNotional(cand) / float64(len(cand.Legs))
	for _, lc := range cand.Legs {
		trades = append(trades, domain.AltTrade{
			MarketID: lc.Leg.AltMarketID,
			Side:     domain.OrderBuy,
			Amount:   perLegNotional,
		})
	}

	res := Result{Status: StatusNoFill}
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		res.Attempts = attempt
		err := e.altAttempt(ctx, trades)
		if err == nil {
			res.Status = StatusFilled
			e.bookkeepSuccess(ctx, bk, cand)
			return res
		}
		res.Reason = failureSummary(err)
		e.logger.Warn("alternate attempt failed",
			slog.String("basket", cand.BasketKey),
			slog.Int("attempt", attempt),
			slog.String("reason", res.Reason),
		)
		if attempt < e.cfg.MaxAttempts {
			e.sleep(ctx, e.cfg.AttemptDelay)
		}
	}
	e.bookkeepFailure(ctx, cand, res.Reason)
	return res
}

// altAttempt submits one batch and flattens whatever the batch left behind
// when any trade in it failed.
func (e *Engine) altAttempt(ctx context.Context, trades []domain.AltTrade) error {
	results, err := e.alt.SubmitTrades(ctx, trades)
	if err != nil {
		return fmt.Errorf("executor: alternate batch submit: %w", err)
	}

	failed := 0
	succeededMarkets := make(map[string]struct{})
	var firstMsg string
	for _, r := range results {
		if r.Success {
			succeededMarkets[r.MarketID] = struct{}{}
			continue
		}
		failed++
		if firstMsg == "" {
			firstMsg = r.Message
		}
	}
	if failed == 0 && len(results) == len(trades) {
		return nil
	}

	e.flattenPartials(ctx, succeededMarkets)
	if firstMsg == "" {
		firstMsg = fmt.Sprintf("%d of %d trades missing from batch response", len(trades)-len(results), len(trades))
	}
	return fmt.Errorf("executor: alternate batch partial failure (%d/%d failed): %s", failed, len(trades), firstMsg)
}

// flattenPartials closes positions left behind by a partially-successful
// batch, confirmed against a position lookup. Positions implausibly large
// relative to the daily notional cap are assumed to be unrelated inventory
// and are logged, never touched.
func (e *Engine) flattenPartials(ctx context.Context, markets map[string]struct{}) {
	if len(markets) == 0 {
		return
	}
	positions, err := e.alt.Positions(ctx)
	if err != nil {
		e.logger.Warn("position lookup failed during flatten", slog.String("error", err.Error()))
		return
	}

	maxAmount := e.cfg.MaxDailyNotional * e.cfg.AltPositionCapMult
	for _, pos := range positions {
		if _, ours := markets[pos.MarketID]; !ours || pos.Amount <= 0 {
			continue
		}
		if maxAmount > 0 && pos.Amount > maxAmount {
			e.logger.Warn("skipping implausibly large position during flatten",
				slog.String("market", pos.MarketID),
				slog.Float64("amount", pos.Amount),
				slog.Float64("cap", maxAmount),
			)
			continue
		}
		if err := e.alt.SubmitTrade(ctx, domain.AltTrade{
			MarketID: pos.MarketID,
			Side:     oppositeSide(pos.Side),
			Amount:   pos.Amount,
		}); err != nil {
			e.logger.Warn("flatten failed",
				slog.String("market", pos.MarketID),
				slog.String("error", err.Error()),
			)
			continue
		}
		e.logger.Info("position flattened",
			slog.String("market", pos.MarketID),
			slog.Float64("amount", pos.Amount),
		)
	}
}

func oppositeSide(s domain.OrderSide) domain.OrderSide {
	if s == domain.OrderBuy {
		return domain.OrderSell
	}
	return domain.OrderBuy
}
