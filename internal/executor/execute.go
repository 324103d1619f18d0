package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// Status classifies the terminal outcome of one execution request.
type Status string

const (
	StatusFilled  Status = "filled"
	StatusNoFill  Status = "not_filled"
	StatusSkipped Status = "skipped"
)

// UnwindOutcome records one attempted unwind of a partial one-sided fill.
type UnwindOutcome struct {
	TokenID   string
	Size      float64
	SellPrice float64
	Err       error
}

// Result is the outcome of one Execute call.
type Result struct {
	Status   Status
	Attempts int
	TradeIDs []string
	Unwinds  []UnwindOutcome
	Reason   string
}

// Execute runs the full submission state machine for a qualifying candidate
// on the order-book backend. Fills are measured cumulatively against a single
// trade-history anchor taken before the first submission, so retries only
// resubmit the legs that are still short and an already-filled leg is never
// bought twice. It always runs its fill-check/cancel/unwind sequence to
// completion once a submission is sent; ctx cancellation only shortens the
// waits between steps.
func (e *Engine) Execute(ctx context.Context, bk *domain.EventBasket, cand *domain.Candidate) Result {
	if ok, reason := e.CanExecute(ctx, bk, cand, BackendOrderBook); !ok {
		e.logger.Info("execution skipped",
			slog.String("basket", cand.BasketKey),
			slog.String("reason", reason),
		)
		return Result{Status: StatusSkipped, Reason: reason}
	}
	if err := e.precheckBooks(bk, cand); err != nil {
		e.logger.Info("book precheck failed",
			slog.String("basket", cand.BasketKey),
			slog.String("reason", err.Error()),
		)
		return Result{Status: StatusSkipped, Reason: err.Error()}
	}

	res := Result{Status: StatusNoFill}
	tick := e.tickFor(bk)
	since := e.now().Add(-time.Second)
	filled := make(map[string]float64, len(cand.Legs))
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		res.Attempts = attempt
		tradeIDs, err := e.attempt(ctx, cand, since, filled)
		if len(tradeIDs) > 0 {
			res.TradeIDs = tradeIDs
		}
		if err == nil {
			res.Status = StatusFilled
			e.bookkeepSuccess(ctx, bk, cand)
			return res
		}
		res.Reason = failureSummary(err)
		e.logger.Warn("execution attempt failed",
			slog.String("basket", cand.BasketKey),
			slog.Int("attempt", attempt),
			slog.String("reason", res.Reason),
		)
		if attempt < e.cfg.MaxAttempts {
			e.sleep(ctx, e.cfg.AttemptDelay)
		}
	}
	// The basket failed as a whole: sell back everything that did fill,
	// fully-filled legs included, since a lone leg is naked exposure.
	res.Unwinds = e.unwindPartials(ctx, cand, filled, tick)
	e.bookkeepFailure(ctx, cand, res.Reason)
	return res
}

// precheckBooks revalidates every leg's book at execution time: present,
// fresh, real depth unless synthetic is allowed, and enough cumulative size
// at or below the already-computed limit price. Book state can go stale
// between evaluation and execution, which is exactly what this catches.
func (e *Engine) precheckBooks(bk *domain.EventBasket, cand *domain.Candidate) error {
	now := e.now()
	for _, lc := range cand.Legs {
		book := e.books.Get(lc.Leg.TokenID)
		if book == nil {
			return fmt.Errorf("executor: leg %s: %w", lc.Leg.TokenID, domain.ErrNoBook)
		}
		if book.Age(now) > e.cfg.StalenessCeiling {
			return fmt.Errorf("executor: leg %s age %s: %w", lc.Leg.TokenID, book.Age(now).Round(time.Millisecond), domain.ErrStaleBook)
		}
		if book.SyntheticAsk && !e.cfg.AllowSynthetic {
			return fmt.Errorf("executor: leg %s has only synthetic depth", lc.Leg.TokenID)
		}
		if depth := domain.DepthAtOrBelow(book.Asks, lc.LimitPrice); depth < cand.SharesPerLeg {
			return fmt.Errorf("executor: leg %s depth %.2f below %.2f at limit %.4f: %w",
				lc.Leg.TokenID, depth, cand.SharesPerLeg, lc.LimitPrice, domain.ErrInsufficientDepth)
		}
	}
	return nil
}

// attempt submits the still-unfilled remainder of each leg and reconciles it
// against trade history measured from the shared anchor, updating the
// cumulative fill map in place. On anything short of a full basket it cancels
// the open remainder and returns an error describing the shortfall; whether
// the fills get unwound or retried is the caller's call.
func (e *Engine) attempt(ctx context.Context, cand *domain.Candidate, since time.Time, filled map[string]float64) (tradeIDs []string, err error) {
	orders := make([]domain.Order, 0, len(cand.Legs))
	for _, lc := range cand.Legs {
		remaining := cand.SharesPerLeg - filled[lc.Leg.TokenID]
		if remaining <= 0 {
			continue
		}
		orders = append(orders, domain.Order{
			TokenID: lc.Leg.TokenID,
			Side:    domain.OrderBuy,
			Price:   lc.LimitPrice,
			Size:    remaining,
		})
	}
	if len(orders) == 0 {
		return nil, nil
	}

	orderIDs, err := e.backend.SubmitBatch(ctx, orders)
	if err != nil {
		return nil, fmt.Errorf("executor: batch submit: %w", err)
	}

	totals, tradeIDs := e.pollFills(ctx, cand, since)
	for tok, size := range totals {
		filled[tok] = size
	}
	if allFilled(filled, cand, e.cfg.MinFillRatio) {
		return tradeIDs, nil
	}

	if len(orderIDs) > 0 {
		if cerr := e.backend.CancelOrders(ctx, orderIDs); cerr != nil {
			e.logger.Warn("cancel failed", slog.String("error", cerr.Error()))
		}
	}
	return tradeIDs, fmt.Errorf("executor: batch not fully filled (%s)", fillSummary(filled, cand))
}

// pollFills polls per-leg trade history until every leg reaches its fill
// target or the poll budget runs out. Returns observed filled size per token
// and the trade IDs seen.
func (e *Engine) pollFills(ctx context.Context, cand *domain.Candidate, since time.Time) (map[string]float64, []string) {
	filled := make(map[string]float64, len(cand.Legs))
	seen := make(map[string]struct{})
	var tradeIDs []string

	for poll := 0; poll < e.cfg.MaxPolls; poll++ {
		if poll > 0 {
			e.sleep(ctx, e.cfg.PollInterval)
		}
		for _, lc := range cand.Legs {
			tok := lc.Leg.TokenID
			trades, err := e.backend.TradesSince(ctx, tok, since)
			if err != nil {
				e.logger.Debug("trade poll failed",
					slog.String("token", tok),
					slog.String("error", err.Error()),
				)
				continue
			}
			total := 0.0
			for _, tr := range trades {
				if tr.Side != domain.OrderBuy {
					continue
				}
				total += tr.Size
				if _, dup := seen[tr.ID]; !dup && tr.ID != "" {
					seen[tr.ID] = struct{}{}
					tradeIDs = append(tradeIDs, tr.ID)
				}
			}
			filled[tok] = total
		}
		if allFilled(filled, cand, e.cfg.MinFillRatio) {
			break
		}
	}
	return filled, tradeIDs
}

// unwindPartials sells back every leg that recorded any fill, at the current
// best bid discounted by the slippage margin and floored to the tick. It runs
// once, after the final attempt has failed, so even a fully-filled leg is
// sold back rather than left as one-sided inventory. Outcomes are recorded
// regardless of their own success.
func (e *Engine) unwindPartials(ctx context.Context, cand *domain.Candidate, filled map[string]float64, tick float64) []UnwindOutcome {
	var out []UnwindOutcome
	for _, lc := range cand.Legs {
		size := filled[lc.Leg.TokenID]
		if size <= 0 {
			continue
		}
		uo := UnwindOutcome{TokenID: lc.Leg.TokenID, Size: size}

		book := e.books.Get(lc.Leg.TokenID)
		if book == nil || book.BestBid <= 0 {
			uo.Err = domain.ErrNoBook
			out = append(out, uo)
			continue
		}
		uo.SellPrice = domain.FloorToTick(book.BestBid*(1-e.cfg.UnwindSlippage), tick)

		_, err := e.backend.CreateOrder(ctx, domain.Order{
			TokenID: lc.Leg.TokenID,
			Side:    domain.OrderSell,
			Price:   uo.SellPrice,
			Size:    size,
		})
		uo.Err = err
		out = append(out, uo)
		if err != nil {
			e.logger.Warn("unwind failed",
				slog.String("token", lc.Leg.TokenID),
				slog.Float64("size", size),
				slog.String("error", err.Error()),
			)
		} else {
			e.logger.Info("partial fill unwound",
				slog.String("token", lc.Leg.TokenID),
				slog.Float64("size", size),
				slog.Float64("price", uo.SellPrice),
			)
		}
	}
	return out
}

func (e *Engine) bookkeepSuccess(ctx context.Context, bk *domain.EventBasket, cand *domain.Candidate) {
	e.state.ExecutionsToday++
	e.state.NotionalToday += candidateNotional(cand)
	e.state.ConsecutiveFailures = 0
	bk.LastExecutedAt = e.now()
	e.persist(ctx)
	e.logger.Info("basket executed",
		slog.String("basket", cand.BasketKey),
		slog.Float64("net_edge", cand.NetEdge),
		slog.Float64("exec_edge", cand.ExecEdge),
		slog.Int("executions_today", e.state.ExecutionsToday),
	)
	e.notifyMsg(ctx, fmt.Sprintf("FILLED %s edge=%.3f exec_edge=%.3f", cand.BasketKey, cand.NetEdge, cand.ExecEdge))
}

func (e *Engine) bookkeepFailure(ctx context.Context, cand *domain.Candidate, reason string) {
	e.state.ConsecutiveFailures++
	if e.state.ConsecutiveFailures >= e.cfg.MaxConsecutiveFailures {
		e.haltNow(ctx, e.state.ConsecutiveFailures)
		return
	}
	e.persist(ctx)
	e.logger.Warn("execution failed",
		slog.String("basket", cand.BasketKey),
		slog.String("reason", reason),
		slog.Int("consecutive_failures", e.state.ConsecutiveFailures),
	)
	e.notifyMsg(ctx, fmt.Sprintf("NO FILL %s: %s", cand.BasketKey, reason))
}

func (e *Engine) tickFor(bk *domain.EventBasket) float64 {
	if bk.TickSize > 0 {
		return bk.TickSize
	}
	return e.cfg.DefaultTickSize
}

func allFilled(filled map[string]float64, cand *domain.Candidate, minRatio float64) bool {
	for _, lc := range cand.Legs {
		if filled[lc.Leg.TokenID] < cand.SharesPerLeg*minRatio {
			return false
		}
	}
	return true
}

func fillSummary(filled map[string]float64, cand *domain.Candidate) string {
	done := 0
	for _, lc := range cand.Legs {
		if filled[lc.Leg.TokenID] >= cand.SharesPerLeg {
			done++
		}
	}
	return fmt.Sprintf("%d/%d legs filled", done, len(cand.Legs))
}
