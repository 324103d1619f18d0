// Package evaluator prices event baskets against the local book cache,
// producing candidates with raw and execution-adjusted edges, metrics
// records, mute streak handling, and alert deduplication.
package evaluator

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// BookView is the read side of the book cache.
type BookView interface {
	Get(tokenID string) *domain.LocalBook
}

// Sink receives one record per evaluated basket. Implementations must not
// block the reactive task for long; failures are logged and dropped.
type Sink interface {
	Record(rec Record) error
}

// Config tunes candidate evaluation.
type Config struct {
	SharesPerLeg float64
	FeeRate      float64
	FixedCost    float64

	// SlippageMult scales the observed per-share cost before ceiling-rounding
	// to the tick, e.g. 1.02 for 2% of headroom.
	SlippageMult    float64
	DefaultTickSize float64 // used when a basket carries no tick size

	MinNetEdge  float64 // raw threshold
	MinExecEdge float64 // execution-adjusted threshold

	// Execution-edge filter: after NegStreakLimit consecutive evaluations with
	// exec edge at or below ExecEdgeFloor, the basket is muted for MuteCooldown.
	ExecFilterEnabled bool
	ExecEdgeFloor     float64
	NegStreakLimit    int
	MuteCooldown      time.Duration

	AlertCooldown time.Duration
}

// Outcome classifies one evaluation.
type Outcome string

const (
	OutcomeQualified Outcome = "qualified"
	OutcomeBelowEdge Outcome = "below_edge"
	OutcomeMuted     Outcome = "muted"
	OutcomeNoPrice   Outcome = "no_price" // missing book or insufficient depth
)

// Result is the product of evaluating one basket.
type Result struct {
	Outcome     Outcome
	Candidate   *domain.Candidate // nil unless the basket priced fully
	ShouldAlert bool
	Reason      string
}

// Evaluator prices baskets. It runs exclusively on the reactive task and
// mutates basket runtime fields in place.
type Evaluator struct {
	books  BookView
	sink   Sink // nil disables metrics
	cfg    Config
	logger *slog.Logger
}

// New creates an Evaluator. sink may be nil.
func New(books BookView, sink Sink, cfg Config, logger *slog.Logger) *Evaluator {
	if cfg.SharesPerLeg <= 0 {
		cfg.SharesPerLeg = 10
	}
	if cfg.SlippageMult <= 0 {
		cfg.SlippageMult = 1
	}
	if cfg.DefaultTickSize <= 0 {
		cfg.DefaultTickSize = 0.01
	}
	if cfg.NegStreakLimit <= 0 {
		cfg.NegStreakLimit = 5
	}
	return &Evaluator{
		books:  books,
		sink:   sink,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "evaluator")),
	}
}

// Evaluate prices one basket at the given instant. Mute windows short-circuit
// before any pricing: a muted basket is filtered regardless of its current
// edge sign, and its streak is untouched until the window elapses.
func (e *Evaluator) Evaluate(bk *domain.EventBasket, now time.Time) Result {
	if bk.MutedAt(now) {
		return Result{Outcome: OutcomeMuted, Reason: "muted until " + bk.MutedUntil.Format(time.RFC3339)}
	}
	bk.LastEvaluatedAt = now

	cand, rec, err := e.computeCandidate(bk, now)
	if err != nil {
		e.record(rec)
		return Result{Outcome: OutcomeNoPrice, Reason: err.Error()}
	}

	rec.PassRaw = cand.NetEdge > e.cfg.MinNetEdge
	rec.PassExec = cand.ExecEdge > e.cfg.MinExecEdge

	muted := e.applyExecFilter(bk, cand, now, &rec)
	e.record(rec)
	if muted {
		return Result{
			Outcome:   OutcomeMuted,
			Candidate: cand,
			Reason:    "exec edge below floor for " + strconv.Itoa(e.cfg.NegStreakLimit) + " consecutive evaluations",
		}
	}

	if !rec.PassRaw || !rec.PassExec {
		return Result{Outcome: OutcomeBelowEdge, Candidate: cand}
	}
	return Result{
		Outcome:     OutcomeQualified,
		Candidate:   cand,
		ShouldAlert: e.shouldAlert(bk, cand, now),
	}
}

// computeCandidate prices every leg against the current books. It fails when
// the basket's minimum order size exceeds the configured shares, when any leg
// has no book, or when any ask ladder cannot fill the request. The metrics
// record is populated as far as pricing got, so failures still report missing
// and synthetic leg counts.
func (e *Evaluator) computeCandidate(bk *domain.EventBasket, now time.Time) (*domain.Candidate, Record, error) {
	shares := e.cfg.SharesPerLeg
	rec := Record{
		Timestamp:     now,
		Strategy:      string(bk.Strategy),
		Basket:        bk.Key,
		Title:         bk.Title,
		LegCount:      len(bk.Legs),
		SharesPerLeg:  shares,
		BaseScore:     bk.BaseScore,
		WalletScore:   bk.WalletScore,
		CombinedScore: bk.CombinedScore,
	}

	if bk.MinOrderSize > shares {
		return nil, rec, domain.ErrOrderTooSmall
	}

	tick := bk.TickSize
	if tick <= 0 {
		tick = e.cfg.DefaultTickSize
	}

	var basketCost, execCost float64
	var fillSum, fillMin float64
	fillMin = 1
	legs := make([]domain.LegCost, 0, len(bk.Legs))

	for _, leg := range bk.Legs {
		book := e.books.Get(leg.TokenID)
		if book == nil {
			rec.MissingBookLegs++
			return nil, rec, domain.ErrNoBook
		}
		if book.SyntheticAsk {
			rec.SyntheticAskLegs++
		}
		if age := book.Age(now); age > rec.WorstStaleness {
			rec.WorstStaleness = age
		}

		cost, err := domain.CostForShares(book.Asks, shares)
		if err != nil {
			return nil, rec, err
		}
		perShare := cost / shares
		limit := domain.CeilToTick(perShare*e.cfg.SlippageMult, tick)

		fill := domain.DepthAtOrBelow(book.Asks, limit) / shares
		if fill > 1 {
			fill = 1
		}
		fillSum += fill
		if fill < fillMin {
			fillMin = fill
		}

		basketCost += cost
		execCost += limit * shares
		legs = append(legs, domain.LegCost{Leg: leg, Cost: cost, LimitPrice: limit})
	}

	payout := shares * (1 - e.cfg.FeeRate)
	netEdge := payout - basketCost - e.cfg.FixedCost
	edgePct := 0.0
	if payout != 0 {
		edgePct = netEdge / payout
	}

	cand := &domain.Candidate{
		Strategy:       bk.Strategy,
		BasketKey:      bk.Key,
		Title:          bk.Title,
		SharesPerLeg:   shares,
		BasketCost:     basketCost,
		PayoutAfterFee: payout,
		FixedCost:      e.cfg.FixedCost,
		NetEdge:        netEdge,
		EdgePct:        edgePct,
		ExecCost:       execCost,
		ExecEdge:       payout - execCost - e.cfg.FixedCost,
		Legs:           legs,
		EvaluatedAt:    now,
	}

	rec.Payout = payout
	rec.FixedCost = e.cfg.FixedCost
	rec.BasketCost = basketCost
	rec.NetEdge = netEdge
	rec.EdgePct = edgePct
	rec.ExecCost = execCost
	rec.ExecEdge = cand.ExecEdge
	rec.FillRatioMin = fillMin
	rec.FillRatioAvg = fillSum / float64(len(bk.Legs))
	return cand, rec, nil
}

// applyExecFilter advances the basket's negative-edge streak and mutes it once
// the streak reaches the limit. Returns true when this evaluation tripped or
// extended into a mute.
func (e *Evaluator) applyExecFilter(bk *domain.EventBasket, cand *domain.Candidate, now time.Time, rec *Record) bool {
	if !e.cfg.ExecFilterEnabled {
		return false
	}
	if cand.ExecEdge > e.cfg.ExecEdgeFloor {
		bk.NegEdgeStreak = 0
		return false
	}

	bk.NegEdgeStreak++
	if bk.NegEdgeStreak < e.cfg.NegStreakLimit {
		return false
	}
	bk.MutedUntil = now.Add(e.cfg.MuteCooldown)
	bk.NegEdgeStreak = 0
	rec.MuteApplied = true
	rec.MutedUntil = bk.MutedUntil
	e.logger.Info("basket muted",
		slog.String("basket", bk.Key),
		slog.Float64("exec_edge", cand.ExecEdge),
		slog.Time("muted_until", bk.MutedUntil),
	)
	return true
}

// shouldAlert applies signature-based deduplication: a basket re-alerts only
// when its candidate signature changes or the alert cooldown has elapsed.
func (e *Evaluator) shouldAlert(bk *domain.EventBasket, cand *domain.Candidate, now time.Time) bool {
	sig := cand.Signature()
	if sig == bk.LastAlertSig && now.Sub(bk.LastAlertAt) < e.cfg.AlertCooldown {
		return false
	}
	bk.LastAlertSig = sig
	bk.LastAlertAt = now
	return true
}

func (e *Evaluator) record(rec Record) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Record(rec); err != nil {
		e.logger.Warn("metrics record failed", slog.String("error", err.Error()))
	}
}

