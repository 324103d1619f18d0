package wallets

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// Config tunes the augmentation pass.
type Config struct {
	MaxBaskets  int           // highest-scored baskets to enrich; 0 disables the pass
	TopHolders  int           // holders sampled per condition
	MinTrades   int           // wallets below this trade count are skipped
	Weight      float64       // contribution of the wallet signal to CombinedScore
	Concurrency int           // bound on in-flight condition lookups
	CacheTTL    time.Duration // per-condition score cache lifetime
}

// Augmenter runs the wallet-signal pass once per universe refresh. It is the
// only component allowed off the reactive task: condition lookups fan out on
// a bounded pool, and results are merged onto basket state only after the
// pool drains, so the baskets never see concurrent writers.
type Augmenter struct {
	holders  HolderSource
	profiles ProfileSource
	cache    ConditionCache // nil when no cache is wired
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger
}

// NewAugmenter creates an Augmenter. cache may be nil.
func NewAugmenter(holders HolderSource, profiles ProfileSource, cache ConditionCache, cfg Config, logger *slog.Logger) *Augmenter {
	if cfg.TopHolders <= 0 {
		cfg.TopHolders = 10
	}
	if cfg.MinTrades <= 0 {
		cfg.MinTrades = 5
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.Weight == 0 {
		cfg.Weight = 0.25
	}
	return &Augmenter{
		holders:  holders,
		profiles: profiles,
		cache:    cache,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "wallet_augmenter")),
	}
}

// Augment scores the conditions underlying the highest-scored baskets and
// folds the signal into each basket's CombinedScore. It mutates the baskets
// in place and never returns an error: the signal is best-effort.
func (a *Augmenter) Augment(ctx context.Context, baskets []*domain.EventBasket) {
	if a.cfg.MaxBaskets <= 0 || len(baskets) == 0 {
		return
	}

	targets := a.pickTargets(baskets)
	conditions := uniqueConditions(targets)
	if len(conditions) == 0 {
		return
	}

	scores := a.scoreConditions(ctx, conditions)
	scored := 0
	for _, bk := range targets {
		if a.applySignal(bk, scores) {
			scored++
		}
	}
	a.logger.Info("wallet signal pass complete",
		slog.Int("baskets_targeted", len(targets)),
		slog.Int("baskets_scored", scored),
		slog.Int("conditions", len(conditions)),
	)
}

// pickTargets returns the top MaxBaskets baskets by base score without
// reordering the caller's slice.
func (a *Augmenter) pickTargets(baskets []*domain.EventBasket) []*domain.EventBasket {
	targets := make([]*domain.EventBasket, len(baskets))
	copy(targets, baskets)
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].BaseScore > targets[j].BaseScore
	})
	if len(targets) > a.cfg.MaxBaskets {
		targets = targets[:a.cfg.MaxBaskets]
	}
	return targets
}

func uniqueConditions(baskets []*domain.EventBasket) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, bk := range baskets {
		for _, cond := range bk.ConditionIDs() {
			if _, dup := seen[cond]; dup {
				continue
			}
			seen[cond] = struct{}{}
			out = append(out, cond)
		}
	}
	return out
}

// scoreConditions fans condition lookups out on a bounded pool and collects
// the per-condition aggregates. Failed conditions are simply absent from the
// result map.
func (a *Augmenter) scoreConditions(ctx context.Context, conditions []string) map[string]ConditionScore {
	var mu sync.Mutex
	scores := make(map[string]ConditionScore, len(conditions))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for _, cond := range conditions {
		cond := cond
		g.Go(func() error {
			cs, ok := a.scoreCondition(ctx, cond)
			if !ok {
				return nil
			}
			mu.Lock()
			scores[cond] = cs
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait only joins the pool.
	_ = g.Wait()
	return scores
}

// scoreCondition produces the holding-weighted wallet score for one
// condition, consulting the cache first. Per-wallet failures reduce
// confidence instead of failing the condition.
func (a *Augmenter) scoreCondition(ctx context.Context, conditionID string) (ConditionScore, bool) {
	if a.cache != nil {
		if cs, hit, err := a.cache.GetScore(ctx, conditionID); err == nil && hit {
			if a.cfg.CacheTTL <= 0 || a.now().Sub(cs.ScoredAt) < a.cfg.CacheTTL {
				return cs, true
			}
		}
	}

	holders, err := a.holders.TopHolders(ctx, conditionID, a.cfg.TopHolders)
	if err != nil || len(holders) == 0 {
		if err != nil {
			a.logger.Debug("holders lookup failed",
				slog.String("condition", conditionID),
				slog.String("error", err.Error()),
			)
		}
		return ConditionScore{}, false
	}

	var weightedSum, weightSum float64
	scoredCount := 0
	for _, h := range holders {
		profile, perr := a.profiles.WalletProfile(ctx, h.Wallet)
		if perr != nil {
			a.logger.Debug("wallet profile lookup failed",
				slog.String("wallet", h.Wallet),
				slog.String("error", perr.Error()),
			)
			continue
		}
		s, ok := scoreWallet(profile, a.cfg.MinTrades)
		if !ok {
			continue
		}
		weight := h.Amount
		if weight <= 0 {
			weight = 1
		}
		weightedSum += s * weight
		weightSum += weight
		scoredCount++
	}
	if scoredCount == 0 {
		return ConditionScore{}, false
	}

	cs := ConditionScore{
		Score:      weightedSum / weightSum,
		Confidence: float64(scoredCount) / float64(len(holders)),
		ScoredAt:   a.now(),
	}
	if a.cache != nil {
		if err := a.cache.SetScore(ctx, conditionID, cs); err != nil {
			a.logger.Debug("condition score cache write failed",
				slog.String("condition", conditionID),
				slog.String("error", err.Error()),
			)
		}
	}
	return cs, true
}

// applySignal sets the basket's wallet score to the unweighted mean across
// its legs' conditions and recomputes CombinedScore. Baskets whose base score
// is already negative keep it unchanged: the wallet signal refines ranking
// among viable baskets, it does not resurrect discarded ones.
func (a *Augmenter) applySignal(bk *domain.EventBasket, scores map[string]ConditionScore) bool {
	var scoreSum, confSum float64
	n := 0
	for _, cond := range bk.ConditionIDs() {
		cs, ok := scores[cond]
		if !ok {
			continue
		}
		scoreSum += cs.Score
		confSum += cs.Confidence
		n++
	}
	if n == 0 {
		return false
	}

	bk.WalletScore = scoreSum / float64(n)
	bk.WalletConfidence = confSum / float64(n)
	if bk.BaseScore >= 0 {
		bk.CombinedScore = bk.BaseScore + a.cfg.Weight*bk.WalletScore*bk.WalletConfidence
	}
	return true
}
