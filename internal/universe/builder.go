package universe

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// Config holds the tunable parameters for universe construction.
type Config struct {
	// Strategies enables construction strategies: "buckets", "yes-no",
	// "event-pair", "window". They are independent and combinable.
	Strategies []string

	// Shared eligibility filters.
	MinLiquidity float64
	MinVolume24h float64
	MaxDaysToEnd float64
	IncludeTerms []string
	ExcludeTerms []string

	// Live-window gate for schedule-bound events.
	LiveWindowEnabled bool
	LivePreStart      time.Duration
	LivePostEnd       time.Duration
	LiveStrict        bool // exclude markets the feed cannot confirm

	// Buckets strategy.
	MinBucketOutcomes int
	CheckExhaustive   bool

	// Fixed-window strategy.
	WindowSlugPrefix  string
	WindowSize        time.Duration
	WindowLookBack    int
	WindowLookForward int

	// Scan budget.
	PageSize          int
	MaxMarketsScanned int
	MaxBaskets        int // stop paging early once this many baskets qualify

	// Selection under subscription budget.
	MaxTokens         int // 0 = unlimited
	MaxPerEvent       int // 0 = unlimited
	ScoreHalfLifeDays float64
	ScoreMaxDays      float64

	// AltMarketMap maps a market ID to the alternate execution venue's
	// market ID, propagated onto legs for alternate-backend execution.
	AltMarketMap map[string]string
}

// Builder constructs EventBaskets from market metadata. It is run once at
// startup and again on every periodic universe refresh; each run produces a
// fresh Universe that wholesale replaces the previous one.
type Builder struct {
	source MarketSource
	shapes ShapeChecker
	live   LiveGate    // nil when the live feed is not configured
	cache  MarketCache // nil when no metadata cache is wired
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// NewBuilder creates a Builder. shapes may be nil, in which case a contiguous
// tiling check with a small tolerance is used. live and cache are optional.
func NewBuilder(source MarketSource, shapes ShapeChecker, live LiveGate, cache MarketCache, cfg Config, logger *slog.Logger) *Builder {
	if shapes == nil {
		shapes = defaultShapeChecker{}
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxMarketsScanned <= 0 {
		cfg.MaxMarketsScanned = 2000
	}
	return &Builder{
		source: source,
		shapes: shapes,
		live:   live,
		cache:  cache,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With(slog.String("component", "universe_builder")),
	}
}

// Refresh scans the market listing, runs every enabled strategy, scores the
// resulting baskets, and selects the subset that fits the token budget.
func (b *Builder) Refresh(ctx context.Context) (*Universe, error) {
	now := b.now()

	markets, err := b.scanMarkets(ctx)
	if err != nil {
		return nil, err
	}

	var baskets []*domain.EventBasket
	if b.enabled("buckets") {
		baskets = append(baskets, b.buildBuckets(markets, now)...)
	}
	if b.enabled("yes-no") {
		baskets = append(baskets, b.buildYesNo(markets, now)...)
	}
	if b.enabled("event-pair") {
		baskets = append(baskets, b.buildEventPairs(markets, now)...)
	}
	if b.enabled("window") {
		wins, werr := b.buildWindows(ctx, now)
		if werr != nil {
			// Window lookups hit the event API directly; a failure there
			// should not sink the rest of the universe.
			b.logger.Warn("window strategy failed", slog.String("error", werr.Error()))
		}
		baskets = append(baskets, wins...)
	}

	for _, bk := range baskets {
		bk.BaseScore = b.baseScore(bk, now)
		bk.CombinedScore = bk.BaseScore
		b.applyAltMapping(bk)
	}

	selected := b.selectUnderBudget(baskets)
	b.logger.Info("universe refreshed",
		slog.Int("markets_scanned", len(markets)),
		slog.Int("baskets_built", len(baskets)),
		slog.Int("baskets_selected", len(selected)),
	)
	return newUniverse(selected, now), nil
}

// scanMarkets pages the listing API under the scan budget, stopping early
// once enough markets have been gathered. The optional metadata cache is
// consulted first and refilled on a successful scan.
func (b *Builder) scanMarkets(ctx context.Context) ([]domain.MarketInfo, error) {
	if b.cache != nil {
		if cached, err := b.cache.GetMarkets(ctx); err == nil && len(cached) > 0 {
			b.logger.Debug("using cached market metadata", slog.Int("count", len(cached)))
			return b.filterEligible(ctx, cached), nil
		}
	}

	var all []domain.MarketInfo
	var eligible []domain.MarketInfo
	for offset := 0; offset < b.cfg.MaxMarketsScanned; offset += b.cfg.PageSize {
		page, err := b.source.FetchActiveMarkets(ctx, b.cfg.PageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("universe: fetch markets offset=%d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		eligible = append(eligible, b.filterEligible(ctx, page)...)
		if b.cfg.MaxBaskets > 0 && len(eligible) >= b.cfg.MaxBaskets*2 {
			// Rough early stop: a basket needs at least two legs, so twice
			// the basket budget in qualifying markets is plenty.
			break
		}
	}

	if b.cache != nil && len(all) > 0 {
		if err := b.cache.SetMarkets(ctx, all); err != nil {
			b.logger.Warn("market cache write failed", slog.String("error", err.Error()))
		}
	}
	return eligible, nil
}

func (b *Builder) enabled(name string) bool {
	for _, s := range b.cfg.Strategies {
		if s == name {
			return true
		}
	}
	return false
}

// applyAltMapping copies configured alternate-venue market IDs onto legs.
func (b *Builder) applyAltMapping(bk *domain.EventBasket) {
	if len(b.cfg.AltMarketMap) == 0 {
		return
	}
	for i := range bk.Legs {
		if alt, ok := b.cfg.AltMarketMap[bk.Legs[i].MarketID]; ok {
			bk.Legs[i].AltMarketID = alt
		}
	}
}

// selectUnderBudget ranks baskets by score and greedily accepts them while
// the union of their tokens stays within the subscription budget and the
// per-event cap is respected. With no budget configured every basket with a
// non-negative score is kept.
func (b *Builder) selectUnderBudget(baskets []*domain.EventBasket) []*domain.EventBasket {
	sort.SliceStable(baskets, func(i, j int) bool {
		return baskets[i].CombinedScore > baskets[j].CombinedScore
	})

	if b.cfg.MaxTokens <= 0 && b.cfg.MaxPerEvent <= 0 {
		return baskets
	}

	tokens := make(map[string]struct{})
	perEvent := make(map[string]int)
	var out []*domain.EventBasket
	for _, bk := range baskets {
		if bk.CombinedScore < 0 {
			continue
		}
		if b.cfg.MaxPerEvent > 0 && perEvent[eventKeyOf(bk)] >= b.cfg.MaxPerEvent {
			continue
		}
		if b.cfg.MaxTokens > 0 {
			added := 0
			for _, tok := range bk.TokenIDs() {
				if _, ok := tokens[tok]; !ok {
					added++
				}
			}
			if len(tokens)+added > b.cfg.MaxTokens {
				continue
			}
			for _, tok := range bk.TokenIDs() {
				tokens[tok] = struct{}{}
			}
		}
		perEvent[eventKeyOf(bk)]++
		out = append(out, bk)
	}
	return out
}

// eventKeyOf groups baskets belonging to the same logical event for the
// per-event cap. The basket key embeds the event key before the first '/'.
func eventKeyOf(bk *domain.EventBasket) string {
	for i := 0; i < len(bk.Key); i++ {
		if bk.Key[i] == '/' {
			return bk.Key[:i]
		}
	}
	return bk.Key
}
