// Package universe constructs the set of candidate event baskets from
// exchange market metadata, scores them, and selects a subset that fits the
// subscription-size budget.
package universe

import (
	"context"
	"time"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// MarketSource is the exchange's market-listing API at the boundary this
// package needs: paginated active-market listing plus event-by-slug lookup
// for fixed-window baskets.
type MarketSource interface {
	FetchActiveMarkets(ctx context.Context, limit, offset int) ([]domain.MarketInfo, error)
	FetchEventBySlug(ctx context.Context, slug string) (domain.EventInfo, error)
}

// ShapeChecker decides whether a set of parsed bucket ranges tiles a
// contiguous range with no unexplained gaps. A non-exhaustive bucket set
// cannot guarantee a payout floor, so this is a correctness precondition for
// bucket baskets. The exact tolerance is venue-specific and therefore
// pluggable.
type ShapeChecker interface {
	LooksExhaustive(buckets []BucketRange) bool
}

// LiveGate cross-checks schedule-bound markets against an external live-score
// feed. Confirm returns whether the event is currently live; in strict mode
// the builder excludes markets the gate cannot confirm.
type LiveGate interface {
	Confirm(ctx context.Context, m domain.MarketInfo) (bool, error)
}

// MarketCache is an optional metadata cache consulted before paging the
// listing API on refresh. Misses and errors fall through to the source.
type MarketCache interface {
	GetMarkets(ctx context.Context) ([]domain.MarketInfo, error)
	SetMarkets(ctx context.Context, markets []domain.MarketInfo) error
}

// Universe is one refresh cycle's worth of baskets, indexed by token so the
// event loop can map impacted tokens back to baskets.
type Universe struct {
	Baskets   map[string]*domain.EventBasket
	byToken   map[string][]*domain.EventBasket
	BuiltAt   time.Time
	TokenList []string
}

func newUniverse(baskets []*domain.EventBasket, now time.Time) *Universe {
	u := &Universe{
		Baskets: make(map[string]*domain.EventBasket, len(baskets)),
		byToken: make(map[string][]*domain.EventBasket),
		BuiltAt: now,
	}
	for _, b := range baskets {
		u.Baskets[b.Key] = b
		for _, tok := range b.TokenIDs() {
			if len(u.byToken[tok]) == 0 {
				u.TokenList = append(u.TokenList, tok)
			}
			u.byToken[tok] = append(u.byToken[tok], b)
		}
	}
	return u
}

// ImpactedBy returns the baskets holding any of the given tokens, each at
// most once.
func (u *Universe) ImpactedBy(tokens []string) []*domain.EventBasket {
	seen := make(map[string]struct{})
	var out []*domain.EventBasket
	for _, tok := range tokens {
		for _, b := range u.byToken[tok] {
			if _, dup := seen[b.Key]; dup {
				continue
			}
			seen[b.Key] = struct{}{}
			out = append(out, b)
		}
	}
	return out
}
