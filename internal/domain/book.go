package domain

import (
	"fmt"
	"time"
)

// PriceLevel is a single price+size entry in an order book ladder.
type PriceLevel struct {
	Price float64
	Size  float64
}

// syntheticSize is the size assigned to a reconstructed level when only a
// best-price hint is available. Effectively unlimited for any sane order.
const syntheticSize = 1e9

// LocalBook is the per-token order-book snapshot kept by the book cache.
// Asks are sorted ascending, bids descending. A side is marked synthetic when
// it was reconstructed from a single best-price hint rather than real depth.
type LocalBook struct {
	TokenID      string
	Asks         []PriceLevel
	Bids         []PriceLevel
	BestAsk      float64
	BestBid      float64
	SyntheticAsk bool
	SyntheticBid bool
	UpdatedAt    time.Time
}

// SyntheticLevel builds the single reconstructed level used when an update
// carries only a best-price hint and no depth list.
func SyntheticLevel(price float64) []PriceLevel {
	return []PriceLevel{{Price: price, Size: syntheticSize}}
}

// Age returns how stale the book is relative to now.
func (b *LocalBook) Age(now time.Time) time.Duration {
	if b.UpdatedAt.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return now.Sub(b.UpdatedAt)
}

// CostForShares walks the ask ladder in price order and returns the total
// cost to acquire the requested shares. It never extrapolates beyond the
// given levels: when the ladder cannot fill the request it returns
// ErrInsufficientDepth, never a partial number.
func CostForShares(asks []PriceLevel, shares float64) (float64, error) {
	if shares <= 0 {
		return 0, fmt.Errorf("cost for shares: non-positive request %.4f", shares)
	}
	remaining := shares
	cost := 0.0
	for _, lvl := range asks {
		if lvl.Size <= 0 || lvl.Price <= 0 {
			continue
		}
		take := lvl.Size
		if take > remaining {
			take = remaining
		}
		cost += take * lvl.Price
		remaining -= take
		if remaining <= 0 {
			return cost, nil
		}
	}
	return 0, ErrInsufficientDepth
}

// DepthAtOrBelow returns the cumulative ask size available at or below the
// given limit price.
func DepthAtOrBelow(asks []PriceLevel, limit float64) float64 {
	var total float64
	for _, lvl := range asks {
		if lvl.Price > limit {
			break
		}
		total += lvl.Size
	}
	return total
}
