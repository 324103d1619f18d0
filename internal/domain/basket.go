package domain

import "time"

// Strategy tags how a basket was constructed.
type Strategy string

const (
	StrategyBuckets  Strategy = "buckets"
	StrategyYesNo    Strategy = "yes-no"
	StrategyEventYes Strategy = "event-yes"
	StrategyEventNo  Strategy = "event-no"
	StrategyWindow   Strategy = "window"
)

// EventBasket is a set of legs whose payouts are mutually exclusive and
// exhaustive for one logical event, so that holding every leg guarantees a
// floor payout. Enrichment fields are filled at construction; runtime fields
// mutate in place for the basket's lifetime (until the next universe refresh
// replaces it). Baskets are never shared across processes.
type EventBasket struct {
	Key      string
	Title    string
	Strategy Strategy
	Legs     []Leg

	// Enrichment from market metadata.
	Liquidity     float64
	Volume24h     float64
	Spread        float64
	PriceChange1d float64
	EndTime       time.Time
	MinOrderSize  float64 // largest per-leg minimum order size across legs
	TickSize      float64 // largest per-leg minimum price tick across legs

	// Scoring.
	BaseScore        float64
	WalletScore      float64 // wallet-signal score in [-1, 1]
	WalletConfidence float64 // fraction of sampled holders that were scored
	CombinedScore    float64

	// Runtime state, owned by the reactive task.
	LastEvaluatedAt time.Time
	LastAlertSig    string
	LastAlertAt     time.Time
	LastExecutedAt  time.Time
	NegEdgeStreak   int
	MutedUntil      time.Time
}

// TokenIDs returns the token IDs of all legs, in leg order.
func (b *EventBasket) TokenIDs() []string {
	out := make([]string, 0, len(b.Legs))
	for _, l := range b.Legs {
		out = append(out, l.TokenID)
	}
	return out
}

// ConditionIDs returns the distinct non-empty condition IDs across legs.
func (b *EventBasket) ConditionIDs() []string {
	seen := make(map[string]struct{}, len(b.Legs))
	out := make([]string, 0, len(b.Legs))
	for _, l := range b.Legs {
		if l.ConditionID == "" {
			continue
		}
		if _, ok := seen[l.ConditionID]; ok {
			continue
		}
		seen[l.ConditionID] = struct{}{}
		out = append(out, l.ConditionID)
	}
	return out
}

// MutedAt reports whether the basket's mute window covers the given instant.
// A muted basket is skipped by execution-edge filtering regardless of its
// current edge sign.
func (b *EventBasket) MutedAt(now time.Time) bool {
	return !b.MutedUntil.IsZero() && now.Before(b.MutedUntil)
}

// HasAltMapping reports whether every leg carries an alternate-venue market ID.
func (b *EventBasket) HasAltMapping() bool {
	for _, l := range b.Legs {
		if l.AltMarketID == "" {
			return false
		}
	}
	return true
}

// DaysToEnd returns the days until the basket's event resolves, or 0 when the
// end time is unset or already past.
func (b *EventBasket) DaysToEnd(now time.Time) float64 {
	if b.EndTime.IsZero() {
		return 0
	}
	d := b.EndTime.Sub(now).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}
