package domain

import "time"

// MarketInfo is one market record from the exchange's market-listing API,
// already decoded into native types (the raw API encodes token IDs and
// outcome labels as JSON strings inside JSON).
type MarketInfo struct {
	ID                string
	Question          string
	GroupItemTitle    string // sub-label within a grouped event
	Slug              string
	EnableOrderBook   bool
	FeeExempt         bool
	Liquidity         float64
	Volume24h         float64
	Spread            float64
	OneDayPriceChange float64
	EndDate           time.Time
	GameStartTime     time.Time // schedule-bound events only
	OrderMinSize      float64
	OrderTickSize     float64
	TokenIDs          []string // outcome token IDs, in outcome order
	Outcomes          []string // outcome labels, in outcome order
	EventID           string
	EventSlug         string
	ConditionID       string
	NegRisk           bool
}

// EventInfo is one grouped event with its nested markets, as returned by the
// event-by-slug lookup used for fixed-window baskets.
type EventInfo struct {
	ID      string
	Slug    string
	Title   string
	EndDate time.Time
	Markets []MarketInfo
}

// YesNoTokens returns the (yes, no) token IDs for a binary market, or false
// when the market does not carry exactly two outcomes.
func (m MarketInfo) YesNoTokens() (yes, no string, ok bool) {
	if len(m.TokenIDs) != 2 || len(m.Outcomes) != 2 {
		return "", "", false
	}
	// Outcome order is not guaranteed; the Yes token is the one whose label
	// matches, falling back to positional order.
	if m.Outcomes[0] == "No" || m.Outcomes[1] == "Yes" {
		return m.TokenIDs[1], m.TokenIDs[0], true
	}
	return m.TokenIDs[0], m.TokenIDs[1], true
}
