package domain

// Side is the outcome side a leg trades.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Leg is one tradable outcome token belonging to one market. Legs are
// immutable after construction.
type Leg struct {
	MarketID    string
	Question    string
	Label       string
	TokenID     string
	Side        Side
	AltMarketID string // market ID on the alternate execution venue, if mapped
	ConditionID string // groups legs sharing a resolution source
}
