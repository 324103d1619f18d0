package domain

import "time"

// OrderSide is the direction of an order against the book.
type OrderSide string

const (
	OrderBuy  OrderSide = "buy"
	OrderSell OrderSide = "sell"
)

// Order is one limit order to be placed on the order-book venue.
type Order struct {
	TokenID string
	Side    OrderSide
	Price   float64 // already tick-rounded by the caller
	Size    float64
}

// OpenOrder is one resting order as reported by the venue.
type OpenOrder struct {
	ID      string
	TokenID string
	Side    OrderSide
	Price   float64
	Size    float64
}

// Trade is one fill as reported by the venue's trade history.
type Trade struct {
	ID        string
	TokenID   string
	Side      OrderSide
	Price     float64
	Size      float64
	MatchedAt time.Time
}

// AltTrade is one trade submission for the alternate execution backend,
// which is keyed by an external market ID rather than an order book token.
type AltTrade struct {
	MarketID string
	Side     OrderSide
	Amount   float64 // notional
}

// AltTradeResult is the per-trade outcome of an alternate-backend batch.
type AltTradeResult struct {
	MarketID string
	Success  bool
	Message  string
}

// Position is one open position on the alternate backend.
type Position struct {
	MarketID string
	Side     OrderSide
	Amount   float64 // notional currently at risk
}
