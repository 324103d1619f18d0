// Package wallets enriches basket scores with a signal derived from the
// trading history of each underlying condition's largest holders. The pass is
// strictly best-effort: every lookup failure is excluded from the aggregate
// and never blocks basket availability.
package wallets

import (
	"context"
	"time"
)

// Holder is one wallet's position in a condition, as returned by the
// largest-holders lookup.
type Holder struct {
	Wallet string
	Amount float64
}

// TraderStyle is a coarse classification of a wallet's trading pattern.
type TraderStyle string

const (
	StyleUnknown  TraderStyle = "unknown"
	StyleScalper  TraderStyle = "scalper"
	StyleSwing    TraderStyle = "swing"
	StylePosition TraderStyle = "position"
)

// WalletProfile summarizes one wallet's trade history for scoring.
type WalletProfile struct {
	TradeCount        int
	ProfitableTimePct float64 // fraction of holding time spent in profit, [0, 1]
	Style             TraderStyle
	Hedged            bool    // holds offsetting positions on the same condition
	HedgeEdge         float64 // net edge locked by the hedge, per share
	TradesPerDay      float64
}

// HolderSource lists the largest holders of a condition.
type HolderSource interface {
	TopHolders(ctx context.Context, conditionID string, limit int) ([]Holder, error)
}

// ProfileSource summarizes a wallet's trade history.
type ProfileSource interface {
	WalletProfile(ctx context.Context, wallet string) (WalletProfile, error)
}

// ConditionScore is the aggregated wallet signal for one condition.
type ConditionScore struct {
	Score      float64 // holding-weighted wallet quality, [-1, 1]
	Confidence float64 // fraction of sampled holders successfully scored
	ScoredAt   time.Time
}

// ConditionCache is an optional cache for per-condition scores, keyed by
// condition ID. Misses and errors fall through to a fresh computation.
type ConditionCache interface {
	GetScore(ctx context.Context, conditionID string) (ConditionScore, bool, error)
	SetScore(ctx context.Context, conditionID string, score ConditionScore) error
}
