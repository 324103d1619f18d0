package domain

import (
	"fmt"
	"strings"
	"time"
)

// LegCost pairs a leg with the cost and limit price achieved when pricing it
// against the current book.
type LegCost struct {
	Leg        Leg
	Cost       float64 // observed cost for SharesPerLeg walking the ask ladder
	LimitPrice float64 // slippage-adjusted per-share price, ceiling-rounded to tick
}

// Candidate is the evaluated outcome of pricing one basket against the book
// cache at a point in time. Candidates are immutable and produced fresh on
// every evaluation; they are never persisted by the engine itself.
type Candidate struct {
	Strategy       Strategy
	BasketKey      string
	Title          string
	SharesPerLeg   float64
	BasketCost     float64
	PayoutAfterFee float64
	FixedCost      float64
	NetEdge        float64
	EdgePct        float64
	ExecCost       float64
	ExecEdge       float64
	Legs           []LegCost
	EvaluatedAt    time.Time
}

// Signature identifies the economic picture of a candidate: strategy, basket
// key, rounded net edge, and rounded per-leg costs. Two candidates with the
// same signature represent the same opportunity, so re-alerting on book
// micro-movements is suppressed.
func (c Candidate) Signature() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s|%s|%.3f", c.Strategy, c.BasketKey, c.NetEdge)
	for _, lc := range c.Legs {
		fmt.Fprintf(&sb, "|%.3f", lc.Cost)
	}
	return sb.String()
}
