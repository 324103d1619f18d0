package wallets

import "math"

// Wallet-quality score components. The raw profitability term dominates; the
// rest are small nudges that keep one noisy dimension from flipping the sign.
const (
	styleBonusSwing    = 0.10
	styleBonusPosition = 0.05
	stylePenaltyScalp  = -0.10

	hedgeBonus   = 0.10
	hedgePenalty = -0.05
	hedgeEdgeCap = 0.20

	intensityKnee = 50.0 // trades/day above which churn starts to penalize
	intensityCap  = 0.20

	confidenceSaturation = 200 // trade count at which confidence reaches 1
)

// scoreWallet computes a bounded quality score in [-1, 1] for one wallet.
// Wallets with fewer than minTrades trades return ok=false and are excluded
// from the condition aggregate rather than scored at low confidence.
func scoreWallet(p WalletProfile, minTrades int) (score float64, ok bool) {
	if p.TradeCount < minTrades {
		return 0, false
	}

	// Profitable-time percentage maps linearly onto [-1, 1].
	s := (clamp01(p.ProfitableTimePct) - 0.5) * 2

	switch p.Style {
	case StyleSwing:
		s += styleBonusSwing
	case StylePosition:
		s += styleBonusPosition
	case StyleScalper:
		s += stylePenaltyScalp
	}

	if p.Hedged {
		s += hedgeBonus
		s += clampAbs(p.HedgeEdge*2, hedgeEdgeCap)
	} else {
		s += hedgePenalty
	}

	if p.TradesPerDay > intensityKnee {
		s -= math.Min((p.TradesPerDay-intensityKnee)/200, intensityCap)
	}

	s *= tradeConfidence(p.TradeCount)
	return clampAbs(s, 1), true
}

// tradeConfidence scales a score by how much history backs it, saturating on
// a log curve.
func tradeConfidence(tradeCount int) float64 {
	if tradeCount <= 0 {
		return 0
	}
	c := math.Log1p(float64(tradeCount)) / math.Log1p(confidenceSaturation)
	return clamp01(c)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampAbs(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
