package universe

import (
	"math"
	"time"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// Score component weights. Liquidity dominates because thin books make the
// edge math unreliable long before they make it unprofitable.
const (
	weightLiquidity = 0.40
	weightVolume    = 0.35
	weightSpread    = 0.15
	weightChange    = 0.10
)

// baseScore ranks a basket for subscription-budget selection. Each component
// is normalized into [0, 1], combined with fixed weights, then decayed
// exponentially by time to resolution. Baskets past the resolution ceiling
// score -1, which excludes them from budgeted selection outright.
func (b *Builder) baseScore(bk *domain.EventBasket, now time.Time) float64 {
	days := bk.DaysToEnd(now)
	if b.cfg.ScoreMaxDays > 0 && days > b.cfg.ScoreMaxDays {
		return -1
	}

	score := weightLiquidity*logNorm(bk.Liquidity, 100_000) +
		weightVolume*logNorm(bk.Volume24h, 100_000) +
		weightSpread*normSpread(bk.Spread) +
		weightChange*normChange(bk.PriceChange1d)

	halfLife := b.cfg.ScoreHalfLifeDays
	if halfLife <= 0 {
		halfLife = 7
	}
	return score * math.Exp(-days/halfLife)
}

// logNorm maps a dollar quantity into [0, 1] on a log scale, saturating at
// the given ceiling.
func logNorm(v, ceiling float64) float64 {
	if v <= 0 {
		return 0
	}
	n := math.Log1p(v) / math.Log1p(ceiling)
	return clamp01(n)
}

// normSpread rewards tight books: a zero spread scores 1, ten cents or wider
// scores 0.
func normSpread(spread float64) float64 {
	return clamp01(1 - spread*10)
}

// normChange rewards recent movement in either direction: a twenty-cent move
// over the last day saturates at 1.
func normChange(change float64) float64 {
	return clamp01(math.Abs(change) * 5)
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
