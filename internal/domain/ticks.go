package domain

import "math"

// Prices on the wire are decimal strings with at most six fractional digits.
// Rounding to a tick is done in integer micros so the final limit price sent
// in an order never carries binary floating-point noise; floats are only used
// for intermediate scoring and edge math.
const priceScale = 1_000_000

// CeilToTick rounds price up to the nearest multiple of tick. Used for buy
// limit prices, which must bias toward a conservative, achievable price.
func CeilToTick(price, tick float64) float64 {
	p, t := toMicros(price), toMicros(tick)
	if t <= 0 {
		return price
	}
	r := (p + t - 1) / t * t
	return float64(r) / priceScale
}

// FloorToTick rounds price down to the nearest multiple of tick. Used for
// unwind sell prices, which must not overstate what is achievable.
func FloorToTick(price, tick float64) float64 {
	p, t := toMicros(price), toMicros(tick)
	if t <= 0 {
		return price
	}
	r := p / t * t
	return float64(r) / priceScale
}

func toMicros(v float64) int64 {
	return int64(math.Round(v * priceScale))
}
