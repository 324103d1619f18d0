package universe

import (
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// BucketRange is a numeric bucket parsed from a market label, e.g. "10-20",
// "below 5", "250+". Open ends are marked rather than encoded as infinities
// so the shape checker can reason about them.
type BucketRange struct {
	Low      float64
	High     float64
	OpenLow  bool // no lower bound ("below 5")
	OpenHigh bool // no upper bound ("20 or more")
}

var (
	rangeRe   = regexp.MustCompile(`(?i)^\s*\$?([\d,]+(?:\.\d+)?)\s*[-–—]\s*\$?([\d,]+(?:\.\d+)?)\s*$`)
	belowRe   = regexp.MustCompile(`(?i)^\s*(?:below|under|less than|<)\s*\$?([\d,]+(?:\.\d+)?)\s*$`)
	aboveRe   = regexp.MustCompile(`(?i)^\s*(?:above|over|more than|>)\s*\$?([\d,]+(?:\.\d+)?)\s*$`)
	orMoreRe  = regexp.MustCompile(`(?i)^\s*\$?([\d,]+(?:\.\d+)?)\s*(?:\+|or more|or higher|or above)\s*$`)
	orLessRe  = regexp.MustCompile(`(?i)^\s*\$?([\d,]+(?:\.\d+)?)\s*(?:or less|or lower|or below|or fewer)\s*$`)
)

// ParseBucketLabel parses a market label as a numeric bucket. It returns
// false for anything that does not look like one.
func ParseBucketLabel(label string) (BucketRange, bool) {
	if m := rangeRe.FindStringSubmatch(label); m != nil {
		lo, err1 := parseBound(m[1])
		hi, err2 := parseBound(m[2])
		if err1 == nil && err2 == nil && lo < hi {
			return BucketRange{Low: lo, High: hi}, true
		}
		return BucketRange{}, false
	}
	if m := belowRe.FindStringSubmatch(label); m != nil {
		if hi, err := parseBound(m[1]); err == nil {
			return BucketRange{High: hi, OpenLow: true}, true
		}
	}
	if m := orLessRe.FindStringSubmatch(label); m != nil {
		if hi, err := parseBound(m[1]); err == nil {
			return BucketRange{High: hi, OpenLow: true}, true
		}
	}
	if m := aboveRe.FindStringSubmatch(label); m != nil {
		if lo, err := parseBound(m[1]); err == nil {
			return BucketRange{Low: lo, OpenHigh: true}, true
		}
	}
	if m := orMoreRe.FindStringSubmatch(label); m != nil {
		if lo, err := parseBound(m[1]); err == nil {
			return BucketRange{Low: lo, OpenHigh: true}, true
		}
	}
	return BucketRange{}, false
}

func parseBound(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

// defaultShapeChecker accepts a bucket set when, sorted by lower bound, the
// first bucket is open at the bottom, the last is open at the top, and every
// adjacent pair tiles with no gap beyond a small relative tolerance. Venues
// that label half-open buckets inclusively ("10-19", "20-29") produce a gap
// of one label unit, which the tolerance absorbs.
type defaultShapeChecker struct{}

func (defaultShapeChecker) LooksExhaustive(buckets []BucketRange) bool {
	if len(buckets) < 2 {
		return false
	}
	sorted := make([]BucketRange, len(buckets))
	copy(sorted, buckets)
	sort.Slice(sorted, func(i, j int) bool {
		li, lj := sorted[i].Low, sorted[j].Low
		if sorted[i].OpenLow {
			li = math.Inf(-1)
		}
		if sorted[j].OpenLow {
			lj = math.Inf(-1)
		}
		return li < lj
	})

	if !sorted[0].OpenLow || !sorted[len(sorted)-1].OpenHigh {
		return false
	}
	for i := 0; i < len(sorted)-1; i++ {
		hi := sorted[i].High
		lo := sorted[i+1].Low
		if sorted[i].OpenHigh || sorted[i+1].OpenLow {
			return false // open end in the middle of the tiling
		}
		gap := lo - hi
		tol := math.Max(1, math.Abs(hi)*0.01)
		if gap < 0 || gap > tol {
			return false
		}
	}
	return true
}

// buildBuckets groups markets sharing an event key whose labels parse as
// numeric buckets and keeps groups with enough outcomes whose buckets look
// exhaustive. Each kept group becomes one basket long the YES leg of every
// bucket.
func (b *Builder) buildBuckets(markets []domain.MarketInfo, now time.Time) []*domain.EventBasket {
	type bucketLeg struct {
		m     domain.MarketInfo
		r     BucketRange
		token string
	}
	groups := make(map[string][]bucketLeg)
	titles := make(map[string]string)

	for _, m := range markets {
		label := m.GroupItemTitle
		if label == "" {
			label = m.Question
		}
		r, ok := ParseBucketLabel(label)
		if !ok {
			continue
		}
		yes, _, ok := m.YesNoTokens()
		if !ok {
			continue
		}
		key := bucketEventKey(m)
		groups[key] = append(groups[key], bucketLeg{m: m, r: r, token: yes})
		if titles[key] == "" {
			titles[key] = m.Question
		}
	}

	minOutcomes := b.cfg.MinBucketOutcomes
	if minOutcomes < 2 {
		minOutcomes = 2
	}

	var out []*domain.EventBasket
	for key, legs := range groups {
		if len(legs) < minOutcomes {
			continue
		}
		if b.cfg.CheckExhaustive {
			ranges := make([]BucketRange, 0, len(legs))
			for _, l := range legs {
				ranges = append(ranges, l.r)
			}
			if !b.shapes.LooksExhaustive(ranges) {
				b.logger.Debug("bucket group rejected by shape check",
					slog.String("event", key),
					slog.Int("outcomes", len(legs)),
				)
				continue
			}
		}

		sort.Slice(legs, func(i, j int) bool {
			li, lj := legs[i].r.Low, legs[j].r.Low
			if legs[i].r.OpenLow {
				li = math.Inf(-1)
			}
			if legs[j].r.OpenLow {
				lj = math.Inf(-1)
			}
			return li < lj
		})

		bk := &domain.EventBasket{
			Key:      key + "/buckets",
			Title:    titles[key],
			Strategy: domain.StrategyBuckets,
		}
		for _, l := range legs {
			bk.Legs = append(bk.Legs, domain.Leg{
				MarketID:    l.m.ID,
				Question:    l.m.Question,
				Label:       l.m.GroupItemTitle,
				TokenID:     l.token,
				Side:        domain.SideYes,
				ConditionID: l.m.ConditionID,
			})
			accumulateEnrichment(bk, l.m)
		}
		out = append(out, bk)
	}
	return out
}

// bucketEventKey derives the grouping key for bucket markets: the grouped
// event identifier when present, otherwise the question with the numeric
// bucket portion stripped.
func bucketEventKey(m domain.MarketInfo) string {
	if m.EventSlug != "" {
		return m.EventSlug
	}
	if m.EventID != "" {
		return m.EventID
	}
	return normalizeLabel(stripDigits(m.Question))
}

var digitsRe = regexp.MustCompile(`[\d,.$]+`)

func stripDigits(s string) string {
	return digitsRe.ReplaceAllString(s, "")
}

// accumulateEnrichment folds one market's metadata into its basket: sums for
// liquidity/volume, maxima for spread, minimum order size and tick, and the
// latest end time (conservative for the time-decay in scoring).
func accumulateEnrichment(bk *domain.EventBasket, m domain.MarketInfo) {
	bk.Liquidity += m.Liquidity
	bk.Volume24h += m.Volume24h
	if m.Spread > bk.Spread {
		bk.Spread = m.Spread
	}
	if math.Abs(m.OneDayPriceChange) > math.Abs(bk.PriceChange1d) {
		bk.PriceChange1d = m.OneDayPriceChange
	}
	if m.EndDate.After(bk.EndTime) {
		bk.EndTime = m.EndDate
	}
	if m.OrderMinSize > bk.MinOrderSize {
		bk.MinOrderSize = m.OrderMinSize
	}
	if m.OrderTickSize > bk.TickSize {
		bk.TickSize = m.OrderTickSize
	}
}
