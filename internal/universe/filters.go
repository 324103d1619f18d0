package universe

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// filterEligible applies the shared eligibility filters to a page of markets.
func (b *Builder) filterEligible(ctx context.Context, markets []domain.MarketInfo) []domain.MarketInfo {
	now := b.now()
	out := make([]domain.MarketInfo, 0, len(markets))
	for _, m := range markets {
		if !m.EnableOrderBook || !m.FeeExempt {
			continue
		}
		if m.Liquidity < b.cfg.MinLiquidity || m.Volume24h < b.cfg.MinVolume24h {
			continue
		}
		if b.cfg.MaxDaysToEnd > 0 {
			if m.EndDate.IsZero() {
				continue
			}
			if m.EndDate.Sub(now).Hours()/24 > b.cfg.MaxDaysToEnd {
				continue
			}
		}
		if !b.matchesTextFilters(m) {
			continue
		}
		if !b.passesLiveGate(ctx, m, now) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// matchesTextFilters applies the optional include/exclude term filters
// against the question and grouping slug, case-insensitively.
func (b *Builder) matchesTextFilters(m domain.MarketInfo) bool {
	haystack := strings.ToLower(m.Question + " " + m.EventSlug)
	if len(b.cfg.IncludeTerms) > 0 {
		matched := false
		for _, term := range b.cfg.IncludeTerms {
			if strings.Contains(haystack, strings.ToLower(term)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, term := range b.cfg.ExcludeTerms {
		if strings.Contains(haystack, strings.ToLower(term)) {
			return false
		}
	}
	return true
}

// passesLiveGate applies the live-window gate to schedule-bound markets.
// Markets without a scheduled start time are unaffected. The market must sit
// inside the configured pre-start/post-end buffer around its scheduled
// window; when a live feed is wired it is cross-checked, and in strict mode
// absence of feed confirmation excludes the market.
func (b *Builder) passesLiveGate(ctx context.Context, m domain.MarketInfo, now time.Time) bool {
	if !b.cfg.LiveWindowEnabled || m.GameStartTime.IsZero() {
		return true
	}

	windowStart := m.GameStartTime.Add(-b.cfg.LivePreStart)
	windowEnd := m.EndDate
	if windowEnd.IsZero() {
		windowEnd = m.GameStartTime
	}
	windowEnd = windowEnd.Add(b.cfg.LivePostEnd)
	if now.Before(windowStart) || now.After(windowEnd) {
		return false
	}

	if b.live == nil {
		return !b.cfg.LiveStrict
	}
	live, err := b.live.Confirm(ctx, m)
	if err != nil {
		b.logger.Debug("live gate lookup failed",
			slog.String("market", m.ID),
			slog.String("error", err.Error()),
		)
		return !b.cfg.LiveStrict
	}
	if !live && b.cfg.LiveStrict {
		return false
	}
	return live || !b.cfg.LiveStrict
}
