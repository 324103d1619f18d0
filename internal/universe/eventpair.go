package universe

import (
	"strings"
	"time"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// buildEventPairs handles two-sided grouped events: a negative-risk event
// with exactly two categorical sub-markets ("Team A" / "Team B"). Exactly one
// side resolves YES, so two baskets exist per pair:
//
//	event-yes: YES on both sides, pays exactly one dollar
//	event-no:  NO on both sides, pays exactly one dollar
//
// Labels carrying digits or comparators are excluded; those belong to the
// buckets strategy, and a numeric pair ("over 2.5" / "under 2.5") is already
// the same market's yes-no complement.
func (b *Builder) buildEventPairs(markets []domain.MarketInfo, _ time.Time) []*domain.EventBasket {
	groups := make(map[string][]domain.MarketInfo)
	for _, m := range markets {
		if !m.NegRisk || m.EventID == "" {
			continue
		}
		label := m.GroupItemTitle
		if label == "" || !isCategoricalLabel(label) {
			continue
		}
		groups[m.EventID] = append(groups[m.EventID], m)
	}

	var out []*domain.EventBasket
	for eventID, pair := range groups {
		if len(pair) != 2 {
			continue
		}
		a, c := pair[0], pair[1]
		aYes, aNo, okA := a.YesNoTokens()
		cYes, cNo, okC := c.YesNoTokens()
		if !okA || !okC {
			continue
		}
		title := a.Question
		if a.EventSlug != "" {
			title = a.EventSlug
		}

		yesBk := &domain.EventBasket{
			Key:      eventID + "/event-yes",
			Title:    title,
			Strategy: domain.StrategyEventYes,
			Legs: []domain.Leg{
				{MarketID: a.ID, Question: a.Question, Label: a.GroupItemTitle, TokenID: aYes, Side: domain.SideYes, ConditionID: a.ConditionID},
				{MarketID: c.ID, Question: c.Question, Label: c.GroupItemTitle, TokenID: cYes, Side: domain.SideYes, ConditionID: c.ConditionID},
			},
		}
		noBk := &domain.EventBasket{
			Key:      eventID + "/event-no",
			Title:    title,
			Strategy: domain.StrategyEventNo,
			Legs: []domain.Leg{
				{MarketID: a.ID, Question: a.Question, Label: a.GroupItemTitle, TokenID: aNo, Side: domain.SideNo, ConditionID: a.ConditionID},
				{MarketID: c.ID, Question: c.Question, Label: c.GroupItemTitle, TokenID: cNo, Side: domain.SideNo, ConditionID: c.ConditionID},
			},
		}
		for _, m := range pair {
			accumulateEnrichment(yesBk, m)
			accumulateEnrichment(noBk, m)
		}
		out = append(out, yesBk, noBk)
	}
	return out
}

// isCategoricalLabel reports whether a grouped-market label names a category
// rather than a numeric range: no digits and no comparator words.
func isCategoricalLabel(label string) bool {
	lower := strings.ToLower(label)
	for _, r := range lower {
		if r >= '0' && r <= '9' {
			return false
		}
	}
	for _, word := range []string{"over", "under", "above", "below", "more", "less", "fewer", "<", ">", "+"} {
		if strings.Contains(lower, word) {
			return false
		}
	}
	return true
}

// normalizeLabel collapses a free-text label to a stable grouping key:
// lowercased, punctuation dropped, whitespace runs collapsed to single
// hyphens.
func normalizeLabel(s string) string {
	var sb strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				sb.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
