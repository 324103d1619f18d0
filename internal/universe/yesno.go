package universe

import (
	"time"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// buildYesNo emits one two-leg basket per binary market, long both the YES
// and the NO token. The pair resolves to exactly one dollar per share, so the
// basket is trivially exhaustive and needs no shape check.
func (b *Builder) buildYesNo(markets []domain.MarketInfo, _ time.Time) []*domain.EventBasket {
	var out []*domain.EventBasket
	for _, m := range markets {
		yes, no, ok := m.YesNoTokens()
		if !ok {
			continue
		}
		bk := &domain.EventBasket{
			Key:      m.ID + "/yes-no",
			Title:    m.Question,
			Strategy: domain.StrategyYesNo,
			Legs: []domain.Leg{
				{MarketID: m.ID, Question: m.Question, TokenID: yes, Side: domain.SideYes, ConditionID: m.ConditionID},
				{MarketID: m.ID, Question: m.Question, TokenID: no, Side: domain.SideNo, ConditionID: m.ConditionID},
			},
		}
		accumulateEnrichment(bk, m)
		out = append(out, bk)
	}
	return out
}
