package polymarket

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// flexFloat decodes a JSON value that may arrive as a number or a quoted
// decimal string. The Gamma API mixes both freely.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*f = flexFloat(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// apiMarket is one market record from the Gamma listing. Token IDs and
// outcome labels are JSON arrays encoded as strings inside the JSON.
type apiMarket struct {
	ID                string     `json:"id"`
	Question          string     `json:"question"`
	GroupItemTitle    string     `json:"groupItemTitle"`
	Slug              string     `json:"slug"`
	ConditionID       string     `json:"conditionId"`
	EnableOrderBook   bool       `json:"enableOrderBook"`
	MakerBaseFee      flexFloat  `json:"makerBaseFee"`
	TakerBaseFee      flexFloat  `json:"takerBaseFee"`
	Liquidity         flexFloat  `json:"liquidityNum"`
	Volume24h         flexFloat  `json:"volume24hr"`
	Spread            flexFloat  `json:"spread"`
	OneDayPriceChange flexFloat  `json:"oneDayPriceChange"`
	EndDate           string     `json:"endDate"`
	GameStartTime     string     `json:"gameStartTime"`
	OrderMinSize      flexFloat  `json:"orderMinSize"`
	OrderTickSize     flexFloat  `json:"orderPriceMinTickSize"`
	ClobTokenIDs      string     `json:"clobTokenIds"` // JSON-encoded, e.g. "[\"123\",\"456\"]"
	Outcomes          string     `json:"outcomes"`     // JSON-encoded, e.g. "[\"Yes\",\"No\"]"
	NegRisk           bool       `json:"negRisk"`
	Events            []apiEvent `json:"events"`
}

// apiEvent is the grouped-event record, either nested inside a market or
// returned whole by the event-by-slug lookup.
type apiEvent struct {
	ID      string      `json:"id"`
	Slug    string      `json:"slug"`
	Title   string      `json:"title"`
	EndDate string      `json:"endDate"`
	Markets []apiMarket `json:"markets"`
}

func (m apiMarket) toDomain() domain.MarketInfo {
	info := domain.MarketInfo{
		ID:                m.ID,
		Question:          m.Question,
		GroupItemTitle:    m.GroupItemTitle,
		Slug:              m.Slug,
		ConditionID:       m.ConditionID,
		EnableOrderBook:   m.EnableOrderBook,
		FeeExempt:         m.MakerBaseFee == 0 && m.TakerBaseFee == 0,
		Liquidity:         float64(m.Liquidity),
		Volume24h:         float64(m.Volume24h),
		Spread:            float64(m.Spread),
		OneDayPriceChange: float64(m.OneDayPriceChange),
		EndDate:           parseTime(m.EndDate),
		GameStartTime:     parseTime(m.GameStartTime),
		OrderMinSize:      float64(m.OrderMinSize),
		OrderTickSize:     float64(m.OrderTickSize),
		TokenIDs:          decodeStringList(m.ClobTokenIDs),
		Outcomes:          decodeStringList(m.Outcomes),
		NegRisk:           m.NegRisk,
	}
	if len(m.Events) > 0 {
		info.EventID = m.Events[0].ID
		info.EventSlug = m.Events[0].Slug
	}
	return info
}

func (e apiEvent) toDomain() domain.EventInfo {
	ev := domain.EventInfo{
		ID:      e.ID,
		Slug:    e.Slug,
		Title:   e.Title,
		EndDate: parseTime(e.EndDate),
	}
	for _, m := range e.Markets {
		mi := m.toDomain()
		if mi.EventID == "" {
			mi.EventID = e.ID
			mi.EventSlug = e.Slug
		}
		ev.Markets = append(ev.Markets, mi)
	}
	return ev
}

// decodeStringList parses the double-encoded list fields. A malformed field
// yields nil, which downstream filters treat as a non-binary market.
func decodeStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05Z0700"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
