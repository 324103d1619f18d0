package polymarket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexFloat(t *testing.T) {
	var v struct {
		A flexFloat `json:"a"`
		B flexFloat `json:"b"`
		C flexFloat `json:"c"`
		D flexFloat `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 1.5, "b": "2.25", "c": null, "d": ""}`), &v))
	assert.Equal(t, flexFloat(1.5), v.A)
	assert.Equal(t, flexFloat(2.25), v.B)
	assert.Equal(t, flexFloat(0), v.C)
	assert.Equal(t, flexFloat(0), v.D)

	var bad struct {
		A flexFloat `json:"a"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"a": "not a number"}`), &bad))
}

func TestDecodeStringList(t *testing.T) {
	assert.Equal(t, []string{"123", "456"}, decodeStringList(`["123","456"]`))
	assert.Nil(t, decodeStringList(""))
	assert.Nil(t, decodeStringList("not json"))
}

func TestAPIMarketToDomain(t *testing.T) {
	raw := []byte(`{
		"id": "m1",
		"question": "Will it rain?",
		"conditionId": "cond-1",
		"enableOrderBook": true,
		"makerBaseFee": 0,
		"takerBaseFee": "0",
		"liquidityNum": "1500.5",
		"volume24hr": 800,
		"spread": "0.02",
		"endDate": "2026-06-01T00:00:00Z",
		"orderMinSize": "5",
		"orderPriceMinTickSize": 0.01,
		"clobTokenIds": "[\"111\",\"222\"]",
		"outcomes": "[\"Yes\",\"No\"]",
		"negRisk": true,
		"events": [{"id": "ev1", "slug": "rain-2026"}]
	}`)
	var m apiMarket
	require.NoError(t, json.Unmarshal(raw, &m))

	info := m.toDomain()
	assert.Equal(t, "m1", info.ID)
	assert.Equal(t, "cond-1", info.ConditionID)
	assert.True(t, info.EnableOrderBook)
	assert.True(t, info.FeeExempt)
	assert.Equal(t, 1500.5, info.Liquidity)
	assert.Equal(t, 800.0, info.Volume24h)
	assert.Equal(t, 5.0, info.OrderMinSize)
	assert.Equal(t, []string{"111", "222"}, info.TokenIDs)
	assert.Equal(t, []string{"Yes", "No"}, info.Outcomes)
	assert.True(t, info.NegRisk)
	assert.Equal(t, "ev1", info.EventID)
	assert.Equal(t, "rain-2026", info.EventSlug)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), info.EndDate)

	yes, no, ok := info.YesNoTokens()
	require.True(t, ok)
	assert.Equal(t, "111", yes)
	assert.Equal(t, "222", no)
}

func TestAPIMarketNonZeroFeesNotExempt(t *testing.T) {
	var m apiMarket
	require.NoError(t, json.Unmarshal([]byte(`{"id": "m1", "takerBaseFee": "0.02"}`), &m))
	assert.False(t, m.toDomain().FeeExempt)
}

func TestAPIEventToDomainPropagatesEventIdentity(t *testing.T) {
	raw := []byte(`{
		"id": "ev1",
		"slug": "series",
		"title": "Series",
		"endDate": "2026-06-01T00:00:00Z",
		"markets": [{"id": "m1"}, {"id": "m2"}]
	}`)
	var e apiEvent
	require.NoError(t, json.Unmarshal(raw, &e))

	ev := e.toDomain()
	assert.Equal(t, "ev1", ev.ID)
	require.Len(t, ev.Markets, 2)
	for _, m := range ev.Markets {
		assert.Equal(t, "ev1", m.EventID)
		assert.Equal(t, "series", m.EventSlug)
	}
}
