package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

func TestTradesSinceFallsBackAcrossTimeParams(t *testing.T) {
	// The first timestamp spelling is rejected outright; the client must try
	// the next one and still apply its own time and token filters.
	since := time.Unix(1_700_000_000, 0)
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		require.Equal(t, "/data/trades", r.URL.Path)
		if r.URL.Query().Get("after") != "" {
			http.Error(w, `{"error":"unknown parameter"}`, http.StatusBadRequest)
			return
		}
		require.Equal(t, "1700000000", r.URL.Query().Get("from"))
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "tr1", "asset_id": "tok", "side": "BUY", "price": "0.41", "size": "10", "match_time": "1700000050"},
			{"id": "tr0", "asset_id": "tok", "side": "BUY", "price": "0.40", "size": "5", "match_time": "1600000000"},
			{"id": "trX", "asset_id": "other", "side": "BUY", "price": "0.10", "size": "1", "match_time": "1700000060"},
		})
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, nil, nil)
	trades, err := c.TradesSince(context.Background(), "tok", since)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "tr1", trades[0].ID)
	assert.Equal(t, domain.OrderBuy, trades[0].Side)
	assert.InDelta(t, 10.0, trades[0].Size, 1e-12)
	assert.Equal(t, 2, requests)
}

func TestTradesSinceStopsAtFirstAcceptedVariant(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		require.Equal(t, "1700000000", r.URL.Query().Get("after"))
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, nil, nil)
	trades, err := c.TradesSince(context.Background(), "tok", time.Unix(1_700_000_000, 0))
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Equal(t, 1, requests)
}

func TestTradesSinceReportsLastVariantError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, nil, nil)
	_, err := c.TradesSince(context.Background(), "tok", time.Unix(1_700_000_000, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get trades (from)")
}
