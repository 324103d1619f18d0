package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketarb/internal/wallets"
)

func TestTopHoldersMergesAcrossOutcomeTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/holders", r.URL.Path)
		assert.Equal(t, "cond-1", r.URL.Query().Get("market"))
		w.Write([]byte(`[
			{"token": "yes", "holders": [
				{"proxyWallet": "0xaaa", "amount": "100"},
				{"proxyWallet": "0xbbb", "amount": 40}
			]},
			{"token": "no", "holders": [
				{"proxyWallet": "0xaaa", "amount": 10},
				{"proxyWallet": "0xccc", "amount": "70"}
			]}
		]`))
	}))
	defer srv.Close()

	d := NewDataClient(srv.URL)
	holders, err := d.TopHolders(context.Background(), "cond-1", 2)
	require.NoError(t, err)

	// 0xaaa holds across both tokens and is merged; the list is truncated to
	// the requested limit after merging.
	require.Len(t, holders, 2)
	assert.Equal(t, wallets.Holder{Wallet: "0xaaa", Amount: 110}, holders[0])
	assert.Equal(t, wallets.Holder{Wallet: "0xccc", Amount: 70}, holders[1])
}

func TestWalletProfileHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDataClient(srv.URL)
	_, err := d.WalletProfile(context.Background(), "0xaaa")
	require.Error(t, err)
}

func TestProfileFromTradesEmpty(t *testing.T) {
	p := profileFromTrades(nil)
	assert.Equal(t, 0, p.TradeCount)
	assert.Equal(t, wallets.StyleUnknown, p.Style)
	assert.Zero(t, p.ProfitableTimePct)
}

func TestProfileFromTradesStyles(t *testing.T) {
	day := int64(86400)
	tests := []struct {
		name  string
		count int
		span  int64 // seconds between first and last trade
		want  wallets.TraderStyle
	}{
		{"scalper", 90, 2 * day, wallets.StyleScalper},
		{"swing", 10, 2 * day, wallets.StyleSwing},
		{"position", 5, 30 * day, wallets.StylePosition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trades := make([]apiWalletTrade, tt.count)
			for i := range trades {
				trades[i] = apiWalletTrade{
					Asset:     "tok",
					Side:      "BUY",
					Price:     0.5,
					Size:      1,
					Timestamp: 1_700_000_000 + tt.span*int64(i)/int64(tt.count-1),
				}
			}
			p := profileFromTrades(trades)
			assert.Equal(t, tt.want, p.Style)
			assert.Equal(t, tt.count, p.TradeCount)
		})
	}
}

func TestProfileFromTradesProfitableSells(t *testing.T) {
	trades := []apiWalletTrade{
		{Asset: "tok", Side: "BUY", Price: 0.40, Size: 10, Timestamp: 1_700_000_000},
		{Asset: "tok", Side: "SELL", Price: 0.50, Size: 5, Timestamp: 1_700_010_000}, // above avg entry
		{Asset: "tok", Side: "SELL", Price: 0.30, Size: 5, Timestamp: 1_700_020_000}, // below
	}
	p := profileFromTrades(trades)
	assert.InDelta(t, 0.5, p.ProfitableTimePct, 1e-9)

	// No sells observed: neutral, not zero.
	p = profileFromTrades(trades[:1])
	assert.InDelta(t, 0.5, p.ProfitableTimePct, 1e-9)
}

func TestProfileFromTradesHedgeDetection(t *testing.T) {
	trades := []apiWalletTrade{
		{Asset: "tok-y", ConditionID: "c1", Outcome: "Yes", Side: "BUY", Price: 0.45, Size: 10, Timestamp: 1_700_000_000},
		{Asset: "tok-n", ConditionID: "c1", Outcome: "No", Side: "BUY", Price: 0.48, Size: 10, Timestamp: 1_700_001_000},
	}
	p := profileFromTrades(trades)
	assert.True(t, p.Hedged)
	assert.InDelta(t, 1-(0.45+0.48), p.HedgeEdge, 1e-9)

	// One-sided buying is not a hedge.
	p = profileFromTrades(trades[:1])
	assert.False(t, p.Hedged)
	assert.Zero(t, p.HedgeEdge)
}
