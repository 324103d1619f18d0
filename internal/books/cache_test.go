package books

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c := New(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestApplySnapshotObject(t *testing.T) {
	c := newTestCache(t)

	raw := []byte(`{
		"event_type": "book",
		"asset_id": "tok-1",
		"asks": [{"price": "0.41", "size": "100"}, {"price": "0.40", "size": "50"}],
		"bids": [{"price": "0.38", "size": "80"}, {"price": "0.39", "size": "30"}]
	}`)
	impacted := c.Apply(raw)

	require.Equal(t, []string{"tok-1"}, impacted)
	book := c.Get("tok-1")
	require.NotNil(t, book)

	// Ladders come back sorted: asks ascending, bids descending.
	assert.Equal(t, []domain.PriceLevel{{Price: 0.40, Size: 50}, {Price: 0.41, Size: 100}}, book.Asks)
	assert.Equal(t, []domain.PriceLevel{{Price: 0.39, Size: 30}, {Price: 0.38, Size: 80}}, book.Bids)
	assert.Equal(t, 0.40, book.BestAsk)
	assert.Equal(t, 0.39, book.BestBid)
	assert.False(t, book.SyntheticAsk)
	assert.False(t, book.SyntheticBid)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), book.UpdatedAt)
}

func TestApplyArrayWithNestedChanges(t *testing.T) {
	c := newTestCache(t)

	raw := []byte(`[
		{"event_type": "price_change", "price_changes": [
			{"asset_id": "tok-1", "asks": [{"price": 0.55, "size": 10}]},
			{"asset_id": "tok-2", "bids": [{"price": 0.22, "size": 5}]}
		]},
		{"event_type": "book", "token_id": "tok-3", "asks": [{"price": "0.10", "size": "1"}]}
	]`)
	impacted := c.Apply(raw)

	assert.ElementsMatch(t, []string{"tok-1", "tok-2", "tok-3"}, impacted)
	assert.Equal(t, 0.55, c.Get("tok-1").BestAsk)
	assert.Equal(t, 0.22, c.Get("tok-2").BestBid)
	assert.Equal(t, 0.10, c.Get("tok-3").BestAsk)
}

func TestApplySyntheticFromBestPriceHints(t *testing.T) {
	c := newTestCache(t)

	impacted := c.Apply([]byte(`{"asset_id": "tok-1", "best_ask": "0.62", "best_bid": 0.58}`))
	require.Equal(t, []string{"tok-1"}, impacted)

	book := c.Get("tok-1")
	require.NotNil(t, book)
	assert.True(t, book.SyntheticAsk)
	assert.True(t, book.SyntheticBid)
	assert.Equal(t, 0.62, book.BestAsk)
	assert.Equal(t, 0.58, book.BestBid)
	require.Len(t, book.Asks, 1)
	assert.Equal(t, 0.62, book.Asks[0].Price)

	// Real depth replaces the synthetic level and clears the flag, ask side
	// only; the bid side stays synthetic until its own depth arrives.
	c.Apply([]byte(`{"asset_id": "tok-1", "asks": [{"price": 0.61, "size": 40}]}`))
	book = c.Get("tok-1")
	assert.False(t, book.SyntheticAsk)
	assert.True(t, book.SyntheticBid)
	assert.Equal(t, 0.61, book.BestAsk)
}

func TestApplyDedupesImpactedTokens(t *testing.T) {
	c := newTestCache(t)

	raw := []byte(`[
		{"asset_id": "tok-1", "asks": [{"price": 0.5, "size": 1}]},
		{"asset_id": "tok-1", "asks": [{"price": 0.5, "size": 2}]}
	]`)
	impacted := c.Apply(raw)
	assert.Equal(t, []string{"tok-1"}, impacted)
}

func TestApplySkipsMalformedEntries(t *testing.T) {
	c := newTestCache(t)

	assert.Nil(t, c.Apply([]byte(`not json`)))
	assert.Nil(t, c.Apply(nil))
	assert.Nil(t, c.Apply([]byte(`42`)))

	// An entry without a token, and one without usable data, never block the
	// rest of the batch.
	raw := []byte(`[
		{"asks": [{"price": 0.5, "size": 1}]},
		{"asset_id": "tok-2", "event_type": "tick_size_change"},
		{"asset_id": "tok-1", "asks": [{"price": "bogus", "size": 1}, {"price": 0.3, "size": 7}]}
	]`)
	impacted := c.Apply(raw)
	assert.Equal(t, []string{"tok-1"}, impacted)
	require.Len(t, c.Get("tok-1").Asks, 1)
	assert.Equal(t, 0.3, c.Get("tok-1").Asks[0].Price)
	assert.Nil(t, c.Get("tok-2"))
}

func TestCostForShares(t *testing.T) {
	c := newTestCache(t)

	_, err := c.CostForShares("missing", 10)
	assert.ErrorIs(t, err, domain.ErrNoBook)

	c.Apply([]byte(`{"asset_id": "tok-1", "asks": [
		{"price": 0.40, "size": 5},
		{"price": 0.45, "size": 10}
	]}`))

	cost, err := c.CostForShares("tok-1", 8)
	require.NoError(t, err)
	assert.InDelta(t, 0.40*5+0.45*3, cost, 1e-9)

	_, err = c.CostForShares("tok-1", 50)
	assert.ErrorIs(t, err, domain.ErrInsufficientDepth)
}

func TestLen(t *testing.T) {
	c := newTestCache(t)
	assert.Equal(t, 0, c.Len())
	c.Apply([]byte(`{"asset_id": "a", "best_ask": 0.5}`))
	c.Apply([]byte(`{"asset_id": "b", "best_ask": 0.5}`))
	assert.Equal(t, 2, c.Len())
}
