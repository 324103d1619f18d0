package universe

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	markets []domain.MarketInfo
	events  map[string]domain.EventInfo
}

func (f *fakeSource) FetchActiveMarkets(_ context.Context, limit, offset int) ([]domain.MarketInfo, error) {
	if offset >= len(f.markets) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.markets) {
		end = len(f.markets)
	}
	return f.markets[offset:end], nil
}

func (f *fakeSource) FetchEventBySlug(_ context.Context, slug string) (domain.EventInfo, error) {
	ev, ok := f.events[slug]
	if !ok {
		return domain.EventInfo{}, domain.ErrNotFound
	}
	return ev, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func binaryMarket(id, question string) domain.MarketInfo {
	return domain.MarketInfo{
		ID:              id,
		Question:        question,
		EnableOrderBook: true,
		FeeExempt:       true,
		Liquidity:       50_000,
		Volume24h:       20_000,
		Spread:          0.02,
		EndDate:         testNow.Add(48 * time.Hour),
		TokenIDs:        []string{id + "-yes", id + "-no"},
		Outcomes:        []string{"Yes", "No"},
		ConditionID:     "cond-" + id,
	}
}

func newTestBuilder(src MarketSource, cfg Config) *Builder {
	b := NewBuilder(src, nil, nil, nil, cfg, discardLogger())
	b.now = func() time.Time { return testNow }
	return b
}

func TestRefreshYesNo(t *testing.T) {
	src := &fakeSource{markets: []domain.MarketInfo{
		binaryMarket("m1", "Will it rain tomorrow?"),
		binaryMarket("m2", "Will the game go to overtime?"),
	}}
	b := newTestBuilder(src, Config{Strategies: []string{"yes-no"}})

	u, err := b.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, u.Baskets, 2)

	bk := u.Baskets["m1/yes-no"]
	require.NotNil(t, bk)
	assert.Equal(t, domain.StrategyYesNo, bk.Strategy)
	require.Len(t, bk.Legs, 2)
	assert.Equal(t, domain.SideYes, bk.Legs[0].Side)
	assert.Equal(t, domain.SideNo, bk.Legs[1].Side)
	assert.Equal(t, "m1-yes", bk.Legs[0].TokenID)
	assert.Greater(t, bk.BaseScore, 0.0)
}

func TestRefreshBuckets(t *testing.T) {
	mk := func(id, label string) domain.MarketInfo {
		m := binaryMarket(id, "How many goals will be scored?")
		m.GroupItemTitle = label
		m.EventSlug = "goals-total"
		return m
	}
	src := &fakeSource{markets: []domain.MarketInfo{
		mk("g1", "below 2"),
		mk("g2", "2-4"),
		mk("g3", "5 or more"),
	}}
	b := newTestBuilder(src, Config{
		Strategies:        []string{"buckets"},
		MinBucketOutcomes: 3,
		CheckExhaustive:   true,
	})

	u, err := b.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, u.Baskets, 1)

	bk := u.Baskets["goals-total/buckets"]
	require.NotNil(t, bk)
	require.Len(t, bk.Legs, 3)
	// Legs sorted by bucket lower bound.
	assert.Equal(t, "below 2", bk.Legs[0].Label)
	assert.Equal(t, "2-4", bk.Legs[1].Label)
	assert.Equal(t, "5 or more", bk.Legs[2].Label)
	for _, l := range bk.Legs {
		assert.Equal(t, domain.SideYes, l.Side)
	}
	assert.InDelta(t, 150_000, bk.Liquidity, 1e-9)
}

func TestRefreshBucketsRejectsGappyGroup(t *testing.T) {
	mk := func(id, label string) domain.MarketInfo {
		m := binaryMarket(id, "Final score margin?")
		m.GroupItemTitle = label
		m.EventSlug = "margin"
		return m
	}
	src := &fakeSource{markets: []domain.MarketInfo{
		mk("g1", "below 2"),
		mk("g2", "10-14"), // gap between 2 and 10
		mk("g3", "15 or more"),
	}}
	b := newTestBuilder(src, Config{
		Strategies:        []string{"buckets"},
		MinBucketOutcomes: 3,
		CheckExhaustive:   true,
	})

	u, err := b.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, u.Baskets)
}

func TestRefreshEventPairs(t *testing.T) {
	mk := func(id, label string) domain.MarketInfo {
		m := binaryMarket(id, "Who wins the final?")
		m.GroupItemTitle = label
		m.EventID = "ev-final"
		m.EventSlug = "the-final"
		m.NegRisk = true
		return m
	}
	src := &fakeSource{markets: []domain.MarketInfo{
		mk("p1", "Team Alpha"),
		mk("p2", "Team Beta"),
	}}
	b := newTestBuilder(src, Config{Strategies: []string{"event-pair"}})

	u, err := b.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, u.Baskets, 2)

	yes := u.Baskets["ev-final/event-yes"]
	no := u.Baskets["ev-final/event-no"]
	require.NotNil(t, yes)
	require.NotNil(t, no)
	for _, l := range yes.Legs {
		assert.Equal(t, domain.SideYes, l.Side)
	}
	for _, l := range no.Legs {
		assert.Equal(t, domain.SideNo, l.Side)
	}
	assert.NotEqual(t, yes.Legs[0].MarketID, yes.Legs[1].MarketID)
}

func TestEventPairsSkipNumericLabels(t *testing.T) {
	mk := func(id, label string) domain.MarketInfo {
		m := binaryMarket(id, "Total points?")
		m.GroupItemTitle = label
		m.EventID = "ev-points"
		m.NegRisk = true
		return m
	}
	src := &fakeSource{markets: []domain.MarketInfo{
		mk("p1", "over 42.5"),
		mk("p2", "under 42.5"),
	}}
	b := newTestBuilder(src, Config{Strategies: []string{"event-pair"}})

	u, err := b.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, u.Baskets)
}

func TestRefreshWindows(t *testing.T) {
	windowSize := time.Hour
	start := testNow.Truncate(windowSize)
	slug := "btc-updown-" + strconv.FormatInt(start.Unix(), 10)

	m := binaryMarket("w1", "Bitcoin up or down this hour?")
	src := &fakeSource{events: map[string]domain.EventInfo{
		slug: {
			ID:      "ev-w1",
			Slug:    slug,
			Title:   "Bitcoin up or down",
			Markets: []domain.MarketInfo{m},
		},
	}}
	b := newTestBuilder(src, Config{
		Strategies:       []string{"window"},
		WindowSlugPrefix: "btc-updown",
		WindowSize:       windowSize,
		WindowLookBack:   1,
		WindowLookForward: 1,
	})

	u, err := b.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, u.Baskets, 1)
	bk := u.Baskets[slug+"/window"]
	require.NotNil(t, bk)
	assert.Equal(t, domain.StrategyWindow, bk.Strategy)
	require.Len(t, bk.Legs, 2)
}

func TestFilterEligible(t *testing.T) {
	ok := binaryMarket("ok", "Eligible market?")

	noBook := binaryMarket("nobook", "No order book")
	noBook.EnableOrderBook = false

	thin := binaryMarket("thin", "Thin market")
	thin.Liquidity = 10

	far := binaryMarket("far", "Far future")
	far.EndDate = testNow.Add(90 * 24 * time.Hour)

	excluded := binaryMarket("excl", "Will the banned topic happen?")

	src := &fakeSource{markets: []domain.MarketInfo{ok, noBook, thin, far, excluded}}
	b := newTestBuilder(src, Config{
		Strategies:   []string{"yes-no"},
		MinLiquidity: 1000,
		MaxDaysToEnd: 30,
		ExcludeTerms: []string{"banned"},
	})

	u, err := b.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, u.Baskets, 1)
	assert.NotNil(t, u.Baskets["ok/yes-no"])
}

func TestSelectUnderBudget(t *testing.T) {
	mk := func(id string, liq float64) domain.MarketInfo {
		m := binaryMarket(id, "Market "+id)
		m.Liquidity = liq
		return m
	}
	src := &fakeSource{markets: []domain.MarketInfo{
		mk("a", 90_000),
		mk("b", 50_000),
		mk("c", 1_000),
	}}
	b := newTestBuilder(src, Config{
		Strategies: []string{"yes-no"},
		MaxTokens:  4, // room for two baskets of two tokens each
	})

	u, err := b.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, u.Baskets, 2)
	assert.NotNil(t, u.Baskets["a/yes-no"])
	assert.NotNil(t, u.Baskets["b/yes-no"])
	assert.Nil(t, u.Baskets["c/yes-no"])
	assert.Len(t, u.TokenList, 4)
}

func TestSelectPerEventCap(t *testing.T) {
	b := newTestBuilder(&fakeSource{}, Config{MaxPerEvent: 1})
	baskets := []*domain.EventBasket{
		{Key: "ev1/yes-no", CombinedScore: 0.9, Legs: []domain.Leg{{TokenID: "t1"}}},
		{Key: "ev1/buckets", CombinedScore: 0.8, Legs: []domain.Leg{{TokenID: "t2"}}},
		{Key: "ev2/yes-no", CombinedScore: 0.5, Legs: []domain.Leg{{TokenID: "t3"}}},
	}
	out := b.selectUnderBudget(baskets)
	require.Len(t, out, 2)
	assert.Equal(t, "ev1/yes-no", out[0].Key)
	assert.Equal(t, "ev2/yes-no", out[1].Key)
}

func TestBaseScoreDecayAndCeiling(t *testing.T) {
	b := newTestBuilder(&fakeSource{}, Config{
		ScoreHalfLifeDays: 7,
		ScoreMaxDays:      30,
	})

	near := &domain.EventBasket{Liquidity: 50_000, Volume24h: 20_000, Spread: 0.02, EndTime: testNow.Add(24 * time.Hour)}
	far := &domain.EventBasket{Liquidity: 50_000, Volume24h: 20_000, Spread: 0.02, EndTime: testNow.Add(20 * 24 * time.Hour)}
	past := &domain.EventBasket{Liquidity: 50_000, EndTime: testNow.Add(60 * 24 * time.Hour)}

	assert.Greater(t, b.baseScore(near, testNow), b.baseScore(far, testNow))
	assert.Equal(t, -1.0, b.baseScore(past, testNow))
}

func TestImpactedBy(t *testing.T) {
	b1 := &domain.EventBasket{Key: "b1", Legs: []domain.Leg{{TokenID: "t1"}, {TokenID: "t2"}}}
	b2 := &domain.EventBasket{Key: "b2", Legs: []domain.Leg{{TokenID: "t2"}, {TokenID: "t3"}}}
	u := newUniverse([]*domain.EventBasket{b1, b2}, testNow)

	got := u.ImpactedBy([]string{"t2", "t2", "t3"})
	require.Len(t, got, 2)

	got = u.ImpactedBy([]string{"t1"})
	require.Len(t, got, 1)
	assert.Equal(t, "b1", got[0].Key)

	assert.Empty(t, u.ImpactedBy([]string{"unknown"}))
}
