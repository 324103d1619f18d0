package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

var execNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeBackend struct {
	submitErr  error
	submitted  [][]domain.Order
	orderIDs   []string
	cancelled  [][]string
	created    []domain.Order
	openOrders []domain.OpenOrder
	openErr    error
	fills      map[string][]domain.Trade // token -> trades returned by every poll
	fillsAfter int                       // polls before fills appear
	pollCount  int
}

func (f *fakeBackend) SubmitBatch(_ context.Context, orders []domain.Order) ([]string, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, orders)
	return f.orderIDs, nil
}

func (f *fakeBackend) CreateOrder(_ context.Context, order domain.Order) (string, error) {
	f.created = append(f.created, order)
	return "unwind-1", nil
}

func (f *fakeBackend) CancelOrders(_ context.Context, orderIDs []string) error {
	f.cancelled = append(f.cancelled, orderIDs)
	return nil
}

func (f *fakeBackend) OpenOrders(_ context.Context) ([]domain.OpenOrder, error) {
	return f.openOrders, f.openErr
}

func (f *fakeBackend) TradesSince(_ context.Context, tokenID string, _ time.Time) ([]domain.Trade, error) {
	f.pollCount++
	if f.fillsAfter > 0 && f.pollCount <= f.fillsAfter {
		return nil, nil
	}
	return f.fills[tokenID], nil
}

type memStore struct {
	saved []domain.RuntimeState
}

func (m *memStore) Save(_ context.Context, st domain.RuntimeState) error {
	m.saved = append(m.saved, st)
	return nil
}

type memNotifier struct {
	msgs []string
}

func (m *memNotifier) Notify(_ context.Context, msg string) {
	m.msgs = append(m.msgs, msg)
}

type execBooks struct {
	books map[string]*domain.LocalBook
}

func (b *execBooks) Get(tokenID string) *domain.LocalBook { return b.books[tokenID] }

func freshBook(token string, ask, bid, size float64) *domain.LocalBook {
	return &domain.LocalBook{
		TokenID:   token,
		Asks:      []domain.PriceLevel{{Price: ask, Size: size}},
		Bids:      []domain.PriceLevel{{Price: bid, Size: size}},
		BestAsk:   ask,
		BestBid:   bid,
		UpdatedAt: execNow,
	}
}

func testCandidate() (*domain.EventBasket, *domain.Candidate) {
	bk := &domain.EventBasket{
		Key:      "ev/yes-no",
		Strategy: domain.StrategyYesNo,
		TickSize: 0.01,
		Legs: []domain.Leg{
			{MarketID: "m1", TokenID: "t-yes", Side: domain.SideYes, AltMarketID: "ALT-YES"},
			{MarketID: "m1", TokenID: "t-no", Side: domain.SideNo, AltMarketID: "ALT-NO"},
		},
	}
	cand := &domain.Candidate{
		Strategy:       domain.StrategyYesNo,
		BasketKey:      bk.Key,
		SharesPerLeg:   10,
		BasketCost:     9.5,
		PayoutAfterFee: 10,
		NetEdge:        0.5,
		ExecCost:       9.6,
		ExecEdge:       0.4,
		Legs: []domain.LegCost{
			{Leg: bk.Legs[0], Cost: 4.0, LimitPrice: 0.41},
			{Leg: bk.Legs[1], Cost: 5.5, LimitPrice: 0.56},
		},
		EvaluatedAt: execNow,
	}
	return bk, cand
}

func defaultBooks() *execBooks {
	return &execBooks{books: map[string]*domain.LocalBook{
		"t-yes": freshBook("t-yes", 0.40, 0.38, 100),
		"t-no":  freshBook("t-no", 0.55, 0.53, 100),
	}}
}

func fullFills() map[string][]domain.Trade {
	return map[string][]domain.Trade{
		"t-yes": {{ID: "tr1", TokenID: "t-yes", Side: domain.OrderBuy, Size: 10}},
		"t-no":  {{ID: "tr2", TokenID: "t-no", Side: domain.OrderBuy, Size: 10}},
	}
}

func newEngine(backend OrderBackend, alt AltBackend, books BookView, store StateStore, n Notifier, st *domain.RuntimeState, cfg Config) *Engine {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	e := New(backend, alt, books, store, n, st, cfg, logger)
	e.now = func() time.Time { return execNow }
	e.sleep = func(context.Context, time.Duration) {}
	return e
}

func TestExecuteFilled(t *testing.T) {
	backend := &fakeBackend{orderIDs: []string{"o1", "o2"}, fills: fullFills()}
	store := &memStore{}
	st := &domain.RuntimeState{}
	e := newEngine(backend, nil, defaultBooks(), store, nil, st, Config{MaxAttempts: 2})

	bk, cand := testCandidate()
	res := e.Execute(context.Background(), bk, cand)

	require.Equal(t, StatusFilled, res.Status)
	assert.ElementsMatch(t, []string{"tr1", "tr2"}, res.TradeIDs)
	assert.Equal(t, 1, st.ExecutionsToday)
	assert.InDelta(t, 9.6, st.NotionalToday, 1e-9) // exec-adjusted cost preferred
	assert.Equal(t, 0, st.ConsecutiveFailures)
	assert.Equal(t, execNow, bk.LastExecutedAt)
	require.NotEmpty(t, store.saved)

	require.Len(t, backend.submitted, 1)
	orders := backend.submitted[0]
	require.Len(t, orders, 2)
	assert.Equal(t, domain.OrderBuy, orders[0].Side)
	assert.InDelta(t, 0.41, orders[0].Price, 1e-12)
	assert.InDelta(t, 10.0, orders[0].Size, 1e-12)
}

func TestExecuteDailyNotionalCap(t *testing.T) {
	// Today $480 against a $500 cap; a $30 candidate must be rejected.
	st := &domain.RuntimeState{NotionalToday: 480}
	e := newEngine(&fakeBackend{}, nil, defaultBooks(), &memStore{}, nil, st, Config{MaxDailyNotional: 500})

	bk, cand := testCandidate()
	cand.ExecCost = 30
	res := e.Execute(context.Background(), bk, cand)

	assert.Equal(t, StatusSkipped, res.Status)
	assert.Contains(t, res.Reason, "notional cap")
	assert.Contains(t, res.Reason, "500.00")
}

func TestExecuteDailyExecutionCap(t *testing.T) {
	st := &domain.RuntimeState{ExecutionsToday: 5}
	e := newEngine(&fakeBackend{}, nil, defaultBooks(), &memStore{}, nil, st, Config{MaxDailyExecutions: 5})

	bk, cand := testCandidate()
	res := e.Execute(context.Background(), bk, cand)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Contains(t, res.Reason, "execution cap")
}

func TestExecuteWholeShareRequirement(t *testing.T) {
	e := newEngine(&fakeBackend{}, nil, defaultBooks(), &memStore{}, nil, &domain.RuntimeState{}, Config{})
	bk, cand := testCandidate()
	cand.SharesPerLeg = 10.5
	res := e.Execute(context.Background(), bk, cand)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Contains(t, res.Reason, "whole shares")
}

func TestExecuteOpenOrderCap(t *testing.T) {
	backend := &fakeBackend{openOrders: []domain.OpenOrder{{ID: "a"}, {ID: "b"}}}
	e := newEngine(backend, nil, defaultBooks(), &memStore{}, nil, &domain.RuntimeState{}, Config{MaxOpenOrders: 2})
	bk, cand := testCandidate()
	res := e.Execute(context.Background(), bk, cand)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Contains(t, res.Reason, "open-order count")
}

func TestExecuteLegCap(t *testing.T) {
	e := newEngine(&fakeBackend{}, nil, defaultBooks(), &memStore{}, nil, &domain.RuntimeState{}, Config{MaxLegs: 1})
	bk, cand := testCandidate()
	res := e.Execute(context.Background(), bk, cand)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Contains(t, res.Reason, "leg count")
}

func TestPrecheckStaleBook(t *testing.T) {
	books := defaultBooks()
	books.books["t-no"].UpdatedAt = execNow.Add(-time.Minute)
	e := newEngine(&fakeBackend{}, nil, books, &memStore{}, nil, &domain.RuntimeState{}, Config{StalenessCeiling: 10 * time.Second})

	bk, cand := testCandidate()
	res := e.Execute(context.Background(), bk, cand)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.ErrorContains(t, errors.New(res.Reason), "stale")
}

func TestPrecheckSyntheticDepth(t *testing.T) {
	books := defaultBooks()
	books.books["t-yes"].SyntheticAsk = true
	e := newEngine(&fakeBackend{}, nil, books, &memStore{}, nil, &domain.RuntimeState{}, Config{})

	bk, cand := testCandidate()
	res := e.Execute(context.Background(), bk, cand)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Contains(t, res.Reason, "synthetic")
}

func TestPrecheckDepthAtLimit(t *testing.T) {
	books := defaultBooks()
	books.books["t-yes"].Asks = []domain.PriceLevel{{Price: 0.40, Size: 4}} // below 10 shares
	e := newEngine(&fakeBackend{}, nil, books, &memStore{}, nil, &domain.RuntimeState{}, Config{})

	bk, cand := testCandidate()
	res := e.Execute(context.Background(), bk, cand)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Contains(t, res.Reason, "depth")
}

func TestExecuteHaltAfterConsecutiveFailures(t *testing.T) {
	backend := &fakeBackend{submitErr: errors.New("rejected")}
	store := &memStore{}
	notifier := &memNotifier{}
	st := &domain.RuntimeState{}
	e := newEngine(backend, nil, defaultBooks(), store, notifier, st, Config{
		MaxAttempts:            1,
		MaxConsecutiveFailures: 3,
	})

	bk, cand := testCandidate()
	for i := 0; i < 3; i++ {
		res := e.Execute(context.Background(), bk, cand)
		assert.Equal(t, StatusNoFill, res.Status)
	}

	assert.True(t, st.Halted)
	assert.Contains(t, st.HaltReason, "3/3")
	require.NotEmpty(t, notifier.msgs)
	assert.Contains(t, notifier.msgs[len(notifier.msgs)-1], "HALTED")

	// Sticky: a further attempt is rejected outright, and success elsewhere
	// cannot clear the flag.
	res := e.Execute(context.Background(), bk, cand)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.True(t, strings.HasPrefix(res.Reason, "halted"))
	assert.True(t, st.Halted)
}

func TestExecuteNoFillCancelsAndUnwinds(t *testing.T) {
	// One leg fills 4 of 10 shares, the other nothing: expect cancel of the
	// open order IDs and an unwind sell of the 4 shares at the discounted,
	// floor-rounded best bid (0.60 * 0.98 = 0.588 -> 0.58).
	books := defaultBooks()
	books.books["t-yes"].Bids = []domain.PriceLevel{{Price: 0.60, Size: 100}}
	books.books["t-yes"].BestBid = 0.60

	backend := &fakeBackend{
		orderIDs: []string{"o1", "o2"},
		fills: map[string][]domain.Trade{
			"t-yes": {{ID: "tr1", TokenID: "t-yes", Side: domain.OrderBuy, Size: 4}},
		},
	}
	st := &domain.RuntimeState{}
	e := newEngine(backend, nil, books, &memStore{}, nil, st, Config{
		MaxAttempts:    1,
		MaxPolls:       2,
		UnwindSlippage: 0.02,
	})

	bk, cand := testCandidate()
	res := e.Execute(context.Background(), bk, cand)

	assert.Equal(t, StatusNoFill, res.Status)
	require.Len(t, backend.cancelled, 1)
	assert.Equal(t, []string{"o1", "o2"}, backend.cancelled[0])

	require.Len(t, backend.created, 1)
	unwind := backend.created[0]
	assert.Equal(t, domain.OrderSell, unwind.Side)
	assert.Equal(t, "t-yes", unwind.TokenID)
	assert.InDelta(t, 4.0, unwind.Size, 1e-12)
	assert.InDelta(t, 0.58, unwind.Price, 1e-12)

	require.Len(t, res.Unwinds, 1)
	assert.NoError(t, res.Unwinds[0].Err)
	assert.InDelta(t, 0.58, res.Unwinds[0].SellPrice, 1e-12)
	assert.Equal(t, 1, st.ConsecutiveFailures)
}

func TestExecuteRetrySubmitsOnlyUnfilledLegs(t *testing.T) {
	// One leg fills completely while the other never trades. The retry must
	// not buy the filled leg again, and once the last attempt fails the
	// filled leg is sold back in full rather than left as naked inventory.
	backend := &fakeBackend{
		orderIDs: []string{"o1", "o2"},
		fills: map[string][]domain.Trade{
			"t-yes": {{ID: "tr1", TokenID: "t-yes", Side: domain.OrderBuy, Size: 10}},
		},
	}
	st := &domain.RuntimeState{}
	e := newEngine(backend, nil, defaultBooks(), &memStore{}, nil, st, Config{
		MaxAttempts:    2,
		MaxPolls:       1,
		UnwindSlippage: 0.02,
	})

	bk, cand := testCandidate()
	res := e.Execute(context.Background(), bk, cand)

	assert.Equal(t, StatusNoFill, res.Status)
	require.Len(t, backend.submitted, 2)
	require.Len(t, backend.submitted[0], 2)
	require.Len(t, backend.submitted[1], 1)
	assert.Equal(t, "t-no", backend.submitted[1][0].TokenID)
	assert.InDelta(t, 10.0, backend.submitted[1][0].Size, 1e-12)
	assert.Contains(t, res.TradeIDs, "tr1")

	require.Len(t, backend.created, 1)
	unwind := backend.created[0]
	assert.Equal(t, "t-yes", unwind.TokenID)
	assert.Equal(t, domain.OrderSell, unwind.Side)
	assert.InDelta(t, 10.0, unwind.Size, 1e-12)

	require.Len(t, res.Unwinds, 1)
	assert.Equal(t, "t-yes", res.Unwinds[0].TokenID)
	assert.Equal(t, 1, st.ConsecutiveFailures)
}

func TestExecuteFillsOnLaterPoll(t *testing.T) {
	backend := &fakeBackend{
		orderIDs:   []string{"o1"},
		fills:      fullFills(),
		fillsAfter: 2, // first poll round returns nothing
	}
	e := newEngine(backend, nil, defaultBooks(), &memStore{}, nil, &domain.RuntimeState{}, Config{
		MaxAttempts: 1,
		MaxPolls:    3,
	})

	bk, cand := testCandidate()
	res := e.Execute(context.Background(), bk, cand)
	assert.Equal(t, StatusFilled, res.Status)
	assert.Empty(t, backend.cancelled)
}

func TestExecuteMinFillRatio(t *testing.T) {
	// 9 of 10 shares filled per leg passes with minFillRatio 0.9.
	backend := &fakeBackend{
		orderIDs: []string{"o1"},
		fills: map[string][]domain.Trade{
			"t-yes": {{ID: "tr1", Side: domain.OrderBuy, Size: 9}},
			"t-no":  {{ID: "tr2", Side: domain.OrderBuy, Size: 9}},
		},
	}
	e := newEngine(backend, nil, defaultBooks(), &memStore{}, nil, &domain.RuntimeState{}, Config{
		MaxAttempts:  1,
		MinFillRatio: 0.9,
	})

	bk, cand := testCandidate()
	res := e.Execute(context.Background(), bk, cand)
	assert.Equal(t, StatusFilled, res.Status)
}

type fakeAlt struct {
	results   []domain.AltTradeResult
	submitErr error
	submitted [][]domain.AltTrade
	singles   []domain.AltTrade
	positions []domain.Position
}

func (f *fakeAlt) SubmitTrades(_ context.Context, trades []domain.AltTrade) ([]domain.AltTradeResult, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, trades)
	return f.results, nil
}

func (f *fakeAlt) SubmitTrade(_ context.Context, trade domain.AltTrade) error {
	f.singles = append(f.singles, trade)
	return nil
}

func (f *fakeAlt) Positions(_ context.Context) ([]domain.Position, error) {
	return f.positions, nil
}

func TestExecuteAlternateFilled(t *testing.T) {
	alt := &fakeAlt{results: []domain.AltTradeResult{
		{MarketID: "ALT-YES", Success: true},
		{MarketID: "ALT-NO", Success: true},
	}}
	st := &domain.RuntimeState{}
	e := newEngine(&fakeBackend{}, alt, defaultBooks(), &memStore{}, nil, st, Config{MaxAttempts: 1})

	bk, cand := testCandidate()
	res := e.ExecuteAlternate(context.Background(), bk, cand)
	assert.Equal(t, StatusFilled, res.Status)
	assert.Equal(t, 1, st.ExecutionsToday)
	require.Len(t, alt.submitted, 1)
	assert.Equal(t, "ALT-YES", alt.submitted[0][0].MarketID)
}

func TestExecuteAlternateRequiresMapping(t *testing.T) {
	alt := &fakeAlt{}
	e := newEngine(&fakeBackend{}, alt, defaultBooks(), &memStore{}, nil, &domain.RuntimeState{}, Config{})

	bk, cand := testCandidate()
	bk.Legs[1].AltMarketID = ""
	res := e.ExecuteAlternate(context.Background(), bk, cand)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Contains(t, res.Reason, "mapping")
}

func TestExecuteAlternatePartialFlattens(t *testing.T) {
	alt := &fakeAlt{
		results: []domain.AltTradeResult{
			{MarketID: "ALT-YES", Success: true},
			{MarketID: "ALT-NO", Success: false, Message: "insufficient balance"},
		},
		positions: []domain.Position{
			{MarketID: "ALT-YES", Side: domain.OrderBuy, Amount: 5},
			{MarketID: "ALT-OTHER", Side: domain.OrderBuy, Amount: 5},    // unrelated
			{MarketID: "ALT-YES", Side: domain.OrderBuy, Amount: 50_000}, // implausibly large
		},
	}
	st := &domain.RuntimeState{}
	e := newEngine(&fakeBackend{}, alt, defaultBooks(), &memStore{}, nil, st, Config{
		MaxAttempts:        1,
		MaxDailyNotional:   500,
		AltPositionCapMult: 2,
	})

	bk, cand := testCandidate()
	res := e.ExecuteAlternate(context.Background(), bk, cand)
	assert.Equal(t, StatusNoFill, res.Status)
	assert.Contains(t, res.Reason, "insufficient balance")

	// Only the matching, plausibly-sized position is flattened.
	require.Len(t, alt.singles, 1)
	assert.Equal(t, "ALT-YES", alt.singles[0].MarketID)
	assert.Equal(t, domain.OrderSell, alt.singles[0].Side)
	assert.InDelta(t, 5.0, alt.singles[0].Amount, 1e-12)
	assert.Equal(t, 1, st.ConsecutiveFailures)
}
