package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

type fakeSender struct {
	name     string
	err      error
	titles   []string
	messages []string
}

func (f *fakeSender) Send(_ context.Context, title, message string) error {
	f.titles = append(f.titles, title)
	f.messages = append(f.messages, message)
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestSendFansOutToAllSenders(t *testing.T) {
	a := &fakeSender{name: "a"}
	b := &fakeSender{name: "b"}
	n := NewNotifier([]Sender{a, b}, "engine", testLogger())

	require.NoError(t, n.Send(context.Background(), "t", "hello"))
	assert.Equal(t, []string{"hello"}, a.messages)
	assert.Equal(t, []string{"hello"}, b.messages)
}

func TestSendOneFailureDoesNotStopTheRest(t *testing.T) {
	a := &fakeSender{name: "a", err: errors.New("boom")}
	b := &fakeSender{name: "b"}
	n := NewNotifier([]Sender{a, b}, "", testLogger())

	err := n.Send(context.Background(), "t", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: boom")
	assert.Equal(t, []string{"hello"}, b.messages)
}

func TestSendNoSenders(t *testing.T) {
	n := NewNotifier(nil, "", testLogger())
	assert.NoError(t, n.Send(context.Background(), "t", "hello"))
}

func TestNotifyUsesConfiguredTitleAndSwallowsErrors(t *testing.T) {
	a := &fakeSender{name: "a", err: errors.New("down")}
	n := NewNotifier([]Sender{a}, "desk", testLogger())

	n.Notify(context.Background(), "msg")
	assert.Equal(t, []string{"desk"}, a.titles)

	// Default title when none is configured.
	b := &fakeSender{name: "b"}
	NewNotifier([]Sender{b}, "", testLogger()).Notify(context.Background(), "msg")
	assert.Equal(t, []string{"basketarb"}, b.titles)
}

func TestCandidateMessage(t *testing.T) {
	msg := CandidateMessage(domain.Candidate{
		Strategy:       "buckets",
		Title:          "BTC close bucket",
		SharesPerLeg:   10,
		BasketCost:     9.40,
		PayoutAfterFee: 10,
		NetEdge:        0.55,
		EdgePct:        0.0585,
		ExecEdge:       0.31,
		Legs: []domain.LegCost{
			{Leg: domain.Leg{Label: "90k-95k"}, Cost: 4.70, LimitPrice: 0.48},
			{Leg: domain.Leg{Label: "95k-100k"}, Cost: 4.70, LimitPrice: 0.48},
		},
	})

	assert.Contains(t, msg, "BTC close bucket [buckets]")
	assert.Contains(t, msg, "net edge $0.550 (5.85%) on 10 shares/leg")
	assert.Contains(t, msg, "cost $9.400 payout $10.000")
	assert.Contains(t, msg, "exec edge $0.310")
	assert.Contains(t, msg, "90k-95k: cost $4.700 limit 0.480")
}
