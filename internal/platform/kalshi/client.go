// Package kalshi is the REST client for the alternate execution venue, which
// takes notional market orders keyed by an external market ticker instead of
// order-book tokens. It implements executor.AltBackend.
package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// Client talks to the alternate venue's trade API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a client. baseURL is the trade API root, e.g.
// "https://api.elections.kalshi.com/trade-api/v2".
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type apiOrderRequest struct {
	Ticker   string  `json:"ticker"`
	Action   string  `json:"action"` // "buy" or "sell"
	Type     string  `json:"type"`   // always "market"
	Notional float64 `json:"notional"`
}

type apiOrderResponse struct {
	Order struct {
		ID     string `json:"order_id"`
		Status string `json:"status"`
	} `json:"order"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SubmitTrades places a batch of notional market orders. The venue has no
// batch endpoint, so trades go out sequentially with per-trade results; a
// failed leg does not stop the rest, the caller reconciles from the result
// flags.
func (c *Client) SubmitTrades(ctx context.Context, trades []domain.AltTrade) ([]domain.AltTradeResult, error) {
	results := make([]domain.AltTradeResult, 0, len(trades))
	for _, tr := range trades {
		res := domain.AltTradeResult{MarketID: tr.MarketID, Success: true}
		if err := c.SubmitTrade(ctx, tr); err != nil {
			res.Success = false
			res.Message = err.Error()
		}
		results = append(results, res)
	}
	return results, nil
}

// SubmitTrade places one notional market order.
func (c *Client) SubmitTrade(ctx context.Context, trade domain.AltTrade) error {
	req := apiOrderRequest{
		Ticker:   trade.MarketID,
		Action:   string(trade.Side),
		Type:     "market",
		Notional: trade.Amount,
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/portfolio/orders", req)
	if err != nil {
		return fmt.Errorf("kalshi: submit %s %s: %w", trade.Side, trade.MarketID, err)
	}

	var resp apiOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("kalshi: decode order response: %w", err)
	}
	if resp.Error.Message != "" {
		return fmt.Errorf("kalshi: order rejected: %s", resp.Error.Message)
	}
	return nil
}

type apiPosition struct {
	Ticker         string  `json:"ticker"`
	Position       float64 `json:"position"` // signed contract count
	MarketExposure float64 `json:"market_exposure"`
}

// Positions returns the account's open positions. Long contracts map to buy
// side, short to sell, with the venue-reported exposure as the notional.
func (c *Client) Positions(ctx context.Context) ([]domain.Position, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/portfolio/positions", nil)
	if err != nil {
		return nil, fmt.Errorf("kalshi: fetch positions: %w", err)
	}

	var resp struct {
		MarketPositions []apiPosition `json:"market_positions"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kalshi: decode positions: %w", err)
	}

	out := make([]domain.Position, 0, len(resp.MarketPositions))
	for _, p := range resp.MarketPositions {
		if p.Position == 0 {
			continue
		}
		side := domain.OrderBuy
		if p.Position < 0 {
			side = domain.OrderSell
		}
		exposure := p.MarketExposure
		if exposure < 0 {
			exposure = -exposure
		}
		out = append(out, domain.Position{
			MarketID: p.Ticker,
			Side:     side,
			Amount:   exposure,
		})
	}
	return out, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return respBody, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrUnauthorized)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrRateLimited)
	default:
		msg := string(respBody)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
	}
}
