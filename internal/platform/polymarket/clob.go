package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/basketarb/internal/crypto"
	"github.com/alanyoungcy/basketarb/internal/domain"
)

// amountScale converts human prices and share counts into the venue's
// integer base units.
const amountScale = 1_000_000

// ClobClient is the authenticated REST client for the venue's central limit
// order book. It implements executor.OrderBackend.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
	hmacAuth   *crypto.HMACAuth
	salt       func() int64
}

// NewClobClient creates a CLOB client. baseURL is the API root, e.g.
// "https://clob.polymarket.com". hmac may be nil until DeriveAPIKey runs.
func NewClobClient(baseURL string, signer *crypto.Signer, hmac *crypto.HMACAuth) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer:   signer,
		hmacAuth: hmac,
		salt:     func() int64 { return rand.Int63() },
	}
}

// DeriveAPIKey runs the L1 auth flow: sign a ClobAuth message with the
// wallet key and exchange it for HMAC credentials used on every later
// request.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) error {
	timestamp := time.Now().Unix()
	const nonce = int64(0)

	sig, err := c.signer.SignAuthMessage(timestamp, nonce)
	if err != nil {
		return fmt.Errorf("polymarket/clob: sign auth message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return fmt.Errorf("polymarket/clob: create auth request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", c.signer.Address().Hex())
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("POLY_NONCE", strconv.FormatInt(nonce, 10))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polymarket/clob: auth request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: read auth response: %w", err)
	}
	if err := checkStatus(resp.StatusCode, body); err != nil {
		return fmt.Errorf("polymarket/clob: derive api key: %w", err)
	}

	var authResp struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(body, &authResp); err != nil {
		return fmt.Errorf("polymarket/clob: decode auth response: %w", err)
	}

	c.hmacAuth = &crypto.HMACAuth{
		Key:        authResp.APIKey,
		Secret:     authResp.Secret,
		Passphrase: authResp.Passphrase,
	}
	return nil
}

// SubmitBatch signs and posts a batch of limit orders in one request and
// returns the venue-assigned order IDs, positionally matching the input.
func (c *ClobClient) SubmitBatch(ctx context.Context, orders []domain.Order) ([]string, error) {
	entries := make([]map[string]any, 0, len(orders))
	for i := range orders {
		signed, err := c.signedOrderBody(orders[i])
		if err != nil {
			return nil, fmt.Errorf("polymarket/clob: batch order %d: %w", i, err)
		}
		entries = append(entries, map[string]any{
			"order":     signed,
			"owner":     c.owner(),
			"orderType": "GTC",
		})
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/orders", entries)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: post batch: %w", err)
	}

	var results []apiOrderResult
	if err := json.Unmarshal(respBody, &results); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode batch response: %w", err)
	}

	ids := make([]string, 0, len(results))
	for i, r := range results {
		if !r.Success {
			return nil, fmt.Errorf("polymarket/clob: batch order %d rejected: %s", i, r.ErrorMsg)
		}
		ids = append(ids, r.OrderID)
	}
	if len(ids) != len(orders) {
		return nil, fmt.Errorf("polymarket/clob: batch returned %d results for %d orders", len(ids), len(orders))
	}
	return ids, nil
}

// CreateOrder signs and posts a single limit order.
func (c *ClobClient) CreateOrder(ctx context.Context, order domain.Order) (string, error) {
	signed, err := c.signedOrderBody(order)
	if err != nil {
		return "", fmt.Errorf("polymarket/clob: %w", err)
	}
	body := map[string]any{
		"order":     signed,
		"owner":     c.owner(),
		"orderType": "GTC",
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return "", fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var result apiOrderResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("polymarket/clob: decode order response: %w", err)
	}
	if !result.Success {
		return "", fmt.Errorf("polymarket/clob: order rejected: %s", result.ErrorMsg)
	}
	return result.OrderID, nil
}

// CancelOrders cancels the given orders in one request. IDs unknown to the
// venue are reported back but not treated as an error; the caller is
// cancelling on a best-effort basis after a fill timeout.
func (c *ClobClient) CancelOrders(ctx context.Context, orderIDs []string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodDelete, "/orders", orderIDs)
	if err != nil {
		return fmt.Errorf("polymarket/clob: cancel orders: %w", err)
	}

	var result struct {
		Canceled    []string          `json:"canceled"`
		NotCanceled map[string]string `json:"not_canceled"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("polymarket/clob: decode cancel response: %w", err)
	}
	return nil
}

// OpenOrders returns the wallet's resting orders.
func (c *ClobClient) OpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodGet, "/data/orders", nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: get open orders: %w", err)
	}

	var raw []apiOpenOrder
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode open orders: %w", err)
	}

	out := make([]domain.OpenOrder, 0, len(raw))
	for _, o := range raw {
		size := float64(o.OriginalSize) - float64(o.SizeMatched)
		if size < 0 {
			size = 0
		}
		out = append(out, domain.OpenOrder{
			ID:      o.ID,
			TokenID: o.AssetID,
			Side:    sideFromAPI(o.Side),
			Price:   float64(o.Price),
			Size:    size,
		})
	}
	return out, nil
}

// tradeTimeParams lists the timestamp-filter spellings tried in order. Not
// every deployment honors the same one, and some reject spellings they don't
// know, so each variant is attempted until one answers.
var tradeTimeParams = []string{"after", "from"}

// TradesSince returns the wallet's fills for one token at or after the given
// time. Even when a variant is accepted the server may silently ignore the
// filter, so results are also filtered client-side.
func (c *ClobClient) TradesSince(ctx context.Context, tokenID string, since time.Time) ([]domain.Trade, error) {
	var raw []apiTrade
	var lastErr error
	for _, key := range tradeTimeParams {
		params := url.Values{}
		params.Set("asset_id", tokenID)
		params.Set(key, strconv.FormatInt(since.Unix(), 10))

		respBody, err := c.doAuthenticatedRequest(ctx, http.MethodGet, "/data/trades?"+params.Encode(), nil)
		if err != nil {
			lastErr = fmt.Errorf("polymarket/clob: get trades (%s): %w", key, err)
			continue
		}
		if err := json.Unmarshal(respBody, &raw); err != nil {
			lastErr = fmt.Errorf("polymarket/clob: decode trades: %w", err)
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return nil, lastErr
	}

	out := make([]domain.Trade, 0, len(raw))
	for _, t := range raw {
		matched := time.Unix(t.MatchTime, 0)
		if t.AssetID != tokenID || matched.Before(since) {
			continue
		}
		out = append(out, domain.Trade{
			ID:        t.ID,
			TokenID:   t.AssetID,
			Side:      sideFromAPI(t.Side),
			Price:     float64(t.Price),
			Size:      float64(t.Size),
			MatchedAt: matched,
		})
	}
	return out, nil
}

type apiOrderResult struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
}

type apiOpenOrder struct {
	ID           string    `json:"id"`
	AssetID      string    `json:"asset_id"`
	Side         string    `json:"side"`
	Price        flexFloat `json:"price"`
	OriginalSize flexFloat `json:"original_size"`
	SizeMatched  flexFloat `json:"size_matched"`
}

type apiTrade struct {
	ID        string    `json:"id"`
	AssetID   string    `json:"asset_id"`
	Side      string    `json:"side"`
	Price     flexFloat `json:"price"`
	Size      flexFloat `json:"size"`
	MatchTime int64     `json:"match_time,string"`
}

func sideFromAPI(s string) domain.OrderSide {
	if s == "SELL" {
		return domain.OrderSell
	}
	return domain.OrderBuy
}

func (c *ClobClient) owner() string {
	if c.hmacAuth != nil {
		return c.hmacAuth.Key
	}
	return ""
}

// signedOrderBody converts a domain order into the venue's signed wire form.
// Amounts are integer base units: for a buy the maker amount is collateral
// (price times size) and the taker amount is shares; a sell swaps the two.
func (c *ClobClient) signedOrderBody(order domain.Order) (map[string]any, error) {
	if order.Price <= 0 || order.Size <= 0 {
		return nil, fmt.Errorf("invalid order price %.4f size %.4f", order.Price, order.Size)
	}

	shares := strconv.FormatInt(int64(math.Round(order.Size*amountScale)), 10)
	collateral := strconv.FormatInt(int64(math.Round(order.Price*order.Size*amountScale)), 10)

	payload := crypto.OrderPayload{
		Salt:        strconv.FormatInt(c.salt(), 10),
		Maker:       c.signer.Address().Hex(),
		Signer:      c.signer.Address().Hex(),
		Taker:       "0x0000000000000000000000000000000000000000",
		TokenID:     order.TokenID,
		Expiration:  "0",
		Nonce:       "0",
		FeeRateBps:  "0",
	}
	apiSide := "BUY"
	if order.Side == domain.OrderSell {
		payload.Side = 1
		payload.MakerAmount = shares
		payload.TakerAmount = collateral
		apiSide = "SELL"
	} else {
		payload.MakerAmount = collateral
		payload.TakerAmount = shares
	}

	sig, err := c.signer.SignOrder(payload)
	if err != nil {
		return nil, fmt.Errorf("sign order: %w", err)
	}

	return map[string]any{
		"salt":          payload.Salt,
		"maker":         payload.Maker,
		"signer":        payload.Signer,
		"taker":         payload.Taker,
		"tokenID":       payload.TokenID,
		"makerAmount":   payload.MakerAmount,
		"takerAmount":   payload.TakerAmount,
		"expiration":    payload.Expiration,
		"nonce":         payload.Nonce,
		"feeRateBps":    payload.FeeRateBps,
		"side":          apiSide,
		"signatureType": payload.SignatureType,
		"signature":     sig,
	}, nil
}

// doAuthenticatedRequest builds, HMAC-signs, sends, and reads one request.
func (c *ClobClient) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.hmacAuth != nil {
		headers := c.hmacAuth.L2Headers(c.signer.Address().Hex(), method, path, bodyStr)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
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
	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}
