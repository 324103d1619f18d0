package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// GammaClient is the REST client for the venue's market-metadata API.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a metadata client. baseURL is the API root, e.g.
// "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchActiveMarkets returns one page of active, unresolved markets ordered
// by 24h volume.
func (g *GammaClient) FetchActiveMarkets(ctx context.Context, limit, offset int) ([]domain.MarketInfo, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("order", "volume24hr")
	params.Set("ascending", "false")

	body, err := doGet(ctx, g.httpClient, g.baseURL+"/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: fetch markets: %w", err)
	}

	var raw []apiMarket
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	out := make([]domain.MarketInfo, 0, len(raw))
	for i := range raw {
		out = append(out, raw[i].toDomain())
	}
	return out, nil
}

// FetchEventBySlug returns one grouped event with its nested markets. The
// slug lookup returns a list; an empty list maps to domain.ErrNotFound.
func (g *GammaClient) FetchEventBySlug(ctx context.Context, slug string) (domain.EventInfo, error) {
	params := url.Values{}
	params.Set("slug", slug)

	body, err := doGet(ctx, g.httpClient, g.baseURL+"/events?"+params.Encode())
	if err != nil {
		return domain.EventInfo{}, fmt.Errorf("polymarket/gamma: fetch event %s: %w", slug, err)
	}

	var raw []apiEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.EventInfo{}, fmt.Errorf("polymarket/gamma: decode event %s: %w", slug, err)
	}
	if len(raw) == 0 {
		return domain.EventInfo{}, fmt.Errorf("polymarket/gamma: event %s: %w", slug, domain.ErrNotFound)
	}
	return raw[0].toDomain(), nil
}
