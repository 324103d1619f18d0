// Package polymarket holds the REST and WebSocket clients for the venue's
// Gamma (metadata), Data (holders and trade history), and CLOB (orders)
// APIs.
package polymarket

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

func doGet(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func checkStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return domain.ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("status %d: %w", status, domain.ErrUnauthorized)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("status %d: %w", status, domain.ErrRateLimited)
	default:
		msg := string(body)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return fmt.Errorf("unexpected status %d: %s", status, msg)
	}
}
