package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// wsSubscribe is the subscription command for the market feed.
type wsSubscribe struct {
	Type     string   `json:"type"`
	Channel  string   `json:"channel,omitempty"`
	AssetIDs []string `json:"assets_ids"`
}

// MarketFeed is the WebSocket client for the venue's market-data stream. It
// delivers raw messages on a channel so that book parsing stays with the
// single task that owns the book cache. The feed reconnects with exponential
// backoff and restores its subscriptions; consumers only ever see a quiet
// channel during an outage.
type MarketFeed struct {
	wsURL  string
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	assets []string
	closed bool

	msgs chan []byte
	done chan struct{}
}

// NewMarketFeed creates a feed client. wsURL is the market-channel endpoint,
// e.g. "wss://ws-subscriptions-clob.polymarket.com/ws/market".
func NewMarketFeed(wsURL string, logger *slog.Logger) *MarketFeed {
	return &MarketFeed{
		wsURL:  wsURL,
		logger: logger.With(slog.String("component", "market_feed")),
		msgs:   make(chan []byte, 256),
		done:   make(chan struct{}),
	}
}

// Messages returns the raw-message channel. The channel is never closed;
// reconnect retries forever, so an outage shows up as a quiet channel rather
// than a closed one.
func (f *MarketFeed) Messages() <-chan []byte { return f.msgs }

// Connect dials the feed and starts the read and ping loops. Any previously
// requested subscriptions are restored.
func (f *MarketFeed) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("polymarket/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("polymarket/ws: connect: %w", err)
	}
	f.conn = conn

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go f.readLoop(conn)
	go f.pingLoop(conn)

	if len(f.assets) > 0 {
		if err := f.sendSubscribe(conn, f.assets); err != nil {
			return fmt.Errorf("polymarket/ws: restore subscription: %w", err)
		}
	}
	return nil
}

// Subscribe replaces the feed's asset subscription with the given token IDs.
// The full set is re-sent on every universe refresh, so the previous set is
// simply dropped.
func (f *MarketFeed) Subscribe(ctx context.Context, assetIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn == nil {
		return fmt.Errorf("polymarket/ws: not connected")
	}
	if err := f.sendSubscribe(f.conn, assetIDs); err != nil {
		return fmt.Errorf("polymarket/ws: subscribe: %w", err)
	}
	f.assets = append([]string(nil), assetIDs...)
	return nil
}

// Close shuts the feed down, stopping the read, ping, and reconnect loops.
func (f *MarketFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	close(f.done)

	if f.conn != nil {
		_ = f.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return f.conn.Close()
	}
	return nil
}

func (f *MarketFeed) sendSubscribe(conn *websocket.Conn, assetIDs []string) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	data, err := json.Marshal(wsSubscribe{Type: "subscribe", AssetIDs: assetIDs})
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop delivers raw messages until the connection drops, then hands off
// to reconnect. A full consumer channel drops the message; book snapshots
// are self-correcting, so a dropped update only delays convergence.
func (f *MarketFeed) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case <-f.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.done:
				return
			default:
			}
			f.logger.Warn("feed disconnected", slog.String("error", err.Error()))
			go f.reconnect()
			return
		}

		select {
		case f.msgs <- message:
		default:
			f.logger.Debug("feed consumer backlogged, dropping message")
		}
	}
}

func (f *MarketFeed) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reconnect redials with exponential backoff until it succeeds or the feed
// is closed. Connect restores the subscription.
func (f *MarketFeed) reconnect() {
	delay := reconnectDelay
	for {
		select {
		case <-f.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := f.Connect(ctx)
		cancel()
		if err == nil {
			f.logger.Info("feed reconnected")
			return
		}
		f.logger.Warn("feed reconnect failed", slog.String("error", err.Error()))

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
