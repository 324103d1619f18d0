// Package books maintains local order-book state for every subscribed token,
// fed by raw market-data messages. The cache is owned by the single reactive
// task that also evaluates candidates, so it needs no internal locking.
package books

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// Cache holds one LocalBook per token. Books are created lazily on the first
// message for a token, overwritten in place on every update, and never
// removed except at process restart.
type Cache struct {
	books  map[string]*domain.LocalBook
	now    func() time.Time
	logger *slog.Logger
}

// New creates an empty Cache.
func New(logger *slog.Logger) *Cache {
	return &Cache{
		books:  make(map[string]*domain.LocalBook),
		now:    time.Now,
		logger: logger.With(slog.String("component", "book_cache")),
	}
}

// Get returns the book for a token, or nil when no message has been seen yet.
func (c *Cache) Get(tokenID string) *domain.LocalBook {
	return c.books[tokenID]
}

// Len returns the number of tokens with a book.
func (c *Cache) Len() int { return len(c.books) }

// Apply parses a raw market-data message (a single object or an array of
// objects, each possibly carrying nested update lists) and applies every book
// update it contains. It returns the set of token IDs that were touched.
// Malformed messages and malformed entries within a message are skipped; a
// bad entry never blocks the rest of the batch.
func (c *Cache) Apply(raw []byte) []string {
	var impacted []string
	seen := make(map[string]struct{})

	for _, obj := range splitMessage(raw) {
		var env feedEnvelope
		if err := json.Unmarshal(obj, &env); err != nil {
			c.logger.Debug("dropping unparseable feed object", slog.String("error", err.Error()))
			continue
		}
		for _, upd := range env.updates(obj) {
			tok := c.applyUpdate(upd)
			if tok == "" {
				continue
			}
			if _, dup := seen[tok]; !dup {
				seen[tok] = struct{}{}
				impacted = append(impacted, tok)
			}
		}
	}
	return impacted
}

// applyUpdate merges one book-update object into the cache and returns the
// token it touched, or "" when the update carries no token or no usable data.
func (c *Cache) applyUpdate(u bookUpdate) string {
	tok := u.tokenID()
	if tok == "" {
		return ""
	}

	asks := parseLevels(u.Asks, true)
	bids := parseLevels(u.Bids, false)
	bestAsk := parseNum(u.BestAsk)
	bestBid := parseNum(u.BestBid)
	if len(asks) == 0 && len(bids) == 0 && bestAsk == 0 && bestBid == 0 {
		return ""
	}

	book := c.books[tok]
	if book == nil {
		book = &domain.LocalBook{TokenID: tok}
		c.books[tok] = book
	}

	if len(asks) > 0 {
		book.Asks = asks
		book.BestAsk = asks[0].Price
		book.SyntheticAsk = false
	} else if bestAsk > 0 {
		// Only a best-price hint: synthesize a single effectively-unlimited
		// level and flag the side until real depth arrives.
		book.Asks = domain.SyntheticLevel(bestAsk)
		book.BestAsk = bestAsk
		book.SyntheticAsk = true
	}

	if len(bids) > 0 {
		book.Bids = bids
		book.BestBid = bids[0].Price
		book.SyntheticBid = false
	} else if bestBid > 0 {
		book.Bids = domain.SyntheticLevel(bestBid)
		book.BestBid = bestBid
		book.SyntheticBid = true
	}

	book.UpdatedAt = c.now()
	return tok
}

// CostForShares prices the acquisition of shares for a token against its ask
// ladder. Returns domain.ErrNoBook when the token has no book yet.
func (c *Cache) CostForShares(tokenID string, shares float64) (float64, error) {
	book := c.books[tokenID]
	if book == nil {
		return 0, domain.ErrNoBook
	}
	return domain.CostForShares(book.Asks, shares)
}

// ---------------------------------------------------------------------------
// Feed message shapes. The venue's feed is loosely specified: messages arrive
// as single objects or arrays, with updates either inline or nested under
// "changes", "price_changes", or "items", and token IDs under "asset_id" or
// "token_id". Prices and sizes arrive as strings or numbers.
// ---------------------------------------------------------------------------

type feedEnvelope struct {
	EventType    string            `json:"event_type"`
	Changes      []json.RawMessage `json:"changes"`
	PriceChanges []json.RawMessage `json:"price_changes"`
	Items        []json.RawMessage `json:"items"`
}

type bookUpdate struct {
	AssetID string          `json:"asset_id"`
	TokenID string          `json:"token_id"`
	Asks    []rawLevel      `json:"asks"`
	Bids    []rawLevel      `json:"bids"`
	BestAsk json.RawMessage `json:"best_ask"`
	BestBid json.RawMessage `json:"best_bid"`
}

type rawLevel struct {
	Price json.RawMessage `json:"price"`
	Size  json.RawMessage `json:"size"`
}

func (u bookUpdate) tokenID() string {
	if u.AssetID != "" {
		return u.AssetID
	}
	return u.TokenID
}

// updates extracts the book-update objects carried by one feed object: any
// nested lists first, otherwise the object itself (snapshot and price-change
// messages both carry book fields inline). Tick-size changes carry no book
// data and fall out naturally as empty updates.
func (e feedEnvelope) updates(self json.RawMessage) []bookUpdate {
	nested := e.Changes
	nested = append(nested, e.PriceChanges...)
	nested = append(nested, e.Items...)

	if len(nested) == 0 {
		nested = []json.RawMessage{self}
	}

	out := make([]bookUpdate, 0, len(nested))
	for _, raw := range nested {
		var u bookUpdate
		if err := json.Unmarshal(raw, &u); err != nil {
			continue
		}
		out = append(out, u)
	}
	return out
}

// splitMessage normalizes a raw message into a list of JSON objects.
func splitMessage(raw []byte) []json.RawMessage {
	trimmed := firstNonSpace(raw)
	if trimmed == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil
		}
		return arr
	}
	if trimmed == '{' {
		return []json.RawMessage{raw}
	}
	return nil
}

func firstNonSpace(raw []byte) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}

// parseLevels decodes a ladder, dropping malformed entries, and sorts it
// ascending for asks / descending for bids. Feeds usually deliver sorted
// ladders already; the sort is insertion-based and cheap when they are.
func parseLevels(raw []rawLevel, ascending bool) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, rl := range raw {
		price := parseNum(rl.Price)
		size := parseNum(rl.Size)
		if price <= 0 || size <= 0 {
			continue
		}
		levels = append(levels, domain.PriceLevel{Price: price, Size: size})
	}
	for i := 1; i < len(levels); i++ {
		for j := i; j > 0; j-- {
			swap := levels[j].Price < levels[j-1].Price
			if !ascending {
				swap = levels[j].Price > levels[j-1].Price
			}
			if !swap {
				break
			}
			levels[j], levels[j-1] = levels[j-1], levels[j]
		}
	}
	return levels
}

// parseNum decodes a JSON number that may arrive as a number or a quoted
// decimal string. Returns 0 for anything unusable.
func parseNum(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
