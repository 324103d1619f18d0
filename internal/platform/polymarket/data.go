package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/basketarb/internal/wallets"
)

// DataClient is the REST client for the venue's Data API, which exposes
// per-condition holder lists and per-wallet trade history. It implements
// wallets.HolderSource and wallets.ProfileSource.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
	tradePage  int
}

// NewDataClient creates a Data API client. baseURL is the API root, e.g.
// "https://data-api.polymarket.com".
func NewDataClient(baseURL string) *DataClient {
	return &DataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		tradePage: 500,
	}
}

type apiHolder struct {
	Wallet string    `json:"proxyWallet"`
	Amount flexFloat `json:"amount"`
}

type apiHolderList struct {
	Token   string      `json:"token"`
	Holders []apiHolder `json:"holders"`
}

// TopHolders returns the largest holders of a condition, across both of its
// outcome tokens, largest first.
func (d *DataClient) TopHolders(ctx context.Context, conditionID string, limit int) ([]wallets.Holder, error) {
	params := url.Values{}
	params.Set("market", conditionID)
	params.Set("limit", strconv.Itoa(limit))

	body, err := doGet(ctx, d.httpClient, d.baseURL+"/holders?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: fetch holders: %w", err)
	}

	var lists []apiHolderList
	if err := json.Unmarshal(body, &lists); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode holders: %w", err)
	}

	merged := make(map[string]float64)
	for _, list := range lists {
		for _, h := range list.Holders {
			merged[h.Wallet] += float64(h.Amount)
		}
	}
	out := make([]wallets.Holder, 0, len(merged))
	for w, amt := range merged {
		out = append(out, wallets.Holder{Wallet: w, Amount: amt})
	}
	// Largest first, truncated back to the requested limit after merging.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Amount > out[j-1].Amount; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type apiWalletTrade struct {
	Asset       string    `json:"asset"`
	ConditionID string    `json:"conditionId"`
	Outcome     string    `json:"outcome"`
	Side        string    `json:"side"` // "BUY" or "SELL"
	Price       flexFloat `json:"price"`
	Size        flexFloat `json:"size"`
	Timestamp   int64     `json:"timestamp"`
}

// WalletProfile fetches a wallet's recent trades and derives the summary the
// scoring pass needs. The heuristics are deliberately coarse: they feed a
// bounded nudge on basket ranking, not a trading decision of their own.
func (d *DataClient) WalletProfile(ctx context.Context, wallet string) (wallets.WalletProfile, error) {
	params := url.Values{}
	params.Set("user", wallet)
	params.Set("limit", strconv.Itoa(d.tradePage))

	body, err := doGet(ctx, d.httpClient, d.baseURL+"/trades?"+params.Encode())
	if err != nil {
		return wallets.WalletProfile{}, fmt.Errorf("polymarket/data: fetch trades for %s: %w", wallet, err)
	}

	var trades []apiWalletTrade
	if err := json.Unmarshal(body, &trades); err != nil {
		return wallets.WalletProfile{}, fmt.Errorf("polymarket/data: decode trades for %s: %w", wallet, err)
	}
	return profileFromTrades(trades), nil
}

// profileFromTrades derives the scoring summary from a trade list:
//
//   - trades/day from the observed time span
//   - style from trading frequency
//   - hedged when the wallet bought both outcomes of some condition, with
//     the hedge edge measured as 1 minus the combined average entry price
//   - profitable-time as the fraction of sells above the wallet's running
//     average entry price for that token
func profileFromTrades(trades []apiWalletTrade) wallets.WalletProfile {
	p := wallets.WalletProfile{TradeCount: len(trades), Style: wallets.StyleUnknown}
	if len(trades) == 0 {
		return p
	}

	minTS, maxTS := trades[0].Timestamp, trades[0].Timestamp
	type entry struct{ size, cost float64 }
	entries := make(map[string]*entry)             // per token
	sides := make(map[string]map[string][2]float64) // condition -> outcome -> {size, cost}
	profitableSells, sells := 0, 0

	for _, tr := range trades {
		if tr.Timestamp < minTS {
			minTS = tr.Timestamp
		}
		if tr.Timestamp > maxTS {
			maxTS = tr.Timestamp
		}
		price, size := float64(tr.Price), float64(tr.Size)
		if size <= 0 {
			continue
		}
		switch tr.Side {
		case "BUY":
			e := entries[tr.Asset]
			if e == nil {
				e = &entry{}
				entries[tr.Asset] = e
			}
			e.size += size
			e.cost += size * price
			if tr.ConditionID != "" && tr.Outcome != "" {
				byOutcome := sides[tr.ConditionID]
				if byOutcome == nil {
					byOutcome = make(map[string][2]float64)
					sides[tr.ConditionID] = byOutcome
				}
				acc := byOutcome[tr.Outcome]
				byOutcome[tr.Outcome] = [2]float64{acc[0] + size, acc[1] + size*price}
			}
		case "SELL":
			sells++
			if e := entries[tr.Asset]; e != nil && e.size > 0 && price > e.cost/e.size {
				profitableSells++
			}
		}
	}

	if sells > 0 {
		p.ProfitableTimePct = float64(profitableSells) / float64(sells)
	} else {
		p.ProfitableTimePct = 0.5 // no exits observed: neutral
	}

	spanDays := float64(maxTS-minTS) / 86400
	if spanDays < 1 {
		spanDays = 1
	}
	p.TradesPerDay = float64(len(trades)) / spanDays
	switch {
	case p.TradesPerDay > 20:
		p.Style = wallets.StyleScalper
	case p.TradesPerDay < 1:
		p.Style = wallets.StylePosition
	default:
		p.Style = wallets.StyleSwing
	}

	for _, byOutcome := range sides {
		if len(byOutcome) < 2 {
			continue
		}
		combined := 0.0
		ok := true
		for _, acc := range byOutcome {
			if acc[0] <= 0 {
				ok = false
				break
			}
			combined += acc[1] / acc[0]
		}
		if !ok {
			continue
		}
		p.Hedged = true
		if edge := 1 - combined; edge > p.HedgeEdge {
			p.HedgeEdge = edge
		}
	}
	p.HedgeEdge = math.Max(p.HedgeEdge, -1)
	return p
}
