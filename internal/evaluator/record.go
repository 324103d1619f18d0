package evaluator

import "time"

// Record is the per-evaluation metrics line. It is serialized as one JSON
// object per line by the metrics sink.
type Record struct {
	Timestamp    time.Time `json:"ts"`
	Strategy     string    `json:"strategy"`
	Basket       string    `json:"basket"`
	Title        string    `json:"title,omitempty"`
	LegCount     int       `json:"leg_count"`
	SharesPerLeg float64   `json:"shares_per_leg"`

	Payout     float64 `json:"payout"`
	FixedCost  float64 `json:"fixed_cost"`
	BasketCost float64 `json:"basket_cost"`
	NetEdge    float64 `json:"net_edge"`
	EdgePct    float64 `json:"edge_pct"`
	ExecCost   float64 `json:"exec_cost"`
	ExecEdge   float64 `json:"exec_edge"`

	PassRaw  bool `json:"pass_raw"`
	PassExec bool `json:"pass_exec"`

	FillRatioMin     float64       `json:"fill_ratio_min"`
	FillRatioAvg     float64       `json:"fill_ratio_avg"`
	WorstStaleness   time.Duration `json:"worst_staleness_ns"`
	SyntheticAskLegs int           `json:"synthetic_ask_legs"`
	MissingBookLegs  int           `json:"missing_book_legs"`

	BaseScore     float64 `json:"base_score"`
	WalletScore   float64 `json:"wallet_score,omitempty"`
	CombinedScore float64 `json:"combined_score"`

	MuteApplied bool      `json:"mute_applied,omitempty"`
	MutedUntil  time.Time `json:"muted_until,omitzero"`
}
