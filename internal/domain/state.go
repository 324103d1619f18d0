package domain

// RuntimeState holds process-wide risk counters. It is loaded from durable
// storage at startup, mutated after every execution attempt, and written back
// with an atomic replace so readers never observe a half-written file.
type RuntimeState struct {
	ExecutionsToday     int     `json:"executions_today"`
	NotionalToday       float64 `json:"notional_today"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	Halted              bool    `json:"halted"`
	HaltReason          string  `json:"halt_reason,omitempty"`
}
