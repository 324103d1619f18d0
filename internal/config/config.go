// Package config defines the engine's top-level configuration and provides
// loading and validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BASKETARB_* environment
// variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Universe   UniverseConfig   `toml:"universe"`
	Signal     SignalConfig     `toml:"signal"`
	Evaluator  EvaluatorConfig  `toml:"evaluator"`
	Executor   ExecutorConfig   `toml:"executor"`
	State      StateConfig      `toml:"state"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Notify     NotifyConfig     `toml:"notify"`
	AutoExec   bool             `toml:"auto_exec"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds signing-key credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds order-book venue endpoints and chain parameters.
type PolymarketConfig struct {
	ClobHost  string `toml:"clob_host"`
	GammaHost string `toml:"gamma_host"`
	DataHost  string `toml:"data_host"`
	WsHost    string `toml:"ws_host"`
	ChainID   int    `toml:"chain_id"`
}

// KalshiConfig holds alternate-venue credentials. The market map pairs
// order-book market IDs with the alternate venue's tickers.
type KalshiConfig struct {
	Enabled   bool              `toml:"enabled"`
	BaseURL   string            `toml:"base_url"`
	ApiKey    string            `toml:"api_key"`
	MarketMap map[string]string `toml:"market_map"`
}

// PostgresConfig holds the optional history-store connection. An empty DSN
// with an empty host disables the store.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// Enabled reports whether a history store is configured.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.DSN) != "" || p.Host != ""
}

// RedisConfig holds the optional cache connection. An empty addr disables
// both caches.
type RedisConfig struct {
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	MarketTTL  duration `toml:"market_ttl"`
	ScoreTTL   duration `toml:"score_ttl"`
}

// S3Config holds the optional metrics-archive target. An empty bucket
// disables archival.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// UniverseConfig holds universe-construction parameters.
type UniverseConfig struct {
	Strategies   []string `toml:"strategies"`
	MinLiquidity float64  `toml:"min_liquidity"`
	MinVolume24h float64  `toml:"min_volume_24h"`
	MaxDaysToEnd float64  `toml:"max_days_to_end"`
	IncludeTerms []string `toml:"include_terms"`
	ExcludeTerms []string `toml:"exclude_terms"`

	LiveWindowEnabled bool     `toml:"live_window_enabled"`
	LivePreStart      duration `toml:"live_pre_start"`
	LivePostEnd       duration `toml:"live_post_end"`
	LiveStrict        bool     `toml:"live_strict"`

	MinBucketOutcomes int  `toml:"min_bucket_outcomes"`
	CheckExhaustive   bool `toml:"check_exhaustive"`

	WindowSlugPrefix  string   `toml:"window_slug_prefix"`
	WindowSize        duration `toml:"window_size"`
	WindowLookBack    int      `toml:"window_look_back"`
	WindowLookForward int      `toml:"window_look_forward"`

	PageSize          int `toml:"page_size"`
	MaxMarketsScanned int `toml:"max_markets_scanned"`
	MaxBaskets        int `toml:"max_baskets"`

	MaxTokens         int     `toml:"max_tokens"`
	MaxPerEvent       int     `toml:"max_per_event"`
	ScoreHalfLifeDays float64 `toml:"score_half_life_days"`
	ScoreMaxDays      float64 `toml:"score_max_days"`

	RefreshInterval duration `toml:"refresh_interval"`
}

// SignalConfig holds wallet-signal parameters.
type SignalConfig struct {
	Enabled     bool     `toml:"enabled"`
	MaxBaskets  int      `toml:"max_baskets"`
	TopHolders  int      `toml:"top_holders"`
	MinTrades   int      `toml:"min_trades"`
	Weight      float64  `toml:"weight"`
	Concurrency int      `toml:"concurrency"`
	CacheTTL    duration `toml:"cache_ttl"`
}

// EvaluatorConfig holds candidate-evaluation parameters.
type EvaluatorConfig struct {
	SharesPerLeg float64 `toml:"shares_per_leg"`
	FeeRate      float64 `toml:"fee_rate"`
	FixedCost    float64 `toml:"fixed_cost"`

	SlippageMult    float64 `toml:"slippage_mult"`
	DefaultTickSize float64 `toml:"default_tick_size"`

	MinNetEdge  float64 `toml:"min_net_edge"`
	MinExecEdge float64 `toml:"min_exec_edge"`

	ExecFilterEnabled bool     `toml:"exec_filter_enabled"`
	ExecEdgeFloor     float64  `toml:"exec_edge_floor"`
	NegStreakLimit    int      `toml:"neg_streak_limit"`
	MuteCooldown      duration `toml:"mute_cooldown"`

	AlertCooldown duration `toml:"alert_cooldown"`
}

// ExecutorConfig holds execution-engine risk and attempt parameters.
type ExecutorConfig struct {
	MaxLegs                int     `toml:"max_legs"`
	MaxDailyExecutions     int     `toml:"max_daily_executions"`
	MaxDailyNotional       float64 `toml:"max_daily_notional"`
	MaxConsecutiveFailures int     `toml:"max_consecutive_failures"`
	MaxOpenOrders          int     `toml:"max_open_orders"`

	MaxAttempts  int      `toml:"max_attempts"`
	AttemptDelay duration `toml:"attempt_delay"`
	PollInterval duration `toml:"poll_interval"`
	MaxPolls     int      `toml:"max_polls"`
	MinFillRatio float64  `toml:"min_fill_ratio"`

	StalenessCeiling duration `toml:"staleness_ceiling"`
	AllowSynthetic   bool     `toml:"allow_synthetic"`

	UnwindSlippage     float64 `toml:"unwind_slippage"`
	AltPositionCapMult float64 `toml:"alt_position_cap_mult"`
}

// StateConfig holds runtime-state persistence paths.
type StateConfig struct {
	Path     string `toml:"path"`
	LockPath string `toml:"lock_path"`
}

// MetricsConfig holds the NDJSON metrics writer parameters.
type MetricsConfig struct {
	Enabled       bool   `toml:"enabled"`
	Dir           string `toml:"dir"`
	FilePrefix    string `toml:"file_prefix"`
	ArchivePrefix string `toml:"archive_prefix"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
	Title             string `toml:"title"`
}

// duration wraps time.Duration so the TOML decoder can parse strings like
// "5m" or "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:  "https://clob.polymarket.com",
			GammaHost: "https://gamma-api.polymarket.com",
			DataHost:  "https://data-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			ChainID:   137,
		},
		Kalshi: KalshiConfig{
			BaseURL:   "https://api.elections.kalshi.com/trade-api/v2",
			MarketMap: map[string]string{},
		},
		Postgres: PostgresConfig{
			Port:          5432,
			Database:      "basketarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			PoolSize:   20,
			MaxRetries: 3,
			MarketTTL:  duration{5 * time.Minute},
			ScoreTTL:   duration{30 * time.Minute},
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		Universe: UniverseConfig{
			Strategies:        []string{"buckets", "yes-no"},
			MinLiquidity:      1000,
			MinVolume24h:      500,
			MaxDaysToEnd:      90,
			LivePreStart:      duration{15 * time.Minute},
			LivePostEnd:       duration{4 * time.Hour},
			MinBucketOutcomes: 3,
			CheckExhaustive:   true,
			WindowSize:        duration{time.Hour},
			WindowLookBack:    1,
			WindowLookForward: 1,
			PageSize:          100,
			MaxMarketsScanned: 2000,
			MaxBaskets:        50,
			MaxTokens:         400,
			MaxPerEvent:       3,
			ScoreHalfLifeDays: 14,
			ScoreMaxDays:      90,
			RefreshInterval:   duration{10 * time.Minute},
		},
		Signal: SignalConfig{
			MaxBaskets:  10,
			TopHolders:  15,
			MinTrades:   10,
			Weight:      0.15,
			Concurrency: 4,
			CacheTTL:    duration{30 * time.Minute},
		},
		Evaluator: EvaluatorConfig{
			SharesPerLeg:      10,
			FeeRate:           0,
			FixedCost:         0.05,
			SlippageMult:      1.02,
			DefaultTickSize:   0.01,
			MinNetEdge:        0.10,
			MinExecEdge:       0.02,
			ExecFilterEnabled: true,
			ExecEdgeFloor:     0,
			NegStreakLimit:    5,
			MuteCooldown:      duration{10 * time.Minute},
			AlertCooldown:     duration{5 * time.Minute},
		},
		Executor: ExecutorConfig{
			MaxLegs:                6,
			MaxDailyExecutions:     20,
			MaxDailyNotional:       500,
			MaxConsecutiveFailures: 3,
			MaxOpenOrders:          12,
			MaxAttempts:            2,
			AttemptDelay:           duration{2 * time.Second},
			PollInterval:           duration{time.Second},
			MaxPolls:               5,
			MinFillRatio:           1.0,
			StalenessCeiling:       duration{30 * time.Second},
			UnwindSlippage:         0.02,
			AltPositionCapMult:     2,
		},
		State: StateConfig{
			Path:     "data/state.json",
			LockPath: "data/state.lock",
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			Dir:           "data/metrics",
			FilePrefix:    "candidates",
			ArchivePrefix: "metrics",
		},
		AutoExec: false,
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validStrategies enumerates the accepted universe strategy names.
var validStrategies = map[string]bool{
	"buckets":    true,
	"yes-no":     true,
	"event-pair": true,
	"window":     true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet credentials are only needed when auto-execution is on.
	if c.AutoExec {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set when auto_exec is on")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}

	if c.Kalshi.Enabled {
		if c.Kalshi.ApiKey == "" {
			errs = append(errs, "kalshi: api_key is required when enabled")
		}
		if c.Kalshi.BaseURL == "" {
			errs = append(errs, "kalshi: base_url must not be empty")
		}
		if len(c.Kalshi.MarketMap) == 0 {
			errs = append(errs, "kalshi: market_map must not be empty when enabled")
		}
	}

	if c.Postgres.Enabled() {
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if len(c.Universe.Strategies) == 0 {
		errs = append(errs, "universe: at least one strategy must be enabled")
	}
	for _, s := range c.Universe.Strategies {
		if !validStrategies[s] {
			errs = append(errs, fmt.Sprintf("universe: unknown strategy %q (valid: buckets, yes-no, event-pair, window)", s))
		}
	}
	if c.Universe.enabled("window") && c.Universe.WindowSlugPrefix == "" {
		errs = append(errs, "universe: window_slug_prefix is required for the window strategy")
	}

	if c.Evaluator.SharesPerLeg <= 0 {
		errs = append(errs, "evaluator: shares_per_leg must be > 0")
	}
	if c.Evaluator.FeeRate < 0 || c.Evaluator.FeeRate >= 1 {
		errs = append(errs, "evaluator: fee_rate must be in [0, 1)")
	}
	if c.Evaluator.SlippageMult < 1 {
		errs = append(errs, "evaluator: slippage_mult must be >= 1")
	}

	if c.Executor.MinFillRatio <= 0 || c.Executor.MinFillRatio > 1 {
		errs = append(errs, "executor: min_fill_ratio must be in (0, 1]")
	}
	if c.AutoExec && c.Executor.MaxDailyNotional <= 0 {
		errs = append(errs, "executor: max_daily_notional must be > 0 when auto_exec is on")
	}

	if c.State.Path == "" {
		errs = append(errs, "state: path must not be empty")
	}
	if c.State.LockPath == "" {
		errs = append(errs, "state: lock_path must not be empty")
	}

	if c.Metrics.Enabled && c.Metrics.Dir == "" {
		errs = append(errs, "metrics: dir must not be empty when enabled")
	}
	if c.S3.Bucket != "" && c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty when a bucket is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (u UniverseConfig) enabled(name string) bool {
	for _, s := range u.Strategies {
		if s == name {
			return true
		}
	}
	return false
}
