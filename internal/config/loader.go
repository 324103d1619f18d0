package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BASKETARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env if present, silently ignored when missing.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides reads well-known BASKETARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Wallet.PrivateKey, "BASKETARB_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "BASKETARB_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "BASKETARB_WALLET_KEY_PASSWORD")

	setStr(&cfg.Polymarket.ClobHost, "BASKETARB_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "BASKETARB_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.DataHost, "BASKETARB_POLYMARKET_DATA_HOST")
	setStr(&cfg.Polymarket.WsHost, "BASKETARB_POLYMARKET_WS_HOST")
	setInt(&cfg.Polymarket.ChainID, "BASKETARB_POLYMARKET_CHAIN_ID")

	setBool(&cfg.Kalshi.Enabled, "BASKETARB_KALSHI_ENABLED")
	setStr(&cfg.Kalshi.BaseURL, "BASKETARB_KALSHI_BASE_URL")
	setStr(&cfg.Kalshi.ApiKey, "BASKETARB_KALSHI_API_KEY")

	setStr(&cfg.Postgres.DSN, "BASKETARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BASKETARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BASKETARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BASKETARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BASKETARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BASKETARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BASKETARB_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "BASKETARB_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "BASKETARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BASKETARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BASKETARB_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "BASKETARB_REDIS_TLS_ENABLED")

	setStr(&cfg.S3.Endpoint, "BASKETARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BASKETARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "BASKETARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BASKETARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BASKETARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BASKETARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BASKETARB_S3_FORCE_PATH_STYLE")

	setStringSlice(&cfg.Universe.Strategies, "BASKETARB_UNIVERSE_STRATEGIES")
	setFloat64(&cfg.Universe.MinLiquidity, "BASKETARB_UNIVERSE_MIN_LIQUIDITY")
	setFloat64(&cfg.Universe.MinVolume24h, "BASKETARB_UNIVERSE_MIN_VOLUME_24H")
	setFloat64(&cfg.Universe.MaxDaysToEnd, "BASKETARB_UNIVERSE_MAX_DAYS_TO_END")
	setInt(&cfg.Universe.MaxTokens, "BASKETARB_UNIVERSE_MAX_TOKENS")
	setInt(&cfg.Universe.MaxPerEvent, "BASKETARB_UNIVERSE_MAX_PER_EVENT")
	setStr(&cfg.Universe.WindowSlugPrefix, "BASKETARB_UNIVERSE_WINDOW_SLUG_PREFIX")
	setDuration(&cfg.Universe.RefreshInterval, "BASKETARB_UNIVERSE_REFRESH_INTERVAL")

	setBool(&cfg.Signal.Enabled, "BASKETARB_SIGNAL_ENABLED")
	setInt(&cfg.Signal.MaxBaskets, "BASKETARB_SIGNAL_MAX_BASKETS")
	setInt(&cfg.Signal.TopHolders, "BASKETARB_SIGNAL_TOP_HOLDERS")
	setFloat64(&cfg.Signal.Weight, "BASKETARB_SIGNAL_WEIGHT")
	setInt(&cfg.Signal.Concurrency, "BASKETARB_SIGNAL_CONCURRENCY")

	setFloat64(&cfg.Evaluator.SharesPerLeg, "BASKETARB_EVALUATOR_SHARES_PER_LEG")
	setFloat64(&cfg.Evaluator.FeeRate, "BASKETARB_EVALUATOR_FEE_RATE")
	setFloat64(&cfg.Evaluator.FixedCost, "BASKETARB_EVALUATOR_FIXED_COST")
	setFloat64(&cfg.Evaluator.SlippageMult, "BASKETARB_EVALUATOR_SLIPPAGE_MULT")
	setFloat64(&cfg.Evaluator.MinNetEdge, "BASKETARB_EVALUATOR_MIN_NET_EDGE")
	setFloat64(&cfg.Evaluator.MinExecEdge, "BASKETARB_EVALUATOR_MIN_EXEC_EDGE")
	setBool(&cfg.Evaluator.ExecFilterEnabled, "BASKETARB_EVALUATOR_EXEC_FILTER_ENABLED")
	setDuration(&cfg.Evaluator.MuteCooldown, "BASKETARB_EVALUATOR_MUTE_COOLDOWN")
	setDuration(&cfg.Evaluator.AlertCooldown, "BASKETARB_EVALUATOR_ALERT_COOLDOWN")

	setInt(&cfg.Executor.MaxDailyExecutions, "BASKETARB_EXECUTOR_MAX_DAILY_EXECUTIONS")
	setFloat64(&cfg.Executor.MaxDailyNotional, "BASKETARB_EXECUTOR_MAX_DAILY_NOTIONAL")
	setInt(&cfg.Executor.MaxConsecutiveFailures, "BASKETARB_EXECUTOR_MAX_CONSECUTIVE_FAILURES")
	setFloat64(&cfg.Executor.MinFillRatio, "BASKETARB_EXECUTOR_MIN_FILL_RATIO")
	setFloat64(&cfg.Executor.UnwindSlippage, "BASKETARB_EXECUTOR_UNWIND_SLIPPAGE")

	setStr(&cfg.State.Path, "BASKETARB_STATE_PATH")
	setStr(&cfg.State.LockPath, "BASKETARB_STATE_LOCK_PATH")

	setBool(&cfg.Metrics.Enabled, "BASKETARB_METRICS_ENABLED")
	setStr(&cfg.Metrics.Dir, "BASKETARB_METRICS_DIR")

	setStr(&cfg.Notify.TelegramToken, "BASKETARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BASKETARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BASKETARB_NOTIFY_DISCORD_WEBHOOK_URL")

	setBool(&cfg.AutoExec, "BASKETARB_AUTO_EXEC")
	setStr(&cfg.LogLevel, "BASKETARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
