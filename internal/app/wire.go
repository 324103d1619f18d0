package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/basketarb/internal/blob/s3"
	"github.com/alanyoungcy/basketarb/internal/books"
	"github.com/alanyoungcy/basketarb/internal/cache/redis"
	"github.com/alanyoungcy/basketarb/internal/config"
	"github.com/alanyoungcy/basketarb/internal/crypto"
	"github.com/alanyoungcy/basketarb/internal/evaluator"
	"github.com/alanyoungcy/basketarb/internal/executor"
	"github.com/alanyoungcy/basketarb/internal/metrics"
	"github.com/alanyoungcy/basketarb/internal/notify"
	"github.com/alanyoungcy/basketarb/internal/platform/kalshi"
	"github.com/alanyoungcy/basketarb/internal/platform/polymarket"
	"github.com/alanyoungcy/basketarb/internal/state"
	"github.com/alanyoungcy/basketarb/internal/store/postgres"
	"github.com/alanyoungcy/basketarb/internal/universe"
	"github.com/alanyoungcy/basketarb/internal/wallets"
)

// Dependencies bundles everything the run loops need. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Books     *books.Cache
	Feed      *polymarket.MarketFeed
	Builder   *universe.Builder
	Augmenter *wallets.Augmenter // nil when the wallet signal is disabled
	Evaluator *evaluator.Evaluator
	Executor  *executor.Engine // nil unless auto_exec is on

	History    *postgres.HistoryStore // nil without a database
	Metrics    *metrics.Sink          // nil when metrics are disabled
	Notifier   *notify.Notifier
	StateStore *state.Store
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Runtime state: lock first, then load the snapshot ---
	lock := state.NewLock(cfg.State.LockPath, logger)
	if err := lock.Acquire(); err != nil {
		return nil, nil, fmt.Errorf("wire: state lock: %w", err)
	}
	closers = append(closers, lock.Release)

	deps.StateStore = state.NewStore(cfg.State.Path, logger)
	st, err := deps.StateStore.Load(ctx)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: load runtime state: %w", err)
	}
	if st.Halted {
		logger.Warn("engine starts halted; reset the state file to resume execution",
			slog.String("reason", st.HaltReason),
		)
	}

	// --- Redis (optional; disables both caches when no addr is set) ---
	var marketCache universe.MarketCache
	var scoreCache wallets.ConditionCache
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		marketCache = redis.NewMarketCache(redisClient, cfg.Redis.MarketTTL.Duration)
		scoreCache = redis.NewScoreCache(redisClient, cfg.Redis.ScoreTTL.Duration)
	}

	// --- PostgreSQL history store (optional) ---
	if cfg.Postgres.Enabled() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.History = postgres.NewHistoryStore(pgClient.Pool())
	}

	// --- S3 archive target + metrics sink ---
	var uploader metrics.Uploader
	if cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		uploader = s3blob.NewWriter(s3Client)
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.NewSink(metrics.Config{
			Dir:           cfg.Metrics.Dir,
			FilePrefix:    cfg.Metrics.FilePrefix,
			ArchivePrefix: cfg.Metrics.ArchivePrefix,
		}, uploader, logger)
		closers = append(closers, func() { _ = deps.Metrics.Close() })
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Title, logger)

	// --- Market data and metadata clients ---
	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	data := polymarket.NewDataClient(cfg.Polymarket.DataHost)

	deps.Books = books.New(logger)
	deps.Feed = polymarket.NewMarketFeed(cfg.Polymarket.WsHost, logger)
	closers = append(closers, func() { _ = deps.Feed.Close() })

	deps.Builder = universe.NewBuilder(gamma, nil, nil, marketCache, universeConfig(cfg), logger)

	if cfg.Signal.Enabled {
		deps.Augmenter = wallets.NewAugmenter(data, data, scoreCache, signalConfig(cfg), logger)
	}

	var sink evaluator.Sink
	if deps.Metrics != nil {
		sink = deps.Metrics
	}
	deps.Evaluator = evaluator.New(deps.Books, sink, evaluatorConfig(cfg), logger)

	// --- Execution engine (only with auto-exec: needs signing credentials) ---
	if cfg.AutoExec {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
		}
		signer, err := crypto.NewSigner(keyHex, cfg.Polymarket.ChainID)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}

		clob := polymarket.NewClobClient(cfg.Polymarket.ClobHost, signer, nil)
		if err := clob.DeriveAPIKey(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: derive api key: %w", err)
		}

		var alt executor.AltBackend
		if cfg.Kalshi.Enabled {
			alt = kalshi.New(cfg.Kalshi.BaseURL, cfg.Kalshi.ApiKey)
		}

		deps.Executor = executor.New(clob, alt, deps.Books, deps.StateStore, deps.Notifier, &st, executorConfig(cfg), logger)
	}

	return deps, cleanup, nil
}

func universeConfig(cfg *config.Config) universe.Config {
	uc := universe.Config{
		Strategies:        cfg.Universe.Strategies,
		MinLiquidity:      cfg.Universe.MinLiquidity,
		MinVolume24h:      cfg.Universe.MinVolume24h,
		MaxDaysToEnd:      cfg.Universe.MaxDaysToEnd,
		IncludeTerms:      cfg.Universe.IncludeTerms,
		ExcludeTerms:      cfg.Universe.ExcludeTerms,
		LiveWindowEnabled: cfg.Universe.LiveWindowEnabled,
		LivePreStart:      cfg.Universe.LivePreStart.Duration,
		LivePostEnd:       cfg.Universe.LivePostEnd.Duration,
		LiveStrict:        cfg.Universe.LiveStrict,
		MinBucketOutcomes: cfg.Universe.MinBucketOutcomes,
		CheckExhaustive:   cfg.Universe.CheckExhaustive,
		WindowSlugPrefix:  cfg.Universe.WindowSlugPrefix,
		WindowSize:        cfg.Universe.WindowSize.Duration,
		WindowLookBack:    cfg.Universe.WindowLookBack,
		WindowLookForward: cfg.Universe.WindowLookForward,
		PageSize:          cfg.Universe.PageSize,
		MaxMarketsScanned: cfg.Universe.MaxMarketsScanned,
		MaxBaskets:        cfg.Universe.MaxBaskets,
		MaxTokens:         cfg.Universe.MaxTokens,
		MaxPerEvent:       cfg.Universe.MaxPerEvent,
		ScoreHalfLifeDays: cfg.Universe.ScoreHalfLifeDays,
		ScoreMaxDays:      cfg.Universe.ScoreMaxDays,
	}
	if cfg.Kalshi.Enabled {
		uc.AltMarketMap = cfg.Kalshi.MarketMap
	}
	return uc
}

func signalConfig(cfg *config.Config) wallets.Config {
	return wallets.Config{
		MaxBaskets:  cfg.Signal.MaxBaskets,
		TopHolders:  cfg.Signal.TopHolders,
		MinTrades:   cfg.Signal.MinTrades,
		Weight:      cfg.Signal.Weight,
		Concurrency: cfg.Signal.Concurrency,
		CacheTTL:    cfg.Signal.CacheTTL.Duration,
	}
}

func evaluatorConfig(cfg *config.Config) evaluator.Config {
	return evaluator.Config{
		SharesPerLeg:      cfg.Evaluator.SharesPerLeg,
		FeeRate:           cfg.Evaluator.FeeRate,
		FixedCost:         cfg.Evaluator.FixedCost,
		SlippageMult:      cfg.Evaluator.SlippageMult,
		DefaultTickSize:   cfg.Evaluator.DefaultTickSize,
		MinNetEdge:        cfg.Evaluator.MinNetEdge,
		MinExecEdge:       cfg.Evaluator.MinExecEdge,
		ExecFilterEnabled: cfg.Evaluator.ExecFilterEnabled,
		ExecEdgeFloor:     cfg.Evaluator.ExecEdgeFloor,
		NegStreakLimit:    cfg.Evaluator.NegStreakLimit,
		MuteCooldown:      cfg.Evaluator.MuteCooldown.Duration,
		AlertCooldown:     cfg.Evaluator.AlertCooldown.Duration,
	}
}

func executorConfig(cfg *config.Config) executor.Config {
	return executor.Config{
		MaxLegs:                cfg.Executor.MaxLegs,
		MaxDailyExecutions:     cfg.Executor.MaxDailyExecutions,
		MaxDailyNotional:       cfg.Executor.MaxDailyNotional,
		MaxConsecutiveFailures: cfg.Executor.MaxConsecutiveFailures,
		MaxOpenOrders:          cfg.Executor.MaxOpenOrders,
		MaxAttempts:            cfg.Executor.MaxAttempts,
		AttemptDelay:           cfg.Executor.AttemptDelay.Duration,
		PollInterval:           cfg.Executor.PollInterval.Duration,
		MaxPolls:               cfg.Executor.MaxPolls,
		MinFillRatio:           cfg.Executor.MinFillRatio,
		StalenessCeiling:       cfg.Executor.StalenessCeiling.Duration,
		AllowSynthetic:         cfg.Executor.AllowSynthetic,
		UnwindSlippage:         cfg.Executor.UnwindSlippage,
		DefaultTickSize:        cfg.Evaluator.DefaultTickSize,
		AltPositionCapMult:     cfg.Executor.AltPositionCapMult,
	}
}
