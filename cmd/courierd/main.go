// Command courierd runs the courier worker engine: it connects Redis
// (queues and gate state) and PostgreSQL (quota ledger, status, dead
// letters), registers the five task bodies, and serves until a
// shutdown signal arrives.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/channelport/courier"
	"github.com/channelport/courier/engine"
	"github.com/channelport/courier/hook"
	"github.com/channelport/courier/ledger"
	"github.com/channelport/courier/middleware"
	"github.com/channelport/courier/observe"
	"github.com/channelport/courier/pipeline"
	"github.com/channelport/courier/queue"
	queueredis "github.com/channelport/courier/queue/redis"
	"github.com/channelport/courier/remote"
	"github.com/channelport/courier/store/postgres"
	gateredis "github.com/channelport/courier/store/redis"
	"github.com/channelport/courier/task"
)

type config struct {
	PostgresDSN   string `env:"POSTGRES_DSN,notEmpty"`
	RedisAddr     string `env:"REDIS_ADDR,notEmpty"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	SourcingAPIURL  string `env:"SOURCING_API_URL,notEmpty"`
	ImageHostURL    string `env:"IMAGE_HOST_URL,notEmpty"`
	MarketplaceURLs map[string]string `env:"MARKETPLACE_URLS,notEmpty"`

	OutboundRPS       float64       `env:"OUTBOUND_RPS" envDefault:"10"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	GateSweepInterval time.Duration `env:"GATE_SWEEP_INTERVAL" envDefault:"5m"`
	GateEntryExpiry   time.Duration `env:"GATE_ENTRY_EXPIRY" envDefault:"1h"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		logger.Error("config parse failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("courierd exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	// PostgreSQL: ledger, status, dead letters.
	pg, err := postgres.New(ctx, cfg.PostgresDSN, postgres.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = pg.Close() }()
	if err := pg.Migrate(ctx); err != nil {
		return err
	}

	// Redis: work queues and shared gate state.
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	var q queue.Queue = queueredis.New(rdb, queueredis.WithLogger(logger))
	gateStore := gateredis.New(rdb, gateredis.WithLogger(logger))

	hooks := hook.NewRegistry(logger)
	hooks.Register(observe.NewMetricsHook())

	led := ledger.New(pg,
		ledger.WithHooks(hooks),
		ledger.WithLogger(logger),
	)

	eng := engine.New(q, gateStore, pg,
		engine.WithLogger(logger),
		engine.WithHooks(hooks),
		engine.WithDeadLetterStore(pg),
		engine.WithConfig(courier.Config{
			ShutdownTimeout: cfg.ShutdownTimeout,
			SweepInterval:   cfg.GateSweepInterval,
			EntryExpiry:     cfg.GateEntryExpiry,
		}),
		engine.WithMiddleware(
			middleware.Recover(logger),
			middleware.Logging(logger),
			middleware.Metrics(),
		),
	)

	outbound := rate.Limit(cfg.OutboundRPS)
	sourcingClient := remote.Limit(remote.NewHTTPClient(cfg.SourcingAPIURL, remote.WithHTTPLogger(logger)), outbound, 1)
	imageClient := remote.Limit(remote.NewHTTPClient(cfg.ImageHostURL, remote.WithHTTPLogger(logger)), outbound, 5)

	marketClients := make(map[string]remote.Client, len(cfg.MarketplaceURLs))
	for name, url := range cfg.MarketplaceURLs {
		marketClients[name] = remote.Limit(remote.NewHTTPClient(url, remote.WithHTTPLogger(logger)), outbound, 1)
	}

	eng.Register(task.KindSourcing, pipeline.Sourcing(led, sourcingClient))
	eng.Register(task.KindRegister, pipeline.Register(led, marketClients))
	eng.Register(task.KindPriceChange, pipeline.PriceChange(marketClients))
	eng.Register(task.KindRemoval, pipeline.Removal(marketClients))
	eng.Register(task.KindImageFetch, pipeline.ImageFetch(imageClient))

	if err := eng.Start(ctx); err != nil {
		return err
	}
	logger.Info("courierd running")

	<-ctx.Done()
	logger.Info("shutdown signal received, draining")

	return eng.Stop(context.Background())
}
