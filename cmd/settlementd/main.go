// settlementd is the contest settlement and synchronization daemon. It keeps
// contest and game-score state fresh across the cache tiers, computes
// winning boxes and pick'em standings, and serves the read boundary over
// HTTP and WebSocket.
package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/mykcryptodev/football-onchain/pkg/cache"
	"github.com/mykcryptodev/football-onchain/pkg/config"
	"github.com/mykcryptodev/football-onchain/pkg/contracts"
	"github.com/mykcryptodev/football-onchain/pkg/settlement"
	"github.com/mykcryptodev/football-onchain/pkg/settlement/metrics"
	"github.com/mykcryptodev/football-onchain/pkg/sportsfeed"
	"github.com/mykcryptodev/football-onchain/pkg/stream"
)

var (
	httpAddr = flag.String("http", "", "HTTP listen address (overrides HTTP_ADDR)")
	rpcURL   = flag.String("rpc", "", "chain RPC endpoint (overrides CHAIN_RPC_URL)")
	contract = flag.String("contract", "", "grid contract address (overrides BOXES_CONTRACT)")
	cacheDSN = flag.String("cache-dsn", "", "shared cache Postgres DSN (overrides CACHE_DATABASE_URL)")
	pretty   = flag.Bool("pretty", false, "human-readable log output")
)

const (
	sweepEvery = 10 * time.Minute
	warmEvery  = 5 * time.Minute
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	applyFlags(&cfg)

	logger := newLogger(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.Default()

	store := newStore(ctx, cfg, logger)
	layered := cache.NewLayered(store, logger, m)

	reader, err := contracts.Dial(ctx, cfg.ChainRPCURL, cfg.BoxesContract, cfg.ChainID,
		contracts.WithCurrencyDecimals(cfg.CurrencyDecimals))
	if err != nil {
		logger.Fatal().Err(err).Msg("chain reader init failed")
	}

	var feedOpts []sportsfeed.ClientOption
	if cfg.SportsAPIURL != "" {
		feedOpts = append(feedOpts, sportsfeed.WithBaseURL(cfg.SportsAPIURL))
	}
	feed := sportsfeed.NewClient(feedOpts...)

	orch := settlement.New(reader, feed, layered, logger, m)
	hub := stream.NewHub(logger, m.StreamClients)
	orch.OnScoreUpdate(hub.BroadcastScore)
	orch.OnSettlement(hub.BroadcastSettlement)

	go hub.Run(ctx)
	go orch.Run(ctx)

	sched := startJanitor(ctx, store, orch, logger, m)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: newRouter(&server{orch: orch, hub: hub, m: m, log: logger, chainID: cfg.ChainID}),
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown incomplete")
	}
	if sched != nil {
		if err := sched.Shutdown(); err != nil {
			logger.Warn().Err(err).Msg("janitor shutdown incomplete")
		}
	}
	if pg, ok := store.(*cache.PGStore); ok {
		pg.Close()
	}
	logger.Info().Msg("bye")
}

// applyFlags lets explicitly-set flags win over environment values.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http":
			cfg.HTTPAddr = *httpAddr
		case "rpc":
			cfg.ChainRPCURL = *rpcURL
		case "contract":
			cfg.BoxesContract = *contract
		case "cache-dsn":
			cfg.CacheDatabaseURL = *cacheDSN
		case "pretty":
			cfg.LogPretty = *pretty
		}
	})
}

func newLogger(cfg config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil {
		level = parsed
	}

	var output io.Writer = os.Stdout
	if cfg.LogPretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	zerolog.SetGlobalLevel(level)
	return zerolog.New(output).With().Timestamp().Logger()
}

// newStore picks the shared cache tier: Postgres when configured, the
// in-process store otherwise. A failed Postgres connection degrades to a
// no-op store; the engine recomputes from source on every read.
func newStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) cache.Store {
	if cfg.CacheDatabaseURL == "" {
		logger.Info().Msg("no cache database configured, using in-process store")
		return cache.NewMemoryStore()
	}

	pg, err := cache.NewPGStore(ctx, cfg.CacheDatabaseURL)
	if err != nil {
		logger.Warn().Err(err).Msg("cache database unavailable, degrading to no-op store")
		return cache.NopStore{}
	}
	logger.Info().Msg("cache database connected")
	return pg
}

// startJanitor schedules the periodic expired-key sweep and contest-list
// warm. Returns nil when the scheduler cannot start; both jobs are
// best-effort.
func startJanitor(ctx context.Context, store cache.Store, orch *settlement.Orchestrator, logger zerolog.Logger, m *metrics.EngineMetrics) gocron.Scheduler {
	sched, err := gocron.NewScheduler()
	if err != nil {
		logger.Warn().Err(err).Msg("janitor scheduler init failed")
		return nil
	}

	_, err = sched.NewJob(
		gocron.DurationJob(sweepEvery),
		gocron.NewTask(func() {
			switch s := store.(type) {
			case *cache.MemoryStore:
				if n := s.Sweep(); n > 0 {
					logger.Debug().Int("expired", n).Msg("swept in-process cache")
				}
			case *cache.PGStore:
				sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				defer cancel()
				n, err := s.Sweep(sweepCtx)
				if err != nil {
					logger.Warn().Err(err).Msg("cache sweep failed")
					return
				}
				if n > 0 {
					logger.Debug().Int64("expired", n).Msg("swept cache database")
				}
			}
			m.CacheSweeps.Inc()
		}),
	)
	if err != nil {
		logger.Warn().Err(err).Msg("sweep job not scheduled")
	}

	_, err = sched.NewJob(
		gocron.DurationJob(warmEvery),
		gocron.NewTask(func() {
			warmCtx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			if _, err := orch.Contests(warmCtx); err != nil {
				logger.Warn().Err(err).Msg("contest warm failed")
			}
		}),
	)
	if err != nil {
		logger.Warn().Err(err).Msg("warm job not scheduled")
	}

	sched.Start()
	return sched
}
