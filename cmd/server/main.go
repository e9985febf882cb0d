// Package main is the entry point for the MarketMind recommendation server.
// It wires the data provider, the three analyzers, the market context
// cache, the recommendation engine and the performance tracker behind an
// HTTP API, with cron jobs for context refresh, weight recompute and
// nightly backups.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketmind/marketmind/internal/agent"
	"github.com/marketmind/marketmind/internal/clients/yahoo"
	"github.com/marketmind/marketmind/internal/config"
	"github.com/marketmind/marketmind/internal/database"
	"github.com/marketmind/marketmind/internal/domain"
	"github.com/marketmind/marketmind/internal/modules/market_context"
	"github.com/marketmind/marketmind/internal/modules/no_trade"
	"github.com/marketmind/marketmind/internal/modules/performance"
	"github.com/marketmind/marketmind/internal/modules/recommendation"
	"github.com/marketmind/marketmind/internal/modules/reversal"
	"github.com/marketmind/marketmind/internal/modules/scoring/scorers"
	"github.com/marketmind/marketmind/internal/reliability"
	"github.com/marketmind/marketmind/internal/scheduler"
	"github.com/marketmind/marketmind/internal/server"
	"github.com/marketmind/marketmind/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet; this is the one unstructured exit.
		panic(err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Str("data_dir", cfg.DataDir).Int("port", cfg.Port).Msg("Starting MarketMind")

	performanceDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "performance.db"),
		Profile: database.ProfileStandard,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open performance database")
	}
	defer performanceDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	policy := domain.NewDefaultPolicy()
	provider := yahoo.NewClient(log)

	snapshotStore, err := market_context.NewSnapshotStore(cacheDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize context snapshot store")
	}
	contexts := market_context.New(provider, snapshotStore, policy, cfg.Engine.ContextTTL, log)

	tradeStore, err := performance.NewStore(performanceDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize trade store")
	}
	tracker, err := performance.NewTracker(tradeStore, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize performance tracker")
	}

	engine := recommendation.New(cfg.Engine, policy, log).WithOverrideProvider(tracker)
	noTradeDetector := no_trade.New(
		cfg.Engine.VIXSpikeThreshold,
		cfg.Engine.IndexDropThreshold,
		cfg.Engine.EnableNoTrade,
		policy, log)
	reversalDetector := reversal.New(log)

	sources := []domain.SignalSource{
		scorers.NewSentimentScorer(provider, cfg.Engine.NeutralDamping, log),
		scorers.NewTechnicalScorer(provider, cfg.Engine.NeutralDamping, log),
		scorers.NewFundamentalScorer(provider, cfg.Engine.NeutralDamping, log),
	}

	agentService := agent.New(
		provider, sources, contexts,
		noTradeDetector, reversalDetector, engine,
		policy, log)

	srv := server.New(server.Config{
		Log:      log,
		Port:     cfg.Port,
		DevMode:  cfg.DevMode,
		Agent:    agentService,
		Contexts: contexts,
		NoTrade:  noTradeDetector,
		Tracker:  tracker,
	})

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = buildScheduler(cfg, contexts, tracker, performanceDB, cacheDB, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to set up scheduler")
		}
		sched.Start()
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if sched != nil {
		sched.Stop()
	}

	log.Info().Msg("Shutdown complete")
}

// buildScheduler wires the cron jobs. The backup job only runs when
// backup storage is configured; the other two always run.
func buildScheduler(
	cfg *config.Config,
	contexts *market_context.Analyzer,
	tracker *performance.Tracker,
	performanceDB, cacheDB *database.DB,
	log zerolog.Logger,
) (*scheduler.Scheduler, error) {
	refresh := scheduler.RefresherFunc(func(ctx context.Context) error {
		_, err := contexts.Refresh(ctx)
		return err
	})
	recompute := scheduler.RecomputerFunc(func(ctx context.Context) error {
		_, err := tracker.Recompute(ctx)
		return err
	})

	var backup scheduler.BackupRunner
	if cfg.Backup.Enabled {
		storage, err := reliability.NewS3Client(context.Background(), cfg.Backup)
		if err != nil {
			return nil, err
		}
		maintenance := reliability.NewMaintenance(map[string]*database.DB{
			"performance": performanceDB,
			"cache":       cacheDB,
		}, log)
		backupService := reliability.NewBackupService(storage, cfg.DataDir, cfg.Backup.MaxBackups, log)
		backup = reliability.NewBackupJob(maintenance, backupService)
	}

	sched := scheduler.New(cfg.Scheduler, refresh, recompute, backup, log)
	if err := sched.Register(); err != nil {
		return nil, err
	}
	return sched, nil
}
