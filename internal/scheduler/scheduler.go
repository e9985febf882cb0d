// Package scheduler runs the background jobs: market context refresh,
// analyzer weight recompute and the nightly backup.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/marketmind/marketmind/internal/config"
)

// jobTimeout bounds one background job run.
const jobTimeout = 10 * time.Minute

// ContextRefresher refreshes the cached market context.
type ContextRefresher interface {
	Refresh(ctx context.Context) error
}

// WeightRecomputer recalculates analyzer weights from trade outcomes.
type WeightRecomputer interface {
	Recompute(ctx context.Context) error
}

// BackupRunner creates, uploads and prunes backup archives.
type BackupRunner interface {
	Run(ctx context.Context) error
}

// Scheduler owns the cron runner and the registered jobs.
type Scheduler struct {
	cron     *cron.Cron
	cfg      config.SchedulerConfig
	contexts ContextRefresher
	weights  WeightRecomputer
	backup   BackupRunner
	log      zerolog.Logger
}

func New(
	cfg config.SchedulerConfig,
	contexts ContextRefresher,
	weights WeightRecomputer,
	backup BackupRunner,
	log zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		cfg:      cfg,
		contexts: contexts,
		weights:  weights,
		backup:   backup,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Register wires every configured job into the cron runner. A nil
// collaborator skips its job; an invalid cron spec is a hard error.
func (s *Scheduler) Register() error {
	if s.contexts != nil {
		if _, err := s.cron.AddFunc(s.cfg.ContextRefresh, s.runContextRefresh); err != nil {
			return fmt.Errorf("failed to register context refresh job: %w", err)
		}
	}
	if s.weights != nil {
		if _, err := s.cron.AddFunc(s.cfg.WeightRecompute, s.runWeightRecompute); err != nil {
			return fmt.Errorf("failed to register weight recompute job: %w", err)
		}
	}
	if s.backup != nil {
		if _, err := s.cron.AddFunc(s.cfg.Backup, s.runBackup); err != nil {
			return fmt.Errorf("failed to register backup job: %w", err)
		}
	}
	return nil
}

// Start begins running jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().
		Str("context_refresh", s.cfg.ContextRefresh).
		Str("weight_recompute", s.cfg.WeightRecompute).
		Str("backup", s.cfg.Backup).
		Msg("Scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) runContextRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.contexts.Refresh(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Market context refresh failed, serving previous snapshot")
		return
	}
	s.log.Debug().Msg("Market context refreshed")
}

func (s *Scheduler) runWeightRecompute() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.weights.Recompute(ctx); err != nil {
		s.log.Error().Err(err).Msg("Weight recompute failed")
		return
	}
	s.log.Info().Msg("Analyzer weights recomputed")
}

func (s *Scheduler) runBackup() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.backup.Run(ctx); err != nil {
		s.log.Error().Err(err).Msg("Backup job failed")
		return
	}
	s.log.Info().Msg("Backup job completed")
}
