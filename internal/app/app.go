// Package app provides the main application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// different operational modes:
//
//   - Poller mode: MTProto ingestion of every subscribed channel
//   - Scheduler mode: periodic topic clustering and ranking
//   - All mode: both of the above in one process
//
// The health and metrics server runs alongside every mode.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lueurxax/feedpulse/internal/core/ports"
	"github.com/lueurxax/feedpulse/internal/ingest/poller"
	"github.com/lueurxax/feedpulse/internal/ingest/telegram"
	"github.com/lueurxax/feedpulse/internal/objectstore"
	"github.com/lueurxax/feedpulse/internal/platform/config"
	"github.com/lueurxax/feedpulse/internal/platform/observability"
	"github.com/lueurxax/feedpulse/internal/process/ranking"
	"github.com/lueurxax/feedpulse/internal/process/scheduler"
	"github.com/lueurxax/feedpulse/internal/process/topics"
	db "github.com/lueurxax/feedpulse/internal/storage"
	"github.com/lueurxax/feedpulse/internal/vault"
)

const (
	msgPollerStopped    = "poller stopped"
	msgSchedulerStopped = "scheduler stopped"
)

// App holds the application dependencies and provides methods to run different modes.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger
}

// New creates a new App instance with the given dependencies.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
	}
}

// StartHealthServer starts the health check and metrics server.
func (a *App) StartHealthServer(ctx context.Context) error {
	srv := observability.NewServer(a.database, a.cfg.HealthPort, a.logger)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("health server start: %w", err)
	}

	return nil
}

// RunPoller runs the ingestion poller until ctx is canceled.
func (a *App) RunPoller(ctx context.Context) error {
	a.logger.Info().Msg("Starting poller mode")

	p, err := a.newPoller()
	if err != nil {
		return err
	}

	if err := p.Run(ctx, a.cfg.PollInterval); err != nil {
		if errors.Is(err, context.Canceled) {
			a.logger.Info().Msg(msgPollerStopped)

			return nil
		}

		return fmt.Errorf("poller run: %w", err)
	}

	return nil
}

// RunScheduler runs the clustering and ranking jobs until ctx is canceled.
func (a *App) RunScheduler(ctx context.Context) error {
	a.logger.Info().Msg("Starting scheduler mode")

	s, err := a.newScheduler()
	if err != nil {
		return err
	}

	if err := s.Run(ctx); err != nil {
		return fmt.Errorf("scheduler run: %w", err)
	}

	a.logger.Info().Msg(msgSchedulerStopped)

	return nil
}

// RunAll runs the poller and the scheduler side by side. Either one failing
// does not stop the other; the first error is returned after both exit.
func (a *App) RunAll(ctx context.Context) error {
	var g errgroup.Group

	g.Go(func() error { return a.RunPoller(ctx) })
	g.Go(func() error { return a.RunScheduler(ctx) })

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run all: %w", err)
	}

	return nil
}

func (a *App) newPoller() (*poller.Poller, error) {
	keys, err := vault.ParseKeyring(a.cfg.VaultKeys)
	if err != nil {
		return nil, fmt.Errorf("vault keys: %w", err)
	}

	v, err := vault.New(keys, a.cfg.VaultActiveVersion)
	if err != nil {
		return nil, fmt.Errorf("vault init: %w", err)
	}

	source := telegram.New(telegram.Config{
		APIID:          a.cfg.TGAPIID,
		APIHash:        a.cfg.TGAPIHash,
		RateLimitRPS:   a.cfg.RateLimitRPS,
		MaxMediaSize:   a.cfg.MediaMaxSizeBytes,
		ConnectTimeout: a.cfg.AccountConnectTimeout,
	}, a.logger)

	var storage ports.ObjectStorage

	if a.cfg.MediaEnabled() {
		storage = objectstore.New(objectstore.Config{
			BaseURL:   a.cfg.SupabaseURL,
			Key:       a.cfg.SupabaseKey,
			Bucket:    a.cfg.SupabaseBucket,
			Timeout:   a.cfg.StorageTimeout,
			UploadRPS: a.cfg.StorageUploadRPS,
		})
	} else {
		a.logger.Warn().Msg("object storage not configured, media will not be uploaded")
	}

	return poller.New(poller.Config{
		FetchLimit:  a.cfg.ReaderFetchLimit,
		Workers:     a.cfg.PollerWorkers,
		MaxBackoff:  a.cfg.FloodWaitMaxBackoff,
		MaxAttempts: a.cfg.FloodWaitMaxAttempts,
	}, a.database, source, v, storage, a.logger), nil
}

func (a *App) newScheduler() (*scheduler.Scheduler, error) {
	windows, err := a.cfg.Windows()
	if err != nil {
		return nil, err
	}

	var clusterLock, rankingLock int64

	if a.cfg.JobLockingEnabled {
		clusterLock, rankingLock = db.LockIDClustering, db.LockIDRanking
	}

	clusterer := topics.New(topics.Config{
		Threshold: a.cfg.SimilarityThreshold,
		Lookback:  a.cfg.ClusterLookback,
		LockID:    clusterLock,
	}, a.database, a.logger)

	engine := ranking.New(windows, a.database, rankingLock, a.logger)

	return scheduler.New(a.cfg.JobTimeout, a.logger,
		scheduler.ClusteringJob(clusterer, a.cfg.TopicInterval),
		scheduler.RankingJob(engine, a.cfg.RankingInterval),
	), nil
}
