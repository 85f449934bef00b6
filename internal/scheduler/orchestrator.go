package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fortuna/concordia/internal/importjob"
	"github.com/fortuna/concordia/internal/ingest"
	"github.com/fortuna/concordia/internal/store"
)

// RunLookup answers whether a feed was already imported successfully.
type RunLookup interface {
	GetByBuildID(ctx context.Context, buildID string) (*store.ImportRun, error)
}

// Enqueuer accepts feed files for import.
type Enqueuer interface {
	Enqueue(ctx context.Context, providerID, feedPath string) (*importjob.Job, error)
}

// Orchestrator scans the feed directory on a cron schedule and enqueues
// an import job for every provider feed that has no completed run yet.
type Orchestrator struct {
	feedDir  string
	schedule string
	registry *ingest.Registry
	service  Enqueuer
	runs     RunLookup
	cron     *cron.Cron
	logger   *zap.Logger
}

// NewOrchestrator creates a new scheduler orchestrator
func NewOrchestrator(feedDir, schedule string, registry *ingest.Registry, service Enqueuer, runs RunLookup, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		feedDir:  feedDir,
		schedule: schedule,
		registry: registry,
		service:  service,
		runs:     runs,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start registers the scan job and starts the cron loop.
func (o *Orchestrator) Start() error {
	_, err := o.cron.AddFunc(o.schedule, func() {
		if err := o.ScanAndEnqueue(context.Background()); err != nil {
			o.logger.Error("scheduled feed scan failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("registering feed scan schedule %q: %w", o.schedule, err)
	}

	o.cron.Start()
	o.logger.Info("scheduler started",
		zap.String("schedule", o.schedule),
		zap.String("feed_dir", o.feedDir),
		zap.Strings("providers", o.registry.IDs()))
	return nil
}

// Stop halts the cron loop, waiting for a running scan to finish.
func (o *Orchestrator) Stop() {
	ctx := o.cron.Stop()
	<-ctx.Done()
	o.logger.Info("scheduler stopped")
}

// ScanAndEnqueue walks the feed directory once and enqueues an import
// job for every feed file without a finished run. Feeds that already
// completed are skipped; failed runs are retried.
func (o *Orchestrator) ScanAndEnqueue(ctx context.Context) error {
	enqueued := 0

	for _, providerID := range o.registry.IDs() {
		feeds, err := ingest.ListFeedFiles(o.feedDir, providerID)
		if err != nil {
			return fmt.Errorf("scanning feeds for %s: %w", providerID, err)
		}

		for _, feedPath := range feeds {
			buildID := importjob.BuildID(providerID, feedPath)

			run, err := o.runs.GetByBuildID(ctx, buildID)
			if err != nil {
				return fmt.Errorf("checking run %s: %w", buildID, err)
			}
			if run != nil && run.FinishedAt.Valid && !run.LastError.Valid {
				continue
			}

			job, err := o.service.Enqueue(ctx, providerID, feedPath)
			if err != nil {
				o.logger.Warn("failed to enqueue feed",
					zap.String("provider_id", providerID),
					zap.String("feed_path", feedPath),
					zap.Error(err))
				continue
			}

			enqueued++
			o.logger.Info("feed queued for import",
				zap.String("provider_id", providerID),
				zap.String("feed_path", feedPath),
				zap.String("job_id", job.JobID))
		}
	}

	if enqueued > 0 {
		o.logger.Info("feed scan complete", zap.Int("enqueued", enqueued))
	}
	return nil
}
