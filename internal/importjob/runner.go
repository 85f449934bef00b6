package importjob

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fortuna/concordia/internal/ingest"
	"github.com/fortuna/concordia/internal/matching"
	"github.com/fortuna/concordia/internal/metrics"
	"github.com/fortuna/concordia/internal/pipeline"
	"github.com/fortuna/concordia/internal/store"
)

// RunPublisher receives finished run logs for downstream consumers.
type RunPublisher interface {
	PublishRunSummary(ctx context.Context, run *store.ImportRun) error
}

// RunCacheWriter stores the latest run log for cheap dashboard reads.
type RunCacheWriter interface {
	SetLatestRun(ctx context.Context, run *store.ImportRun) error
}

// Runner executes one import job end to end: read the feed file, build
// a fresh matcher cache, run the pipeline, publish the results.
type Runner struct {
	registry  *ingest.Registry
	aliases   matching.AliasStore
	teams     matching.TeamStore
	games     pipeline.GameStore
	quarant   pipeline.QuarantineStore
	runs      pipeline.RunStore
	opts      matching.Options
	chunkSize int
	metrics   *metrics.Metrics

	publisher RunPublisher
	gamePub   pipeline.GamePublisher
	runCache  RunCacheWriter

	logger *zap.Logger
}

// NewRunner constructs a Runner. The publisher, game publisher, and run
// cache are optional.
func NewRunner(registry *ingest.Registry, aliases matching.AliasStore, teams matching.TeamStore, games pipeline.GameStore, quarant pipeline.QuarantineStore, runs pipeline.RunStore, opts matching.Options, chunkSize int, m *metrics.Metrics, logger *zap.Logger) *Runner {
	return &Runner{
		registry:  registry,
		aliases:   aliases,
		teams:     teams,
		games:     games,
		quarant:   quarant,
		runs:      runs,
		opts:      opts,
		chunkSize: chunkSize,
		metrics:   m,
		logger:    logger,
	}
}

// SetPublishers attaches the optional downstream surfaces.
func (r *Runner) SetPublishers(runPub RunPublisher, gamePub pipeline.GamePublisher, runCache RunCacheWriter) {
	r.publisher = runPub
	r.gamePub = gamePub
	r.runCache = runCache
}

// BuildID derives the idempotency key for a feed file. Re-importing the
// same file upserts the same run log instead of growing a new one.
func BuildID(providerID, feedPath string) string {
	return fmt.Sprintf("%s:%s", providerID, filepath.Base(feedPath))
}

// Run executes the job and returns its run log.
func (r *Runner) Run(ctx context.Context, job *Job, reporter pipeline.Reporter) (*store.ImportRun, error) {
	provider, err := r.registry.Get(job.ProviderID)
	if err != nil {
		return nil, err
	}

	records, err := ingest.ReadFeedFile(job.FeedPath)
	if err != nil {
		return nil, err
	}

	// A fresh cache per run: one bulk read, no mid-run refresh.
	cache, err := matching.NewRunCache(ctx, provider.ID, provider.State, r.aliases, r.teams, r.logger)
	if err != nil {
		return nil, err
	}

	matcher, err := matching.New(provider.Strategy, provider.ID, r.opts, cache, r.aliases, r.teams, r.logger)
	if err != nil {
		return nil, err
	}

	p, err := pipeline.New(provider, matcher, r.games, r.quarant, r.runs, r.metrics, reporter, r.chunkSize, r.logger)
	if err != nil {
		return nil, err
	}
	if r.gamePub != nil {
		p.SetPublisher(r.gamePub)
	}

	run, err := p.Run(ctx, records, BuildID(provider.ID, job.FeedPath))
	if run != nil {
		r.afterRun(ctx, run)
	}
	return run, err
}

// afterRun fans the finished run out to the optional surfaces. Failures
// here never fail the job; the run log in Postgres is the source of truth.
func (r *Runner) afterRun(ctx context.Context, run *store.ImportRun) {
	if r.publisher != nil {
		if err := r.publisher.PublishRunSummary(ctx, run); err != nil {
			r.logger.Warn("publishing run summary", zap.Error(err))
		}
	}
	if r.runCache != nil {
		if err := r.runCache.SetLatestRun(ctx, run); err != nil {
			r.logger.Warn("caching latest run", zap.Error(err))
		}
	}
}
