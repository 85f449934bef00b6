package importjob

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fortuna/concordia/internal/ingest"
)

// Broadcaster pushes job progress to connected dashboard clients.
type Broadcaster interface {
	BroadcastJobProgress(jobID, providerID, stage string, current, total int)
}

// Service coordinates job persistence, execution, and status reporting.
type Service struct {
	repo     *Repository
	runner   *Runner
	registry *ingest.Registry

	broadcaster  Broadcaster
	historyLimit int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *zap.Logger
}

// NewService constructs a Service. Call Start to launch the worker.
func NewService(repo *Repository, runner *Runner, registry *ingest.Registry, logger *zap.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		repo:         repo,
		runner:       runner,
		registry:     registry,
		historyLimit: 10,
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger,
	}
}

// SetBroadcaster attaches an optional progress broadcaster.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Start launches the background worker loop.
func (s *Service) Start() {
	if err := s.repo.ResetStuckJobs(s.ctx); err != nil {
		s.logger.Error("failed to reset jobs", zap.Error(err))
	}

	s.wg.Add(1)
	go s.worker()
}

// Shutdown stops the worker and waits for completion.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Enqueue creates a new job for one provider feed file.
func (s *Service) Enqueue(ctx context.Context, providerID, feedPath string) (*Job, error) {
	if _, err := s.registry.Get(providerID); err != nil {
		return nil, err
	}
	if feedPath == "" {
		return nil, fmt.Errorf("import job requires a feed path")
	}

	job := &Job{
		JobID:         uuid.New().String(),
		ProviderID:    providerID,
		FeedPath:      feedPath,
		Status:        JobStatusQueued,
		StatusMessage: sql.NullString{String: "Queued", Valid: true},
	}

	stored, err := s.repo.CreateJob(ctx, job)
	if err != nil {
		return nil, err
	}

	_ = s.repo.AppendEvent(ctx, stored.JobID, "queued", "Job queued")

	return stored, nil
}

// GetStatus returns the currently running job plus recent history.
func (s *Service) GetStatus(ctx context.Context) (*StatusSummary, error) {
	active, err := s.repo.GetActiveJob(ctx)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListRecentJobs(ctx, s.historyLimit)
	if err != nil {
		return nil, err
	}

	return &StatusSummary{
		ActiveJob: active,
		History:   history,
	}, nil
}

func (s *Service) worker() {
	defer s.wg.Done()

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
			job, err := s.repo.MarkNextJobRunning(s.ctx)
			if err != nil {
				s.logger.Error("claim job error", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			if job == nil {
				select {
				case <-s.ctx.Done():
					return
				case <-ticker.C:
					continue
				}
			}

			s.executeJob(job)
		}
	}
}

func (s *Service) executeJob(job *Job) {
	s.logger.Info("running import job",
		zap.String("job_id", job.JobID),
		zap.String("provider", job.ProviderID),
		zap.String("feed", job.FeedPath))

	reporter := &jobReporter{
		ctx:         s.ctx,
		repo:        s.repo,
		broadcaster: s.broadcaster,
		job:         job,
	}

	run, err := s.runner.Run(s.ctx, job, reporter)
	if err != nil {
		_ = s.repo.UpdateStatus(s.ctx, job.JobID, JobStatusFailed, "Job failed", err)
		_ = s.repo.AppendEvent(s.ctx, job.JobID, "error", err.Error())
		return
	}

	message := fmt.Sprintf("Imported %d of %d records (%d quarantined, %d duplicates)",
		run.Accepted, run.Processed, run.Quarantined, run.DuplicatesFound)
	_ = s.repo.UpdateStatus(s.ctx, job.JobID, JobStatusCompleted, message, nil)
	_ = s.repo.AppendEvent(s.ctx, job.JobID, "completed", message)
}

// jobReporter bridges pipeline progress callbacks into job rows and the
// websocket broadcast.
type jobReporter struct {
	ctx         context.Context
	repo        *Repository
	broadcaster Broadcaster
	job         *Job
}

func (r *jobReporter) Progress(stage string, done, total int) {
	message := fmt.Sprintf("%s (%d/%d)", stage, done, total)
	_ = r.repo.UpdateProgress(r.ctx, r.job.JobID, done, total, message)

	if r.broadcaster != nil {
		r.broadcaster.BroadcastJobProgress(r.job.JobID, r.job.ProviderID, stage, done, total)
	}
}
