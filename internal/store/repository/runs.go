package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fortuna/concordia/internal/store"
)

// RunRepository handles import run log persistence.
type RunRepository struct {
	db *store.Database
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *store.Database) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `run_id, build_id, provider_id, processed, accepted, quarantined,
	duplicates_found, teams_matched, teams_created, fuzzy_auto, fuzzy_review,
	fuzzy_rejected, last_error, started_at, finished_at`

// Upsert writes the run log keyed by build_id. Re-running a batch with the
// same build identifier overwrites the previous counters, keeping the run
// log idempotent.
func (r *RunRepository) Upsert(ctx context.Context, run *store.ImportRun) error {
	query := `
		INSERT INTO import_runs (build_id, provider_id, processed, accepted, quarantined,
			duplicates_found, teams_matched, teams_created, fuzzy_auto, fuzzy_review,
			fuzzy_rejected, last_error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (build_id) DO UPDATE SET
			processed = EXCLUDED.processed,
			accepted = EXCLUDED.accepted,
			quarantined = EXCLUDED.quarantined,
			duplicates_found = EXCLUDED.duplicates_found,
			teams_matched = EXCLUDED.teams_matched,
			teams_created = EXCLUDED.teams_created,
			fuzzy_auto = EXCLUDED.fuzzy_auto,
			fuzzy_review = EXCLUDED.fuzzy_review,
			fuzzy_rejected = EXCLUDED.fuzzy_rejected,
			last_error = EXCLUDED.last_error,
			finished_at = EXCLUDED.finished_at
		RETURNING run_id
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		run.BuildID, run.ProviderID, run.Processed, run.Accepted, run.Quarantined,
		run.DuplicatesFound, run.TeamsMatched, run.TeamsCreated, run.FuzzyAuto,
		run.FuzzyReview, run.FuzzyRejected, run.LastError, run.StartedAt, run.FinishedAt,
	).Scan(&run.RunID)

	if err != nil {
		return fmt.Errorf("upserting import run: %w", err)
	}

	return nil
}

// GetByBuildID returns the run log for a single batch.
func (r *RunRepository) GetByBuildID(ctx context.Context, buildID string) (*store.ImportRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM import_runs
		WHERE build_id = $1
	`

	run := &store.ImportRun{}
	err := r.db.DB().QueryRowContext(ctx, query, buildID).Scan(
		&run.RunID, &run.BuildID, &run.ProviderID, &run.Processed, &run.Accepted,
		&run.Quarantined, &run.DuplicatesFound, &run.TeamsMatched, &run.TeamsCreated,
		&run.FuzzyAuto, &run.FuzzyReview, &run.FuzzyRejected, &run.LastError,
		&run.StartedAt, &run.FinishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying import run %s: %w", buildID, err)
	}

	return run, nil
}

// ListRecent returns the most recent runs across all providers.
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]*store.ImportRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM import_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.db.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying import runs: %w", err)
	}
	defer rows.Close()

	var runs []*store.ImportRun
	for rows.Next() {
		run := &store.ImportRun{}
		err := rows.Scan(
			&run.RunID, &run.BuildID, &run.ProviderID, &run.Processed, &run.Accepted,
			&run.Quarantined, &run.DuplicatesFound, &run.TeamsMatched, &run.TeamsCreated,
			&run.FuzzyAuto, &run.FuzzyReview, &run.FuzzyRejected, &run.LastError,
			&run.StartedAt, &run.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning import run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
