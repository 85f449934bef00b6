package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fortuna/concordia/internal/store"
)

// AliasRepository handles team alias data access.
type AliasRepository struct {
	db *store.Database
}

// NewAliasRepository creates a new alias repository.
func NewAliasRepository(db *store.Database) *AliasRepository {
	return &AliasRepository{db: db}
}

const aliasColumns = `alias_id, provider_id, alias_key, team_name, team_id, method,
	confidence, review_status, division, created_at, updated_at`

// ListByProvider returns every alias scoped to one provider. Matchers load
// this once at construction into their per-run cache.
func (r *AliasRepository) ListByProvider(ctx context.Context, providerID string) ([]*store.TeamAlias, error) {
	query := `
		SELECT ` + aliasColumns + `
		FROM team_aliases
		WHERE provider_id = $1
		ORDER BY alias_id
	`

	rows, err := r.db.DB().QueryContext(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("querying aliases: %w", err)
	}
	defer rows.Close()

	return r.scanAliases(rows)
}

// GetByKey finds one alias by its (provider, key) identity.
func (r *AliasRepository) GetByKey(ctx context.Context, providerID, aliasKey string) (*store.TeamAlias, error) {
	query := `
		SELECT ` + aliasColumns + `
		FROM team_aliases
		WHERE provider_id = $1 AND alias_key = $2
	`

	alias := &store.TeamAlias{}
	err := r.db.DB().QueryRowContext(ctx, query, providerID, aliasKey).Scan(
		&alias.AliasID, &alias.ProviderID, &alias.AliasKey, &alias.TeamName, &alias.TeamID,
		&alias.Method, &alias.Confidence, &alias.Review, &alias.Division,
		&alias.CreatedAt, &alias.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("querying alias: %w", err)
	}

	return alias, nil
}

// ListPending returns aliases awaiting manual review, newest first.
func (r *AliasRepository) ListPending(ctx context.Context, limit int) ([]*store.TeamAlias, error) {
	query := `
		SELECT ` + aliasColumns + `
		FROM team_aliases
		WHERE review_status = 'pending'
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying pending aliases: %w", err)
	}
	defer rows.Close()

	return r.scanAliases(rows)
}

// Create inserts a new alias. A collision on (provider_id, alias_key) means
// a concurrent writer resolved the same key first: the stored alias is
// re-read and returned alongside store.ErrAlreadyExists so the caller can
// adopt the winner's mapping. First successful write wins.
func (r *AliasRepository) Create(ctx context.Context, alias *store.TeamAlias) (*store.TeamAlias, error) {
	query := `
		INSERT INTO team_aliases (provider_id, alias_key, team_name, team_id, method,
			confidence, review_status, division)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING alias_id, created_at, updated_at
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		alias.ProviderID, alias.AliasKey, alias.TeamName, alias.TeamID,
		alias.Method, alias.Confidence, alias.Review, alias.Division,
	).Scan(&alias.AliasID, &alias.CreatedAt, &alias.UpdatedAt)

	if err == nil {
		return alias, nil
	}

	if store.IsUniqueViolation(err) {
		existing, getErr := r.GetByKey(ctx, alias.ProviderID, alias.AliasKey)
		if getErr != nil {
			return nil, fmt.Errorf("re-reading conflicting alias: %w", getErr)
		}
		return existing, store.ErrAlreadyExists
	}

	return nil, fmt.Errorf("inserting alias: %w", err)
}

// Upsert inserts an alias, overwriting an existing row for the same
// (provider_id, alias_key) unless that row is approved. Pending rows are
// provisional review requests and rejected rows veto a different
// mapping, so a definitive new mapping supersedes both. An approved row
// wins instead and is returned alongside store.ErrAlreadyExists so the
// caller can adopt it.
func (r *AliasRepository) Upsert(ctx context.Context, alias *store.TeamAlias) (*store.TeamAlias, error) {
	query := `
		INSERT INTO team_aliases (provider_id, alias_key, team_name, team_id, method,
			confidence, review_status, division)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (provider_id, alias_key) DO UPDATE
		SET team_name = EXCLUDED.team_name, team_id = EXCLUDED.team_id,
			method = EXCLUDED.method, confidence = EXCLUDED.confidence,
			review_status = EXCLUDED.review_status, division = EXCLUDED.division,
			updated_at = NOW()
		WHERE team_aliases.review_status <> 'approved'
		RETURNING alias_id, created_at, updated_at
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		alias.ProviderID, alias.AliasKey, alias.TeamName, alias.TeamID,
		alias.Method, alias.Confidence, alias.Review, alias.Division,
	).Scan(&alias.AliasID, &alias.CreatedAt, &alias.UpdatedAt)

	if err == nil {
		return alias, nil
	}

	// No row returned: the conflicting row is approved, so it stands.
	if err == sql.ErrNoRows {
		existing, getErr := r.GetByKey(ctx, alias.ProviderID, alias.AliasKey)
		if getErr != nil {
			return nil, fmt.Errorf("re-reading conflicting alias: %w", getErr)
		}
		return existing, store.ErrAlreadyExists
	}

	return nil, fmt.Errorf("upserting alias: %w", err)
}

// UpdateReview sets the review status of an alias (approve / reject).
func (r *AliasRepository) UpdateReview(ctx context.Context, aliasID int64, status store.ReviewStatus) error {
	query := `
		UPDATE team_aliases
		SET review_status = $2, updated_at = NOW()
		WHERE alias_id = $1
	`

	result, err := r.db.DB().ExecContext(ctx, query, aliasID, status)
	if err != nil {
		return fmt.Errorf("updating alias review: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("alias not found: %d", aliasID)
	}

	return nil
}

func (r *AliasRepository) scanAliases(rows *sql.Rows) ([]*store.TeamAlias, error) {
	var aliases []*store.TeamAlias
	for rows.Next() {
		alias := &store.TeamAlias{}
		err := rows.Scan(
			&alias.AliasID, &alias.ProviderID, &alias.AliasKey, &alias.TeamName, &alias.TeamID,
			&alias.Method, &alias.Confidence, &alias.Review, &alias.Division,
			&alias.CreatedAt, &alias.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning alias: %w", err)
		}
		aliases = append(aliases, alias)
	}

	return aliases, rows.Err()
}
