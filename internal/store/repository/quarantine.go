package repository

import (
	"context"
	"fmt"

	"github.com/fortuna/concordia/internal/store"
)

// QuarantineRepository handles quarantined record persistence.
type QuarantineRepository struct {
	db *store.Database
}

// NewQuarantineRepository creates a new quarantine repository.
func NewQuarantineRepository(db *store.Database) *QuarantineRepository {
	return &QuarantineRepository{db: db}
}

// Insert stores a rejected record with its reason and full raw payload.
func (r *QuarantineRepository) Insert(ctx context.Context, entry *store.QuarantineEntry) error {
	query := `
		INSERT INTO quarantine_entries (provider_id, reason_code, detail, raw_payload)
		VALUES ($1, $2, $3, $4)
		RETURNING entry_id, created_at
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		entry.ProviderID, entry.ReasonCode, entry.Detail, entry.RawPayload,
	).Scan(&entry.EntryID, &entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("inserting quarantine entry: %w", err)
	}

	return nil
}

// ListByProvider returns quarantined records for a provider, newest first.
func (r *QuarantineRepository) ListByProvider(ctx context.Context, providerID string, limit int) ([]*store.QuarantineEntry, error) {
	query := `
		SELECT entry_id, provider_id, reason_code, detail, raw_payload, created_at
		FROM quarantine_entries
		WHERE provider_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.DB().QueryContext(ctx, query, providerID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying quarantine entries: %w", err)
	}
	defer rows.Close()

	var entries []*store.QuarantineEntry
	for rows.Next() {
		entry := &store.QuarantineEntry{}
		err := rows.Scan(
			&entry.EntryID, &entry.ProviderID, &entry.ReasonCode,
			&entry.Detail, &entry.RawPayload, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning quarantine entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
