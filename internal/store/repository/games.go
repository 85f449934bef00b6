package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/fortuna/concordia/internal/store"
)

// GameRepository handles canonical game data access.
type GameRepository struct {
	db *store.Database
}

// NewGameRepository creates a new game repository.
func NewGameRepository(db *store.Database) *GameRepository {
	return &GameRepository{db: db}
}

const gameColumns = `game_id, game_uid, provider_id, game_date::text, home_team_id, away_team_id,
	home_provider_id, away_provider_id, home_score, away_score, result,
	match_status, competition, raw_payload, created_at`

// GetByUID finds a game by its deterministic UID.
func (r *GameRepository) GetByUID(ctx context.Context, uid string) (*store.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE game_uid = $1
	`

	game := &store.Game{}
	err := r.db.DB().QueryRowContext(ctx, query, uid).Scan(
		&game.GameID, &game.GameUID, &game.ProviderID, &game.GameDate,
		&game.HomeTeamID, &game.AwayTeamID, &game.HomeProviderID, &game.AwayProviderID,
		&game.HomeScore, &game.AwayScore, &game.Result, &game.Status,
		&game.Competition, &game.RawPayload, &game.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("game not found: %s", uid)
	}
	if err != nil {
		return nil, fmt.Errorf("querying game: %w", err)
	}

	return game, nil
}

// FilterExistingUIDs returns the subset of the given UIDs already persisted.
// The lookup is a single round trip per call; callers chunk large batches.
func (r *GameRepository) FilterExistingUIDs(ctx context.Context, uids []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(uids) == 0 {
		return existing, nil
	}

	query := `SELECT game_uid FROM games WHERE game_uid = ANY($1)`

	rows, err := r.db.DB().QueryContext(ctx, query, pq.Array(uids))
	if err != nil {
		return nil, fmt.Errorf("querying existing uids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scanning uid: %w", err)
		}
		existing[uid] = true
	}

	return existing, rows.Err()
}

// Insert persists a single game. A UID collision returns
// store.ErrAlreadyExists; persisted games are immutable and never updated.
func (r *GameRepository) Insert(ctx context.Context, game *store.Game) error {
	query := `
		INSERT INTO games (game_uid, provider_id, game_date, home_team_id, away_team_id,
			home_provider_id, away_provider_id, home_score, away_score, result,
			match_status, competition, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING game_id
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		game.GameUID, game.ProviderID, game.GameDate, game.HomeTeamID, game.AwayTeamID,
		game.HomeProviderID, game.AwayProviderID, game.HomeScore, game.AwayScore,
		game.Result, game.Status, game.Competition, game.RawPayload,
	).Scan(&game.GameID)

	if err != nil {
		if store.IsUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("inserting game: %w", err)
	}

	return nil
}

// InsertBatch bulk-inserts games inside one transaction. On a uniqueness
// conflict the whole statement fails, so the caller falls back to
// per-row inserts; that retry path lives in the pipeline.
func (r *GameRepository) InsertBatch(ctx context.Context, games []*store.Game) error {
	if len(games) == 0 {
		return nil
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning batch insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO games (game_uid, provider_id, game_date, home_team_id, away_team_id,
			home_provider_id, away_provider_id, home_score, away_score, result,
			match_status, competition, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`)
	if err != nil {
		return fmt.Errorf("preparing batch insert: %w", err)
	}
	defer stmt.Close()

	for _, game := range games {
		_, err := stmt.ExecContext(ctx,
			game.GameUID, game.ProviderID, game.GameDate, game.HomeTeamID, game.AwayTeamID,
			game.HomeProviderID, game.AwayProviderID, game.HomeScore, game.AwayScore,
			game.Result, game.Status, game.Competition, game.RawPayload,
		)
		if err != nil {
			if store.IsUniqueViolation(err) {
				return store.ErrAlreadyExists
			}
			return fmt.Errorf("batch inserting game %s: %w", game.GameUID, err)
		}
	}

	return tx.Commit()
}

// ListByProvider returns games for a provider, newest first.
func (r *GameRepository) ListByProvider(ctx context.Context, providerID string, limit int) ([]*store.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE provider_id = $1
		ORDER BY game_date DESC, game_id DESC
		LIMIT $2
	`

	rows, err := r.db.DB().QueryContext(ctx, query, providerID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying games: %w", err)
	}
	defer rows.Close()

	return r.scanGames(rows)
}

func (r *GameRepository) scanGames(rows *sql.Rows) ([]*store.Game, error) {
	var games []*store.Game
	for rows.Next() {
		game := &store.Game{}
		err := rows.Scan(
			&game.GameID, &game.GameUID, &game.ProviderID, &game.GameDate,
			&game.HomeTeamID, &game.AwayTeamID, &game.HomeProviderID, &game.AwayProviderID,
			&game.HomeScore, &game.AwayScore, &game.Result, &game.Status,
			&game.Competition, &game.RawPayload, &game.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, game)
	}

	return games, rows.Err()
}
