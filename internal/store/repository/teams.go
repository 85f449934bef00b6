package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fortuna/concordia/internal/store"
)

// TeamRepository handles master team data access.
type TeamRepository struct {
	db *store.Database
}

// NewTeamRepository creates a new team repository.
func NewTeamRepository(db *store.Database) *TeamRepository {
	return &TeamRepository{db: db}
}

const teamColumns = `team_id, name, club_name, age_group, gender, state, division,
	is_active, created_at, updated_at`

// GetAll returns all active master teams.
func (r *TeamRepository) GetAll(ctx context.Context) ([]*store.MasterTeam, error) {
	query := `
		SELECT ` + teamColumns + `
		FROM master_teams
		WHERE is_active = true
		ORDER BY team_id
	`

	rows, err := r.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying teams: %w", err)
	}
	defer rows.Close()

	return r.scanTeams(rows)
}

// GetByState returns active master teams located in the given state.
func (r *TeamRepository) GetByState(ctx context.Context, state string) ([]*store.MasterTeam, error) {
	query := `
		SELECT ` + teamColumns + `
		FROM master_teams
		WHERE is_active = true AND state = $1
		ORDER BY team_id
	`

	rows, err := r.db.DB().QueryContext(ctx, query, state)
	if err != nil {
		return nil, fmt.Errorf("querying teams by state: %w", err)
	}
	defer rows.Close()

	return r.scanTeams(rows)
}

// GetByID finds a master team by ID.
func (r *TeamRepository) GetByID(ctx context.Context, teamID int64) (*store.MasterTeam, error) {
	query := `
		SELECT ` + teamColumns + `
		FROM master_teams
		WHERE team_id = $1
	`

	team := &store.MasterTeam{}
	err := r.db.DB().QueryRowContext(ctx, query, teamID).Scan(
		&team.TeamID, &team.Name, &team.ClubName, &team.AgeGroup, &team.Gender,
		&team.State, &team.Division, &team.IsActive, &team.CreatedAt, &team.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("team not found: %d", teamID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying team: %w", err)
	}

	return team, nil
}

// Create inserts a new master team and returns it with its assigned ID.
func (r *TeamRepository) Create(ctx context.Context, team *store.MasterTeam) (*store.MasterTeam, error) {
	query := `
		INSERT INTO master_teams (name, club_name, age_group, gender, state, division, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING team_id, created_at, updated_at
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		team.Name, team.ClubName, team.AgeGroup, team.Gender, team.State, team.Division,
	).Scan(&team.TeamID, &team.CreatedAt, &team.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("inserting team: %w", err)
	}

	team.IsActive = true
	return team, nil
}

func (r *TeamRepository) scanTeams(rows *sql.Rows) ([]*store.MasterTeam, error) {
	var teams []*store.MasterTeam
	for rows.Next() {
		team := &store.MasterTeam{}
		err := rows.Scan(
			&team.TeamID, &team.Name, &team.ClubName, &team.AgeGroup, &team.Gender,
			&team.State, &team.Division, &team.IsActive, &team.CreatedAt, &team.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		teams = append(teams, team)
	}

	return teams, rows.Err()
}
