package store

import (
	"database/sql"
	"time"
)

// MatchStatus classifies how completely a game's teams were resolved.
type MatchStatus string

const (
	MatchStatusMatched MatchStatus = "matched"
	MatchStatusPartial MatchStatus = "partial"
	MatchStatusFailed  MatchStatus = "failed"
)

// MatchMethod records how an alias was established.
type MatchMethod string

const (
	MethodDirectID    MatchMethod = "direct_id"
	MethodAlias       MatchMethod = "alias"
	MethodFuzzyAuto   MatchMethod = "fuzzy_auto"
	MethodFuzzyReview MatchMethod = "fuzzy_review"
	MethodImport      MatchMethod = "import"
)

// ReviewStatus is the human-review state of an alias.
type ReviewStatus string

const (
	ReviewApproved ReviewStatus = "approved"
	ReviewPending  ReviewStatus = "pending"
	ReviewRejected ReviewStatus = "rejected"
)

// MasterTeam is the canonical, durable team entity that every
// provider-specific reference resolves to.
type MasterTeam struct {
	TeamID    int64          `json:"team_id" db:"team_id"`
	Name      string         `json:"name" db:"name"`
	ClubName  sql.NullString `json:"club_name,omitempty" db:"club_name"`
	AgeGroup  string         `json:"age_group" db:"age_group"`
	Gender    string         `json:"gender" db:"gender"`
	State     sql.NullString `json:"state,omitempty" db:"state"`
	Division  sql.NullString `json:"division,omitempty" db:"division"`
	IsActive  bool           `json:"is_active" db:"is_active"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// TeamAlias maps a (provider, provider team key) pair to a master team.
// The key may carry an age/division suffix for providers whose raw team
// identifiers are ambiguous across age groups.
type TeamAlias struct {
	AliasID    int64          `json:"alias_id" db:"alias_id"`
	ProviderID string         `json:"provider_id" db:"provider_id"`
	AliasKey   string         `json:"alias_key" db:"alias_key"`
	TeamName   sql.NullString `json:"team_name,omitempty" db:"team_name"`
	TeamID     int64          `json:"team_id" db:"team_id"`
	Method     MatchMethod    `json:"method" db:"method"`
	Confidence float64        `json:"confidence" db:"confidence"`
	Review     ReviewStatus   `json:"review_status" db:"review_status"`
	Division   sql.NullString `json:"division,omitempty" db:"division"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

// Game is the home/away-neutral, deduplicated record of one physical game.
// Rows are immutable after insert; re-imports become no-ops through the
// UID uniqueness constraint.
type Game struct {
	GameID         int64          `json:"game_id" db:"game_id"`
	GameUID        string         `json:"game_uid" db:"game_uid"`
	ProviderID     string         `json:"provider_id" db:"provider_id"`
	GameDate       string         `json:"game_date" db:"game_date"`
	HomeTeamID     sql.NullInt64  `json:"home_team_id,omitempty" db:"home_team_id"`
	AwayTeamID     sql.NullInt64  `json:"away_team_id,omitempty" db:"away_team_id"`
	HomeProviderID string         `json:"home_provider_id" db:"home_provider_id"`
	AwayProviderID string         `json:"away_provider_id" db:"away_provider_id"`
	HomeScore      int            `json:"home_score" db:"home_score"`
	AwayScore      int            `json:"away_score" db:"away_score"`
	Result         string         `json:"result" db:"result"`
	Status         MatchStatus    `json:"match_status" db:"match_status"`
	Competition    sql.NullString `json:"competition,omitempty" db:"competition"`
	RawPayload     []byte         `json:"raw_payload,omitempty" db:"raw_payload"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// QuarantineEntry holds a record that failed validation, with enough
// context for the external repair workflow to reprocess it.
type QuarantineEntry struct {
	EntryID    int64     `json:"entry_id" db:"entry_id"`
	ProviderID string    `json:"provider_id" db:"provider_id"`
	ReasonCode string    `json:"reason_code" db:"reason_code"`
	Detail     string    `json:"detail" db:"detail"`
	RawPayload []byte    `json:"raw_payload" db:"raw_payload"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ImportRun is the persisted run log for one pipeline execution, keyed by
// a build identifier so re-runs upsert rather than duplicate.
type ImportRun struct {
	RunID           int64          `json:"run_id" db:"run_id"`
	BuildID         string         `json:"build_id" db:"build_id"`
	ProviderID      string         `json:"provider_id" db:"provider_id"`
	Processed       int            `json:"processed" db:"processed"`
	Accepted        int            `json:"accepted" db:"accepted"`
	Quarantined     int            `json:"quarantined" db:"quarantined"`
	DuplicatesFound int            `json:"duplicates_found" db:"duplicates_found"`
	TeamsMatched    int            `json:"teams_matched" db:"teams_matched"`
	TeamsCreated    int            `json:"teams_created" db:"teams_created"`
	FuzzyAuto       int            `json:"fuzzy_auto" db:"fuzzy_auto"`
	FuzzyReview     int            `json:"fuzzy_review" db:"fuzzy_review"`
	FuzzyRejected   int            `json:"fuzzy_rejected" db:"fuzzy_rejected"`
	LastError       sql.NullString `json:"last_error,omitempty" db:"last_error"`
	StartedAt       time.Time      `json:"started_at" db:"started_at"`
	FinishedAt      sql.NullTime   `json:"finished_at,omitempty" db:"finished_at"`
}
