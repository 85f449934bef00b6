package matching

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fortuna/concordia/internal/store"
)

// Options carries the thresholds and tuning constants the matchers run
// with. Zero values are not usable; build it from the service
// configuration.
type Options struct {
	AutoLinkThreshold     float64
	ManualReviewThreshold float64

	ConservativeMinScore    float64
	ConservativeMinGap      float64
	DivisionBonus           float64
	DivisionPenalty         float64
	BirthYearBonus          float64
	MissingBirthYearPenalty float64
	AgeConflictYears        int

	ClubEquivalenceThreshold float64

	SeasonYear int
}

// MatchRequest identifies one side of a game to resolve.
type MatchRequest struct {
	ProviderTeamID string
	TeamName       string
	ClubName       string
	AgeGroup       string
	Gender         string
	Division       string
	State          string
}

// MatchResult is the outcome of one resolution attempt. TeamID is only
// meaningful when Matched is true; Created reports that the matcher made
// a new master team rather than resolving to an existing one.
type MatchResult struct {
	Matched    bool
	TeamID     int64
	AgeGroup   string
	Method     store.MatchMethod
	Confidence float64
	Created    bool
}

// TeamMatcher resolves provider team references to master teams.
// MatchTeam never creates a master team; ResolveOrCreate applies the
// variant's creation policy when matching fails.
type TeamMatcher interface {
	MatchTeam(ctx context.Context, req MatchRequest) (MatchResult, error)
	ResolveOrCreate(ctx context.Context, req MatchRequest) (MatchResult, error)

	// AgePairOK reports whether a resolved home/away pair passes the
	// variant's post-match age cross-check.
	AgePairOK(home, away MatchResult) bool
}

// ErrUnknownStrategy signals a provider configured with a matcher
// strategy this build does not implement.
var ErrUnknownStrategy = errors.New("unknown matcher strategy")

// New selects the matcher variant for a strategy name. The cache must
// already be loaded for the provider the matcher will serve.
func New(strategy, providerID string, opts Options, cache *RunCache, aliases AliasStore, teams TeamStore, logger *zap.Logger) (TeamMatcher, error) {
	base := &BaseMatcher{
		providerID: providerID,
		opts:       opts,
		cache:      cache,
		aliases:    aliases,
		teams:      teams,
		logger:     logger,
	}

	switch strategy {
	case "base":
		return base, nil
	case "conservative":
		return &ConservativeMatcher{BaseMatcher: base}, nil
	case "club_variant":
		return &ClubVariantMatcher{BaseMatcher: base}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
	}
}

// BaseMatcher implements the generic multi-tier resolution: direct
// alias, general alias, fuzzy, unresolved. It never creates teams.
type BaseMatcher struct {
	providerID string
	opts       Options
	cache      *RunCache
	aliases    AliasStore
	teams      TeamStore
	logger     *zap.Logger
}

// MatchTeam runs the resolution tiers in order, short-circuiting on the
// first success.
func (m *BaseMatcher) MatchTeam(ctx context.Context, req MatchRequest) (MatchResult, error) {
	// Tier 1: exact alias on the provider team id.
	if alias, ok := m.cache.Alias(req.ProviderTeamID); ok && alias.Review == store.ReviewApproved {
		return m.resultFor(alias.TeamID, store.MethodDirectID, 1.0), nil
	}

	// Tier 2: alias by stored team name, constrained to the same age
	// group and gender, accepted only at auto-link confidence.
	if alias, ok := m.cache.AliasByName(req.TeamName); ok &&
		alias.Review == store.ReviewApproved &&
		alias.Confidence >= m.opts.AutoLinkThreshold {
		if team, ok := m.cache.TeamByID(alias.TeamID); ok &&
			team.AgeGroup == req.AgeGroup && team.Gender == req.Gender {
			return m.resultFor(alias.TeamID, store.MethodAlias, alias.Confidence), nil
		}
	}

	// Tier 3: fuzzy.
	return m.fuzzyMatch(ctx, req)
}

// ResolveOrCreate for the base strategy is MatchTeam: unresolved teams
// stay unresolved.
func (m *BaseMatcher) ResolveOrCreate(ctx context.Context, req MatchRequest) (MatchResult, error) {
	return m.MatchTeam(ctx, req)
}

// AgePairOK always passes for the base strategy.
func (m *BaseMatcher) AgePairOK(home, away MatchResult) bool {
	return true
}

func (m *BaseMatcher) resultFor(teamID int64, method store.MatchMethod, confidence float64) MatchResult {
	res := MatchResult{Matched: true, TeamID: teamID, Method: method, Confidence: confidence}
	if team, ok := m.cache.TeamByID(teamID); ok {
		res.AgeGroup = team.AgeGroup
	}
	return res
}

func (m *BaseMatcher) fuzzyMatch(ctx context.Context, req MatchRequest) (MatchResult, error) {
	best, _ := m.bestCandidate(req)
	if best.team == nil {
		return MatchResult{}, nil
	}

	switch {
	case best.score >= m.opts.AutoLinkThreshold:
		return m.persistAlias(ctx, req, req.ProviderTeamID, best.team, store.MethodFuzzyAuto, best.score)

	case best.score >= m.opts.ManualReviewThreshold:
		// Pending review: the alias is written for a human to confirm,
		// but this run treats the team as unresolved.
		if err := m.persistPendingAlias(ctx, req, req.ProviderTeamID, best.team, best.score); err != nil {
			return MatchResult{}, err
		}
		return MatchResult{Method: store.MethodFuzzyReview, Confidence: best.score}, nil

	default:
		return MatchResult{Confidence: best.score}, nil
	}
}

type candidate struct {
	team  *store.MasterTeam
	score float64
}

// bestCandidate scores every pool team with matching age group and
// gender and returns the best and second-best.
func (m *BaseMatcher) bestCandidate(req MatchRequest) (best, second candidate) {
	normName := NormalizeTeamName(req.TeamName)
	normClub := NormalizeTeamName(req.ClubName)

	for _, team := range m.cache.Teams() {
		if team.AgeGroup != req.AgeGroup || team.Gender != req.Gender {
			continue
		}

		candClub := ""
		if team.ClubName.Valid {
			candClub = NormalizeTeamName(team.ClubName.String)
		}

		score := WeightedScore(ScoreInput{
			NameSim:        Similarity(normName, NormalizeTeamName(team.Name)),
			ClubSim:        Similarity(normClub, candClub),
			ClubsIdentical: normClub != "" && normClub == candClub,
			LocationMatch:  req.State != "" && team.State.Valid && team.State.String == req.State,
			AgeMatch:       true,
		})

		if score > best.score {
			second = best
			best = candidate{team: team, score: score}
		} else if score > second.score {
			second = candidate{team: team, score: score}
		}
	}

	return best, second
}

// persistAlias writes an approved alias and returns the matched result.
// A unique violation means another writer already claimed the key: an
// approved winner's mapping is adopted, but a pending or rejected row is
// not a resolution, so the team stays unresolved for this run.
func (m *BaseMatcher) persistAlias(ctx context.Context, req MatchRequest, key string, team *store.MasterTeam, method store.MatchMethod, confidence float64) (MatchResult, error) {
	alias := &store.TeamAlias{
		ProviderID: m.providerID,
		AliasKey:   key,
		TeamName:   sql.NullString{String: req.TeamName, Valid: req.TeamName != ""},
		TeamID:     team.TeamID,
		Method:     method,
		Confidence: confidence,
		Review:     store.ReviewApproved,
		Division:   sql.NullString{String: req.Division, Valid: req.Division != ""},
	}

	created, err := m.aliases.Create(ctx, alias)
	if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return MatchResult{}, fmt.Errorf("persisting alias %s: %w", key, err)
	}
	if errors.Is(err, store.ErrAlreadyExists) {
		m.cache.PutAlias(created)
		if created.Review != store.ReviewApproved {
			m.logger.Info("alias key held by unreviewed mapping, leaving unresolved",
				zap.String("alias_key", key),
				zap.String("review_status", string(created.Review)))
			return MatchResult{Confidence: confidence}, nil
		}
		m.logger.Info("alias key already claimed, adopting existing mapping",
			zap.String("alias_key", key),
			zap.Int64("team_id", created.TeamID))
		return m.resultFor(created.TeamID, created.Method, created.Confidence), nil
	}

	m.cache.PutAlias(created)
	return m.resultFor(created.TeamID, created.Method, created.Confidence), nil
}

// persistCreatedAlias writes the direct alias for a freshly created
// master team. It upserts so a pending row left by this run's mid-band
// fuzzy pass (or an old rejected mapping) is superseded rather than
// leaving the new team alias-less behind it. An approved row means a
// concurrent writer resolved the key definitively first; the winner's
// mapping is adopted and the caller's created team is abandoned to
// review cleanup.
func (m *BaseMatcher) persistCreatedAlias(ctx context.Context, req MatchRequest, key string, team *store.MasterTeam) (MatchResult, bool, error) {
	alias := &store.TeamAlias{
		ProviderID: m.providerID,
		AliasKey:   key,
		TeamName:   sql.NullString{String: req.TeamName, Valid: req.TeamName != ""},
		TeamID:     team.TeamID,
		Method:     store.MethodDirectID,
		Confidence: 1.0,
		Review:     store.ReviewApproved,
		Division:   sql.NullString{String: req.Division, Valid: req.Division != ""},
	}

	stored, err := m.aliases.Upsert(ctx, alias)
	if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return MatchResult{}, false, fmt.Errorf("persisting alias %s: %w", key, err)
	}

	m.cache.PutAlias(stored)

	if errors.Is(err, store.ErrAlreadyExists) {
		m.logger.Warn("alias key claimed by concurrent writer, adopting winner",
			zap.String("alias_key", key),
			zap.Int64("created_team_id", team.TeamID),
			zap.Int64("winner_team_id", stored.TeamID))
		return m.resultFor(stored.TeamID, stored.Method, stored.Confidence), true, nil
	}

	return MatchResult{}, false, nil
}

func (m *BaseMatcher) persistPendingAlias(ctx context.Context, req MatchRequest, key string, team *store.MasterTeam, confidence float64) error {
	alias := &store.TeamAlias{
		ProviderID: m.providerID,
		AliasKey:   key,
		TeamName:   sql.NullString{String: req.TeamName, Valid: req.TeamName != ""},
		TeamID:     team.TeamID,
		Method:     store.MethodFuzzyReview,
		Confidence: confidence,
		Review:     store.ReviewPending,
		Division:   sql.NullString{String: req.Division, Valid: req.Division != ""},
	}

	created, err := m.aliases.Create(ctx, alias)
	if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return fmt.Errorf("persisting pending alias %s: %w", key, err)
	}
	m.cache.PutAlias(created)
	return nil
}

// createTeam makes a new master team from the request and registers it
// in the run cache so later lookups in this run can resolve to it.
func (m *BaseMatcher) createTeam(ctx context.Context, req MatchRequest) (*store.MasterTeam, error) {
	team := &store.MasterTeam{
		Name:     req.TeamName,
		ClubName: sql.NullString{String: req.ClubName, Valid: req.ClubName != ""},
		AgeGroup: req.AgeGroup,
		Gender:   req.Gender,
		State:    sql.NullString{String: req.State, Valid: req.State != ""},
		Division: sql.NullString{String: req.Division, Valid: req.Division != ""},
		IsActive: true,
	}

	created, err := m.teams.Create(ctx, team)
	if err != nil {
		return nil, fmt.Errorf("creating master team %q: %w", req.TeamName, err)
	}

	m.cache.PutTeam(created)
	m.logger.Info("created master team",
		zap.Int64("team_id", created.TeamID),
		zap.String("name", created.Name),
		zap.String("age_group", created.AgeGroup))

	return created, nil
}
