package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/concordia/internal/identity"
	"github.com/fortuna/concordia/internal/ingest"
	"github.com/fortuna/concordia/internal/matching"
	"github.com/fortuna/concordia/internal/metrics"
	"github.com/fortuna/concordia/internal/store"
)

// GameStore is the slice of the persistence layer the pipeline uses for
// game rows.
type GameStore interface {
	FilterExistingUIDs(ctx context.Context, uids []string) (map[string]bool, error)
	InsertBatch(ctx context.Context, games []*store.Game) error
	Insert(ctx context.Context, game *store.Game) error
}

// QuarantineStore receives records that failed validation.
type QuarantineStore interface {
	Insert(ctx context.Context, entry *store.QuarantineEntry) error
}

// RunStore persists the run log.
type RunStore interface {
	Upsert(ctx context.Context, run *store.ImportRun) error
}

// Reporter receives coarse progress callbacks during a run. Implementations
// must be fast; they are called inline.
type Reporter interface {
	Progress(stage string, done, total int)
}

// GamePublisher receives fully matched games as they are persisted.
// Publish failures are logged, never fatal to the batch.
type GamePublisher interface {
	PublishMatchedGame(ctx context.Context, game *store.Game) error
}

type nopReporter struct{}

func (nopReporter) Progress(string, int, int) {}

// Pipeline processes one provider's batch: validate, quarantine,
// deduplicate, duplicate-check, match, persist, report.
type Pipeline struct {
	provider  ingest.Provider
	matcher   matching.TeamMatcher
	games     GameStore
	quarant   QuarantineStore
	runs      RunStore
	metrics   *metrics.Metrics
	reporter  Reporter
	publisher GamePublisher
	chunkSize int
	logger    *zap.Logger
}

// SetPublisher attaches a downstream publisher for matched games.
func (p *Pipeline) SetPublisher(pub GamePublisher) {
	p.publisher = pub
}

// New builds a pipeline bound to one provider and matcher. The metrics
// and reporter arguments may be nil.
func New(provider ingest.Provider, matcher matching.TeamMatcher, games GameStore, quarant QuarantineStore, runs RunStore, m *metrics.Metrics, reporter Reporter, chunkSize int, logger *zap.Logger) (*Pipeline, error) {
	if provider.ID == "" {
		return nil, fmt.Errorf("%w: pipeline needs provider context", ingest.ErrProviderNotFound)
	}
	if chunkSize <= 0 {
		chunkSize = 100
	}
	if reporter == nil {
		reporter = nopReporter{}
	}

	return &Pipeline{
		provider:  provider,
		matcher:   matcher,
		games:     games,
		quarant:   quarant,
		runs:      runs,
		metrics:   m,
		reporter:  reporter,
		chunkSize: chunkSize,
		logger:    logger.With(zap.String("provider", provider.ID)),
	}, nil
}

// Run executes the batch under the given build identifier. Re-running
// with the same buildID upserts the same run log, and persisted games
// are never re-inserted, so a partially failed batch is safe to run
// again end to end.
func (p *Pipeline) Run(ctx context.Context, records []ingest.RawPerspectiveRecord, buildID string) (*store.ImportRun, error) {
	started := time.Now()
	run := &store.ImportRun{
		BuildID:    buildID,
		ProviderID: p.provider.ID,
		Processed:  len(records),
		StartedAt:  started,
	}

	err := p.run(ctx, records, run)

	run.FinishedAt = sql.NullTime{Time: time.Now(), Valid: true}
	if err != nil {
		run.LastError = sql.NullString{String: err.Error(), Valid: true}
	}

	p.observe(run, time.Since(started))

	if upsertErr := p.runs.Upsert(ctx, run); upsertErr != nil {
		if err == nil {
			err = fmt.Errorf("writing run log: %w", upsertErr)
		} else {
			p.logger.Error("writing run log after failed batch", zap.Error(upsertErr))
		}
	}

	if err != nil {
		return run, fmt.Errorf("import run %s: %w", buildID, err)
	}

	p.logger.Info("import run complete",
		zap.String("build_id", buildID),
		zap.Int("processed", run.Processed),
		zap.Int("accepted", run.Accepted),
		zap.Int("quarantined", run.Quarantined),
		zap.Int("duplicates", run.DuplicatesFound),
		zap.Int("teams_created", run.TeamsCreated))

	return run, nil
}

func (p *Pipeline) run(ctx context.Context, records []ingest.RawPerspectiveRecord, run *store.ImportRun) error {
	// Validate. Invalid records land in quarantine with their payload
	// intact; the batch keeps going.
	valid, err := p.validate(ctx, records, run)
	if err != nil {
		return err
	}
	p.reporter.Progress("validated", len(valid), len(records))

	// Collapse perspectives.
	survivors, perspectiveDups := identity.DeduplicatePerspectives(valid, p.logger)
	p.logger.Debug("perspectives deduplicated",
		zap.Int("survivors", len(survivors)),
		zap.Int("collapsed", perspectiveDups))

	canonical := make([]*identity.CanonicalGameRecord, 0, len(survivors))
	for _, rec := range survivors {
		c, err := identity.TransformPerspective(rec)
		if err != nil {
			// Normalized records cannot fail the transform; treat it
			// as a validation failure if one somehow does.
			if qErr := p.quarantine(ctx, rec, &ValidationError{ReasonBadFlag, err.Error()}, run); qErr != nil {
				return qErr
			}
			continue
		}
		canonical = append(canonical, c)
	}

	// Drop games already persisted by earlier runs.
	canonical, err = p.dropExisting(ctx, canonical, run)
	if err != nil {
		return err
	}
	p.reporter.Progress("deduplicated", len(canonical), len(survivors))

	// Resolve both sides of every remaining game.
	games := make([]*store.Game, 0, len(canonical))
	for i, c := range canonical {
		game, err := p.matchGame(ctx, c, run)
		if err != nil {
			return err
		}
		games = append(games, game)

		if (i+1)%p.chunkSize == 0 {
			p.reporter.Progress("matched", i+1, len(canonical))
		}
	}
	p.reporter.Progress("matched", len(canonical), len(canonical))

	// Persist in chunks.
	if err := p.persist(ctx, games, run); err != nil {
		return err
	}
	p.reporter.Progress("persisted", run.Accepted, len(games))

	return nil
}

func (p *Pipeline) validate(ctx context.Context, records []ingest.RawPerspectiveRecord, run *store.ImportRun) ([]ingest.RawPerspectiveRecord, error) {
	valid := make([]ingest.RawPerspectiveRecord, 0, len(records))
	for _, rec := range records {
		normalized, vErr := ValidateRecord(rec, p.provider.ID)
		if vErr != nil {
			if err := p.quarantine(ctx, rec, vErr, run); err != nil {
				return nil, err
			}
			continue
		}
		valid = append(valid, normalized)
	}
	return valid, nil
}

func (p *Pipeline) quarantine(ctx context.Context, rec ingest.RawPerspectiveRecord, vErr *ValidationError, run *store.ImportRun) error {
	payload, err := marshalPayload(rec)
	if err != nil {
		return err
	}

	entry := &store.QuarantineEntry{
		ProviderID: p.provider.ID,
		ReasonCode: vErr.Reason,
		Detail:     vErr.Detail,
		RawPayload: payload,
	}
	if err := p.quarant.Insert(ctx, entry); err != nil {
		return fmt.Errorf("quarantining record: %w", err)
	}

	run.Quarantined++
	if p.metrics != nil {
		p.metrics.Quarantined.WithLabelValues(p.provider.ID, vErr.Reason).Inc()
	}
	p.logger.Debug("record quarantined",
		zap.String("reason", vErr.Reason),
		zap.String("detail", vErr.Detail))

	return nil
}

// dropExisting removes canonical records whose UIDs are already
// persisted, checking in chunks to keep the query parameter lists sane.
func (p *Pipeline) dropExisting(ctx context.Context, canonical []*identity.CanonicalGameRecord, run *store.ImportRun) ([]*identity.CanonicalGameRecord, error) {
	kept := make([]*identity.CanonicalGameRecord, 0, len(canonical))

	for start := 0; start < len(canonical); start += p.chunkSize {
		end := start + p.chunkSize
		if end > len(canonical) {
			end = len(canonical)
		}
		chunk := canonical[start:end]

		uids := make([]string, len(chunk))
		for i, c := range chunk {
			uids[i] = c.GameUID
		}

		existing, err := p.games.FilterExistingUIDs(ctx, uids)
		if err != nil {
			return nil, fmt.Errorf("checking persisted UIDs: %w", err)
		}

		for _, c := range chunk {
			if existing[c.GameUID] {
				run.DuplicatesFound++
				continue
			}
			kept = append(kept, c)
		}
	}

	return kept, nil
}

func (p *Pipeline) matchGame(ctx context.Context, c *identity.CanonicalGameRecord, run *store.ImportRun) (*store.Game, error) {
	home, err := p.resolveSide(ctx, c, c.HomeProviderID, c.HomeName, c.HomeClub, run)
	if err != nil {
		return nil, err
	}
	away, err := p.resolveSide(ctx, c, c.AwayProviderID, c.AwayName, c.AwayClub, run)
	if err != nil {
		return nil, err
	}

	status := store.MatchStatusFailed
	switch {
	case home.Matched && away.Matched:
		status = store.MatchStatusMatched
	case home.Matched || away.Matched:
		status = store.MatchStatusPartial
	}

	// Both sides can match well individually while belonging to
	// unrelated age brackets; the variant decides whether that
	// possibility exists for its provider.
	if status == store.MatchStatusMatched && !p.matcher.AgePairOK(home, away) {
		p.logger.Warn("age cross-check failed, marking game failed",
			zap.String("game_uid", c.GameUID),
			zap.String("home_age", home.AgeGroup),
			zap.String("away_age", away.AgeGroup))
		status = store.MatchStatusFailed
	}

	game := &store.Game{
		GameUID:        c.GameUID,
		ProviderID:     c.ProviderID,
		GameDate:       c.GameDate,
		HomeProviderID: c.HomeProviderID,
		AwayProviderID: c.AwayProviderID,
		HomeScore:      c.HomeScore,
		AwayScore:      c.AwayScore,
		Result:         c.Result(),
		Status:         status,
		Competition:    sql.NullString{String: c.Competition, Valid: c.Competition != ""},
		RawPayload:     c.RawPayload,
	}
	if home.Matched {
		game.HomeTeamID = sql.NullInt64{Int64: home.TeamID, Valid: true}
	}
	if away.Matched {
		game.AwayTeamID = sql.NullInt64{Int64: away.TeamID, Valid: true}
	}

	return game, nil
}

func (p *Pipeline) resolveSide(ctx context.Context, c *identity.CanonicalGameRecord, providerTeamID, name, club string, run *store.ImportRun) (matching.MatchResult, error) {
	res, err := p.matcher.ResolveOrCreate(ctx, matching.MatchRequest{
		ProviderTeamID: providerTeamID,
		TeamName:       name,
		ClubName:       club,
		AgeGroup:       c.AgeGroup,
		Gender:         c.Gender,
		Division:       c.Division,
		State:          p.provider.State,
	})
	if err != nil {
		return matching.MatchResult{}, fmt.Errorf("resolving team %q: %w", name, err)
	}

	switch {
	case res.Created:
		run.TeamsCreated++
	case res.Matched:
		run.TeamsMatched++
	}

	outcome := ""
	switch res.Method {
	case store.MethodFuzzyAuto:
		run.FuzzyAuto++
		outcome = "auto"
	case store.MethodFuzzyReview:
		run.FuzzyReview++
		outcome = "review"
	case "":
		// A zero confidence means no candidate was ever scored; only a
		// scored-and-refused candidate counts as a rejection.
		if !res.Matched && res.Confidence > 0 {
			run.FuzzyRejected++
			outcome = "rejected"
		}
	}

	if p.metrics != nil {
		if res.Created {
			p.metrics.TeamsCreated.WithLabelValues(p.provider.ID).Inc()
		} else if res.Matched {
			p.metrics.TeamsMatched.WithLabelValues(p.provider.ID).Inc()
		}
		if outcome != "" {
			p.metrics.FuzzyOutcomes.WithLabelValues(p.provider.ID, outcome).Inc()
		}
	}

	return res, nil
}

// persist bulk-inserts in chunks. A unique-constraint conflict inside a
// chunk falls back to per-row inserts; a conflicting row is dropped as
// already present.
func (p *Pipeline) persist(ctx context.Context, games []*store.Game, run *store.ImportRun) error {
	for start := 0; start < len(games); start += p.chunkSize {
		end := start + p.chunkSize
		if end > len(games) {
			end = len(games)
		}
		chunk := games[start:end]

		err := p.games.InsertBatch(ctx, chunk)
		if err == nil {
			run.Accepted += len(chunk)
			for _, game := range chunk {
				p.publish(ctx, game)
			}
			continue
		}
		if !errors.Is(err, store.ErrAlreadyExists) {
			return fmt.Errorf("inserting games: %w", err)
		}

		for _, game := range chunk {
			switch err := p.games.Insert(ctx, game); {
			case err == nil:
				run.Accepted++
				p.publish(ctx, game)
			case errors.Is(err, store.ErrAlreadyExists):
				run.DuplicatesFound++
				p.logger.Debug("game landed concurrently, dropping",
					zap.String("game_uid", game.GameUID))
			default:
				return fmt.Errorf("inserting game %s: %w", game.GameUID, err)
			}
		}
	}

	return nil
}

func (p *Pipeline) publish(ctx context.Context, game *store.Game) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishMatchedGame(ctx, game); err != nil {
		p.logger.Warn("publishing matched game",
			zap.String("game_uid", game.GameUID),
			zap.Error(err))
	}
}

func (p *Pipeline) observe(run *store.ImportRun, elapsed time.Duration) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordsProcessed.WithLabelValues(run.ProviderID).Add(float64(run.Processed))
	p.metrics.RecordsAccepted.WithLabelValues(run.ProviderID).Add(float64(run.Accepted))
	p.metrics.DuplicatesFound.WithLabelValues(run.ProviderID).Add(float64(run.DuplicatesFound))
	p.metrics.RunDuration.WithLabelValues(run.ProviderID).Observe(elapsed.Seconds())
}

func marshalPayload(rec ingest.RawPerspectiveRecord) ([]byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("serializing quarantine payload: %w", err)
	}
	return payload, nil
}
