package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/fortuna/concordia/internal/ingest"
	"github.com/fortuna/concordia/internal/matching"
	"github.com/fortuna/concordia/internal/store"
)

type fakeGameStore struct {
	existing  map[string]bool
	inserted  []*store.Game
	conflicts map[string]bool
	filterErr error
}

func newFakeGameStore() *fakeGameStore {
	return &fakeGameStore{existing: make(map[string]bool), conflicts: make(map[string]bool)}
}

func (f *fakeGameStore) FilterExistingUIDs(ctx context.Context, uids []string) (map[string]bool, error) {
	if f.filterErr != nil {
		return nil, f.filterErr
	}
	out := make(map[string]bool)
	for _, uid := range uids {
		if f.existing[uid] {
			out[uid] = true
		}
	}
	return out, nil
}

func (f *fakeGameStore) InsertBatch(ctx context.Context, games []*store.Game) error {
	for _, g := range games {
		if f.conflicts[g.GameUID] || f.existing[g.GameUID] {
			return store.ErrAlreadyExists
		}
	}
	for _, g := range games {
		f.insert(g)
	}
	return nil
}

func (f *fakeGameStore) Insert(ctx context.Context, game *store.Game) error {
	if f.conflicts[game.GameUID] || f.existing[game.GameUID] {
		return store.ErrAlreadyExists
	}
	f.insert(game)
	return nil
}

func (f *fakeGameStore) insert(g *store.Game) {
	f.inserted = append(f.inserted, g)
	f.existing[g.GameUID] = true
}

type fakeQuarantineStore struct {
	entries []*store.QuarantineEntry
}

func (f *fakeQuarantineStore) Insert(ctx context.Context, entry *store.QuarantineEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeRunStore struct {
	runs []*store.ImportRun
}

func (f *fakeRunStore) Upsert(ctx context.Context, run *store.ImportRun) error {
	f.runs = append(f.runs, run)
	return nil
}

// fakeMatcher resolves provider team ids it knows and leaves the rest
// unmatched.
type fakeMatcher struct {
	teams     map[string]matching.MatchResult
	agePairOK bool
}

func newFakeMatcher() *fakeMatcher {
	return &fakeMatcher{teams: make(map[string]matching.MatchResult), agePairOK: true}
}

func (f *fakeMatcher) MatchTeam(ctx context.Context, req matching.MatchRequest) (matching.MatchResult, error) {
	return f.teams[req.ProviderTeamID], nil
}

func (f *fakeMatcher) ResolveOrCreate(ctx context.Context, req matching.MatchRequest) (matching.MatchResult, error) {
	return f.teams[req.ProviderTeamID], nil
}

func (f *fakeMatcher) AgePairOK(home, away matching.MatchResult) bool {
	return f.agePairOK
}

func (f *fakeMatcher) resolve(providerTeamID string, teamID int64) {
	f.teams[providerTeamID] = matching.MatchResult{
		Matched: true, TeamID: teamID, AgeGroup: "U14",
		Method: store.MethodDirectID, Confidence: 1.0,
	}
}

func (f *fakeMatcher) reject(providerTeamID string, confidence float64) {
	f.teams[providerTeamID] = matching.MatchResult{Confidence: confidence}
}

func record(teamID, oppID string, flag string) ingest.RawPerspectiveRecord {
	return ingest.RawPerspectiveRecord{
		Provider:     "providerX",
		TeamID:       teamID,
		TeamName:     "Team " + teamID,
		OpponentID:   oppID,
		OpponentName: "Team " + oppID,
		AgeGroup:     "U14",
		Gender:       "M",
		GameDate:     "2025-01-10",
		HomeAway:     flag,
		GoalsFor:     2,
		GoalsAgainst: 1,
	}
}

func newTestPipeline(t *testing.T, games *fakeGameStore, quarant *fakeQuarantineStore, runs *fakeRunStore, m *fakeMatcher) *Pipeline {
	t.Helper()
	p, err := New(ingest.Provider{ID: "providerX", Strategy: "base"}, m, games, quarant, runs, nil, nil, 100, zap.NewNop())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return p
}

func TestRunDropsPersistedDuplicates(t *testing.T) {
	games := newFakeGameStore()
	matcher := newFakeMatcher()

	// 500 single-perspective records; 50 of them collide with games
	// persisted by earlier runs.
	var records []ingest.RawPerspectiveRecord
	for i := 0; i < 500; i++ {
		teamID := fmt.Sprintf("%d", 1000+i)
		oppID := fmt.Sprintf("%d", 5000+i)
		records = append(records, record(teamID, oppID, "H"))
		matcher.resolve(teamID, int64(i*2+1))
		matcher.resolve(oppID, int64(i*2+2))

		if i < 50 {
			games.existing[fmt.Sprintf("providerX:2025-01-10:%s:%s", teamID, oppID)] = true
		}
	}

	runs := &fakeRunStore{}
	p := newTestPipeline(t, games, &fakeQuarantineStore{}, runs, matcher)

	run, err := p.Run(context.Background(), records, "build-1")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if run.DuplicatesFound != 50 {
		t.Errorf("duplicates_found = %d, want 50", run.DuplicatesFound)
	}
	if len(games.inserted) != 450 {
		t.Errorf("inserted = %d, want 450", len(games.inserted))
	}
	if run.Accepted != 450 {
		t.Errorf("accepted = %d, want 450", run.Accepted)
	}
	if run.Processed != 500 {
		t.Errorf("processed = %d, want 500", run.Processed)
	}
	if len(runs.runs) != 1 || runs.runs[0].BuildID != "build-1" {
		t.Errorf("expected one run log for build-1, got %+v", runs.runs)
	}
}

func TestRunCollapsesPerspectives(t *testing.T) {
	games := newFakeGameStore()
	matcher := newFakeMatcher()
	matcher.resolve("12", 1)
	matcher.resolve("99", 2)

	home := record("12", "99", "H")
	home.GoalsFor, home.GoalsAgainst = 3, 1
	away := record("99", "12", "A")
	away.GoalsFor, away.GoalsAgainst = 1, 3

	p := newTestPipeline(t, games, &fakeQuarantineStore{}, &fakeRunStore{}, matcher)
	run, err := p.Run(context.Background(), []ingest.RawPerspectiveRecord{home, away}, "build-1")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(games.inserted) != 1 {
		t.Fatalf("inserted = %d, want 1", len(games.inserted))
	}
	g := games.inserted[0]
	if g.GameUID != "providerX:2025-01-10:12:99" {
		t.Errorf("game_uid = %q", g.GameUID)
	}
	if g.HomeScore != 3 || g.AwayScore != 1 {
		t.Errorf("score = %d-%d, want 3-1", g.HomeScore, g.AwayScore)
	}
	if g.Status != store.MatchStatusMatched {
		t.Errorf("status = %s, want matched", g.Status)
	}
	if run.Accepted != 1 {
		t.Errorf("accepted = %d, want 1", run.Accepted)
	}
}

func TestRunQuarantinesInvalidRecords(t *testing.T) {
	games := newFakeGameStore()
	matcher := newFakeMatcher()
	matcher.resolve("12", 1)
	matcher.resolve("99", 2)

	badDate := record("12", "99", "H")
	badDate.GameDate = "soon"
	noTeam := record("", "99", "H")
	badFlag := record("30", "40", "X")

	quarant := &fakeQuarantineStore{}
	p := newTestPipeline(t, games, quarant, &fakeRunStore{}, matcher)

	run, err := p.Run(context.Background(), []ingest.RawPerspectiveRecord{
		badDate, noTeam, badFlag, record("12", "99", "H"),
	}, "build-1")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if run.Quarantined != 3 {
		t.Errorf("quarantined = %d, want 3", run.Quarantined)
	}
	if len(quarant.entries) != 3 {
		t.Fatalf("quarantine entries = %d, want 3", len(quarant.entries))
	}
	reasons := map[string]bool{}
	for _, e := range quarant.entries {
		reasons[e.ReasonCode] = true
		if len(e.RawPayload) == 0 {
			t.Error("quarantine entry lost its raw payload")
		}
	}
	for _, want := range []string{ReasonBadDate, ReasonMissingField, ReasonBadFlag} {
		if !reasons[want] {
			t.Errorf("missing quarantine reason %s", want)
		}
	}
	if run.Accepted != 1 {
		t.Errorf("accepted = %d, want 1", run.Accepted)
	}
}

func TestRunMatchStatusClassification(t *testing.T) {
	games := newFakeGameStore()
	matcher := newFakeMatcher()
	// Only team 12 resolves; 99 and 55 stay unmatched.
	matcher.resolve("12", 1)
	matcher.resolve("77", 2)
	matcher.resolve("78", 3)

	p := newTestPipeline(t, games, &fakeQuarantineStore{}, &fakeRunStore{}, matcher)
	_, err := p.Run(context.Background(), []ingest.RawPerspectiveRecord{
		record("77", "78", "H"), // both resolve
		record("12", "99", "H"), // home only
		record("55", "99", "H"), // neither
	}, "build-1")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(games.inserted) != 3 {
		t.Fatalf("inserted = %d, want 3", len(games.inserted))
	}
	byUID := map[string]*store.Game{}
	for _, g := range games.inserted {
		byUID[g.GameUID] = g
	}

	if g := byUID["providerX:2025-01-10:77:78"]; g.Status != store.MatchStatusMatched {
		t.Errorf("both-resolved game status = %s, want matched", g.Status)
	}
	if g := byUID["providerX:2025-01-10:12:99"]; g.Status != store.MatchStatusPartial {
		t.Errorf("one-resolved game status = %s, want partial", g.Status)
	}
	if g := byUID["providerX:2025-01-10:55:99"]; g.Status != store.MatchStatusFailed {
		t.Errorf("unresolved game status = %s, want failed", g.Status)
	}
}

func TestRunCountsOnlyScoredRejections(t *testing.T) {
	games := newFakeGameStore()
	matcher := newFakeMatcher()
	matcher.resolve("12", 1)
	// 99 was scored and refused; 55 and 60 never had a candidate.
	matcher.reject("99", 0.60)

	runs := &fakeRunStore{}
	p := newTestPipeline(t, games, &fakeQuarantineStore{}, runs, matcher)
	run, err := p.Run(context.Background(), []ingest.RawPerspectiveRecord{
		record("12", "99", "H"),
		record("55", "60", "H"),
	}, "build-1")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if run.FuzzyRejected != 1 {
		t.Errorf("fuzzy_rejected = %d, want 1; candidate-less teams are not rejections", run.FuzzyRejected)
	}
	if run.TeamsMatched != 1 {
		t.Errorf("teams_matched = %d, want 1", run.TeamsMatched)
	}
}

func TestRunAgeCrossCheckDowngrades(t *testing.T) {
	games := newFakeGameStore()
	matcher := newFakeMatcher()
	matcher.resolve("12", 1)
	matcher.resolve("99", 2)
	matcher.agePairOK = false

	p := newTestPipeline(t, games, &fakeQuarantineStore{}, &fakeRunStore{}, matcher)
	_, err := p.Run(context.Background(), []ingest.RawPerspectiveRecord{record("12", "99", "H")}, "build-1")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if games.inserted[0].Status != store.MatchStatusFailed {
		t.Errorf("status = %s, want failed after cross-check", games.inserted[0].Status)
	}
}

func TestRunInsertConflictRetriedIndividually(t *testing.T) {
	games := newFakeGameStore()
	matcher := newFakeMatcher()

	var records []ingest.RawPerspectiveRecord
	for i := 0; i < 3; i++ {
		teamID := fmt.Sprintf("%d", 10+i)
		oppID := fmt.Sprintf("%d", 90+i)
		records = append(records, record(teamID, oppID, "H"))
		matcher.resolve(teamID, int64(i*2+1))
		matcher.resolve(oppID, int64(i*2+2))
	}

	// A concurrent run lands this game between the duplicate check and
	// the insert.
	games.conflicts["providerX:2025-01-10:11:91"] = true

	p := newTestPipeline(t, games, &fakeQuarantineStore{}, &fakeRunStore{}, matcher)
	run, err := p.Run(context.Background(), records, "build-1")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if run.Accepted != 2 {
		t.Errorf("accepted = %d, want 2", run.Accepted)
	}
	if run.DuplicatesFound != 1 {
		t.Errorf("duplicates_found = %d, want 1", run.DuplicatesFound)
	}
	if len(games.inserted) != 2 {
		t.Errorf("inserted = %d, want 2", len(games.inserted))
	}
}

func TestRunAbortsOnStoreError(t *testing.T) {
	games := newFakeGameStore()
	games.filterErr = errors.New("connection refused")
	matcher := newFakeMatcher()
	runs := &fakeRunStore{}

	p := newTestPipeline(t, games, &fakeQuarantineStore{}, runs, matcher)
	run, err := p.Run(context.Background(), []ingest.RawPerspectiveRecord{record("12", "99", "H")}, "build-1")
	if err == nil {
		t.Fatal("expected error from aborted run")
	}

	if !run.LastError.Valid {
		t.Error("run log should carry the failure")
	}
	if len(runs.runs) != 1 {
		t.Errorf("partial run log should still be written, got %d", len(runs.runs))
	}
}

func TestPipelineRequiresProvider(t *testing.T) {
	_, err := New(ingest.Provider{}, newFakeMatcher(), newFakeGameStore(), &fakeQuarantineStore{}, &fakeRunStore{}, nil, nil, 100, zap.NewNop())
	if !errors.Is(err, ingest.ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
}
