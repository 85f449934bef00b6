package matching

import (
	"context"
	"database/sql"
	"testing"

	"go.uber.org/zap"

	"github.com/fortuna/concordia/internal/store"
)

func testOptions() Options {
	return Options{
		AutoLinkThreshold:     0.90,
		ManualReviewThreshold: 0.75,

		ConservativeMinScore:    0.93,
		ConservativeMinGap:      0.07,
		DivisionBonus:           0.05,
		DivisionPenalty:         0.10,
		BirthYearBonus:          0.05,
		MissingBirthYearPenalty: 0.10,
		AgeConflictYears:        2,

		ClubEquivalenceThreshold: 0.90,
		SeasonYear:               2026,
	}
}

type fakeAliasStore struct {
	aliases map[string]*store.TeamAlias
	created []*store.TeamAlias
	nextID  int64
}

func newFakeAliasStore(seed ...*store.TeamAlias) *fakeAliasStore {
	f := &fakeAliasStore{aliases: make(map[string]*store.TeamAlias), nextID: 1000}
	for _, a := range seed {
		f.aliases[a.AliasKey] = a
	}
	return f
}

func (f *fakeAliasStore) ListByProvider(ctx context.Context, providerID string) ([]*store.TeamAlias, error) {
	var out []*store.TeamAlias
	for _, a := range f.aliases {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAliasStore) Create(ctx context.Context, alias *store.TeamAlias) (*store.TeamAlias, error) {
	if existing, ok := f.aliases[alias.AliasKey]; ok {
		return existing, store.ErrAlreadyExists
	}
	return f.put(alias), nil
}

func (f *fakeAliasStore) Upsert(ctx context.Context, alias *store.TeamAlias) (*store.TeamAlias, error) {
	if existing, ok := f.aliases[alias.AliasKey]; ok && existing.Review == store.ReviewApproved {
		return existing, store.ErrAlreadyExists
	}
	return f.put(alias), nil
}

func (f *fakeAliasStore) put(alias *store.TeamAlias) *store.TeamAlias {
	f.nextID++
	alias.AliasID = f.nextID
	f.aliases[alias.AliasKey] = alias
	f.created = append(f.created, alias)
	return alias
}

type fakeTeamStore struct {
	teams  []*store.MasterTeam
	nextID int64
}

func newFakeTeamStore(seed ...*store.MasterTeam) *fakeTeamStore {
	return &fakeTeamStore{teams: seed, nextID: 100}
}

func (f *fakeTeamStore) GetAll(ctx context.Context) ([]*store.MasterTeam, error) {
	return f.teams, nil
}

func (f *fakeTeamStore) GetByState(ctx context.Context, state string) ([]*store.MasterTeam, error) {
	var out []*store.MasterTeam
	for _, t := range f.teams {
		if t.State.Valid && t.State.String == state {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTeamStore) Create(ctx context.Context, team *store.MasterTeam) (*store.MasterTeam, error) {
	f.nextID++
	team.TeamID = f.nextID
	f.teams = append(f.teams, team)
	return team, nil
}

func team(id int64, name, club, age, gender string) *store.MasterTeam {
	return &store.MasterTeam{
		TeamID:   id,
		Name:     name,
		ClubName: sql.NullString{String: club, Valid: club != ""},
		AgeGroup: age,
		Gender:   gender,
		IsActive: true,
	}
}

func newTestMatcher(t *testing.T, strategy, state string, aliases *fakeAliasStore, teams *fakeTeamStore) TeamMatcher {
	t.Helper()
	cache, err := NewRunCache(context.Background(), "providerX", state, aliases, teams, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRunCache error: %v", err)
	}
	m, err := New(strategy, "providerX", testOptions(), cache, aliases, teams, zap.NewNop())
	if err != nil {
		t.Fatalf("New(%s) error: %v", strategy, err)
	}
	return m
}

func TestBaseMatcherDirectAlias(t *testing.T) {
	aliases := newFakeAliasStore(&store.TeamAlias{
		AliasID: 1, ProviderID: "providerX", AliasKey: "42", TeamID: 7,
		Method: store.MethodDirectID, Confidence: 1.0, Review: store.ReviewApproved,
	})
	teams := newFakeTeamStore(team(7, "Eagles 2010 Red", "Eagles SC", "U16", "M"))
	m := newTestMatcher(t, "base", "", aliases, teams)

	res, err := m.MatchTeam(context.Background(), MatchRequest{
		ProviderTeamID: "42", TeamName: "Totally Different Name", AgeGroup: "U16", Gender: "M",
	})
	if err != nil {
		t.Fatalf("MatchTeam error: %v", err)
	}
	if !res.Matched || res.TeamID != 7 || res.Method != store.MethodDirectID || res.Confidence != 1.0 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestBaseMatcherFuzzyAutoApprove(t *testing.T) {
	aliases := newFakeAliasStore()
	teams := newFakeTeamStore(team(7, "FC United 2012 Red", "United FC", "U14", "M"))
	m := newTestMatcher(t, "base", "", aliases, teams)

	res, err := m.MatchTeam(context.Background(), MatchRequest{
		ProviderTeamID: "55", TeamName: "United FC Red 12B", ClubName: "United FC",
		AgeGroup: "U14", Gender: "M",
	})
	if err != nil {
		t.Fatalf("MatchTeam error: %v", err)
	}
	if !res.Matched || res.TeamID != 7 {
		t.Fatalf("expected auto-approved match, got %+v", res)
	}
	if res.Method != store.MethodFuzzyAuto || res.Confidence < 0.90 {
		t.Errorf("method/confidence = %s/%v, want fuzzy_auto/>=0.90", res.Method, res.Confidence)
	}
	if len(aliases.created) != 1 || aliases.created[0].Review != store.ReviewApproved {
		t.Errorf("expected one approved alias write, got %+v", aliases.created)
	}
}

func TestBaseMatcherFuzzyPendingReview(t *testing.T) {
	aliases := newFakeAliasStore()
	teams := newFakeTeamStore(team(7, "Westside Wolves", "Wolves SC", "U14", "M"))
	m := newTestMatcher(t, "base", "", aliases, teams)

	res, err := m.MatchTeam(context.Background(), MatchRequest{
		ProviderTeamID: "55", TeamName: "Westside Wolves Blue 2011", ClubName: "Wolves SC",
		AgeGroup: "U14", Gender: "M",
	})
	if err != nil {
		t.Fatalf("MatchTeam error: %v", err)
	}
	if res.Matched {
		t.Fatalf("mid-band score must stay unresolved for this run, got %+v", res)
	}
	if res.Method != store.MethodFuzzyReview {
		t.Errorf("method = %s, want fuzzy_review", res.Method)
	}
	if len(aliases.created) != 1 || aliases.created[0].Review != store.ReviewPending {
		t.Errorf("expected one pending alias write, got %+v", aliases.created)
	}
}

func TestFuzzyAutoConflictAdoptsApprovedWinner(t *testing.T) {
	aliases := newFakeAliasStore()
	teams := newFakeTeamStore(team(7, "FC United 2012 Red", "United FC", "U14", "M"))
	m := newTestMatcher(t, "base", "", aliases, teams)

	// A concurrent run claims the key after the cache snapshot,
	// resolving it to a different team.
	aliases.aliases["55"] = &store.TeamAlias{
		AliasID: 2, ProviderID: "providerX", AliasKey: "55", TeamID: 9,
		Method: store.MethodDirectID, Confidence: 1.0, Review: store.ReviewApproved,
	}

	res, err := m.MatchTeam(context.Background(), MatchRequest{
		ProviderTeamID: "55", TeamName: "United FC Red 12B", ClubName: "United FC",
		AgeGroup: "U14", Gender: "M",
	})
	if err != nil {
		t.Fatalf("MatchTeam error: %v", err)
	}
	if !res.Matched || res.TeamID != 9 {
		t.Fatalf("expected adoption of the winner's mapping, got %+v", res)
	}
	if res.Method != store.MethodDirectID || res.Confidence != 1.0 {
		t.Errorf("adopted method/confidence = %s/%v, want the winner's direct_id/1.0", res.Method, res.Confidence)
	}
}

func TestFuzzyAutoConflictWithPendingAliasStaysUnresolved(t *testing.T) {
	aliases := newFakeAliasStore()
	teams := newFakeTeamStore(team(7, "FC United 2012 Red", "United FC", "U14", "M"))
	m := newTestMatcher(t, "base", "", aliases, teams)

	// The key is held by an unreviewed mapping written after the cache
	// snapshot. An unreviewed row is not a resolution.
	aliases.aliases["55"] = &store.TeamAlias{
		AliasID: 2, ProviderID: "providerX", AliasKey: "55", TeamID: 9,
		Method: store.MethodFuzzyReview, Confidence: 0.80, Review: store.ReviewPending,
	}

	res, err := m.MatchTeam(context.Background(), MatchRequest{
		ProviderTeamID: "55", TeamName: "United FC Red 12B", ClubName: "United FC",
		AgeGroup: "U14", Gender: "M",
	})
	if err != nil {
		t.Fatalf("MatchTeam error: %v", err)
	}
	if res.Matched {
		t.Fatalf("pending holder must leave the team unresolved, got %+v", res)
	}
}

func TestBaseMatcherReject(t *testing.T) {
	aliases := newFakeAliasStore()
	teams := newFakeTeamStore(team(7, "Completely Unrelated", "", "U14", "M"))
	m := newTestMatcher(t, "base", "", aliases, teams)

	res, err := m.MatchTeam(context.Background(), MatchRequest{
		ProviderTeamID: "55", TeamName: "Westside Wolves", AgeGroup: "U14", Gender: "M",
	})
	if err != nil {
		t.Fatalf("MatchTeam error: %v", err)
	}
	if res.Matched || res.Method != "" {
		t.Errorf("low score must reject without an alias, got %+v", res)
	}
	if len(aliases.created) != 0 {
		t.Errorf("no alias should be written on rejection, got %d", len(aliases.created))
	}
}

func TestBaseMatcherLeavesUnresolved(t *testing.T) {
	aliases := newFakeAliasStore()
	teams := newFakeTeamStore()
	m := newTestMatcher(t, "base", "", aliases, teams)

	res, err := m.ResolveOrCreate(context.Background(), MatchRequest{
		ProviderTeamID: "55", TeamName: "Westside Wolves", AgeGroup: "U14", Gender: "M",
	})
	if err != nil {
		t.Fatalf("ResolveOrCreate error: %v", err)
	}
	if res.Matched || res.Created {
		t.Errorf("base strategy must not create teams, got %+v", res)
	}
}

func TestConservativeAliasFirst(t *testing.T) {
	aliases := newFakeAliasStore(&store.TeamAlias{
		AliasID: 1, ProviderID: "providerX", AliasKey: "100_U16_D1", TeamID: 7,
		Method: store.MethodDirectID, Confidence: 1.0, Review: store.ReviewApproved,
	})
	teams := newFakeTeamStore(
		team(7, "Thunder 2010 Red", "Thunder SC", "U16", "M"),
		// A fuzzy-perfect decoy that must never be considered once the
		// alias hits.
		team(8, "Thunder 2010 Red", "Thunder SC", "U16", "M"),
	)
	m := newTestMatcher(t, "conservative", "", aliases, teams)

	res, err := m.MatchTeam(context.Background(), MatchRequest{
		ProviderTeamID: "100", TeamName: "Thunder 2010 Red", ClubName: "Thunder SC",
		AgeGroup: "U16", Gender: "M", Division: "D1",
	})
	if err != nil {
		t.Fatalf("MatchTeam error: %v", err)
	}
	if !res.Matched || res.TeamID != 7 || res.Method != store.MethodDirectID {
		t.Fatalf("expected alias hit on team 7, got %+v", res)
	}
	if len(aliases.created) != 0 {
		t.Errorf("alias tier hit must not write aliases, got %d", len(aliases.created))
	}
}

func TestConservativeAliasAgeMismatchRejected(t *testing.T) {
	aliases := newFakeAliasStore(&store.TeamAlias{
		AliasID: 1, ProviderID: "providerX", AliasKey: "100_U16", TeamID: 7,
		Method: store.MethodDirectID, Confidence: 1.0, Review: store.ReviewApproved,
	})
	// The aliased team's real age group disagrees with the request.
	teams := newFakeTeamStore(team(7, "Thunder 2011 Red", "Thunder SC", "U15", "M"))
	m := newTestMatcher(t, "conservative", "", aliases, teams)

	res, err := m.MatchTeam(context.Background(), MatchRequest{
		ProviderTeamID: "100", TeamName: "Thunder 2010 Red", ClubName: "Thunder SC",
		AgeGroup: "U16", Gender: "M",
	})
	if err != nil {
		t.Fatalf("MatchTeam error: %v", err)
	}
	if res.Matched {
		t.Errorf("age-mismatched alias must be a hard rejection, got %+v", res)
	}
}

func TestConservativeGapGateFallsThroughToCreate(t *testing.T) {
	aliases := newFakeAliasStore()
	teams := newFakeTeamStore(
		team(7, "Thunder 2010 Red", "Thunder SC", "U16", "M"),
		team(8, "Thunder 2010 Red II", "Thunder SC", "U16", "M"),
	)
	m := newTestMatcher(t, "conservative", "", aliases, teams)

	req := MatchRequest{
		ProviderTeamID: "100", TeamName: "Thunder 2010 Red", ClubName: "Thunder SC",
		AgeGroup: "U16", Gender: "M",
	}

	res, err := m.MatchTeam(context.Background(), req)
	if err != nil {
		t.Fatalf("MatchTeam error: %v", err)
	}
	if res.Matched {
		t.Fatalf("two near-identical candidates violate the gap gate, got %+v", res)
	}

	created, err := m.ResolveOrCreate(context.Background(), req)
	if err != nil {
		t.Fatalf("ResolveOrCreate error: %v", err)
	}
	if !created.Matched || !created.Created || created.Method != store.MethodImport {
		t.Fatalf("expected new team creation, got %+v", created)
	}
	if len(aliases.created) != 1 {
		t.Fatalf("expected one alias write for the new team, got %d", len(aliases.created))
	}
	alias := aliases.created[0]
	if alias.AliasKey != "100_U16" || alias.Method != store.MethodDirectID || alias.Confidence != 1.0 {
		t.Errorf("unexpected alias for created team: %+v", alias)
	}
}

func TestConservativeBirthYearConflictHardRejects(t *testing.T) {
	aliases := newFakeAliasStore()
	// U16 in the 2026 season means 2010 births; a 2011 token in the
	// candidate name disqualifies it no matter how similar the rest is.
	teams := newFakeTeamStore(team(7, "Thunder 2011 Elite", "Thunder SC", "U16", "M"))
	m := newTestMatcher(t, "conservative", "", aliases, teams)

	res, err := m.MatchTeam(context.Background(), MatchRequest{
		ProviderTeamID: "100", TeamName: "Thunder 2011 Elite", ClubName: "Thunder SC",
		AgeGroup: "U16", Gender: "M",
	})
	if err != nil {
		t.Fatalf("MatchTeam error: %v", err)
	}
	if res.Matched {
		t.Errorf("conflicting birth year must hard-reject, got %+v", res)
	}
	if len(aliases.created) != 0 {
		t.Errorf("no alias should be written, got %d", len(aliases.created))
	}
}

func TestConservativeAgePair(t *testing.T) {
	m := newTestMatcher(t, "conservative", "", newFakeAliasStore(), newFakeTeamStore())

	if m.AgePairOK(MatchResult{AgeGroup: "U16"}, MatchResult{AgeGroup: "U14"}) {
		t.Error("two ordinal years apart must fail the cross-check")
	}
	if !m.AgePairOK(MatchResult{AgeGroup: "U16"}, MatchResult{AgeGroup: "U15"}) {
		t.Error("one ordinal year apart must pass")
	}
	if !m.AgePairOK(MatchResult{AgeGroup: "U16"}, MatchResult{AgeGroup: ""}) {
		t.Error("unparseable age groups must pass")
	}
}

func TestClubVariantTokenGate(t *testing.T) {
	aliases := newFakeAliasStore()
	teams := newFakeTeamStore(team(7, "Lonestar 2010 White", "Lonestar SC", "U16", "M"))
	teams.teams[0].State = sql.NullString{String: "TX", Valid: true}
	m := newTestMatcher(t, "club_variant", "TX", aliases, teams)

	res, err := m.MatchTeam(context.Background(), MatchRequest{
		ProviderTeamID: "L1", TeamName: "Lonestar 2010 Red", ClubName: "Lonestar SC",
		AgeGroup: "U16", Gender: "M", State: "TX",
	})
	if err != nil {
		t.Fatalf("MatchTeam error: %v", err)
	}
	if res.Matched {
		t.Errorf("differing variant tokens must never match, got %+v", res)
	}
}

func TestClubVariantLaneGate(t *testing.T) {
	pool := team(7, "Lonestar 2010 Red", "Lonestar SC", "U16", "M")
	pool.State = sql.NullString{String: "TX", Valid: true}
	pool.Division = sql.NullString{String: "D2", Valid: true}
	m := newTestMatcher(t, "club_variant", "TX", newFakeAliasStore(), newFakeTeamStore(pool))

	res, err := m.MatchTeam(context.Background(), MatchRequest{
		ProviderTeamID: "L1", TeamName: "Lonestar 2010 Red", ClubName: "Lonestar SC",
		AgeGroup: "U16", Gender: "M", State: "TX", Division: "D1",
	})
	if err != nil {
		t.Fatalf("MatchTeam error: %v", err)
	}
	if res.Matched {
		t.Errorf("differing division lanes must never match, got %+v", res)
	}
}

func TestClubVariantMatchesAndCreates(t *testing.T) {
	aliases := newFakeAliasStore()
	pool := team(7, "Lonestar Red 2010", "Lonestar SC TX", "U16", "M")
	pool.State = sql.NullString{String: "TX", Valid: true}
	teams := newFakeTeamStore(pool)
	m := newTestMatcher(t, "club_variant", "TX", aliases, teams)

	res, err := m.MatchTeam(context.Background(), MatchRequest{
		ProviderTeamID: "L1", TeamName: "Lonestar 2010 Red", ClubName: "Lonestar SC",
		AgeGroup: "U16", Gender: "M", State: "TX",
	})
	if err != nil {
		t.Fatalf("MatchTeam error: %v", err)
	}
	if !res.Matched || res.TeamID != 7 || res.Method != store.MethodFuzzyAuto {
		t.Fatalf("expected fuzzy auto match, got %+v", res)
	}

	// A team with no plausible candidate is created, not left dangling.
	created, err := m.ResolveOrCreate(context.Background(), MatchRequest{
		ProviderTeamID: "L9", TeamName: "Hill Country Hawks 2010 Navy", ClubName: "Hill Country SC",
		AgeGroup: "U16", Gender: "M", State: "TX",
	})
	if err != nil {
		t.Fatalf("ResolveOrCreate error: %v", err)
	}
	if !created.Matched || !created.Created {
		t.Fatalf("expected creation, got %+v", created)
	}
}

func TestClubVariantCreateSupersedesPendingAlias(t *testing.T) {
	aliases := newFakeAliasStore()
	pool := team(7, "Lonestar Mavericks", "Lonestar SC TX", "U16", "M")
	pool.State = sql.NullString{String: "TX", Valid: true}
	teams := newFakeTeamStore(pool)
	m := newTestMatcher(t, "club_variant", "TX", aliases, teams)

	// Mid-band against the only candidate: the fuzzy pass leaves a
	// pending row for the key, then the fallback creates a new team.
	// The created team's direct alias must supersede that pending row.
	req := MatchRequest{
		ProviderTeamID: "L1", TeamName: "Lonestar Chargers", ClubName: "Lonestar SC",
		AgeGroup: "U16", Gender: "M", State: "TX",
	}
	created, err := m.ResolveOrCreate(context.Background(), req)
	if err != nil {
		t.Fatalf("ResolveOrCreate error: %v", err)
	}
	if !created.Matched || !created.Created || created.TeamID == 7 {
		t.Fatalf("expected a newly created team, got %+v", created)
	}

	row := aliases.aliases["L1"]
	if row == nil || row.TeamID != created.TeamID || row.Review != store.ReviewApproved {
		t.Fatalf("alias row must map the key to the created team as approved, got %+v", row)
	}

	// Re-importing the same provider team resolves to the created team,
	// not to the mid-band candidate the pending row pointed at.
	again, err := m.ResolveOrCreate(context.Background(), req)
	if err != nil {
		t.Fatalf("ResolveOrCreate error: %v", err)
	}
	if !again.Matched || again.TeamID != created.TeamID || again.Created {
		t.Fatalf("expected the created team on re-import, got %+v", again)
	}
	if again.Method != store.MethodDirectID {
		t.Errorf("re-import method = %s, want direct_id", again.Method)
	}
}

func TestUnknownStrategy(t *testing.T) {
	_, err := New("bogus", "providerX", testOptions(), nil, nil, nil, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestRunCacheSeesTeamsCreatedThisRun(t *testing.T) {
	aliases := newFakeAliasStore()
	teams := newFakeTeamStore()
	m := newTestMatcher(t, "conservative", "", aliases, teams)

	req := MatchRequest{
		ProviderTeamID: "100", TeamName: "Thunder 2010 Red", ClubName: "Thunder SC",
		AgeGroup: "U16", Gender: "M", Division: "D1",
	}

	first, err := m.ResolveOrCreate(context.Background(), req)
	if err != nil {
		t.Fatalf("first ResolveOrCreate error: %v", err)
	}
	if !first.Created {
		t.Fatalf("expected creation, got %+v", first)
	}

	// The second lookup for the same key must hit the alias written
	// moments ago, without another creation.
	second, err := m.ResolveOrCreate(context.Background(), req)
	if err != nil {
		t.Fatalf("second ResolveOrCreate error: %v", err)
	}
	if second.Created || second.Method != store.MethodDirectID || second.TeamID != first.TeamID {
		t.Errorf("expected alias hit on the team created this run, got %+v", second)
	}
}
