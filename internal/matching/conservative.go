package matching

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fortuna/concordia/internal/store"
)

// ConservativeMatcher serves providers that reuse one opaque club id
// across every age group and division. The bare id cannot identify a
// team, so alias keys are suffixed with age and division, fuzzy
// acceptance is far stricter than the base, and an unresolved team is
// always created rather than left dangling.
type ConservativeMatcher struct {
	*BaseMatcher
}

var suffixSanitizer = regexp.MustCompile(`[^A-Z0-9]+`)

func suffixToken(s string) string {
	return strings.Trim(suffixSanitizer.ReplaceAllString(strings.ToUpper(s), "_"), "_")
}

// aliasKeys returns the lookup keys for a request, most specific first:
// {id}_{AGE}_{DIVISION}, {id}_{AGE}, bare id.
func (m *ConservativeMatcher) aliasKeys(req MatchRequest) []string {
	age := suffixToken(req.AgeGroup)
	div := suffixToken(req.Division)

	var keys []string
	if age != "" && div != "" {
		keys = append(keys, fmt.Sprintf("%s_%s_%s", req.ProviderTeamID, age, div))
	}
	if age != "" {
		keys = append(keys, fmt.Sprintf("%s_%s", req.ProviderTeamID, age))
	}
	keys = append(keys, req.ProviderTeamID)
	return keys
}

// primaryKey is the most specific alias key available for a request,
// the one new aliases are written under.
func (m *ConservativeMatcher) primaryKey(req MatchRequest) string {
	return m.aliasKeys(req)[0]
}

// MatchTeam tries the suffixed alias keys and then strict fuzzy
// matching. Any approved alias hit whose master team carries the
// expected age group returns immediately; fuzzy matching never runs for
// a key that already resolved through an alias.
func (m *ConservativeMatcher) MatchTeam(ctx context.Context, req MatchRequest) (MatchResult, error) {
	for _, key := range m.aliasKeys(req) {
		alias, ok := m.cache.Alias(key)
		if !ok || alias.Review != store.ReviewApproved {
			continue
		}

		// Re-validate the stored team's age group. A shared club id
		// makes a stale alias dangerous, so a mismatch rejects the hit
		// outright instead of trusting it.
		team, found := m.cache.TeamByID(alias.TeamID)
		if !found || team.AgeGroup != req.AgeGroup {
			m.logger.Warn("alias age mismatch, rejecting hit",
				zap.String("alias_key", key),
				zap.Int64("team_id", alias.TeamID),
				zap.String("expected_age", req.AgeGroup))
			continue
		}

		return m.resultFor(alias.TeamID, store.MethodDirectID, 1.0), nil
	}

	return m.fuzzyMatchStrict(ctx, req)
}

// ResolveOrCreate falls back to creating a new master team plus its
// suffixed alias whenever matching fails. This provider never leaves a
// team unresolved.
func (m *ConservativeMatcher) ResolveOrCreate(ctx context.Context, req MatchRequest) (MatchResult, error) {
	res, err := m.MatchTeam(ctx, req)
	if err != nil || res.Matched {
		return res, err
	}

	team, err := m.createTeam(ctx, req)
	if err != nil {
		return MatchResult{}, err
	}

	// The suffixed alias makes every later lookup for this team, age,
	// and division an alias-tier hit. If a concurrent writer already
	// holds the key with an approved mapping, that mapping wins and the
	// new team is abandoned to review cleanup.
	adopted, wasAdopted, err := m.persistCreatedAlias(ctx, req, m.primaryKey(req), team)
	if err != nil {
		return MatchResult{}, err
	}
	if wasAdopted {
		return adopted, nil
	}

	return MatchResult{
		Matched:    true,
		TeamID:     team.TeamID,
		AgeGroup:   team.AgeGroup,
		Method:     store.MethodImport,
		Confidence: 1.0,
		Created:    true,
	}, nil
}

// AgePairOK rejects a resolved pair whose age groups sit two or more
// ordinal years apart. Each side can match well individually while the
// pair pairs unrelated brackets.
func (m *ConservativeMatcher) AgePairOK(home, away MatchResult) bool {
	h, okH := AgeOrdinal(home.AgeGroup)
	a, okA := AgeOrdinal(away.AgeGroup)
	if !okH || !okA {
		return true
	}

	diff := h - a
	if diff < 0 {
		diff = -diff
	}
	return diff < m.opts.AgeConflictYears
}

// fuzzyMatchStrict applies the conservative gates: best adjusted score
// at or above the strict minimum, a clear gap to the runner-up, and at
// least one shared name token.
func (m *ConservativeMatcher) fuzzyMatchStrict(ctx context.Context, req MatchRequest) (MatchResult, error) {
	best, second := m.adjustedCandidates(req)
	if best.team == nil {
		return MatchResult{}, nil
	}

	gap := best.score - second.score
	if best.score < m.opts.ConservativeMinScore ||
		gap < m.opts.ConservativeMinGap ||
		!TokensOverlap(req.TeamName, best.team.Name) {
		m.logger.Debug("fuzzy candidate below conservative gates",
			zap.String("team_name", req.TeamName),
			zap.String("candidate", best.team.Name),
			zap.Float64("score", best.score),
			zap.Float64("gap", gap))
		return MatchResult{Confidence: best.score}, nil
	}

	return m.persistAlias(ctx, req, m.primaryKey(req), best.team, store.MethodFuzzyAuto, best.score)
}

// adjustedCandidates scores the age/gender-filtered pool with the
// division and birth-year adjustments applied, returning the best and
// second-best survivors.
func (m *ConservativeMatcher) adjustedCandidates(req MatchRequest) (best, second candidate) {
	normName := NormalizeTeamName(req.TeamName)
	normClub := NormalizeTeamName(req.ClubName)
	reqDiv := suffixToken(req.Division)
	inferredYear, haveYear := BirthYearForAge(req.AgeGroup, m.opts.SeasonYear)

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

		// Division agreement nudges the score either way without
		// gating outright.
		if reqDiv != "" && team.Division.Valid {
			if suffixToken(team.Division.String) == reqDiv {
				score += m.opts.DivisionBonus
			} else {
				score -= m.opts.DivisionPenalty
			}
		}

		// A conflicting birth-year token in the candidate name is the
		// one hard rejection at this stage: the name itself says this
		// is a different cohort.
		if haveYear {
			candYear, found := ExtractBirthYear(team.Name)
			switch {
			case found && candYear == inferredYear:
				score += m.opts.BirthYearBonus
			case found:
				continue
			default:
				score -= m.opts.MissingBirthYearPenalty
			}
		}

		if score > 1.0 {
			score = 1.0
		}

		if score > best.score {
			second = best
			best = candidate{team: team, score: score}
		} else if score > second.score {
			second = candidate{team: team, score: score}
		}
	}

	return best, second
}
