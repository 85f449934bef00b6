package matching

import (
	"context"

	"go.uber.org/zap"

	"github.com/fortuna/concordia/internal/store"
)

// ClubVariantMatcher serves a state-scoped provider whose teams are
// parallel rosters of a club, told apart by a variant token (color,
// tier) and a numeric competition lane. Candidacy is gated on club
// equivalence plus strict variant and lane agreement; like the
// conservative variant, an unresolved team is always created.
type ClubVariantMatcher struct {
	*BaseMatcher
}

// MatchTeam tries the direct alias and then gated fuzzy matching over
// the state-filtered candidate pool.
func (m *ClubVariantMatcher) MatchTeam(ctx context.Context, req MatchRequest) (MatchResult, error) {
	if alias, ok := m.cache.Alias(req.ProviderTeamID); ok && alias.Review == store.ReviewApproved {
		return m.resultFor(alias.TeamID, store.MethodDirectID, 1.0), nil
	}

	best, _ := m.gatedCandidates(req)
	if best.team == nil {
		return MatchResult{}, nil
	}

	switch {
	case best.score >= m.opts.AutoLinkThreshold:
		return m.persistAlias(ctx, req, req.ProviderTeamID, best.team, store.MethodFuzzyAuto, best.score)

	case best.score >= m.opts.ManualReviewThreshold:
		if err := m.persistPendingAlias(ctx, req, req.ProviderTeamID, best.team, best.score); err != nil {
			return MatchResult{}, err
		}
		return MatchResult{Method: store.MethodFuzzyReview, Confidence: best.score}, nil

	default:
		return MatchResult{Confidence: best.score}, nil
	}
}

// ResolveOrCreate creates a new master team and its alias whenever
// matching fails.
func (m *ClubVariantMatcher) ResolveOrCreate(ctx context.Context, req MatchRequest) (MatchResult, error) {
	res, err := m.MatchTeam(ctx, req)
	if err != nil || res.Matched {
		return res, err
	}

	team, err := m.createTeam(ctx, req)
	if err != nil {
		return MatchResult{}, err
	}

	adopted, wasAdopted, err := m.persistCreatedAlias(ctx, req, req.ProviderTeamID, team)
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

// gatedCandidates scores the candidates that survive the club
// equivalence, variant-token, and division-lane gates.
func (m *ClubVariantMatcher) gatedCandidates(req MatchRequest) (best, second candidate) {
	normName := NormalizeTeamName(req.TeamName)

	reqClubRaw := req.ClubName
	if reqClubRaw == "" {
		reqClubRaw = req.TeamName
	}
	reqClub := NormalizeClubName(reqClubRaw, req.State)
	reqVariant := ExtractVariantToken(req.TeamName)
	reqLane, haveReqLane := divisionLane(req)

	for _, team := range m.cache.Teams() {
		if team.AgeGroup != req.AgeGroup || team.Gender != req.Gender {
			continue
		}

		candClubRaw := team.Name
		if team.ClubName.Valid {
			candClubRaw = team.ClubName.String
		}
		candClub := NormalizeClubName(candClubRaw, req.State)

		// Gate 1: the clubs themselves must be near-identical.
		if Similarity(reqClub, candClub) < m.opts.ClubEquivalenceThreshold {
			continue
		}

		// Gate 2: roster variant tokens must agree exactly. "Red" and
		// "White" are different teams no matter how alike the names are.
		if reqVariant != ExtractVariantToken(team.Name) {
			continue
		}

		// Gate 3: differing competition lanes never match.
		if haveReqLane {
			candLane, haveCandLane := teamDivisionLane(team)
			if haveCandLane && candLane != reqLane {
				m.logger.Debug("division lane mismatch, rejecting candidate",
					zap.String("team_name", req.TeamName),
					zap.String("candidate", team.Name),
					zap.Int("lane", reqLane),
					zap.Int("candidate_lane", candLane))
				continue
			}
		}

		// The canonicalized club forms feed the score too; the raw
		// forms differ mostly by state suffixes this provider adds.
		score := WeightedScore(ScoreInput{
			NameSim:        Similarity(normName, NormalizeTeamName(team.Name)),
			ClubSim:        Similarity(reqClub, candClub),
			ClubsIdentical: reqClub != "" && reqClub == candClub,
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

// divisionLane extracts the competition lane for a request, preferring
// the explicit division field over a token buried in the team name.
func divisionLane(req MatchRequest) (int, bool) {
	if n, ok := ExtractDivisionLane(req.Division); ok {
		return n, true
	}
	return ExtractDivisionLane(req.TeamName)
}

func teamDivisionLane(team *store.MasterTeam) (int, bool) {
	if team.Division.Valid {
		if n, ok := ExtractDivisionLane(team.Division.String); ok {
			return n, true
		}
	}
	return ExtractDivisionLane(team.Name)
}
