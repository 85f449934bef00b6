package identity

import (
	"encoding/json"
	"fmt"

	"github.com/fortuna/concordia/internal/ingest"
)

// CanonicalGameRecord is the home/away-neutral form of a game, produced
// from one surviving perspective record. Master-team ids are filled in by
// the matching stage.
type CanonicalGameRecord struct {
	GameUID        string
	ProviderID     string
	GameDate       string
	HomeProviderID string
	AwayProviderID string
	HomeName       string
	AwayName       string
	HomeClub       string
	AwayClub       string
	HomeScore      int
	AwayScore      int
	AgeGroup       string
	Gender         string
	Competition    string
	Division       string
	RawPayload     []byte
}

// Result returns the game outcome from the home side's point of view.
func (c *CanonicalGameRecord) Result() string {
	switch {
	case c.HomeScore > c.AwayScore:
		return "H"
	case c.AwayScore > c.HomeScore:
		return "A"
	default:
		return "D"
	}
}

// TransformPerspective maps one team's view of a game into the
// home/away-neutral canonical form using the record's home/away flag.
// The full raw record is kept as an audit payload.
func TransformPerspective(rec ingest.RawPerspectiveRecord) (*CanonicalGameRecord, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("serializing raw payload: %w", err)
	}

	canonical := &CanonicalGameRecord{
		GameUID:     GenerateUID(rec.Provider, rec.GameDate, rec.TeamID, rec.OpponentID),
		ProviderID:  rec.Provider,
		GameDate:    rec.GameDate,
		AgeGroup:    rec.AgeGroup,
		Gender:      rec.Gender,
		Competition: rec.Competition,
		Division:    rec.Division,
		RawPayload:  payload,
	}

	switch rec.HomeAway {
	case "H":
		canonical.HomeProviderID = NormalizeTeamRef(rec.TeamID)
		canonical.AwayProviderID = NormalizeTeamRef(rec.OpponentID)
		canonical.HomeName = rec.TeamName
		canonical.AwayName = rec.OpponentName
		canonical.HomeClub = rec.ClubName
		canonical.AwayClub = rec.OpponentClub
		canonical.HomeScore = rec.GoalsFor
		canonical.AwayScore = rec.GoalsAgainst
	case "A":
		canonical.HomeProviderID = NormalizeTeamRef(rec.OpponentID)
		canonical.AwayProviderID = NormalizeTeamRef(rec.TeamID)
		canonical.HomeName = rec.OpponentName
		canonical.AwayName = rec.TeamName
		canonical.HomeClub = rec.OpponentClub
		canonical.AwayClub = rec.ClubName
		canonical.HomeScore = rec.GoalsAgainst
		canonical.AwayScore = rec.GoalsFor
	default:
		return nil, fmt.Errorf("invalid home/away flag: %q", rec.HomeAway)
	}

	return canonical, nil
}
