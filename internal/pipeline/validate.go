package pipeline

import (
	"fmt"
	"strings"

	"github.com/fortuna/concordia/internal/ingest"
)

// Quarantine reason codes.
const (
	ReasonMissingField  = "missing_field"
	ReasonBadDate       = "bad_date"
	ReasonBadFlag       = "bad_flag"
	ReasonBadScore      = "bad_score"
	ReasonBadAgeGroup   = "bad_age_group"
	ReasonBadGender     = "bad_gender"
	ReasonWrongProvider = "wrong_provider"
)

// ValidationError carries the reason a record was rejected. It is a
// per-record condition; the batch continues around it.
type ValidationError struct {
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// ValidateRecord checks one raw record against the schema and range
// rules and returns a normalized copy: date in YYYY-MM-DD, gender and
// home/away flag in canonical single-letter form.
func ValidateRecord(rec ingest.RawPerspectiveRecord, providerID string) (ingest.RawPerspectiveRecord, *ValidationError) {
	if rec.Provider != providerID {
		return rec, &ValidationError{ReasonWrongProvider,
			fmt.Sprintf("record provider %q does not belong to batch provider %q", rec.Provider, providerID)}
	}

	// Checked in a fixed order so the reported field is stable when
	// several are missing.
	for _, f := range []struct{ name, value string }{
		{"team_id", rec.TeamID},
		{"team_name", rec.TeamName},
		{"opponent_id", rec.OpponentID},
		{"game_date", rec.GameDate},
		{"age_group", rec.AgeGroup},
		{"gender", rec.Gender},
	} {
		if strings.TrimSpace(f.value) == "" {
			return rec, &ValidationError{ReasonMissingField, f.name + " is empty"}
		}
	}

	date, err := ingest.NormalizeDate(rec.GameDate)
	if err != nil {
		return rec, &ValidationError{ReasonBadDate, err.Error()}
	}
	rec.GameDate = date

	gender, err := ingest.NormalizeGender(rec.Gender)
	if err != nil {
		return rec, &ValidationError{ReasonBadGender, err.Error()}
	}
	rec.Gender = gender

	flag, err := ingest.NormalizeHomeAway(rec.HomeAway)
	if err != nil {
		return rec, &ValidationError{ReasonBadFlag, err.Error()}
	}
	rec.HomeAway = flag

	if rec.GoalsFor < 0 || rec.GoalsAgainst < 0 {
		return rec, &ValidationError{ReasonBadScore,
			fmt.Sprintf("negative score %d-%d", rec.GoalsFor, rec.GoalsAgainst)}
	}

	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(rec.AgeGroup)), "U") {
		return rec, &ValidationError{ReasonBadAgeGroup,
			fmt.Sprintf("unrecognized age group %q", rec.AgeGroup)}
	}

	return rec, nil
}
