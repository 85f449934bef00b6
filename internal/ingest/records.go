package ingest

import (
	"fmt"
	"strings"
	"time"
)

// RawPerspectiveRecord is one team's view of a physical game as delivered
// by an external scraper. Two such records usually describe the same game,
// one from each participant's point of view.
type RawPerspectiveRecord struct {
	Provider     string `json:"provider"`
	TeamID       string `json:"team_id"`
	TeamName     string `json:"team_name"`
	ClubName     string `json:"club_name,omitempty"`
	OpponentID   string `json:"opponent_id"`
	OpponentName string `json:"opponent_name"`
	OpponentClub string `json:"opponent_club,omitempty"`
	AgeGroup     string `json:"age_group"`
	Gender       string `json:"gender"`
	GameDate     string `json:"game_date"`
	HomeAway     string `json:"home_away"`
	GoalsFor     int    `json:"goals_for"`
	GoalsAgainst int    `json:"goals_against"`
	Competition  string `json:"competition,omitempty"`
	Division     string `json:"division,omitempty"`
	Event        string `json:"event,omitempty"`
	Venue        string `json:"venue,omitempty"`
	SourceURL    string `json:"source_url,omitempty"`
	ScrapedAt    string `json:"scraped_at,omitempty"`
}

// dateLayouts are the provider-local date formats seen in practice,
// tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01-02T15:04:05Z07:00",
}

// NormalizeDate parses a provider-local date string and returns it in
// YYYY-MM-DD form.
func NormalizeDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty date")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}

	return "", fmt.Errorf("unrecognized date format: %q", raw)
}

// NormalizeGender maps the gender spellings providers use onto the two
// canonical single-letter codes.
func NormalizeGender(raw string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "M", "B", "BOYS", "MALE":
		return "M", nil
	case "F", "G", "GIRLS", "FEMALE", "W":
		return "F", nil
	default:
		return "", fmt.Errorf("unrecognized gender: %q", raw)
	}
}

// NormalizeHomeAway maps home/away spellings onto "H" or "A".
func NormalizeHomeAway(raw string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "H", "HOME":
		return "H", nil
	case "A", "AWAY":
		return "A", nil
	default:
		return "", fmt.Errorf("unrecognized home/away flag: %q", raw)
	}
}
