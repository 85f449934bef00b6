package identity

import (
	"fmt"
	"regexp"
	"strings"
)

// decimalArtifact matches numeric ids that picked up a trailing ".0"
// (or ".00" and so on) somewhere upstream, usually from a spreadsheet
// export treating the id column as a float.
var decimalArtifact = regexp.MustCompile(`^(\d+)\.0+$`)

// NormalizeTeamRef cleans a provider team id for use inside a game UID.
func NormalizeTeamRef(id string) string {
	s := strings.TrimSpace(id)
	if m := decimalArtifact.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// GenerateUID derives the deterministic identifier for a physical game
// from its provider, date, and the unordered pair of team ids. The pair
// is sorted so both perspectives of the same game produce the same UID,
// and scores play no part at all.
func GenerateUID(provider, date, teamA, teamB string) string {
	a := NormalizeTeamRef(teamA)
	b := NormalizeTeamRef(teamB)
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%s:%s:%s:%s", provider, date, a, b)
}
