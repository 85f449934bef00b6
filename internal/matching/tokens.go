package matching

import (
	"regexp"
	"strconv"
	"strings"
)

// synonyms expands a token into its equivalent spellings, so a shared
// token is recognized across "SC" and "Soccer Club" style naming.
var synonyms = map[string][]string{
	"sc":       {"soccer", "club"},
	"fc":       {"football", "club"},
	"utd":      {"united"},
	"united":   {"utd"},
	"football": {"fc"},
	"soccer":   {"sc"},
}

// TokenSet returns the set of normalized name tokens with synonym
// expansion applied.
func TokenSet(name string) map[string]bool {
	tokens := make(map[string]bool)
	for _, w := range strings.Fields(stripPunctuation(dotted.Replace(strings.ToLower(name)))) {
		tokens[w] = true
		for _, syn := range synonyms[w] {
			tokens[syn] = true
		}
	}
	return tokens
}

// TokensOverlap reports whether two names share at least one normalized
// token after synonym expansion.
func TokensOverlap(a, b string) bool {
	ta := TokenSet(a)
	for tok := range TokenSet(b) {
		if ta[tok] {
			return true
		}
	}
	return false
}

var ageGroupPattern = regexp.MustCompile(`(?i)^u[- ]?(\d{1,2})$`)

// AgeOrdinal parses an age group like "U16" or "u-12" into its numeric
// year count. Returns 0 and false for anything unparseable.
func AgeOrdinal(ageGroup string) (int, bool) {
	m := ageGroupPattern.FindStringSubmatch(strings.TrimSpace(ageGroup))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// BirthYearForAge infers the birth year an age group implies for a
// given season: U16 in the 2026 season means players born in 2010.
func BirthYearForAge(ageGroup string, seasonYear int) (int, bool) {
	n, ok := AgeOrdinal(ageGroup)
	if !ok {
		return 0, false
	}
	return seasonYear - n, true
}

var (
	fourDigitYear = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	twoDigitYear  = regexp.MustCompile(`\b(\d{2})[bg]\b`)
)

// ExtractBirthYear pulls a birth-year token out of a team name. Both
// four-digit forms ("FC United 2012 Red") and the two-digit gendered
// shorthand ("United 12B") are recognized.
func ExtractBirthYear(name string) (int, bool) {
	s := strings.ToLower(name)

	if m := fourDigitYear.FindString(s); m != "" {
		year, _ := strconv.Atoi(m)
		return year, true
	}

	if m := twoDigitYear.FindStringSubmatch(s); m != nil {
		short, _ := strconv.Atoi(m[1])
		// Youth rosters are all 2000s births.
		return 2000 + short, true
	}

	return 0, false
}

// variantTokens are the structural roster markers (colors, tiers) a club
// uses to tell its parallel teams of one age group apart.
var variantTokens = map[string]bool{
	"red": true, "blue": true, "white": true, "black": true, "gold": true,
	"silver": true, "green": true, "orange": true, "navy": true, "gray": true,
	"grey": true, "maroon": true, "purple": true, "teal": true,
	"elite": true, "premier": true, "select": true, "academy": true,
	"north": true, "south": true, "east": true, "west": true,
	"i": true, "ii": true, "iii": true,
}

// ExtractVariantToken returns the first structural variant marker found
// in a team name, or "" when the name carries none.
func ExtractVariantToken(name string) string {
	for _, w := range strings.Fields(stripPunctuation(dotted.Replace(strings.ToLower(name)))) {
		if variantTokens[w] {
			return w
		}
	}
	return ""
}

var divisionLanePattern = regexp.MustCompile(`\b(?:d|div|division)\s*(\d+)\b`)

// ExtractDivisionLane pulls a numeric competition-lane number out of a
// division or name string ("D1", "Division 2", or a bare "2"). Returns 0
// and false when none is present.
func ExtractDivisionLane(s string) (int, bool) {
	cleaned := stripPunctuation(strings.ToLower(s))

	if n, err := strconv.Atoi(strings.TrimSpace(cleaned)); err == nil {
		return n, true
	}

	m := divisionLanePattern.FindStringSubmatch(cleaned)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
