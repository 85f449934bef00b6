package matching

import (
	"strings"
	"unicode"
)

// abbreviations maps the short club-name forms providers use onto their
// long forms, so "United FC" and "United Football Club" normalize alike.
var abbreviations = map[string]string{
	"fc":  "football club",
	"sc":  "soccer club",
	"cf":  "club de futbol",
	"afc": "athletic football club",
	"yfc": "youth football club",
	"ysc": "youth soccer club",
	"sa":  "soccer academy",
	"utd": "united",
}

// strippableSuffixes are generic trailing words that carry no identity,
// checked longest first.
var strippableSuffixes = []string{
	"youth football club",
	"youth soccer club",
	"athletic football club",
	"football club",
	"soccer club",
	"club de futbol",
	"soccer academy",
	"soccer association",
	"academy",
	"soccer",
	"club",
}

// NormalizeTeamName lowercases a team or club name, strips punctuation,
// expands club abbreviations, and removes the longest matching generic
// suffix. The result is the comparison form used by every matcher.
var dotted = strings.NewReplacer(".", "", "'", "")

func NormalizeTeamName(name string) string {
	// Dots and apostrophes collapse ("F.C." -> "fc") before the
	// remaining punctuation becomes word boundaries.
	s := stripPunctuation(dotted.Replace(strings.ToLower(name)))

	words := strings.Fields(s)
	for i, w := range words {
		if long, ok := abbreviations[w]; ok {
			words[i] = long
		}
	}
	s = strings.Join(words, " ")

	return strings.TrimSpace(stripGenericSuffix(s))
}

// NormalizeClubName is NormalizeTeamName plus removal of a trailing
// state token, so "Lonestar SC TX" and "Lonestar Soccer Club" compare
// equal for a state-scoped provider. The generic suffix is stripped
// again once the state is gone, since it may have been hiding behind it.
func NormalizeClubName(name, state string) string {
	s := NormalizeTeamName(name)
	if state != "" {
		st := strings.ToLower(state)
		if trimmed, ok := strings.CutSuffix(s, " "+st); ok {
			s = stripGenericSuffix(trimmed)
		}
	}
	return strings.TrimSpace(s)
}

func stripGenericSuffix(s string) string {
	for _, suffix := range strippableSuffixes {
		if trimmed, ok := strings.CutSuffix(s, " "+suffix); ok {
			return trimmed
		}
	}
	return s
}

func stripPunctuation(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			// Punctuation becomes a word boundary, not nothing, so
			// "Red/White" stays two tokens.
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
