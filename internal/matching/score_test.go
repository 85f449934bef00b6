package matching

import "testing"

func TestNormalizeTeamName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase and punctuation", "United F.C.!", "united"},
		{"abbreviation expanded then stripped", "Lonestar SC", "lonestar"},
		{"suffix stripped", "Eastside Soccer Academy", "eastside"},
		{"inner abbreviation expanded", "United FC Red", "united football club red"},
		{"punctuation splits tokens", "Red/White", "red white"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTeamName(tt.in); got != tt.want {
				t.Errorf("NormalizeTeamName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeClubName(t *testing.T) {
	a := NormalizeClubName("Lonestar SC TX", "TX")
	b := NormalizeClubName("Lonestar Soccer Club", "TX")
	if a != b {
		t.Errorf("state-suffixed club did not normalize equal: %q vs %q", a, b)
	}
}

func TestSimilarity(t *testing.T) {
	if got := Similarity("lonestar", "lonestar"); got != 1.0 {
		t.Errorf("identical strings = %v, want 1.0", got)
	}
	if got := Similarity("", "anything"); got != 0 {
		t.Errorf("empty side = %v, want 0", got)
	}
	if got := Similarity("abc", "xyz"); got != 0 {
		t.Errorf("disjoint strings = %v, want 0", got)
	}

	// Word order must not tank the score.
	reordered := Similarity(
		NormalizeTeamName("United FC Red 12B"),
		NormalizeTeamName("FC United 2012 Red"),
	)
	if reordered < 0.90 {
		t.Errorf("reordered names similarity = %v, want >= 0.90", reordered)
	}
}

func TestWeightedScoreCapped(t *testing.T) {
	score := WeightedScore(ScoreInput{
		NameSim: 1.0, ClubSim: 1.0,
		ClubsIdentical: true, LocationMatch: true, AgeMatch: true,
	})
	if score != 1.0 {
		t.Errorf("score = %v, want capped at 1.0", score)
	}
}

func TestWeightedScoreMonotonic(t *testing.T) {
	prev := -1.0
	for _, sim := range []float64{0.2, 0.5, 0.7, 0.9, 1.0} {
		score := WeightedScore(ScoreInput{NameSim: sim, ClubSim: sim})
		if score < prev {
			t.Fatalf("score decreased as similarity rose: %v after %v", score, prev)
		}
		prev = score
	}
}

func TestAgeOrdinal(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"U16", 16, true},
		{"u-12", 12, true},
		{"U 9", 9, true},
		{"senior", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := AgeOrdinal(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("AgeOrdinal(%q) = %d,%v, want %d,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestBirthYearForAge(t *testing.T) {
	year, ok := BirthYearForAge("U16", 2026)
	if !ok || year != 2010 {
		t.Errorf("BirthYearForAge(U16, 2026) = %d,%v, want 2010,true", year, ok)
	}
}

func TestExtractBirthYear(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"FC United 2012 Red", 2012, true},
		{"United 12B", 2012, true},
		{"Eagles 09G Premier", 2009, true},
		{"Lonestar Red", 0, false},
	}

	for _, tt := range tests {
		got, ok := ExtractBirthYear(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ExtractBirthYear(%q) = %d,%v, want %d,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTokensOverlap(t *testing.T) {
	if !TokensOverlap("Lonestar SC", "Lonestar Soccer Club") {
		t.Error("synonym-expanded tokens should overlap")
	}
	if TokensOverlap("Eagles Red", "Hawks Blue") {
		t.Error("disjoint names should not overlap")
	}
}

func TestExtractVariantToken(t *testing.T) {
	if got := ExtractVariantToken("Lonestar 2010 Red"); got != "red" {
		t.Errorf("variant = %q, want red", got)
	}
	if got := ExtractVariantToken("Lonestar 2010"); got != "" {
		t.Errorf("variant = %q, want empty", got)
	}
}

func TestExtractDivisionLane(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"D1", 1, true},
		{"Division 2", 2, true},
		{"3", 3, true},
		{"Premier", 0, false},
	}

	for _, tt := range tests {
		got, ok := ExtractDivisionLane(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ExtractDivisionLane(%q) = %d,%v, want %d,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
