package main

import (
	"log"

	"github.com/fortuna/concordia/internal/identity"
	"github.com/fortuna/concordia/internal/matching"
)

// Test utility for name normalization and scoring
func main() {
	log.Println("Testing Matching Engine")
	log.Println("=======================")

	pairs := [][2]string{
		{"Austin United FC Red 12B", "FC United Red 2012 Boys"},
		{"Dallas Texans 09G ECNL", "Texans Soccer Club 2009 Girls"},
		{"Lonestar SC Academy", "Lonestar Soccer Club"},
		{"Houston Dynamo Youth", "FC Dallas Youth"},
	}

	for _, p := range pairs {
		n1 := matching.NormalizeTeamName(p[0])
		n2 := matching.NormalizeTeamName(p[1])
		sim := matching.Similarity(n1, n2)

		log.Printf("\n%q vs %q", p[0], p[1])
		log.Printf("  normalized: %q / %q", n1, n2)
		log.Printf("  similarity: %.4f", sim)
		log.Printf("  tokens overlap: %v", matching.TokensOverlap(n1, n2))
	}

	log.Println("\nUID generation")
	log.Println("--------------")
	uid := identity.GenerateUID("leaguelink", "2026-04-12", "4482.000", "1193")
	log.Printf("  leaguelink / 2026-04-12 / 4482.000 + 1193 -> %s", uid)
	mirror := identity.GenerateUID("leaguelink", "2026-04-12", "1193", "4482")
	log.Printf("  mirror perspective             -> %s", mirror)
	if uid == mirror {
		log.Println("  ✓ perspectives collapse to one UID")
	} else {
		log.Println("  ❌ UID mismatch")
	}
}
