package identity

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fortuna/concordia/internal/ingest"
)

// dedupKey identifies a physical game within one batch: provider, date,
// and the sorted team pair. Rematches between the same teams on
// different dates stay distinct games.
func dedupKey(rec ingest.RawPerspectiveRecord) string {
	a := NormalizeTeamRef(rec.TeamID)
	b := NormalizeTeamRef(rec.OpponentID)
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%s:%s:%s:%s", rec.Provider, rec.GameDate, a, b)
}

// pairKey is the dedup key without the date, used only to spot the same
// pairing reported under disagreeing dates.
func pairKey(rec ingest.RawPerspectiveRecord) string {
	a := NormalizeTeamRef(rec.TeamID)
	b := NormalizeTeamRef(rec.OpponentID)
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%s:%s:%s", rec.Provider, a, b)
}

// DeduplicatePerspectives collapses the two per-team views of each
// physical game down to one record. The first occurrence of a key is
// kept as canonical; later occurrences are dropped and counted. A
// pairing that reappears under a different date is kept as a separate
// game, with a warning, since providers reporting in local time can
// drift a perspective across midnight.
func DeduplicatePerspectives(records []ingest.RawPerspectiveRecord, logger *zap.Logger) ([]ingest.RawPerspectiveRecord, int) {
	seen := make(map[string]bool, len(records))
	pairDates := make(map[string]string, len(records))
	survivors := make([]ingest.RawPerspectiveRecord, 0, len(records))
	dropped := 0

	for _, rec := range records {
		key := dedupKey(rec)
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true

		pair := pairKey(rec)
		if firstDate, ok := pairDates[pair]; ok && firstDate != rec.GameDate {
			logger.Warn("same pairing reported under different dates, keeping both",
				zap.String("pair_key", pair),
				zap.String("first_date", firstDate),
				zap.String("this_date", rec.GameDate))
		} else if !ok {
			pairDates[pair] = rec.GameDate
		}

		survivors = append(survivors, rec)
	}

	return survivors, dropped
}
