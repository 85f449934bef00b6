package main

import (
	"context"
	"flag"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fortuna/concordia/internal/config"
	"github.com/fortuna/concordia/internal/importjob"
	"github.com/fortuna/concordia/internal/ingest"
	"github.com/fortuna/concordia/internal/matching"
	"github.com/fortuna/concordia/internal/metrics"
	"github.com/fortuna/concordia/internal/store"
	"github.com/fortuna/concordia/internal/store/repository"
)

const (
	appName    = "concordia-import"
	appVersion = "1.0.0"
)

func main() {
	log.Printf("=== %s v%s ===", appName, appVersion)

	var (
		providerID = flag.String("provider", "", "Provider to import (e.g. leaguelink)")
		feedPath   = flag.String("feed", "", "Path to the NDJSON feed file")
	)

	flag.Parse()

	if *providerID == "" || *feedPath == "" {
		log.Fatalf("Specify --provider and --feed")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := store.NewDatabase(cfg.DatabaseDSN, logger)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	registry := ingest.NewRegistry(cfg.MatcherStrategies, cfg.StateCupState)
	m := metrics.New(prometheus.NewRegistry())

	runner := importjob.NewRunner(registry,
		repository.NewAliasRepository(db),
		repository.NewTeamRepository(db),
		repository.NewGameRepository(db),
		repository.NewQuarantineRepository(db),
		repository.NewRunRepository(db),
		matcherOptions(cfg), cfg.Pipeline.ChunkSize, m, logger)

	job := &importjob.Job{
		ProviderID: *providerID,
		FeedPath:   *feedPath,
	}

	run, err := runner.Run(context.Background(), job, &consoleReporter{})
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}

	log.Printf("Import complete: processed=%d accepted=%d quarantined=%d duplicates=%d teams_matched=%d teams_created=%d",
		run.Processed, run.Accepted, run.Quarantined, run.DuplicatesFound, run.TeamsMatched, run.TeamsCreated)
}

func matcherOptions(cfg *config.Config) matching.Options {
	return matching.Options{
		AutoLinkThreshold:     cfg.Matching.AutoLinkThreshold,
		ManualReviewThreshold: cfg.Matching.ManualReviewThreshold,

		ConservativeMinScore:    cfg.Matching.ConservativeMinScore,
		ConservativeMinGap:      cfg.Matching.ConservativeMinGap,
		DivisionBonus:           cfg.Matching.DivisionBonus,
		DivisionPenalty:         cfg.Matching.DivisionPenalty,
		BirthYearBonus:          cfg.Matching.BirthYearBonus,
		MissingBirthYearPenalty: cfg.Matching.MissingBirthYearPenalty,
		AgeConflictYears:        cfg.Matching.AgeConflictYears,

		ClubEquivalenceThreshold: cfg.Matching.ClubEquivalenceThreshold,

		SeasonYear: cfg.SeasonYear,
	}
}

type consoleReporter struct{}

func (c *consoleReporter) Progress(stage string, done, total int) {
	log.Printf("Progress: %s (%d/%d)", stage, done, total)
}
