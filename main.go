package main

import (
	"context"
	"os"

	"github.com/sawadeeeen/mark-one/config"
	"github.com/sawadeeeen/mark-one/merge"
	"github.com/sawadeeeen/mark-one/models"
	"github.com/sawadeeeen/mark-one/scraper"
	_ "github.com/sawadeeeen/mark-one/scraper/bukkakuflie"
	_ "github.com/sawadeeeen/mark-one/scraper/ielove"
	"github.com/sawadeeeen/mark-one/services"
	"github.com/sawadeeeen/mark-one/storage"
	"github.com/sawadeeeen/mark-one/tracker"
	"github.com/sawadeeeen/mark-one/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== mark-one property pipeline starting ===")
	logger.Info("Config — data dir: %s | sources: %v | headless: %v",
		cfg.DataDir, cfg.Sources, cfg.Headless)

	updatedLog := tracker.New(cfg.UpdatedLogPath, logger)

	scrapers, err := scraper.Resolve(cfg.Sources, scraper.Deps{
		Config:  cfg,
		Logger:  logger,
		Tracker: updatedLog,
	})
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	// Each source runs to completion before the next starts; the history
	// files and the updated-properties log are single-owner by design.
	ctx := context.Background()
	for _, s := range scrapers {
		logger.Info("--- source %s ---", s.Name())
		result := s.Scrape(ctx)
		if result.Status != models.StatusSuccess {
			logger.Error("source %s failed: %s", s.Name(), result.Message)
			continue
		}
		logger.Info("source %s: %d new, %d updated, %d unchanged, %d deleted",
			s.Name(), result.New, result.Updated, result.Unchanged, result.Deleted)
	}

	resolver, err := merge.NewResolver()
	if err != nil {
		logger.Error("load alias table: %v", err)
		os.Exit(1)
	}

	mergeResult, err := merge.NewEngine(cfg.DataDir, resolver, logger).Run()
	if err != nil {
		logger.Error("merge failed: %v", err)
		os.Exit(1)
	}

	catalog, err := merge.ReadCatalog(mergeResult.Path)
	if err != nil {
		logger.Error("read merged catalog: %v", err)
		os.Exit(1)
	}

	exportCatalog(cfg, logger, resolver.Canonical(), catalog)

	summary := services.NewSummaryService(logger)
	summary.Print(summary.Generate(catalog))

	logger.Info("Done. Catalog → %s (%d records, %d skipped)",
		mergeResult.Path, mergeResult.Merged, mergeResult.Skipped)
}

// exportCatalog fans the merged catalog out to the configured sinks. An
// export failure is logged but never fatal: the merged.json artifact is
// already durable at this point.
func exportCatalog(cfg *config.Config, logger *utils.Logger, fields []string, catalog []map[string]any) {
	csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
	if err != nil {
		logger.Error("create CSV writer: %v", err)
	} else {
		defer csvWriter.Close()
		if err := csvWriter.WriteCatalog(fields, catalog); err != nil {
			logger.Error("CSV export failed: %v", err)
		} else {
			logger.Info("CSV export → %s", cfg.CSVOutputPath)
		}
	}

	htmlWriter, err := storage.NewHTMLWriter(cfg.HTMLOutputPath)
	if err != nil {
		logger.Error("create HTML writer: %v", err)
	} else {
		if err := htmlWriter.WriteCatalog(fields, catalog); err != nil {
			logger.Error("HTML export failed: %v", err)
		} else {
			logger.Info("HTML export → %s", cfg.HTMLOutputPath)
		}
	}

	if !cfg.PostgresEnabled {
		return
	}
	pgWriter, err := storage.NewPostgresWriter(cfg.DSN())
	if err != nil {
		logger.Error("connect to PostgreSQL: %v", err)
		return
	}
	defer pgWriter.Close()
	if err := pgWriter.WriteCatalog(fields, catalog); err != nil {
		logger.Error("PostgreSQL export failed: %v", err)
	} else {
		logger.Info("PostgreSQL export → table merged_properties")
	}
}
