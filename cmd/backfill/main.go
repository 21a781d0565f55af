// Command backfill creates master locations for resolved records that
// have no master yet. Run with -apply to write; the default is a dry run.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/scoutdesk/scoutdesk/internal/cache"
	"github.com/scoutdesk/scoutdesk/internal/config"
	"github.com/scoutdesk/scoutdesk/internal/pipeline"
	"github.com/scoutdesk/scoutdesk/internal/services/notion"
	"github.com/scoutdesk/scoutdesk/internal/writeback"
)

func main() {
	apply := flag.Bool("apply", false, "write masters and links instead of reporting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store := notion.NewService(cfg.Notion)
	snap := cache.New(store, cfg.Pipeline.CacheTTL)

	pipe := pipeline.NewService(store, nil, snap, nil, nil, pipeline.Options{
		ProximityMeters: cfg.Pipeline.ProximityMeters,
		WriteRatePerSec: cfg.Pipeline.WriteRatePerSec,
		RetryPolicy: writeback.RetryPolicy{
			MaxAttempts:       cfg.Pipeline.RetryMaxAttempts,
			BaseDelay:         cfg.Pipeline.RetryBaseDelay,
			BackoffMultiplier: cfg.Pipeline.RetryMultiplier,
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Println("🛑 Canceling, writes already made stay in place")
		cancel()
	}()

	report, err := pipe.Backfill(ctx, "backfill-cli", *apply)
	if err != nil {
		if report != nil {
			log.Printf("Backfill aborted: %v", err)
		} else {
			log.Fatalf("Backfill failed: %v", err)
		}
	}

	mode := "dry run"
	if *apply {
		mode = "applied"
	}
	log.Printf("✅ Backfill (%s): %d candidates, %d masters created, %d records linked, %d skipped, %d failed",
		mode, report.Candidates, report.CreatedMasters, report.LinkedRecords, report.Skipped, report.Failed)
}
