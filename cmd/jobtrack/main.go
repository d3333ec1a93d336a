package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/filter"
	"jobtrack-engine/internal/health"
	"jobtrack-engine/internal/httpclient"
	"jobtrack-engine/internal/notify"
	"jobtrack-engine/internal/pipeline"
	"jobtrack-engine/internal/scheduler"
	"jobtrack-engine/internal/secrets"
	"jobtrack-engine/internal/source"
	"jobtrack-engine/internal/source/careers"
	"jobtrack-engine/internal/source/github"
	"jobtrack-engine/internal/store"
)

func main() {
	var (
		doNotify      = flag.Bool("notify", false, "send webhook notifications for new jobs")
		dryRun        = flag.Bool("dry-run", false, "print what would be sent without sending")
		testWebhook   = flag.Bool("test-webhook", false, "send a test notification and exit")
		showStats     = flag.Bool("stats", false, "show statistics about tracked jobs")
		listRecent    = flag.Int("list-recent", 0, "list N most recently seen jobs")
		skipGitHub    = flag.Bool("skip-github", false, "skip GitHub repository tracking")
		skipCareers   = flag.Bool("skip-careers", false, "skip career page scraping")
		every         = flag.Duration("every", 0, "keep running at this interval (e.g. 1h)")
		dataDirFlag   = flag.String("data-dir", "", "data directory (default $JOBTRACK_DATA_DIR or .)")
		cfgFlag       = flag.String("config", "", "config file (default <data-dir>/config.yml, bootstrapped from config/config.yml)")
		setWebhookURL = flag.String("set-webhook-url", "", "store the webhook URL in the OS keychain and exit")
	)
	flag.Parse()

	if *setWebhookURL != "" {
		if err := secrets.SetWebhookURL(*setWebhookURL); err != nil {
			log.Fatalf("store webhook URL: %v", err)
		}
		fmt.Println("webhook URL stored in keychain")
		return
	}

	dataDir := *dataDirFlag
	if dataDir == "" {
		dataDir = os.Getenv("JOBTRACK_DATA_DIR")
	}
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	// Single writer per data dir: the store has no concurrent-writer story.
	lock := flock.New(filepath.Join(dataDir, "jobtrack.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("lock data dir: %v", err)
	}
	if !locked {
		log.Fatalf("another jobtrack run holds %s", lock.Path())
	}
	defer lock.Unlock() //nolint:errcheck

	cfgPath := *cfgFlag
	if cfgPath == "" {
		cfgPath, err = config.EnsureUserConfig(dataDir, filepath.Join("config", "config.yml"))
		if err != nil {
			log.Fatalf("config bootstrap failed: %v", err)
		}
	}
	rawCfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed (%s): %v", cfgPath, err)
	}
	cfg, validation := config.NormalizeAndValidate(rawCfg)
	for _, w := range validation.Warnings {
		log.Printf("[config] warning: %s", w)
	}
	if !validation.OK() {
		for _, e := range validation.Errors {
			log.Printf("[config] error: %s", e)
		}
		os.Exit(1)
	}

	db, err := store.Open(filepath.Join(dataDir, "jobtrack.db"))
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The dispatcher's client never retries on status codes: a webhook POST
	// that landed slowly must not be sent twice.
	webhookClient := httpclient.New(httpclient.Options{
		Retries:              cfg.HTTP.Retries,
		Backoff:              time.Duration(cfg.HTTP.BackoffSeconds * float64(time.Second)),
		ReqPerSec:            cfg.HTTP.ReqPerSec,
		Burst:                cfg.HTTP.Burst,
		DisableStatusRetries: true,
	})
	notifier := notify.New(secrets.GetWebhookURL(), webhookClient, cfg.App.BatchSize)

	if *testWebhook {
		if err := notifier.SendTest(ctx); err != nil {
			log.Fatalf("test notification failed: %v", err)
		}
		fmt.Println("test notification sent")
		return
	}
	if *showStats {
		printStats(ctx, db)
		return
	}
	if *listRecent > 0 {
		printRecent(ctx, db, *listRecent)
		return
	}

	rules, err := filter.New(cfg)
	if err != nil {
		log.Fatalf("compile filters: %v", err)
	}

	sourceClient := httpclient.New(httpclient.Options{
		Retries:   cfg.HTTP.Retries,
		Backoff:   time.Duration(cfg.HTTP.BackoffSeconds * float64(time.Second)),
		ReqPerSec: cfg.HTTP.ReqPerSec,
		Burst:     cfg.HTTP.Burst,
	})

	var fetchers []source.Fetcher
	if cfg.Sources.GitHub.Enabled && !*skipGitHub {
		fetchers = append(fetchers, github.New(cfg.Sources.GitHub.Repos, sourceClient, rules))
	}
	if cfg.Sources.Careers.Enabled && !*skipCareers {
		fetchers = append(fetchers, careers.New(cfg, sourceClient, rules))
	}
	if len(fetchers) == 0 {
		log.Fatal("all sources disabled or skipped; nothing to do")
	}

	tracker := health.NewTracker(db, health.Config{
		Tiers:          cfg.Health.FailureAlertThresholds,
		Window:         cfg.Health.RecoveryWindow,
		MinSuccesses:   cfg.Health.MinRecoverySuccesses,
		MinSuccessRate: cfg.Health.MinRecoverySuccessRate,
	})

	p := pipeline.New(db, tracker, notifier, fetchers)
	opts := pipeline.Options{Notify: *doNotify, DryRun: *dryRun}

	runOnce := func(ctx context.Context) error {
		summary, err := p.Run(ctx, opts)
		if err != nil {
			return err
		}
		printSummary(summary)
		return nil
	}

	if *every > 0 {
		log.Printf("[run] scheduling a pass every %s", every)
		scheduler.Every(ctx, *every, "run", runOnce)
		return
	}

	if err := runOnce(ctx); err != nil {
		log.Fatalf("run failed: %v", err)
	}
}

func printSummary(s pipeline.Summary) {
	for _, src := range s.Sources {
		status := "ok"
		if !src.Outcome.Success {
			status = "FAILED"
			if src.Outcome.Err != "" {
				status += " (" + src.Outcome.Err + ")"
			}
		}
		log.Printf("[run] source=%s found=%d attempts=%d successes=%d status=%s",
			src.Name, src.Found, src.Outcome.Attempts, src.Outcome.Successes, status)
	}

	if len(s.NewJobs) == 0 {
		log.Printf("[run] no new jobs")
	}
	for _, j := range s.NewJobs {
		fmt.Printf("%s - %s\n", j.Company, j.Title)
		loc := j.Location
		if loc == "" {
			loc = "Not specified"
		}
		fmt.Printf("  Location: %s\n  Apply: %s\n  Source: %s\n\n", loc, j.URL, j.Source)
	}

	if s.Dispatched > 0 {
		log.Printf("[run] notified %d job(s)", s.Dispatched)
	}
	if s.SendFailed {
		log.Printf("[run] webhook send failed; pending jobs will retry next run")
	}
}

func printStats(ctx context.Context, db *store.DB) {
	stats, err := db.Stats(ctx)
	if err != nil {
		log.Fatalf("stats: %v", err)
	}
	fmt.Println("=== Job Tracker Statistics ===")
	fmt.Printf("Total jobs tracked: %d\n", stats.TotalJobs)
	fmt.Printf("Jobs notified: %d\n", stats.NotifiedJobs)
	fmt.Printf("Pending notification: %d\n", stats.Pending)
	fmt.Println("\nJobs by company:")
	for _, cc := range stats.ByCompany {
		fmt.Printf("  %s: %d\n", cc.Company, cc.Count)
	}
}

func printRecent(ctx context.Context, db *store.DB, n int) {
	jobs, err := db.RecentJobs(ctx, n)
	if err != nil {
		log.Fatalf("list recent: %v", err)
	}
	fmt.Printf("=== %d Most Recent Jobs ===\n\n", len(jobs))
	for _, j := range jobs {
		status := "Pending"
		if j.Notified {
			status = "Notified"
		}
		loc := j.Location
		if loc == "" {
			loc = "N/A"
		}
		fmt.Printf("[%s] %s - %s\n", status, j.Company, j.Title)
		fmt.Printf("         Location: %s\n", loc)
		fmt.Printf("         URL: %s\n", j.URL)
		fmt.Printf("         Seen: %s\n\n", j.FirstSeen.Format(time.RFC3339))
	}
}
