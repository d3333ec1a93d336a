// Package pipeline runs one collection pass: fetch every enabled source in
// parallel, feed outcomes to the health tracker, upsert qualifying records,
// then hand the pending backlog to the dispatcher exactly once.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"jobtrack-engine/internal/health"
	"jobtrack-engine/internal/notify"
	"jobtrack-engine/internal/source"
	"jobtrack-engine/internal/store"
)

type Options struct {
	Notify bool
	DryRun bool
}

type SourceReport struct {
	Name    string
	Found   int
	Outcome health.Outcome
}

type Summary struct {
	Sources    []SourceReport
	NewJobs    []store.StoredJob
	Dispatched int
	SendFailed bool
}

type Pipeline struct {
	db       *store.DB
	tracker  *health.Tracker
	notifier *notify.Notifier
	fetchers []source.Fetcher
	timeout  time.Duration
	now      func() time.Time
}

func New(db *store.DB, tracker *health.Tracker, notifier *notify.Notifier, fetchers []source.Fetcher) *Pipeline {
	return &Pipeline{
		db:       db,
		tracker:  tracker,
		notifier: notifier,
		fetchers: fetchers,
		timeout:  5 * time.Minute,
		now:      time.Now,
	}
}

// Run executes one pass. Source errors become failure outcomes and never
// abort the run; storage errors do, since partial state is unsafe to reason
// about.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Summary, error) {
	var summary Summary

	// Fetch in parallel; results land in fetcher order so the merge is
	// stable across runs.
	results := make([]source.Result, len(p.fetchers))
	var g errgroup.Group
	for i, f := range p.fetchers {
		i, f := i, f
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()

			log.Printf("[%s] running...", f.Name())
			res, err := f.Fetch(fctx)
			if err != nil {
				log.Printf("[%s] error: %v", f.Name(), err)
				res = source.Result{Outcome: health.Outcome{Success: false, Err: err.Error(), Attempts: 1}}
			}
			results[i] = res
			return nil // best-effort: never cancel siblings
		})
	}
	_ = g.Wait()

	// Health transitions first: a run that found nothing because the source
	// is down must count as a failure before we look at jobs.
	for i, f := range p.fetchers {
		res := results[i]
		summary.Sources = append(summary.Sources, SourceReport{
			Name:    f.Name(),
			Found:   len(res.Jobs),
			Outcome: res.Outcome,
		})

		alert, err := p.tracker.Observe(ctx, f.Name(), res.Outcome)
		if err != nil {
			return summary, fmt.Errorf("health: %w", err)
		}
		if alert == nil {
			continue
		}
		log.Printf("[health] %s: %s alert due", alert.Source, alert.Kind)
		if !opts.Notify {
			continue
		}
		if err := p.notifier.SendAlert(ctx, alert, opts.DryRun); err != nil {
			log.Printf("[health] %s alert send failed: %v", alert.Source, err)
			continue
		}
		if opts.DryRun {
			continue
		}
		// Confirm only after the transport acked, so a dropped alert fires
		// again next run.
		switch alert.Kind {
		case health.AlertFailure:
			err = p.tracker.ConfirmFailureAlert(ctx, alert)
		case health.AlertRecovery:
			err = p.tracker.ConfirmRecoveryAlert(ctx, alert)
		}
		if err != nil {
			return summary, fmt.Errorf("health: %w", err)
		}
	}

	// Dedup upsert. Adapters already filtered, so everything here is a
	// qualifying record; only novelty is decided now.
	now := p.now()
	for _, res := range results {
		for _, job := range res.Jobs {
			isNew, err := p.db.UpsertIfNew(ctx, job, now)
			if err != nil {
				return summary, fmt.Errorf("store: %w", err)
			}
			if !isNew {
				continue
			}
			log.Printf("[run] NEW: %s - %s", job.Company, job.Title)
			summary.NewJobs = append(summary.NewJobs, store.StoredJob{
				UniqueID:  job.UniqueID(),
				Company:   job.Company,
				Title:     job.Title,
				URL:       job.URL,
				Location:  job.Location,
				Source:    job.Source,
				FirstSeen: now,
			})
		}
	}

	if !opts.Notify {
		return summary, nil
	}

	// Dispatch the full pending backlog oldest-first, not just this run's
	// finds, so jobs stranded by an earlier webhook outage drain too.
	pending, err := p.db.UnsentJobs(ctx)
	if err != nil {
		return summary, fmt.Errorf("store: %w", err)
	}
	if len(pending) == 0 {
		log.Printf("[run] nothing pending to notify")
		return summary, nil
	}

	dr := p.notifier.Dispatch(ctx, pending, opts.DryRun)
	summary.Dispatched = len(dr.SentIDs)
	summary.SendFailed = dr.Failed
	if opts.DryRun {
		return summary, nil
	}
	if err := p.db.MarkNotified(ctx, dr.SentIDs, p.now()); err != nil {
		return summary, fmt.Errorf("store: %w", err)
	}
	return summary, nil
}
