package pipeline_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/health"
	"jobtrack-engine/internal/httpclient"
	"jobtrack-engine/internal/notify"
	"jobtrack-engine/internal/pipeline"
	"jobtrack-engine/internal/source"
	"jobtrack-engine/internal/store"
)

type fakeFetcher struct {
	name string
	res  source.Result
	err  error
}

func (f *fakeFetcher) Name() string { return f.name }

func (f *fakeFetcher) Fetch(ctx context.Context) (source.Result, error) {
	return f.res, f.err
}

func okFetcher(name string, jobs ...domain.JobRecord) *fakeFetcher {
	return &fakeFetcher{name: name, res: source.Result{
		Jobs:    jobs,
		Outcome: health.Outcome{Success: true, Attempts: 1, Successes: 1},
	}}
}

func failingFetcher(name, msg string) *fakeFetcher {
	return &fakeFetcher{name: name, res: source.Result{
		Outcome: health.Outcome{Success: false, Err: msg, Attempts: 1},
	}}
}

type env struct {
	db       *store.DB
	tracker  *health.Tracker
	requests *int
}

// newEnv wires a real store and tracker to a webhook stub. failFrom (1-based)
// makes that request and all later ones 500.
func newEnv(t *testing.T, failFrom int) (*env, func(fetchers ...source.Fetcher) *pipeline.Pipeline) {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if failFrom > 0 && requests >= failFrom {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	hc := httpclient.New(httpclient.Options{
		Retries:              0,
		Backoff:              time.Millisecond,
		ReqPerSec:            1000,
		Burst:                1000,
		DisableStatusRetries: true,
	})
	notifier := notify.New(srv.URL, hc, 10)

	tracker := health.NewTracker(db, health.Config{
		Tiers:          []config.AlertTier{{Tier: "warning", After: 3}, {Tier: "critical", After: 5}},
		Window:         5,
		MinSuccesses:   3,
		MinSuccessRate: 0.8,
	})

	e := &env{db: db, tracker: tracker, requests: &requests}
	return e, func(fetchers ...source.Fetcher) *pipeline.Pipeline {
		return pipeline.New(db, tracker, notifier, fetchers)
	}
}

func job(title, u string) domain.JobRecord {
	return domain.JobRecord{
		Company: "TestCo", Title: title, URL: u,
		Location: "San Francisco, CA", Source: domain.SourceCareers,
	}
}

func TestRunStoresDispatchesAndMarks(t *testing.T) {
	ctx := context.Background()
	e, build := newEnv(t, 0)
	p := build(okFetcher("careers",
		job("Software Engineer, New Grad", "https://x.example/1"),
		job("Backend Engineer", "https://x.example/2"),
	))

	sum, err := p.Run(ctx, pipeline.Options{Notify: true})
	require.NoError(t, err)

	require.Len(t, sum.Sources, 1)
	assert.Equal(t, 2, sum.Sources[0].Found)
	assert.Len(t, sum.NewJobs, 2)
	assert.Equal(t, 2, sum.Dispatched)
	assert.False(t, sum.SendFailed)
	assert.Equal(t, 1, *e.requests)

	pending, err := e.db.UnsentJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// the same postings again: nothing new, nothing sent
	sum, err = p.Run(ctx, pipeline.Options{Notify: true})
	require.NoError(t, err)
	assert.Empty(t, sum.NewJobs)
	assert.Zero(t, sum.Dispatched)
	assert.Equal(t, 1, *e.requests)
}

func TestRunWithoutNotifyLeavesBacklog(t *testing.T) {
	ctx := context.Background()
	e, build := newEnv(t, 0)
	p := build(okFetcher("careers", job("Software Engineer, New Grad", "https://x.example/1")))

	sum, err := p.Run(ctx, pipeline.Options{Notify: false})
	require.NoError(t, err)
	assert.Len(t, sum.NewJobs, 1)
	assert.Zero(t, sum.Dispatched)
	assert.Zero(t, *e.requests)

	pending, err := e.db.UnsentJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRunDrainsBacklogAfterWebhookOutage(t *testing.T) {
	ctx := context.Background()
	e, build := newEnv(t, 1) // every send fails
	p := build(okFetcher("careers", job("Software Engineer, New Grad", "https://x.example/1")))

	sum, err := p.Run(ctx, pipeline.Options{Notify: true})
	require.NoError(t, err)
	assert.True(t, sum.SendFailed)
	assert.Zero(t, sum.Dispatched)

	pending, err := e.db.UnsentJobs(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// webhook back: a later quiet run against the same db still drains the
	// stranded posting
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	hc := httpclient.New(httpclient.Options{Retries: 0, Backoff: time.Millisecond, ReqPerSec: 1000, Burst: 1000, DisableStatusRetries: true})
	p2 := pipeline.New(e.db, e.tracker, notify.New(srv.URL, hc, 10), []source.Fetcher{okFetcher("careers")})

	sum, err = p2.Run(ctx, pipeline.Options{Notify: true})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Dispatched)
	assert.False(t, sum.SendFailed)

	pending, err = e.db.UnsentJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunConfirmsFailureAlertAfterSend(t *testing.T) {
	ctx := context.Background()
	e, build := newEnv(t, 0)
	p := build(failingFetcher("careers", "connection refused"))

	for i := 0; i < 3; i++ {
		_, err := p.Run(ctx, pipeline.Options{Notify: true})
		require.NoError(t, err)
	}

	h, err := e.db.SourceHealth(ctx, "careers")
	require.NoError(t, err)
	assert.Equal(t, 3, h.ConsecutiveFailures)
	assert.True(t, h.AlertSent)
	assert.Equal(t, 1, h.AlertTier)
	assert.Equal(t, "connection refused", h.LastError)
	assert.Equal(t, 1, *e.requests) // one alert message, fired once
}

func TestRunProposesAlertAgainWhenSendFails(t *testing.T) {
	ctx := context.Background()
	e, build := newEnv(t, 1) // alert sends fail
	p := build(failingFetcher("careers", "connection refused"))

	for i := 0; i < 3; i++ {
		_, err := p.Run(ctx, pipeline.Options{Notify: true})
		require.NoError(t, err)
	}

	h, err := e.db.SourceHealth(ctx, "careers")
	require.NoError(t, err)
	assert.False(t, h.AlertSent) // never confirmed

	// counters persisted regardless of webhook health
	assert.Equal(t, 3, h.ConsecutiveFailures)
	assert.Equal(t, 3, h.TotalRuns)
}

func TestRunFetchErrorBecomesFailureOutcome(t *testing.T) {
	ctx := context.Background()
	e, build := newEnv(t, 0)
	p := build(
		&fakeFetcher{name: "github", err: errors.New("rate limited")},
		okFetcher("careers", job("Software Engineer, New Grad", "https://x.example/1")),
	)

	sum, err := p.Run(ctx, pipeline.Options{Notify: false})
	require.NoError(t, err)

	require.Len(t, sum.Sources, 2)
	assert.False(t, sum.Sources[0].Outcome.Success)
	assert.True(t, sum.Sources[1].Outcome.Success)
	assert.Len(t, sum.NewJobs, 1) // the healthy source still lands

	h, err := e.db.SourceHealth(ctx, "github")
	require.NoError(t, err)
	assert.Equal(t, 1, h.ConsecutiveFailures)
	assert.Equal(t, "rate limited", h.LastError)
}

func TestRunDryRunSendsAndMarksNothing(t *testing.T) {
	ctx := context.Background()
	e, build := newEnv(t, 0)
	p := build(okFetcher("careers", job("Software Engineer, New Grad", "https://x.example/1")))

	sum, err := p.Run(ctx, pipeline.Options{Notify: true, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Dispatched) // would have gone out
	assert.Zero(t, *e.requests)

	pending, err := e.db.UnsentJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1) // still pending for a real run
}
