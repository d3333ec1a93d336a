package store_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/store"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func job(url string) domain.JobRecord {
	return domain.JobRecord{
		Company:  "TestCo",
		Title:    "Software Engineer",
		URL:      url,
		Location: "Seattle, WA",
		Source:   domain.SourceCareers,
	}
}

func TestUpsertIfNewIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	j := job("https://example.com/1")
	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	isNew, err := db.UpsertIfNew(ctx, j, t0)
	require.NoError(t, err)
	assert.True(t, isNew)

	// same record, later time: nothing changes, not even first_seen
	isNew, err = db.UpsertIfNew(ctx, j, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, isNew)

	rows, err := db.RecentJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, t0, rows[0].FirstSeen)
	assert.False(t, rows[0].Notified)
}

func TestUpsertIfNewNormalizesIdentity(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	a := job("https://example.com/1")
	b := a
	b.Company = "  TESTCO "
	b.Title = "Software  Engineer"

	isNew, err := db.UpsertIfNew(ctx, a, now)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = db.UpsertIfNew(ctx, b, now)
	require.NoError(t, err)
	assert.False(t, isNew)
}

func TestUnsentJobsOldestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// insert newest first to prove ordering comes from first_seen
	for i := 3; i >= 1; i-- {
		j := job("https://example.com/" + string(rune('0'+i)))
		_, err := db.UpsertIfNew(ctx, j, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}

	unsent, err := db.UnsentJobs(ctx)
	require.NoError(t, err)
	require.Len(t, unsent, 3)
	assert.True(t, unsent[0].FirstSeen.Before(unsent[1].FirstSeen))
	assert.True(t, unsent[1].FirstSeen.Before(unsent[2].FirstSeen))
}

func TestMarkNotifiedOnlyGivenIDs(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	a := job("https://example.com/a")
	b := job("https://example.com/b")
	_, err := db.UpsertIfNew(ctx, a, now)
	require.NoError(t, err)
	_, err = db.UpsertIfNew(ctx, b, now)
	require.NoError(t, err)

	require.NoError(t, db.MarkNotified(ctx, []string{a.UniqueID()}, now))

	unsent, err := db.UnsentJobs(ctx)
	require.NoError(t, err)
	require.Len(t, unsent, 1)
	assert.Equal(t, b.UniqueID(), unsent[0].UniqueID)

	recent, err := db.RecentJobs(ctx, 10)
	require.NoError(t, err)
	for _, r := range recent {
		if r.UniqueID == a.UniqueID() {
			assert.True(t, r.Notified)
			require.NotNil(t, r.NotifiedAt)
			assert.Equal(t, now, *r.NotifiedAt)
		}
	}
}

func TestMarkNotifiedEmptySetIsNoop(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.MarkNotified(context.Background(), nil, time.Now()))
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	mk := func(company, url string) domain.JobRecord {
		j := job(url)
		j.Company = company
		return j
	}
	a := mk("A", "https://example.com/1")
	_, err := db.UpsertIfNew(ctx, a, now)
	require.NoError(t, err)
	_, err = db.UpsertIfNew(ctx, mk("A", "https://example.com/2"), now)
	require.NoError(t, err)
	_, err = db.UpsertIfNew(ctx, mk("B", "https://example.com/3"), now)
	require.NoError(t, err)

	require.NoError(t, db.MarkNotified(ctx, []string{a.UniqueID()}, now))

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalJobs)
	assert.Equal(t, 1, stats.NotifiedJobs)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, []store.CompanyCount{{Company: "A", Count: 2}, {Company: "B", Count: 1}}, stats.ByCompany)
}

func TestStatsByCompanyOrdering(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	mk := func(company, url string) domain.JobRecord {
		j := job(url)
		j.Company = company
		return j
	}
	for i, company := range []string{"Zeta", "Alpha", "Alpha", "Mid", "Mid"} {
		_, err := db.UpsertIfNew(ctx, mk(company, fmt.Sprintf("https://example.com/o%d", i)), now)
		require.NoError(t, err)
	}

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	// count descending, then company ascending
	assert.Equal(t, []store.CompanyCount{
		{Company: "Alpha", Count: 2},
		{Company: "Mid", Count: 2},
		{Company: "Zeta", Count: 1},
	}, stats.ByCompany)
}

func TestRecentJobsNewestFirstWithLimit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= 5; i++ {
		j := job("https://example.com/" + string(rune('0'+i)))
		_, err := db.UpsertIfNew(ctx, j, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}

	recent, err := db.RecentJobs(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.True(t, recent[0].FirstSeen.After(recent[1].FirstSeen))
	assert.True(t, recent[1].FirstSeen.After(recent[2].FirstSeen))
}
