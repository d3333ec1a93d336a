package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"jobtrack-engine/internal/domain"
)

// StoredJob is a seen posting plus its notification status. Rows are never
// deleted by normal operation and first_seen never changes after insert.
type StoredJob struct {
	ID         int64
	UniqueID   string
	Company    string
	Title      string
	URL        string
	Location   string
	Source     string
	DatePosted string
	FirstSeen  time.Time
	Notified   bool
	NotifiedAt *time.Time
}

type CompanyCount struct {
	Company string
	Count   int
}

type Stats struct {
	TotalJobs    int
	NotifiedJobs int
	Pending      int
	ByCompany    []CompanyCount // count descending, company ascending tiebreak
}

// UpsertIfNew inserts the record keyed by its UniqueID, or leaves the
// existing row completely untouched. Safe to call repeatedly with the same
// record.
func (d *DB) UpsertIfNew(ctx context.Context, j domain.JobRecord, now time.Time) (isNew bool, err error) {
	_, err = d.Pool.ExecContext(ctx, `
INSERT OR IGNORE INTO seen_jobs (unique_id, company, title, url, location, source, date_posted, first_seen, notified)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0);`,
		j.UniqueID(), j.Company, j.Title, j.URL, j.Location, j.Source, j.DatePosted,
		now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("insert job: %w", err)
	}

	// INSERT OR IGNORE doesn't report rows affected reliably across
	// drivers; changes() on the same connection does.
	var changes int
	if err := d.Pool.QueryRowContext(ctx, `SELECT changes();`).Scan(&changes); err != nil {
		return false, fmt.Errorf("insert job changes: %w", err)
	}
	return changes > 0, nil
}

// UnsentJobs returns every row still awaiting notification, oldest first, so
// a backlog left by a webhook outage drains in arrival order.
func (d *DB) UnsentJobs(ctx context.Context) ([]StoredJob, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, unique_id, company, title, url, location, source, date_posted, first_seen, notified, notified_at
FROM seen_jobs
WHERE notified = 0
ORDER BY first_seen ASC, id ASC;`)
	if err != nil {
		return nil, err
	}
	return scanJobs(rows)
}

// MarkNotified flips notified for exactly the given ids. Callers must only
// pass ids whose send was confirmed by the transport.
func (d *DB) MarkNotified(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, 0, len(ids)+1)
	args = append(args, at.UTC().Format(time.RFC3339))
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := d.Pool.ExecContext(ctx, fmt.Sprintf(`
UPDATE seen_jobs
SET notified = 1, notified_at = ?
WHERE notified = 0 AND unique_id IN (%s);`, placeholders), args...)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// RecentJobs lists the newest rows for the CLI, notified or not.
func (d *DB) RecentJobs(ctx context.Context, limit int) ([]StoredJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, unique_id, company, title, url, location, source, date_posted, first_seen, notified, notified_at
FROM seen_jobs
ORDER BY first_seen DESC, id DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	return scanJobs(rows)
}

func (d *DB) Stats(ctx context.Context) (Stats, error) {
	var s Stats

	if err := d.Pool.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(notified), 0) FROM seen_jobs;`,
	).Scan(&s.TotalJobs, &s.NotifiedJobs); err != nil {
		return s, err
	}
	s.Pending = s.TotalJobs - s.NotifiedJobs

	rows, err := d.Pool.QueryContext(ctx, `
SELECT company, COUNT(*) AS n
FROM seen_jobs
GROUP BY company
ORDER BY n DESC, company ASC;`)
	if err != nil {
		return s, err
	}
	defer rows.Close()
	for rows.Next() {
		var cc CompanyCount
		if err := rows.Scan(&cc.Company, &cc.Count); err != nil {
			return s, err
		}
		s.ByCompany = append(s.ByCompany, cc)
	}
	return s, rows.Err()
}

func scanJobs(rows *sql.Rows) ([]StoredJob, error) {
	defer rows.Close()

	var out []StoredJob
	for rows.Next() {
		var j StoredJob
		var firstSeen string
		var notified int
		var notifiedAt sql.NullString
		if err := rows.Scan(
			&j.ID, &j.UniqueID, &j.Company, &j.Title, &j.URL,
			&j.Location, &j.Source, &j.DatePosted,
			&firstSeen, &notified, &notifiedAt,
		); err != nil {
			return nil, err
		}
		j.FirstSeen, _ = time.Parse(time.RFC3339, firstSeen)
		j.Notified = notified != 0
		if notifiedAt.Valid {
			if t, err := time.Parse(time.RFC3339, notifiedAt.String); err == nil {
				j.NotifiedAt = &t
			}
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
