package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SourceHealth is the persisted per-source run ledger the health tracker
// drives its state machine over. One row per source name.
type SourceHealth struct {
	Source               string
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	TotalRuns            int
	TotalSuccesses       int
	AlertSent            bool
	AlertTier            int // highest tier index alerted since last recovery; 0 = none
	RecoveryPending      bool
	History              []bool // trailing run outcomes, oldest first
	LastError            string
	UpdatedAt            time.Time
}

// SourceHealth returns the row for the source, or a zeroed one if the source
// has never run.
func (d *DB) SourceHealth(ctx context.Context, source string) (SourceHealth, error) {
	h := SourceHealth{Source: source}

	var alertSent, recoveryPending int
	var history, updatedAt string
	err := d.Pool.QueryRowContext(ctx, `
SELECT consecutive_failures, consecutive_successes, total_runs, total_successes,
       alert_sent, alert_tier, recovery_pending, history, last_error, updated_at
FROM source_health
WHERE source = ?;`, source).Scan(
		&h.ConsecutiveFailures, &h.ConsecutiveSuccesses, &h.TotalRuns, &h.TotalSuccesses,
		&alertSent, &h.AlertTier, &recoveryPending, &history, &h.LastError, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return h, nil
	}
	if err != nil {
		return h, fmt.Errorf("load source health %q: %w", source, err)
	}

	h.AlertSent = alertSent != 0
	h.RecoveryPending = recoveryPending != 0
	h.History = decodeHistory(history)
	h.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return h, nil
}

func (d *DB) PutSourceHealth(ctx context.Context, h SourceHealth) error {
	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO source_health
  (source, consecutive_failures, consecutive_successes, total_runs, total_successes,
   alert_sent, alert_tier, recovery_pending, history, last_error, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(source) DO UPDATE SET
  consecutive_failures = excluded.consecutive_failures,
  consecutive_successes = excluded.consecutive_successes,
  total_runs = excluded.total_runs,
  total_successes = excluded.total_successes,
  alert_sent = excluded.alert_sent,
  alert_tier = excluded.alert_tier,
  recovery_pending = excluded.recovery_pending,
  history = excluded.history,
  last_error = excluded.last_error,
  updated_at = excluded.updated_at;`,
		h.Source, h.ConsecutiveFailures, h.ConsecutiveSuccesses, h.TotalRuns, h.TotalSuccesses,
		boolInt(h.AlertSent), h.AlertTier, boolInt(h.RecoveryPending),
		encodeHistory(h.History), h.LastError,
		h.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save source health %q: %w", h.Source, err)
	}
	return nil
}

// History is a short policy-sized window; a 0/1 string keeps the row flat
// instead of needing a runs table.
func encodeHistory(h []bool) string {
	var b strings.Builder
	for _, ok := range h {
		if ok {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

func decodeHistory(s string) []bool {
	if s == "" {
		return nil
	}
	out := make([]bool, 0, len(s))
	for i := 0; i < len(s); i++ {
		out = append(out, s[i] == '1')
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
