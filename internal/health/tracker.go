// Package health turns per-source run outcomes into alert decisions: tiered
// failure alerts once consecutive failures cross configured thresholds, and
// debounced recovery alerts that only fire after the source has proven
// itself healthy again over a trailing window.
package health

import (
	"context"
	"fmt"
	"time"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/store"
)

// Outcome is one run's health signal from a source adapter. Aggregate
// sources (careers) also report per-item attempt counts; binary sources
// (github) leave them at 1/1 or 1/0.
type Outcome struct {
	Success   bool
	Err       string
	Attempts  int
	Successes int
}

type AlertKind string

const (
	AlertFailure  AlertKind = "failure"
	AlertRecovery AlertKind = "recovery"
)

// Alert is a proposed notification. The caller confirms delivery via
// ConfirmFailureAlert/ConfirmRecoveryAlert; unconfirmed alerts are proposed
// again on the next run, so a dropped webhook send never loses the alert.
type Alert struct {
	Kind           AlertKind
	Source         string
	Tier           string // failure alerts: warning | critical | ...
	tierIndex      int
	Failures       int // consecutive failures at alert time
	RecoveredAfter int // recovery alerts: failed runs bridged
	Err            string
}

type Tracker struct {
	db  *store.DB
	cfg Config
	now func() time.Time
}

type Config struct {
	Tiers          []config.AlertTier // ascending by After; validated by config
	Window         int
	MinSuccesses   int
	MinSuccessRate float64
}

func NewTracker(db *store.DB, cfg Config) *Tracker {
	return &Tracker{db: db, cfg: cfg, now: time.Now}
}

// Observe applies one run outcome to the source's persisted state and
// returns at most one alert proposal. Counters always persist, even when the
// proposed alert is never confirmed.
func (t *Tracker) Observe(ctx context.Context, source string, oc Outcome) (*Alert, error) {
	h, err := t.db.SourceHealth(ctx, source)
	if err != nil {
		return nil, err
	}

	h.TotalRuns++
	h.History = appendBounded(h.History, oc.Success, t.cfg.Window)
	h.UpdatedAt = t.now()

	var alert *Alert
	if oc.Success {
		h.ConsecutiveSuccesses++
		h.ConsecutiveFailures = 0
		h.TotalSuccesses++
		h.LastError = ""

		// One success after an outage is not recovery; it only arms the
		// debounce. A later failure disarms it again.
		if h.AlertSent {
			h.RecoveryPending = true
		}
		if h.RecoveryPending && t.recovered(h) {
			alert = &Alert{
				Kind:           AlertRecovery,
				Source:         source,
				RecoveredAfter: failuresBeforeStreak(h.History),
			}
		}
	} else {
		h.ConsecutiveFailures++
		h.ConsecutiveSuccesses = 0
		h.RecoveryPending = false
		if oc.Err != "" {
			h.LastError = oc.Err
		}

		if tier, idx := t.dueTier(h); idx > 0 {
			alert = &Alert{
				Kind:      AlertFailure,
				Source:    source,
				Tier:      tier,
				tierIndex: idx,
				Failures:  h.ConsecutiveFailures,
				Err:       h.LastError,
			}
		}
	}

	if err := t.db.PutSourceHealth(ctx, h); err != nil {
		return nil, err
	}
	return alert, nil
}

// ConfirmFailureAlert records that the alert reached the webhook, so the
// same tier does not fire again until after a recovery.
func (t *Tracker) ConfirmFailureAlert(ctx context.Context, a *Alert) error {
	if a == nil || a.Kind != AlertFailure {
		return fmt.Errorf("confirm failure alert: not a failure alert")
	}
	h, err := t.db.SourceHealth(ctx, a.Source)
	if err != nil {
		return err
	}
	h.AlertSent = true
	if a.tierIndex > h.AlertTier {
		h.AlertTier = a.tierIndex
	}
	h.UpdatedAt = t.now()
	return t.db.PutSourceHealth(ctx, h)
}

// ConfirmRecoveryAlert clears the outstanding alert state; the next outage
// starts the tier ladder from scratch.
func (t *Tracker) ConfirmRecoveryAlert(ctx context.Context, a *Alert) error {
	if a == nil || a.Kind != AlertRecovery {
		return fmt.Errorf("confirm recovery alert: not a recovery alert")
	}
	h, err := t.db.SourceHealth(ctx, a.Source)
	if err != nil {
		return err
	}
	h.AlertSent = false
	h.AlertTier = 0
	h.RecoveryPending = false
	h.UpdatedAt = t.now()
	return t.db.PutSourceHealth(ctx, h)
}

// dueTier picks the highest configured tier the failure streak has reached
// beyond what was already alerted.
func (t *Tracker) dueTier(h store.SourceHealth) (string, int) {
	name, idx := "", 0
	for i, tier := range t.cfg.Tiers {
		if h.ConsecutiveFailures >= tier.After && i+1 > h.AlertTier {
			name, idx = tier.Tier, i+1
		}
	}
	return name, idx
}

func (t *Tracker) recovered(h store.SourceHealth) bool {
	if h.ConsecutiveSuccesses < t.cfg.MinSuccesses {
		return false
	}
	if len(h.History) == 0 {
		return false
	}
	ok := 0
	for _, s := range h.History {
		if s {
			ok++
		}
	}
	return float64(ok)/float64(len(h.History)) >= t.cfg.MinSuccessRate
}

// failuresBeforeStreak counts the failed runs immediately preceding the
// current success streak, for the recovery message.
func failuresBeforeStreak(history []bool) int {
	i := len(history) - 1
	for i >= 0 && history[i] {
		i--
	}
	n := 0
	for i >= 0 && !history[i] {
		n++
		i--
	}
	return n
}

func appendBounded(h []bool, v bool, window int) []bool {
	h = append(h, v)
	if window > 0 && len(h) > window {
		h = h[len(h)-window:]
	}
	return h
}
