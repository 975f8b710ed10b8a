// Package engine orchestrates mutations against a device: policy
// check, applicability, original-value capture, then the write —
// honoring dry-run and recording every attempt in the audit log.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/droidtune-io/droidtune/internal/audit"
	"github.com/droidtune-io/droidtune/internal/ir"
	"github.com/droidtune-io/droidtune/internal/ledger"
	"github.com/droidtune-io/droidtune/internal/logging"
)

// ValueStore is the engine's view of the device.
type ValueStore interface {
	Get(ctx context.Context, key ir.Key) (ir.Value, error)
	Set(ctx context.Context, key ir.Key, value ir.Value) error
	Applicable(ctx context.Context, key ir.Key) (bool, error)
}

// Event reports progress on one key.
type Event struct {
	Key       ir.Key
	Requested ir.Value
	Outcome   ir.Outcome
	Message   string
	Duration  time.Duration
}

// Callback is called after each key completes, if set.
type Callback func(Event)

// Engine processes one run against one device, sequentially. It owns
// the device connection for the duration of the run.
type Engine struct {
	cfg    ir.RunConfig
	store  ValueStore
	ledger *ledger.Ledger
	log    *audit.Log
	policy Policy

	// Retry governs transient-transport retries; replaceable in tests.
	Retry *RetryPolicy
}

func New(cfg ir.RunConfig, store ValueStore, ldg *ledger.Ledger, log *audit.Log, policy Policy) *Engine {
	if policy == nil {
		policy = AllowAll{}
	}
	return &Engine{
		cfg:    cfg,
		store:  store,
		ledger: ldg,
		log:    log,
		policy: policy,
		Retry:  DefaultRetryPolicy(),
	}
}

// Ledger exposes the run's revert ledger for rendering.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Apply attempts one mutation. Per-key problems become recorded
// outcomes, never returned errors; the error return is reserved for
// run-fatal conditions (a failed audit append, cancelled context).
func (e *Engine) Apply(ctx context.Context, m *ir.Mutation) (ir.ActionRecord, error) {
	if err := ctx.Err(); err != nil {
		return ir.ActionRecord{}, fmt.Errorf("run cancelled: %w", err)
	}

	key := m.Key()
	desired := m.Desired()
	logging.Debug("applying mutation", "key", key.String(), "desired", desired.String(), "dry_run", e.cfg.DryRun)

	if ok, pattern := e.policy.Allows(key); !ok {
		return e.record(key, desired, ir.OutcomeSkipped, ir.ReasonPolicy+": "+pattern)
	}

	applicable, err := e.store.Applicable(ctx, key)
	if err != nil {
		return e.record(key, desired, ir.OutcomeFailed, ir.ReasonNotDeterminable+": "+err.Error())
	}
	if !applicable {
		return e.record(key, desired, ir.OutcomeSkipped, ir.ReasonNotApplicable)
	}

	// Capture the original before touching anything. If this read
	// fails the key is not mutated: never mutate a key that cannot be
	// proven restorable.
	supplier := func() (ir.Value, error) {
		var v ir.Value
		err := RetryWithBackoff(ctx, e.Retry, func() error {
			var gerr error
			v, gerr = e.store.Get(ctx, key)
			return gerr
		}, IsTransientError)
		return v, err
	}
	if e.cfg.DryRun {
		// perform the read so unreadable keys surface in dry-run too,
		// but record nothing: an unmutated key has nothing to revert
		if _, err := supplier(); err != nil {
			return e.record(key, desired, ir.OutcomeFailed, ir.ReasonUnreadable+": "+err.Error())
		}
		return e.record(key, desired, ir.OutcomeSimulated, "")
	}

	if err := e.ledger.RecordIfAbsent(key, supplier); err != nil {
		return e.record(key, desired, ir.OutcomeFailed, ir.ReasonUnreadable+": "+err.Error())
	}

	err = RetryWithBackoff(ctx, e.Retry, func() error {
		return e.store.Set(ctx, key, desired)
	}, IsTransientError)
	if err != nil {
		return e.record(key, desired, ir.OutcomeFailed, ir.ReasonWriteRejected+": "+err.Error())
	}
	return e.record(key, desired, ir.OutcomeApplied, "")
}

// Run applies every mutation of the profile in order, one key at a
// time to completion. A failing key never aborts the run; the audit
// log carries a durable record of everything completed when the run is
// interrupted.
func (e *Engine) Run(ctx context.Context, profile *ir.Profile, callback Callback) (ir.Summary, error) {
	var summary ir.Summary

	for _, m := range profile.Mutations {
		start := time.Now()
		rec, err := e.Apply(ctx, m)
		if err != nil {
			return summary, err
		}

		summary.Count(rec.Outcome)
		if callback != nil {
			callback(Event{
				Key:       rec.Key,
				Requested: rec.Requested,
				Outcome:   rec.Outcome,
				Message:   rec.Message,
				Duration:  time.Since(start),
			})
		}
	}
	return summary, nil
}

// Revert replays ledger entries back onto the device in reverse of
// first-recorded order, setting each key to its recorded original.
// Dry-run simulates. Entries are absolute values, so reverting twice
// converges on the same state.
func (e *Engine) Revert(ctx context.Context, entries []ledger.Entry, callback Callback) (ir.Summary, error) {
	var summary ir.Summary

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("revert cancelled: %w", err)
		}

		start := time.Now()
		var rec ir.ActionRecord
		var err error

		if e.cfg.DryRun {
			rec, err = e.record(entry.Key, entry.Original, ir.OutcomeSimulated, "")
		} else {
			setErr := RetryWithBackoff(ctx, e.Retry, func() error {
				return e.store.Set(ctx, entry.Key, entry.Original)
			}, IsTransientError)
			if setErr != nil {
				rec, err = e.record(entry.Key, entry.Original, ir.OutcomeFailed, ir.ReasonWriteRejected+": "+setErr.Error())
			} else {
				rec, err = e.record(entry.Key, entry.Original, ir.OutcomeApplied, "")
			}
		}
		if err != nil {
			return summary, err
		}

		summary.Count(rec.Outcome)
		if callback != nil {
			callback(Event{
				Key:       rec.Key,
				Requested: rec.Requested,
				Outcome:   rec.Outcome,
				Message:   rec.Message,
				Duration:  time.Since(start),
			})
		}
	}
	return summary, nil
}

// record appends the outcome to the audit log. An audit failure is
// fatal to the run: an unrecorded mutation would be invisible to the
// trail.
func (e *Engine) record(key ir.Key, requested ir.Value, outcome ir.Outcome, message string) (ir.ActionRecord, error) {
	rec := ir.ActionRecord{
		Key:       key,
		Requested: requested,
		Outcome:   outcome,
		Message:   message,
		At:        time.Now(),
	}
	if e.log != nil {
		if err := e.log.Append(rec); err != nil {
			return rec, fmt.Errorf("audit log write failed: %w", err)
		}
	}
	return rec, nil
}
