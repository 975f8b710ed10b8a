// Package ledger records, at most once per key, the value a device
// held before this run touched it, and turns those records into an
// executable undo procedure.
package ledger

import (
	"github.com/droidtune-io/droidtune/internal/ir"
)

// Entry pairs a key with its pre-run value. Seq is the first-recorded
// order, used for deterministic revert rendering.
type Entry struct {
	Key      ir.Key
	Original ir.Value
	Seq      int
}

// Ledger is the run-scoped record of original values.
//
// The central invariant: the first observed original is retained, and
// later mutations of the same key never overwrite it. That is what
// makes repeated applies within one run revertible to the pre-run
// state instead of an intermediate one.
type Ledger struct {
	order   []ir.Key
	entries map[ir.Key]Entry
}

func New() *Ledger {
	return &Ledger{entries: make(map[ir.Key]Entry)}
}

// RecordIfAbsent stores the entry for key if none exists, calling
// supplier exactly once to obtain the current value. If an entry
// already exists the supplier is not called. If the supplier fails,
// nothing is recorded and the error is returned: a key whose original
// state is unknown must never be mutated.
func (l *Ledger) RecordIfAbsent(key ir.Key, supplier func() (ir.Value, error)) error {
	if _, ok := l.entries[key]; ok {
		return nil
	}

	original, err := supplier()
	if err != nil {
		return err
	}

	l.entries[key] = Entry{Key: key, Original: original, Seq: len(l.order)}
	l.order = append(l.order, key)
	return nil
}

// Has reports whether key already has an entry.
func (l *Ledger) Has(key ir.Key) bool {
	_, ok := l.entries[key]
	return ok
}

// Entries returns all entries in first-recorded order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l.order))
	for _, key := range l.order {
		out = append(out, l.entries[key])
	}
	return out
}

// Len returns the number of recorded keys.
func (l *Ledger) Len() int {
	return len(l.order)
}
