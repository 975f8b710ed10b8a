// Package audit is the durable trail of every attempted mutation.
// Records are flushed one at a time so an interrupted run still leaves
// every completed record on disk.
package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/droidtune-io/droidtune/internal/ir"
)

var header = []string{"scope", "name", "requested", "outcome", "message", "timestamp"}

// Log is an append-only action log. Appended records are never
// mutated or removed.
type Log struct {
	mu      sync.Mutex
	cw      *csv.Writer
	closer  io.Closer
	summary ir.Summary
}

// New writes the header row and returns a log appending to w.
func New(w io.Writer) (*Log, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write audit header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush audit header: %w", err)
	}
	return &Log{cw: cw}, nil
}

// Create opens path for appending, truncating any previous content:
// one run, one audit file.
func Create(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit log %s: %w", path, err)
	}
	l, err := New(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	l.closer = f
	return l, nil
}

// Append records one attempted mutation and flushes it immediately.
func (l *Log) Append(rec ir.ActionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}

	row := []string{
		rec.Key.Scope,
		rec.Key.Name,
		rec.Requested.String(),
		string(rec.Outcome),
		rec.Message,
		at.UTC().Format(time.RFC3339),
	}
	if err := l.cw.Write(row); err != nil {
		return fmt.Errorf("failed to append audit record for %s: %w", rec.Key, err)
	}
	l.cw.Flush()
	if err := l.cw.Error(); err != nil {
		return fmt.Errorf("failed to flush audit record for %s: %w", rec.Key, err)
	}

	l.summary.Count(rec.Outcome)
	return nil
}

// Summary returns per-outcome counts of everything appended so far.
func (l *Log) Summary() ir.Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.summary
}

// Close releases the underlying file, when the log owns one.
func (l *Log) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// ReadSummary computes per-outcome counts from a previously written
// audit log.
func ReadSummary(r io.Reader) (ir.Summary, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	head, err := cr.Read()
	if err != nil {
		return ir.Summary{}, fmt.Errorf("failed to read audit header: %w", err)
	}
	if head[0] != "scope" || head[3] != "outcome" {
		return ir.Summary{}, fmt.Errorf("not an audit log: unexpected header %v", head)
	}

	var s ir.Summary
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ir.Summary{}, fmt.Errorf("failed to read audit row: %w", err)
		}
		s.Count(ir.Outcome(row[3]))
	}
	return s, nil
}
