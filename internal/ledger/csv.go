package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/droidtune-io/droidtune/internal/ir"
)

var csvHeader = []string{"scope", "name", "original", "present"}

// WriteCSV serializes entries in first-recorded order. The "present"
// column keeps Absent distinguishable from the empty string.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write ledger header: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.Key.Scope,
			e.Key.Name,
			e.Original.Raw(),
			strconv.FormatBool(e.Original.Present()),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write ledger entry %s: %w", e.Key, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV loads a persisted ledger, preserving order.
func ReadCSV(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger header: %w", err)
	}
	if len(header) != len(csvHeader) || header[0] != "scope" {
		return nil, fmt.Errorf("not a ledger file: unexpected header %v", header)
	}

	var entries []Entry
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger row: %w", err)
		}

		present, err := strconv.ParseBool(row[3])
		if err != nil {
			return nil, fmt.Errorf("invalid ledger row for %s:%s: %w", row[0], row[1], err)
		}

		value := ir.Absent
		if present {
			value = ir.NewValue(row[2])
		}
		entries = append(entries, Entry{
			Key:      ir.Key{Scope: row[0], Name: row[1]},
			Original: value,
			Seq:      len(entries),
		})
	}
	return entries, nil
}
