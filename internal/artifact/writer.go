// Package artifact manages the durable outputs of a run: the audit log,
// the revert script, the raw ledger, run metadata, and their optional
// publication to S3.
package artifact

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/droidtune-io/droidtune/internal/ledger"
	"github.com/droidtune-io/droidtune/internal/remote"
)

// Artifact file names within a run directory.
const (
	AuditFile  = "audit.csv"
	RevertFile = "revert.sh"
	LedgerFile = "ledger.csv"
	InfoFile   = "run.txt"
)

// Writer lays out one run's artifact set in a directory.
type Writer struct {
	dir string
}

// NewWriter creates the run directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory %s: %w", dir, err)
	}
	return &Writer{dir: dir}, nil
}

func (w *Writer) Dir() string { return w.dir }

// Path returns the absolute location of a named artifact.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// WriteRevertScript renders the ledger into revert.sh, executable.
func (w *Writer) WriteRevertScript(info ledger.ScriptInfo, entries []ledger.Entry, render ledger.CommandRenderer) error {
	var buf bytes.Buffer
	if err := ledger.WriteScript(&buf, info, entries, render); err != nil {
		return err
	}
	path := w.Path(RevertFile)
	if err := os.WriteFile(path, buf.Bytes(), 0755); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// WriteLedger persists the raw ledger as ledger.csv, the machine-read
// counterpart of revert.sh consumed by the revert command.
func (w *Writer) WriteLedger(entries []ledger.Entry) error {
	var buf bytes.Buffer
	if err := ledger.WriteCSV(&buf, entries); err != nil {
		return err
	}
	path := w.Path(LedgerFile)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// RunInfo is the human-readable metadata stamped into run.txt.
type RunInfo struct {
	Serial    string
	Profile   string
	User      int
	DryRun    bool
	StartedAt time.Time
	Device    remote.Info
}

// WriteRunInfo writes run.txt.
func (w *Writer) WriteRunInfo(info RunInfo) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "profile=%s\n", info.Profile)
	fmt.Fprintf(&buf, "serial=%s\n", info.Serial)
	fmt.Fprintf(&buf, "user=%d\n", info.User)
	fmt.Fprintf(&buf, "dry_run=%t\n", info.DryRun)
	fmt.Fprintf(&buf, "started_at=%s\n", info.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&buf, "device_model=%s\n", info.Device.Model)
	fmt.Fprintf(&buf, "device_manufacturer=%s\n", info.Device.Manufacturer)
	fmt.Fprintf(&buf, "android_release=%s\n", info.Device.Release)
	fmt.Fprintf(&buf, "security_patch=%s\n", info.Device.SecurityPatch)

	path := w.Path(InfoFile)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Files lists the artifacts currently present in the run directory, in
// a stable order, for publication.
func (w *Writer) Files() []string {
	var present []string
	for _, name := range []string{AuditFile, RevertFile, LedgerFile, InfoFile} {
		path := w.Path(name)
		if _, err := os.Stat(path); err == nil {
			present = append(present, path)
		}
	}
	return present
}
