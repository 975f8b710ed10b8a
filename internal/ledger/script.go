package ledger

import (
	"fmt"
	"io"
	"time"
)

// CommandRenderer turns one entry into the standalone shell command
// that restores it. The store supplies this per scope.
type CommandRenderer func(Entry) (string, error)

// ScriptInfo is stamped into the script header.
type ScriptInfo struct {
	Serial      string
	ProfileName string
	GeneratedAt time.Time
}

// WriteScript renders entries as a self-contained POSIX shell script,
// one inverse operation per entry, in reverse of first-recorded order
// (last-touched key reverted first). Every operation is an absolute
// "set to X", so running the script any number of times converges on
// the pre-run state.
func WriteScript(w io.Writer, info ScriptInfo, entries []Entry, render CommandRenderer) error {
	fmt.Fprintln(w, "#!/bin/sh")
	fmt.Fprintf(w, "# revert script generated by droidtune at %s\n",
		info.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "# device: %s", info.Serial)
	if info.ProfileName != "" {
		fmt.Fprintf(w, "  profile: %s", info.ProfileName)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# safe to run any number of times")
	fmt.Fprintln(w)

	if len(entries) == 0 {
		fmt.Fprintln(w, "# nothing was mutated; nothing to revert")
		return nil
	}

	for i := len(entries) - 1; i >= 0; i-- {
		cmd, err := render(entries[i])
		if err != nil {
			return fmt.Errorf("failed to render revert for %s: %w", entries[i].Key, err)
		}
		if _, err := fmt.Fprintln(w, cmd); err != nil {
			return err
		}
	}
	return nil
}
