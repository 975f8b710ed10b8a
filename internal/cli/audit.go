package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/droidtune-io/droidtune/internal/artifact"
	"github.com/droidtune-io/droidtune/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit <run-dir|audit.csv>",
	Short: "Summarize a run's audit log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			path = filepath.Join(path, artifact.AuditFile)
		}

		content, err := readArtifact(path)
		if err != nil {
			return err
		}
		summary, err := audit.ReadSummary(bytes.NewReader(content))
		if err != nil {
			return err
		}

		fmt.Printf("Audit log: %s\n", path)
		renderSummary(summary)
		fmt.Printf("\nTotal: %d records\n", summary.Total())
		return nil
	},
}
