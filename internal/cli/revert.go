package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/droidtune-io/droidtune/internal/artifact"
	"github.com/droidtune-io/droidtune/internal/audit"
	"github.com/droidtune-io/droidtune/internal/engine"
	"github.com/droidtune-io/droidtune/internal/ir"
	"github.com/droidtune-io/droidtune/internal/ledger"
	"github.com/droidtune-io/droidtune/internal/remote"
	"github.com/droidtune-io/droidtune/internal/store"
)

var (
	revertSerial     string
	revertUser       int
	revertDryRun     bool
	revertBestEffort bool
)

var revertCmd = &cobra.Command{
	Use:   "revert <run-dir|ledger.csv>",
	Short: "Restore a device to its pre-run state",
	Long: `Revert replays a run's ledger back onto the device, restoring every
recorded original value in reverse mutation order. It needs adb access;
revert.sh in the same run directory does the same without droidtune.`,
	Args: cobra.ExactArgs(1),
	RunE: runRevert,
}

func init() {
	revertCmd.Flags().StringVarP(&revertSerial, "serial", "s", "", "Device serial (default: the only connected device)")
	revertCmd.Flags().IntVar(&revertUser, "user", 0, "Android user id the run targeted")
	revertCmd.Flags().BoolVar(&revertDryRun, "dry-run", false, "Show what would be restored without writing")
	revertCmd.Flags().BoolVar(&revertBestEffort, "best-effort", false, "Exit zero even when some keys fail")
}

func runRevert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ledgerPath := args[0]
	if info, err := os.Stat(ledgerPath); err == nil && info.IsDir() {
		ledgerPath = filepath.Join(ledgerPath, artifact.LedgerFile)
	}

	content, err := readArtifact(ledgerPath)
	if err != nil {
		return err
	}
	entries, err := ledger.ReadCSV(bytes.NewReader(content))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("Ledger is empty; nothing to revert.")
		return nil
	}

	serial, err := resolveSerial(ctx, flagADB, revertSerial)
	if err != nil {
		return err
	}

	log, err := audit.Create(filepath.Join(filepath.Dir(ledgerPath), "revert-audit.csv"))
	if err != nil {
		return err
	}
	defer log.Close()

	cfg := ir.RunConfig{
		DryRun:     revertDryRun,
		Serial:     serial,
		User:       revertUser,
		BestEffort: revertBestEffort,
		ADBPath:    flagADB,
	}
	sys := remote.NewADB(flagADB, serial)
	st := store.New(sys, store.DefaultRegistry(revertUser))
	eng := engine.New(cfg, st, ledger.New(), log, engine.AllowAll{})

	verb := "Reverting"
	if revertDryRun {
		verb = "Simulating revert of"
	}
	fmt.Printf("%s %d keys on %s (user %d):\n\n", verb, len(entries), serial, revertUser)

	summary, err := eng.Revert(ctx, entries, renderEvent)
	if err != nil {
		return err
	}

	renderSummary(summary)

	if !summary.OK(revertBestEffort) {
		return fmt.Errorf("%d of %d keys failed to revert", summary.Failed, summary.Total())
	}
	return nil
}
