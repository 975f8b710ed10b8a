package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/droidtune-io/droidtune/internal/artifact"
	"github.com/droidtune-io/droidtune/internal/audit"
	"github.com/droidtune-io/droidtune/internal/engine"
	"github.com/droidtune-io/droidtune/internal/eval"
	"github.com/droidtune-io/droidtune/internal/ir"
	"github.com/droidtune-io/droidtune/internal/ledger"
	"github.com/droidtune-io/droidtune/internal/remote"
	"github.com/droidtune-io/droidtune/internal/store"
)

var (
	applySerial     string
	applyUser       int
	applyDryRun     bool
	applyOut        string
	applyBestEffort bool
	applyProtect    []string
	applyProperties map[string]string
)

var applyCmd = &cobra.Command{
	Use:   "apply <profile.pkl>",
	Short: "Apply a profile to a device",
	Long: `Apply evaluates a PKL profile and applies its mutations to one device,
capturing every touched value's original before the first write. The run
directory afterwards holds revert.sh, ledger.csv, audit.csv and run.txt.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVarP(&applySerial, "serial", "s", "", "Device serial (default: the only connected device)")
	applyCmd.Flags().IntVar(&applyUser, "user", 0, "Android user id (overrides the profile's)")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Simulate the run without writing to the device")
	applyCmd.Flags().StringVar(&applyOut, "out", "", "Run directory for artifacts (default: .droidtune/runs/<profile>/<run-id>)")
	applyCmd.Flags().BoolVar(&applyBestEffort, "best-effort", false, "Exit zero even when some keys fail")
	applyCmd.Flags().StringSliceVar(&applyProtect, "protect", nil, "Additional protected key patterns")
	applyCmd.Flags().StringToStringVarP(&applyProperties, "prop", "D", nil, "Set external properties (format: key=value)")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	profilePath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve path %s: %w", args[0], err)
	}

	// 1. Evaluate the profile
	fmt.Print("Loading profile... ")
	profile, err := eval.LoadProfile(ctx, profilePath, applyProperties)
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	fmt.Println("OK")

	user := profile.User
	if cmd.Flags().Changed("user") {
		user = applyUser
	}

	// 2. Resolve the target device
	serial, err := resolveSerial(ctx, flagADB, applySerial)
	if err != nil {
		return err
	}

	runID := artifact.RunID(start)
	outDir := applyOut
	if outDir == "" {
		outDir = filepath.Join(".droidtune", "runs", profile.Name, runID)
	}

	writer, err := artifact.NewWriter(outDir)
	if err != nil {
		return err
	}
	lock, err := artifact.AcquireLock(outDir, serial)
	if err != nil {
		return err
	}
	defer lock.Release()

	// 3. Cross-machine device lock, when publication is configured
	var publisher *artifact.Publisher
	if profile.Publish != nil {
		publisher, err = artifact.NewPublisher(ctx, profile.Publish)
		if err != nil {
			return err
		}
		if err := publisher.LockDevice(ctx, serial); err != nil {
			return err
		}
		defer publisher.UnlockDevice(context.WithoutCancel(ctx), serial)
	}

	sys := remote.NewADB(flagADB, serial)
	info, err := remote.DeviceInfo(ctx, sys)
	if err != nil {
		return fmt.Errorf("failed to identify device %s: %w", serial, err)
	}
	fmt.Printf("Device: %s %s (Android %s, patch %s)\n", info.Manufacturer, info.Model, info.Release, info.SecurityPatch)

	if err := writer.WriteRunInfo(artifact.RunInfo{
		Serial:    serial,
		Profile:   profile.Name,
		User:      user,
		DryRun:    applyDryRun,
		StartedAt: start,
		Device:    info,
	}); err != nil {
		return err
	}

	log, err := audit.Create(writer.Path(artifact.AuditFile))
	if err != nil {
		return err
	}
	defer log.Close()

	// 4. Run the engine
	cfg := ir.RunConfig{
		DryRun:     applyDryRun,
		Serial:     serial,
		User:       user,
		OutputDir:  outDir,
		BestEffort: applyBestEffort,
		ADBPath:    flagADB,
	}
	st := store.New(sys, store.DefaultRegistry(user))
	ldg := ledger.New()
	patterns := append(append([]string{}, profile.Protected...), applyProtect...)
	eng := engine.New(cfg, st, ldg, log, engine.NewProtectList(patterns))

	verb := "Applying"
	if applyDryRun {
		verb = "Simulating"
	}
	fmt.Printf("\n%s %d mutations on %s (user %d):\n\n", verb, len(profile.Mutations), serial, user)

	summary, runErr := eng.Run(ctx, profile, renderEvent)

	// 5. Revert artifacts cover everything mutated so far, even when
	// the run stopped early.
	render := func(e ledger.Entry) (string, error) {
		return st.RevertCommand(e.Key, e.Original)
	}
	scriptInfo := ledger.ScriptInfo{Serial: serial, ProfileName: profile.Name, GeneratedAt: time.Now()}
	if err := writer.WriteRevertScript(scriptInfo, ldg.Entries(), render); err != nil {
		return err
	}
	if err := writer.WriteLedger(ldg.Entries()); err != nil {
		return err
	}

	if runErr != nil {
		fmt.Printf("\nRun aborted; artifacts for the completed part are in %s\n", outDir)
		return runErr
	}

	// 6. Publish
	if publisher != nil {
		fmt.Print("\nPublishing artifacts... ")
		keys, err := publisher.Publish(ctx, serial, runID, writer.Files())
		if err != nil {
			fmt.Println("FAILED")
			return err
		}
		fmt.Printf("OK (%d objects)\n", len(keys))
	}

	renderSummary(summary)
	fmt.Printf("\nArtifacts: %s\n", outDir)

	if !summary.OK(applyBestEffort) {
		return fmt.Errorf("%d of %d keys failed; revert.sh covers everything that was mutated", summary.Failed, summary.Total())
	}
	return nil
}
