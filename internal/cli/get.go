package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/droidtune-io/droidtune/internal/remote"
	"github.com/droidtune-io/droidtune/internal/store"
)

var (
	getSerial string
	getUser   int
)

var getCmd = &cobra.Command{
	Use:   "get <scope:name>",
	Short: "Read one device value",
	Long: `Get reads a single value without mutating anything, using the same
scope handlers the apply command uses. Prints <absent> for unset keys.`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	getCmd.Flags().StringVarP(&getSerial, "serial", "s", "", "Device serial (default: the only connected device)")
	getCmd.Flags().IntVar(&getUser, "user", 0, "Android user id")
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	key, err := parseKey(args[0])
	if err != nil {
		return err
	}

	serial, err := resolveSerial(ctx, flagADB, getSerial)
	if err != nil {
		return err
	}

	sys := remote.NewADB(flagADB, serial)
	st := store.New(sys, store.DefaultRegistry(getUser))

	value, err := st.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	fmt.Println(value.String())
	return nil
}
