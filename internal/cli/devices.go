package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/droidtune-io/droidtune/internal/remote"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List connected devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := remote.Devices(cmd.Context(), flagADB)
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Println("No devices connected.")
			return nil
		}

		fmt.Printf("%-24s %-14s %s\n", "SERIAL", "STATE", "MODEL")
		for _, d := range devices {
			fmt.Printf("%-24s %-14s %s\n", d.Serial, d.State, d.Model)
		}
		return nil
	},
}
