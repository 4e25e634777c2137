package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/seracc/pkg/dap"
)

var probesCmd = &cobra.Command{
	Use:   "probes",
	Short: "List available debug probes",
	Long: `Scan the host for CMSIS-DAP debug probes and print a summary of each. The
built-in simulator is always listed.`,
	RunE: runProbes,
}

func init() {
	rootCmd.AddCommand(probesCmd)
}

func runProbes(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	infos, err := dap.DiscoverProbes(ctx)
	if err != nil {
		return fmt.Errorf("discover probes: %w", err)
	}
	p := newPrinter(cmd)
	if p.json {
		return p.encode(infos)
	}

	p.printf("Detected probes:\n")
	for _, info := range infos {
		p.printf("  - %s [%s] (VID:PID %04X:%04X)\n", info.Label(), info.Kind, info.VendorID, info.ProductID)
	}
	return nil
}
