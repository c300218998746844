package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/OpenTraceLab/gdflash/pkg/dap"
	"github.com/spf13/cobra"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List available CMSIS-DAP probes",
	Long: `Scan the host for CMSIS-DAP probes (Raspberry Pi Debug Probe, DAPLink,
GD-Link, etc.) and print a summary of the detected transports. The simulator
is always listed so the tool can be tried without hardware.`,
	RunE: runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	infos, err := dap.DiscoverInterfaces(ctx)
	if err != nil {
		return fmt.Errorf("discover interfaces: %w", err)
	}

	fmt.Println("Detected probes:")
	for _, iface := range infos {
		if iface.Kind == dap.InterfaceKindSim {
			fmt.Printf("  - %s [%s] (--probe simulator)\n", iface.Label(), iface.Kind)
			continue
		}
		fmt.Printf("  - %s [%s] (--vid 0x%04x --pid 0x%04x)\n", iface.Label(), iface.Kind, iface.VendorID, iface.ProductID)
	}

	return nil
}
