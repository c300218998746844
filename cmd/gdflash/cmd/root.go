package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// Global flags
	verbose    bool
	logFormat  string
	probeType  string
	probeVID   uint16
	probePID   uint16
	probeSpeed int
	targetName string
	simLocked  bool
)

var rootCmd = &cobra.Command{
	Use:   "gdflash",
	Short: "GD32E23x flash and option byte tool for CMSIS-DAP probes",
	Long: `Program, erase and recover GD32E23x microcontrollers over SWD.

A read-protected part is recovered through the option bytes: protection
is cleared and the USER option byte is preserved, which erases the main
flash. Unprotected parts are erased with the on-target flash algorithm.

Examples:
  gdflash interfaces                                 # List probes
  gdflash info                                       # Probe, debug port and lock state
  gdflash mass-erase --yes                           # Erase, clearing read protection
  gdflash program firmware.bin --address 0x08000000  # Program a raw binary
  gdflash --probe simulator --sim-locked mass-erase --yes`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug log level)")
	flags.StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	flags.StringVar(&probeType, "probe", "cmsisdap", "probe type (cmsisdap, simulator)")
	flags.Uint16Var(&probeVID, "vid", 0x2e8a, "probe USB vendor ID")
	flags.Uint16Var(&probePID, "pid", 0x000c, "probe USB product ID")
	flags.IntVar(&probeSpeed, "speed", 1000000, "SWCLK speed in Hz (default 1MHz)")
	flags.StringVarP(&targetName, "target", "t", "gd32e230g8", "target part")
	flags.BoolVar(&simLocked, "sim-locked", false, "simulator: start with read protection enabled")
}

func setupLogging(cmd *cobra.Command, args []string) error {
	logger := log.StandardLogger()
	logger.SetOutput(os.Stderr)

	switch logFormat {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	case "text":
		logger.SetFormatter(&log.TextFormatter{
			ForceColors:   isTerminal(os.Stderr),
			FullTimestamp: true,
		})
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", logFormat)
	}

	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
