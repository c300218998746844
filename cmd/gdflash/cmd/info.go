package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/OpenTraceLab/gdflash/pkg/idcode/deviceinfo"
	"github.com/spf13/cobra"
)

var infoJSON bool

// ProbeReport is the structured output of the info command
type ProbeReport struct {
	Probe      string `json:"probe"`
	Serial     string `json:"serial,omitempty"`
	Firmware   string `json:"firmware,omitempty"`
	DPIDR      string `json:"dpidr"`
	DebugPort  string `json:"debug_port"`
	Designer   string `json:"designer"`
	APIDR      string `json:"apidr"`
	APBase     string `json:"ap_base"`
	Target     string `json:"target"`
	Locked     bool   `json:"locked"`
	UserOption string `json:"user_option"`
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show probe, debug port and target protection state",
	Long: `Connect to the target and report the probe identification, the decoded
debug port IDR, the access port IDR and whether read protection is active.

Examples:
  gdflash info
  gdflash --probe simulator info --json`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "output JSON")
}

func runInfo(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	probe := s.probe.Info()
	dp := deviceinfo.Lookup(s.probe.DPIDR())
	apidr, err := s.ap.IDR()
	if err != nil {
		return fmt.Errorf("read AP IDR: %w", err)
	}
	base, err := s.ap.Base()
	if err != nil {
		return fmt.Errorf("read AP BASE: %w", err)
	}
	locked, err := s.target.IsLocked()
	if err != nil {
		return fmt.Errorf("read protection state: %w", err)
	}
	def := s.target.Definition()
	user, err := s.ap.Read16(def.Registers.UserOption)
	if err != nil {
		return fmt.Errorf("read user option: %w", err)
	}

	report := ProbeReport{
		Probe:      fmt.Sprintf("%s %s", probe.Vendor, probe.Product),
		Serial:     probe.SerialNumber,
		Firmware:   probe.Firmware,
		DPIDR:      fmt.Sprintf("0x%08X", dp.DPIDR.Raw),
		DebugPort:  fmt.Sprintf("%s (%s)", dp.Name, dp.DPIDR),
		Designer:   dp.Designer.Name,
		APIDR:      fmt.Sprintf("0x%08X", apidr),
		APBase:     fmt.Sprintf("0x%08X", base),
		Target:     fmt.Sprintf("%s %s", def.Vendor, def.PartNumber),
		Locked:     locked,
		UserOption: fmt.Sprintf("0x%04X", user),
	}

	if infoJSON {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Probe:       %s\n", report.Probe)
	if report.Serial != "" {
		fmt.Printf("  Serial:    %s\n", report.Serial)
	}
	if report.Firmware != "" {
		fmt.Printf("  Firmware:  %s\n", report.Firmware)
	}
	fmt.Printf("DPIDR:       %s %s\n", report.DPIDR, report.DebugPort)
	fmt.Printf("  Designer:  %s\n", report.Designer)
	if len(dp.Cores) > 0 {
		fmt.Printf("  Cores:     %v\n", dp.Cores)
	}
	fmt.Printf("AP IDR:      %s\n", report.APIDR)
	fmt.Printf("  ROM table: %s\n", report.APBase)
	fmt.Printf("Target:      %s\n", report.Target)
	fmt.Printf("Locked:      %v\n", report.Locked)
	fmt.Printf("User option: %s\n", report.UserOption)
	return nil
}
