package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OpenTraceLab/gdflash/pkg/flashalgo"
	"github.com/spf13/cobra"
)

var algoJSON bool

// AlgoInfo is the structured view of a flash algorithm descriptor
type AlgoInfo struct {
	Target      string            `json:"target"`
	LoadAddress string            `json:"load_address"`
	Words       int               `json:"instruction_words"`
	Entries     map[string]string `json:"entries"`
	StaticBase  string            `json:"static_base"`
	Stack       string            `json:"stack"`
	BeginData   string            `json:"begin_data"`
	PageBuffers []string          `json:"page_buffers"`
	PageSize    uint32            `json:"page_size"`
	Flash       string            `json:"flash"`
	Sectors     int               `json:"sectors"`
	SectorSize  uint32            `json:"sector_size"`
	Valid       bool              `json:"valid"`
	Problems    []string          `json:"problems,omitempty"`
}

var algoCmd = &cobra.Command{
	Use:   "algo",
	Short: "Print and validate the target's flash algorithm",
	Long: `Print the flash algorithm descriptor of the selected target: load address,
entry points, stack and buffer layout and the sector map. The descriptor is
validated; problems are listed and the command fails if there are any.

No probe is needed.`,
	RunE: runAlgo,
}

func init() {
	rootCmd.AddCommand(algoCmd)
	algoCmd.Flags().BoolVar(&algoJSON, "json", false, "output JSON")
}

func hex32(v uint32) string {
	return fmt.Sprintf("0x%08X", v)
}

func runAlgo(cmd *cobra.Command, args []string) error {
	def, err := lookupTarget()
	if err != nil {
		return err
	}
	algo := def.Algo

	info := AlgoInfo{
		Target:      def.PartNumber,
		LoadAddress: hex32(algo.LoadAddress),
		Words:       len(algo.Instructions),
		Entries:     make(map[string]string),
		StaticBase:  hex32(algo.StaticBase),
		Stack:       fmt.Sprintf("%s..%s", hex32(algo.EndStack), hex32(algo.BeginStack)),
		BeginData:   hex32(algo.BeginData),
		PageSize:    algo.PageSize,
		Flash:       fmt.Sprintf("%s..%s", hex32(algo.FlashStart), hex32(algo.FlashStart+algo.FlashSize)),
		Valid:       true,
	}
	for _, e := range flashalgo.Entries {
		info.Entries[e.String()] = hex32(algo.EntryAddress(e))
	}
	for _, b := range algo.PageBuffers {
		info.PageBuffers = append(info.PageBuffers, hex32(b))
	}
	sectors := algo.Sectors()
	info.Sectors = len(sectors)
	if len(sectors) > 0 {
		info.SectorSize = sectors[0].Size
	}

	verr := algo.Validate()
	if verr != nil {
		info.Valid = false
		var ve *flashalgo.ValidationError
		if errors.As(verr, &ve) {
			info.Problems = ve.Problems
		} else {
			info.Problems = []string{verr.Error()}
		}
	}

	if algoJSON {
		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		printAlgo(info)
	}

	if verr != nil {
		return verr
	}
	return nil
}

func printAlgo(info AlgoInfo) {
	fmt.Printf("Flash algorithm for %s\n", info.Target)
	fmt.Printf("  Load address: %s (%d words)\n", info.LoadAddress, info.Words)
	fmt.Println("  Entry points:")
	for _, e := range flashalgo.Entries {
		fmt.Printf("    %-12s %s\n", e.String()+":", info.Entries[e.String()])
	}
	fmt.Printf("  Static base:  %s\n", info.StaticBase)
	fmt.Printf("  Stack:        %s\n", info.Stack)
	fmt.Printf("  Begin data:   %s\n", info.BeginData)
	fmt.Printf("  Page buffers: %v (page size 0x%X)\n", info.PageBuffers, info.PageSize)
	fmt.Printf("  Flash:        %s, %d sectors of 0x%X\n", info.Flash, info.Sectors, info.SectorSize)
	if info.Valid {
		fmt.Println("  Valid:        yes")
		return
	}
	fmt.Println("  Valid:        no")
	for _, p := range info.Problems {
		fmt.Printf("    - %s\n", p)
	}
}
