package cmd

import (
	"fmt"
	"os"

	"github.com/OpenTraceLab/gdflash/pkg/regscript"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var scriptCmd = &cobra.Command{
	Use:   "script FILE",
	Short: "Run a register script against the target",
	Long: `Run a register script: sized reads and writes, masked polls and sleeps.
The FMC register names, option byte addresses, keys and control bits of the
selected target are predefined symbols; values may be OR-ed with "|".

Example script:
  # read protection state
  read32 FMC_OBSTAT
  write32 FMC_KEY KEY1
  write32 FMC_KEY KEY2
  poll FMC_STAT STAT_BUSY 0 100ms
  read16 OB_USER`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	rootCmd.AddCommand(scriptCmd)
}

func runScript(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	parser, err := regscript.NewParser()
	if err != nil {
		return err
	}
	script, err := parser.Parse(args[0], f)
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	exec := regscript.NewExecutor(s.ap,
		regscript.WithSymbols(s.target.Definition().Registers.Symbols()),
		regscript.WithLogger(log.StandardLogger()),
	)
	results, err := exec.Run(script)
	for _, r := range results {
		fmt.Printf("%d: %s\n", r.Line, r)
	}
	return err
}
