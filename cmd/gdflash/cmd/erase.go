package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/gdflash/pkg/fmc"
	"github.com/OpenTraceLab/gdflash/pkg/target"
	"github.com/spf13/cobra"
)

var (
	assumeYes    bool
	eraseAddress string
	eraseLength  string
)

// confirmInput is read for the mass erase prompt.
var confirmInput io.Reader = os.Stdin

var massEraseCmd = &cobra.Command{
	Use:   "mass-erase",
	Short: "Erase the whole device, clearing read protection",
	Long: `Erase all of main flash. On a read-protected part the option bytes are
erased and reprogrammed with protection disabled and the USER byte
preserved; the hardware then erases main flash.

The command asks for confirmation on a terminal unless --yes is given and
refuses to run non-interactively without it.`,
	RunE: runMassErase,
}

var eraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Erase the flash sectors covering an address range",
	Long: `Erase every sector touched by [address, address+length) with the flash
algorithm.

Examples:
  gdflash erase --address 0x08000000 --length 0x1000`,
	RunE: runErase,
}

func init() {
	rootCmd.AddCommand(massEraseCmd)
	rootCmd.AddCommand(eraseCmd)

	massEraseCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
	eraseCmd.Flags().StringVar(&eraseAddress, "address", "0x08000000", "start address")
	eraseCmd.Flags().StringVar(&eraseLength, "length", "", "number of bytes")
	eraseCmd.MarkFlagRequired("length")
}

func runMassErase(cmd *cobra.Command, args []string) error {
	if !assumeYes {
		ok, err := confirm(fmt.Sprintf("Mass erase %s? All flash contents will be lost. [y/N] ", targetName))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	var final fmc.State
	s, err := openSession(target.WithStateHook(func(st fmc.State) {
		if st.Terminal() {
			final = st
		}
	}))
	if err != nil {
		return err
	}
	defer s.Close()

	locked, err := s.target.IsLocked()
	if err != nil {
		return err
	}
	if err := s.resetHalt(); err != nil {
		return err
	}
	if err := s.target.MassErase(); err != nil {
		if fmc.IsUnrecoverable(err) {
			return fmt.Errorf("%w; power cycle the target before retrying", err)
		}
		return err
	}
	if locked {
		fmt.Printf("Option bytes: %s\n", final)
		fmt.Println("Read protection cleared, flash erased.")
	} else {
		fmt.Println("Flash erased.")
	}
	return nil
}

func confirm(prompt string) (bool, error) {
	if f, ok := confirmInput.(*os.File); ok && !isTerminal(f) {
		return false, errors.New("refusing to mass erase without --yes when stdin is not a terminal")
	}
	fmt.Print(prompt)
	line, err := bufio.NewReader(confirmInput).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func runErase(cmd *cobra.Command, args []string) error {
	addr, err := parseUint32(eraseAddress)
	if err != nil {
		return fmt.Errorf("--address: %w", err)
	}
	length, err := parseUint32(eraseLength)
	if err != nil {
		return fmt.Errorf("--length: %w", err)
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.resetHalt(); err != nil {
		return err
	}
	if err := s.target.EraseSectors(addr, length); err != nil {
		return err
	}
	fmt.Printf("Erased 0x%08X..0x%08X\n", addr, uint64(addr)+uint64(length))
	return nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return uint32(v), nil
}
