package cmd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	programAddress string
	programVerify  bool
)

var programCmd = &cobra.Command{
	Use:   "program FILE",
	Short: "Program a raw binary image",
	Long: `Erase the sectors covered by the image and program it with the on-target
flash algorithm, double buffering page transfers. The image is read back
and compared unless --verify=false.

Examples:
  gdflash program firmware.bin
  gdflash program app.bin --address 0x08002000`,
	Args: cobra.ExactArgs(1),
	RunE: runProgram,
}

func init() {
	rootCmd.AddCommand(programCmd)
	programCmd.Flags().StringVarP(&programAddress, "address", "a", "0x08000000", "load address")
	programCmd.Flags().BoolVar(&programVerify, "verify", true, "read back and compare")
}

func runProgram(cmd *cobra.Command, args []string) error {
	addr, err := parseUint32(programAddress)
	if err != nil {
		return fmt.Errorf("--address: %w", err)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%s is empty", args[0])
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.resetHalt(); err != nil {
		return err
	}
	if err := s.target.Program(addr, data); err != nil {
		return err
	}
	fmt.Printf("Programmed %d bytes at 0x%08X\n", len(data), addr)

	if programVerify {
		if err := verify(s, addr, data); err != nil {
			return err
		}
		fmt.Println("Verified.")
	}
	return nil
}

// verify reads the image back by words, covering the unaligned head and
// tail.
func verify(s *session, addr uint32, data []byte) error {
	start := addr &^ 3
	end := (uint64(addr) + uint64(len(data)) + 3) &^ 3
	words, err := s.ap.ReadBlock32(start, int(end-uint64(start))/4)
	if err != nil {
		return fmt.Errorf("read back: %w", err)
	}
	buf := make([]byte, 0, len(words)*4)
	for _, w := range words {
		buf = binary.LittleEndian.AppendUint32(buf, w)
	}
	got := buf[addr-start : addr-start+uint32(len(data))]
	if !bytes.Equal(got, data) {
		for i := range data {
			if got[i] != data[i] {
				return fmt.Errorf("verify failed at 0x%08X: wrote 0x%02X, read 0x%02X", addr+uint32(i), data[i], got[i])
			}
		}
	}
	return nil
}
