package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lockedCmd = &cobra.Command{
	Use:   "locked",
	Short: "Report whether read protection is active",
	Long: `Read FMC_OBSTAT and print "locked" or "unlocked". The exit status is zero
in both cases; it is non-zero only when the target cannot be read.`,
	RunE: runLocked,
}

func init() {
	rootCmd.AddCommand(lockedCmd)
}

func runLocked(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	locked, err := s.target.IsLocked()
	if err != nil {
		return err
	}
	if locked {
		fmt.Println("locked")
	} else {
		fmt.Println("unlocked")
	}
	return nil
}
