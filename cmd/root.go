package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "novapay",
	Short: "NovaPay payment flow engine",
	Long:  "A closed-loop payment flow engine: reserve, authorize, charge, void and refund flows over an internal ledger.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
