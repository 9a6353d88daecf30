package main

import (
	"fmt"
	"os"

	"cardcheck/db"
	"cardcheck/log"

	"github.com/spf13/cobra"
)

func main() {
	var verbose bool
	rootCmd := &cobra.Command{
		Use:           "cardcheck",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			log.SetVerbose(verbose)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log executed statements")
	rootCmd.AddCommand(db.DbCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, db.ErrorText(err))
		os.Exit(1)
	}
}
