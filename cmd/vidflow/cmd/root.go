package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverAddr string
	authToken  string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "vidflow",
	Short: "command-line client for the vidflowd download supervisor",
	Long:  `vidflow talks to a running vidflowd daemon over its HTTP command surface.`,
}

// Execute adds all child commands to the root command and runs it. Called
// once from main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "127.0.0.1:4444", "vidflowd command surface address")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("VIDFLOW_TOKEN"), "auth token (defaults to $VIDFLOW_TOKEN)")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(metadataCmd)
}
