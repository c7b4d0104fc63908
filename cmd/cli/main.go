package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/myrjola/keeper/cmd/cli/appenv"
	"github.com/myrjola/keeper/cmd/cli/play"
	"github.com/myrjola/keeper/cmd/cli/records"
	"github.com/myrjola/keeper/internal/errors"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.PersistentFlags().Bool(appenv.VerboseFlag, false, "log at debug level to stderr")
	rootCmd.AddGroup(records.Group)
	rootCmd.AddCommand(records.Scenarios, records.Investigators)
	rootCmd.AddGroup(play.Group)
	rootCmd.AddCommand(play.Sessions, play.Play, play.Summarize)
}

var rootCmd = &cobra.Command{
	Use:           "keeper",
	Short:         "Play tabletop horror one-shots with an AI Keeper",
	Long:          "Command line client for the Keeper. Configure the completion endpoint with KEEPER_* variables or .env.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
