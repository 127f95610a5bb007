// Package cli implements the medboard command line.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/medboard/medboard/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"  __  __          _   ____                      _\n" +
		" |  \\/  | ___  __| | | __ )  ___   __ _ _ __ __| |\n" +
		" | |\\/| |/ _ \\/ _` | |  _ \\ / _ \\ / _` | '__/ _` |\n" +
		" | |  | |  __/ (_| | | |_) | (_) | (_| | | | (_| |\n" +
		" |_|  |_|\\___|\\__,_| |____/ \\___/ \\__,_|_|  \\__,_|\n"
)

var rootCmd = &cobra.Command{
	Use:           "medboard",
	Short:         "Med Board - assistive control board",
	Long:          color.CyanString(logo) + "\nA control board for a bedridden user: emergency call, lamp and messages to caregivers.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(rootCmd, err)
	}
	return err
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(outletCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(emergencyCmd)
	rootCmd.AddCommand(contactsCmd)
	rootCmd.AddCommand(secretCmd)
	rootCmd.AddCommand(configCmd)
}
