package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	logo    = "\n" +
		"  _       _                                     _\n" +
		" | |_ ___| | ___  __ _ _ __ __ _ _ __ ___   __| |\n" +
		" | __/ _ \\ |/ _ \\/ _` | '__/ _` | '_ ` _ \\ / _` |\n" +
		" | ||  __/ |  __/ (_| | | | (_| | | | | | | (_| |\n" +
		"  \\__\\___|_|\\___|\\__, |_|  \\__,_|_| |_| |_|\\__,_|\n" +
		"                 |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "telegramd",
	Short: "telegramd - a Telegram gateway for an agent subprocess",
	Long:  color.CyanString(logo) + "\nBridges a Telegram bot to a Claude Code agent subprocess.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}
