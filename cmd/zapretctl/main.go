// Package main provides the entry point for the zapretctl CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maxdollinger/zapret.io/cmd/zapretctl/commands"
)

func main() {
	opts := &commands.Options{}

	rootCmd := &cobra.Command{
		Use:   "zapretctl",
		Short: "Provision and supervise the winws worker",
		Long: `zapretctl downloads and verifies the worker assets, starts and stops
the worker process and reconciles the WinDivert driver service.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.Setup,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default .zapret.yaml in . or $HOME)")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(commands.NewVerifyCommand(opts))
	rootCmd.AddCommand(commands.NewDownloadCommand(opts))
	rootCmd.AddCommand(commands.NewAssetsCommand(opts))
	rootCmd.AddCommand(commands.NewStartCommand(opts))
	rootCmd.AddCommand(commands.NewStopCommand(opts))
	rootCmd.AddCommand(commands.NewStatusCommand(opts))
	rootCmd.AddCommand(commands.NewRecoverCommand(opts))
	rootCmd.AddCommand(commands.NewRunCommand(opts))
	rootCmd.AddCommand(commands.NewProbeCommand(opts))
	rootCmd.AddCommand(commands.NewFiltersCommand(opts))
	rootCmd.AddCommand(commands.NewHistoryCommand(opts))
	rootCmd.AddCommand(commands.NewLogsCommand(opts))

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
