package cmd

import (
	"fmt"
	"os"

	"crm-bridge/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "crm-bridge",
	Short: "Project system to CRM sync service",
	Long: `CRM Bridge keeps companies, contacts and deals consistent between a
project management system and a CRM. It runs reconciliation cycles on a
schedule or on demand and records every issue it cannot resolve.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	err := RootCmd.Execute()
	if err == nil {
		return
	}
	l, logErr := logger.New(&logger.Config{Level: "error", Format: "console"})
	if logErr != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	l.Error("command failed", zap.String("command", commandPath()), zap.Error(err))
	_ = l.Sync()
	os.Exit(1)
}

func commandPath() string {
	cmd, _, findErr := RootCmd.Find(os.Args[1:])
	if findErr != nil || cmd == nil {
		return RootCmd.Name()
	}
	return cmd.CommandPath()
}
