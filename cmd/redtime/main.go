// Package main provides the redtime command line client.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/redtime/internal/model"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	dryRun     bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "redtime",
		Short: "Log and review Redmine time entries from the terminal",
		Long: `redtime mirrors your Redmine time entries and issues month by month,
shows what is logged against your weekly schedule, and uploads edits
back as per-field changes.

Run 'redtime login' once to store the server URL and API key.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", model.DefaultConfigPath(), "path to the config file")
	root.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "log mutating calls without sending them")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")

	root.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newConfigCmd(opts),
		newDayCmd(opts),
		newMonthCmd(opts),
		newLogCmd(opts),
		newEditCmd(opts),
		newAssignedCmd(opts),
		newIssueCmd(opts),
		newEstimateCmd(opts),
		newDoneCmd(opts),
		newAuditCmd(opts),
	)

	return root
}
