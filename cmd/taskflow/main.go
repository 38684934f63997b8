package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configFile string
	dbPath     string
	as         string
	json       bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "taskflow",
		Short: "Transactional task lifecycle and project membership",
		Long: `A CLI for managing organizations, projects, members and tasks. Every
mutation is recorded in an append-only audit trail.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default ~/.taskflow/taskflow.yaml and ./taskflow.yaml)")
	flags.StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides config)")
	flags.StringVar(&opts.as, "as", "", "acting user id or email (overrides config actor)")
	flags.BoolVar(&opts.json, "json", false, "output JSON")

	rootCmd.AddCommand(
		newInitCmd(opts),
		newOrgCmd(opts),
		newUserCmd(opts),
		newProjectCmd(opts),
		newMemberCmd(opts),
		newTaskCmd(opts),
		newAnalyticsCmd(opts),
		newAuditCmd(opts),
		newServeCmd(opts),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
