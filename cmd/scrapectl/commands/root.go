// Package commands implements the scrapectl command tree.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/sessionscrape/config"
)

// newRootCmd builds a fresh command tree. provider supplies the scraper the
// run command drives.
func newRootCmd(provider runnerProvider) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "scrapectl",
		Short:         "scrapectl restores a captured session and scrapes one page.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logCfg := config.Load().Log
			if logLevel != "" {
				logCfg.Level = logLevel
			}
			config.InitLogger(logCfg, cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error).")

	root.AddCommand(newRunCmd(provider))
	root.AddCommand(newRulesCmd())
	return root
}

// ExecuteContext runs the CLI and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	if err := newRootCmd(rodProvider{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
