package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/use-agent/sessionscrape/scraper"
)

func newRulesCmd() *cobra.Command {
	rules := &cobra.Command{
		Use:   "rules",
		Short: "Inspects extraction rule tables.",
	}

	rules.AddCommand(&cobra.Command{
		Use:   "check <rules.json>",
		Short: "Validates a rule table file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := scraper.LoadRules(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			return nil
		},
	})

	rules.AddCommand(&cobra.Command{
		Use:   "default",
		Short: "Prints the built-in rule table.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(scraper.DefaultRules())
		},
	})
	return rules
}
