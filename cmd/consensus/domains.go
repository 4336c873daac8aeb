package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rhuss/consensus/pkg/agent/template"
)

func newDomainsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "List the domains defined in the agents directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			agents, err := template.LoadDir(cfg.Agents.Dir)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DOMAIN\tDESCRIPTION")
			for _, domain := range agents.Domains() {
				a, _ := agents.Get(domain)
				fmt.Fprintf(tw, "%s\t%s\n", domain, a.Description())
			}
			return tw.Flush()
		},
	}
}
