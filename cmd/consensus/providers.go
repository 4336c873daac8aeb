package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/config"
	"github.com/rhuss/consensus/pkg/provider"
)

func newProvidersCmd(root *rootOptions) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List the configured providers and the stages that use them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			stagesOf := make(map[string][]string)
			for _, s := range api.Stages {
				for _, key := range cfg.Pipeline.Stage(s).Providers {
					stagesOf[key] = append(stagesOf[key], string(s))
				}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			header := "KEY\tTYPE\tMODEL\tBASE URL\tSTAGES"
			if check {
				header += "\tSTATUS"
			}
			fmt.Fprintln(tw, header)

			for _, p := range cfg.Providers {
				stages := strings.Join(stagesOf[p.Key], ",")
				if stages == "" {
					stages = "-"
				}
				line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s", p.Key, providerType(p), p.Model, p.BaseURL, stages)
				if check {
					line += "\t" + probe(cmd.Context(), p)
				}
				fmt.Fprintln(tw, line)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "query each backend for its models")
	return cmd
}

// probe asks the backend of p for its model list and reports the outcome.
func probe(ctx context.Context, p config.ProviderConfig) string {
	adapter, err := newAdapter(p)
	if err != nil {
		return "error: " + err.Error()
	}
	defer adapter.Close()

	lister, ok := adapter.(provider.ModelLister)
	if !ok {
		return "unsupported"
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	models, err := lister.ListModels(ctx)
	if err != nil {
		return "unreachable: " + err.Error()
	}
	for _, m := range models {
		if m.ID == p.Model {
			return "ok"
		}
	}
	return fmt.Sprintf("model %q not served", p.Model)
}
