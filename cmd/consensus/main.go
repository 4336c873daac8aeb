// Command consensus runs multi-provider consensus analyses.
//
// Subcommands:
//
//	serve      - run the HTTP API (and optionally the MCP endpoint)
//	analyze    - run one analysis and print the report
//	providers  - list configured providers
//	domains    - list the domains defined in the agents directory
//	version    - print build information
//
// Configuration is read from --config, CONSENSUS_CONFIG, ./config.yaml or
// /etc/consensus/config.yaml, with CONSENSUS_* environment overrides.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rhuss/consensus/pkg/config"
	"github.com/rhuss/consensus/pkg/debug"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "consensus",
		Short: "Multi-provider consensus analysis",
		Long: `consensus runs a three-stage analysis (knowledge, data, reasoning) for a
domain. Every stage queries an ensemble of model providers in parallel and
selects the response the ensemble agrees on most.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the configuration file")

	cmd.AddCommand(
		newServeCmd(opts),
		newAnalyzeCmd(opts),
		newProvidersCmd(opts),
		newDomainsCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads the configuration and initializes debug logging from it.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	debug.Init(cfg.Debug.Categories, cfg.Debug.Level, cfg.Debug.Format)
	return cfg, nil
}
