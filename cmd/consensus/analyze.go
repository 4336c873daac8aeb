package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/transport"
)

type analyzeOptions struct {
	domain string
	input  string
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run one analysis and print the report as JSON",
		Long: `Run one analysis against the configured providers without starting a server.
The input is a JSON object read from --input, or from stdin when --input is "-".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.domain, "domain", "d", "", "analysis domain (required)")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "-", "JSON input file, or - for stdin")
	_ = cmd.MarkFlagRequired("domain")
	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions) error {
	input, err := readInput(cmd.InOrStdin(), opts.input)
	if err != nil {
		return err
	}

	cfg, err := root.load()
	if err != nil {
		return err
	}
	reg, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	defer reg.Close()

	dispatcher, err := buildDispatcher(cfg, reg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := &transport.AnalyzeRequest{ID: api.NewAnalysisID(), Domain: opts.domain, Input: input}
	rep := api.NewReport(req.ID, req.Domain, time.Now().Unix())
	result, err := dispatcher.Analyze(ctx, req)
	rep.Finish(result, err, time.Now().Unix())

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(rep); encErr != nil {
		return encErr
	}
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	return nil
}

// readInput decodes the JSON object in path, or in stdin for "-".
func readInput(stdin io.Reader, path string) (map[string]any, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var input map[string]any
	if err := json.NewDecoder(r).Decode(&input); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("input is empty")
		}
		return nil, fmt.Errorf("input must be a JSON object: %w", err)
	}
	if input == nil {
		return nil, errors.New("input must be a JSON object")
	}
	return input, nil
}
