package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/srediag/plugin-dylib/pkg/compat"
)

const (
	FlagWorkers = "workers"
	FlagOutput  = "output"
)

type reportView struct {
	Path        string          `yaml:"path" json:"path"`
	Fingerprint string          `yaml:"fingerprint" json:"fingerprint"`
	Compatible  bool            `yaml:"compatible" json:"compatible"`
	Symbols     map[string]bool `yaml:"symbols,omitempty" json:"symbols,omitempty"`
	Error       string          `yaml:"error,omitempty" json:"error,omitempty"`
}

func newInspectCmd(h *host) *cobra.Command {
	var (
		workers int
		output  string
	)
	cmd := &cobra.Command{
		Use:   "inspect library...",
		Short: "Check libraries against this host's compatibility fingerprint without registering plugins",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gate := compat.NewGate()
			gate.Logger = h.logger

			reports, err := gate.InspectAll(cmd.Context(), h.opener, args, workers, h.symbol)
			if err != nil {
				return err
			}
			views := make([]reportView, len(reports))
			incompatible := 0
			for i, r := range reports {
				views[i] = reportView{
					Path:        r.Path,
					Fingerprint: fmt.Sprintf("%016x", r.Fingerprint),
					Compatible:  r.Compatible,
					Symbols:     r.Symbols,
				}
				if r.Err != nil {
					views[i].Error = r.Err.Error()
				}
				if !r.Compatible {
					incompatible++
				}
			}

			out := cmd.OutOrStdout()
			switch output {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				err = enc.Encode(views)
			case "yaml":
				enc := yaml.NewEncoder(out)
				err = enc.Encode(views)
				if cerr := enc.Close(); err == nil {
					err = cerr
				}
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
			if err != nil {
				return err
			}
			if incompatible > 0 {
				return fmt.Errorf("%d of %d libraries are not compatible (host fingerprint %016x)",
					incompatible, len(reports), gate.Expected)
			}
			return nil
		},
		DisableAutoGenTag: true,
	}
	cmd.Flags().IntVar(&workers, FlagWorkers, 4, "number of libraries inspected concurrently")
	cmd.Flags().StringVarP(&output, FlagOutput, "o", "yaml", "output format (yaml, json)")
	return cmd
}
