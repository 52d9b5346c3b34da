package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/srediag/plugin-dylib/internal/version"
	"github.com/srediag/plugin-dylib/pkg/compat"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version and compatibility fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(),
				"version: %s\ncommit: %s\nbuilt: %s\ngo: %s\nfingerprint: %016x\n",
				version.Version, version.Commit, version.BuildDate, runtime.Version(), compat.CompatibilityHash())
			return err
		},
		DisableAutoGenTag: true,
	}
}
