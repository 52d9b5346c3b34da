package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newLoadCmd(h *host) *cobra.Command {
	return &cobra.Command{
		Use:   "load [library...]",
		Short: "Load libraries, list the plugins they register, then unload them",
		Long: `Load every library given as an argument, or the libraries configured for
--type in --config, or the libraries listed in the --libraries-env variable.
The installed plugins and their libraries are printed before everything is
unloaded again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := h.loadManager(cmd.Context(), args)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PLUGIN\tLIBRARY\tLIBRARY ID")
			for _, lib := range m.Libraries() {
				for _, id := range lib.Plugins {
					fmt.Fprintf(w, "%s\t%s\t%s\n", id, lib.Path, lib.ID)
				}
			}
			if err := w.Flush(); err != nil {
				_ = m.Close()
				return err
			}
			return m.Close()
		},
		DisableAutoGenTag: true,
	}
}
