package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/76creates/ILGPU/internal/target"
)

var targetsDir string

func init() {
	targetsCmd.Flags().StringVar(&targetsDir, "dir", "", "directory with extra target TOML files")
}

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List known compilation targets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		descs := target.Builtins()
		if targetsDir != "" {
			all, err := target.LoadAll(targetsDir)
			if err != nil {
				return err
			}
			descs = all
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tBACKEND\tPTR\tVIEW")
		for _, d := range descs {
			view := d.PtrSize
			if d.ViewSize != 0 {
				view = d.ViewSize
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", d.Name, d.Backend, d.PtrSize, view)
		}
		return w.Flush()
	},
}
