package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/76creates/ILGPU/internal/ir"
	"github.com/76creates/ILGPU/internal/irenc"
	"github.com/76creates/ILGPU/internal/types"
)

var (
	inspectMethod string
	inspectList   bool
)

func init() {
	inspectCmd.Flags().StringVarP(&inspectMethod, "method", "m", "", "dump a single method by name")
	inspectCmd.Flags().BoolVarP(&inspectList, "list", "l", false, "list method names without bodies")
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <module.irpack>",
	Short: "Reconstruct a serialized IR module and print it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mod, err := readModule(args[0])
		if err != nil {
			return err
		}

		tctx := types.NewContext()
		methods, err := irenc.BuildMethods(tctx, mod)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "module %s: %d types, %d methods\n", mod.Name, len(mod.Types), len(methods))

		if inspectList {
			for _, m := range methods {
				fmt.Fprintf(out, "  %s (%d params, %d blocks)\n",
					m.Name, len(m.Params()), len(m.Blocks()))
			}
			return nil
		}

		found := false
		for _, m := range methods {
			if inspectMethod != "" && m.Name != inspectMethod {
				continue
			}
			found = true
			fmt.Fprintln(out)
			fmt.Fprint(out, ir.Sprint(m))
		}
		if inspectMethod != "" && !found {
			return fmt.Errorf("module %s has no method %q", mod.Name, inspectMethod)
		}
		return nil
	},
}
