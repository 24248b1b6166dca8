// Package main implements the ilgpuc CLI.
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/76creates/ILGPU/internal/diag"
	"github.com/76creates/ILGPU/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "ilgpuc",
	Short:         "ILGPU kernel compiler",
	Long:          "ilgpuc compiles serialized IR modules to PTX, OpenCL C and CPU bytecode",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(targetsCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Int("jobs", 0, "parallel compilation jobs (0 = all CPUs)")

	if err := rootCmd.Execute(); err != nil {
		reporterFor(rootCmd, os.Stderr).ReportError(err)
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// colorModeFor resolves the persistent --color flag against the writer.
func colorModeFor(cmd *cobra.Command, f *os.File) diag.ColorMode {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		value = "auto"
	}
	switch value {
	case "on", "always":
		return diag.ColorOn
	case "off", "never":
		return diag.ColorOff
	default:
		if isTerminal(f) && os.Getenv("NO_COLOR") == "" {
			return diag.ColorOn
		}
		return diag.ColorOff
	}
}

func reporterFor(cmd *cobra.Command, f *os.File) *diag.Reporter {
	quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	mode := colorModeFor(cmd, f)
	if mode == diag.ColorOff {
		color.NoColor = true
	}
	return diag.NewReporter(f, mode, quiet)
}
