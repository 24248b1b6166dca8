package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/76creates/ILGPU/internal/driver"
	"github.com/76creates/ILGPU/internal/irenc"
	"github.com/76creates/ILGPU/internal/target"
)

var (
	buildTarget     string
	buildTargetsDir string
	buildOutDir     string
	buildUI         string
	buildNoCache    bool
)

func init() {
	buildCmd.Flags().StringVarP(&buildTarget, "target", "t", "ptx64", "target name (built-in or from --targets-dir)")
	buildCmd.Flags().StringVar(&buildTargetsDir, "targets-dir", "", "directory with extra target TOML files")
	buildCmd.Flags().StringVarP(&buildOutDir, "out", "o", ".", "output directory for artifacts")
	buildCmd.Flags().StringVar(&buildUI, "ui", "auto", "interactive progress view (auto|on|off)")
	buildCmd.Flags().BoolVar(&buildNoCache, "no-cache", false, "bypass the artifact cache")
}

var buildCmd = &cobra.Command{
	Use:   "build <module.irpack>",
	Short: "Compile every method of a serialized IR module",
	Args:  cobra.ExactArgs(1),
	RunE:  buildExecution,
}

func buildExecution(cmd *cobra.Command, args []string) error {
	mod, err := readModule(args[0])
	if err != nil {
		return err
	}

	desc, err := resolveTarget(buildTarget, buildTargetsDir)
	if err != nil {
		return err
	}

	jobs, err := cmd.Root().PersistentFlags().GetInt("jobs")
	if err != nil {
		return err
	}

	req := &driver.Request{
		Module: mod,
		Target: desc,
		Jobs:   jobs,
	}
	if !buildNoCache {
		cache, cacheErr := driver.OpenArtifactCache("ilgpuc")
		if cacheErr != nil {
			return cacheErr
		}
		req.Cache = cache
	}

	quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	var result *driver.Result
	if useProgressUI(buildUI, quiet) {
		title := fmt.Sprintf("%s -> %s", mod.Name, desc.Name)
		result, err = runCompileWithUI(cmd.Context(), title, methodNames(mod), req)
	} else {
		result, err = driver.Compile(cmd.Context(), req)
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(buildOutDir, 0o755); err != nil {
		return err
	}
	written := 0
	for _, art := range result.Artifacts {
		if art.Data == nil {
			continue
		}
		path := filepath.Join(buildOutDir, art.Method+artifactExt(desc.Backend))
		if err := os.WriteFile(path, art.Data, 0o644); err != nil {
			return err
		}
		written++
		if !quiet {
			note := ""
			if art.Cached {
				note = " (cached)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", path, note)
		}
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d methods compiled for %s\n",
			written, len(result.Artifacts), result.Target)
	}
	return nil
}

func readModule(path string) (*irenc.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return irenc.Decode(f)
}

// resolveTarget picks a description by name, preferring file-defined
// targets over built-ins when a directory is given.
func resolveTarget(name, dir string) (target.Description, error) {
	if dir != "" {
		all, err := target.LoadAll(dir)
		if err != nil {
			return target.Description{}, err
		}
		for _, d := range all {
			if d.Name == name {
				return d, nil
			}
		}
		return target.Description{}, fmt.Errorf("unknown target %q (searched built-ins and %s)", name, dir)
	}
	d, ok := target.ByName(name)
	if !ok {
		return target.Description{}, fmt.Errorf("unknown target %q", name)
	}
	return d, nil
}

func methodNames(mod *irenc.Module) []string {
	names := make([]string, len(mod.Methods))
	for i, md := range mod.Methods {
		names[i] = md.Name
	}
	return names
}

func useProgressUI(mode string, quiet bool) bool {
	switch mode {
	case "on", "always":
		return true
	case "off", "never":
		return false
	default:
		return !quiet && isTerminal(os.Stdout)
	}
}

func artifactExt(backend string) string {
	switch backend {
	case "ptx":
		return ".ptx"
	case "clc":
		return ".cl"
	default:
		return ".prog"
	}
}
