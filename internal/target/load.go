package target

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// manifest is the on-disk shape of a target file: one or more [[target]]
// tables.
type manifest struct {
	Targets []Description `toml:"target"`
}

// Load reads target descriptions from a TOML file.
func Load(path string) ([]Description, error) {
	var m manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("target: decode %s: %w", path, err)
	}
	if len(m.Targets) == 0 {
		return nil, fmt.Errorf("target: %s defines no [[target]] tables", path)
	}
	for i := range m.Targets {
		if err := m.Targets[i].Validate(); err != nil {
			return nil, fmt.Errorf("target: %s: %w", path, err)
		}
	}
	return m.Targets, nil
}

// LoadAll reads every *.toml file in dir and merges the described targets
// with the built-ins. File-defined targets shadow built-ins by name.
func LoadAll(dir string) ([]Description, error) {
	byName := make(map[string]Description)
	for _, d := range Builtins() {
		byName[d.Name] = d
	}
	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("target: read dir %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
				continue
			}
			loaded, err := Load(filepath.Join(dir, e.Name()))
			if err != nil {
				return nil, err
			}
			for _, d := range loaded {
				byName[d.Name] = d
			}
		}
	}
	out := make([]Description, 0, len(byName))
	for _, d := range byName {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
