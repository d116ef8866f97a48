// Package registry discovers model spec documents on disk.
//
// A specs directory holds one document per model in YAML, JSON or TOML
// form. The file stem becomes the model id when the document does not
// set one itself.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"inferd/pkg/types"
)

// LoadDir reads every spec file in dir and returns the parsed specs
// sorted by model id. Files with unrecognized extensions are skipped;
// a file that has a recognized extension but fails to parse is an error.
func LoadDir(dir string) ([]types.ModelSpecs, error) {
	dir = expandHome(dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read specs dir: %w", err)
	}

	var specs []types.ModelSpecs
	seen := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		switch ext {
		case ".yaml", ".yml", ".json", ".toml":
		default:
			continue
		}
		path := filepath.Join(dir, name)
		spec, err := loadFile(path, ext)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if spec.ID == "" {
			spec.ID = strings.TrimSuffix(name, filepath.Ext(name))
		}
		if prev, ok := seen[spec.ID]; ok {
			return nil, fmt.Errorf("%s: duplicate model id %q (already defined in %s)", name, spec.ID, prev)
		}
		seen[spec.ID] = name
		specs = append(specs, spec)
	}

	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs, nil
}

func loadFile(path, ext string) (types.ModelSpecs, error) {
	var spec types.ModelSpecs
	b, err := os.ReadFile(path)
	if err != nil {
		return spec, err
	}
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &spec)
	case ".json":
		err = json.Unmarshal(b, &spec)
	case ".toml":
		err = toml.Unmarshal(b, &spec)
	}
	return spec, err
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if u, err := user.Current(); err == nil && u.HomeDir != "" {
			if p == "~" {
				return u.HomeDir
			}
			return filepath.Join(u.HomeDir, p[2:])
		}
	}
	return p
}
