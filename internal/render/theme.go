package render

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed themes.yaml
var themesYAML []byte

// DefaultTheme is the palette every other theme is merged over.
const DefaultTheme = "default"

// Theme is a card palette.
type Theme struct {
	Background string `yaml:"background"`
	Border     string `yaml:"border"`
	Username   string `yaml:"username"`
	Text       string `yaml:"text"`
	Icon       string `yaml:"icon"`
	Reputation string `yaml:"reputation"`
	Gold       string `yaml:"gold"`
	Silver     string `yaml:"silver"`
	Bronze     string `yaml:"bronze"`
}

// loadThemes decodes the catalogue, filling each theme's missing colors from
// the default palette.
func loadThemes(raw []byte) (map[string]Theme, error) {
	var nodes map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("parse themes: %w", err)
	}
	base, ok := nodes[DefaultTheme]
	if !ok {
		return nil, fmt.Errorf("themes: %q palette missing", DefaultTheme)
	}
	var def Theme
	if err := base.Decode(&def); err != nil {
		return nil, fmt.Errorf("decode %s theme: %w", DefaultTheme, err)
	}

	out := make(map[string]Theme, len(nodes))
	for name, node := range nodes {
		t := def
		if err := node.Decode(&t); err != nil {
			return nil, fmt.Errorf("decode %s theme: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
