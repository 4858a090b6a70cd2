package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Overrides are setting values keyed by setting name.
type Overrides map[string]bool

// Load reads overrides from a file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Overrides, error) {
	var o Overrides
	if path == "" {
		return o, fmt.Errorf("empty settings path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return o, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &o); err != nil {
			return o, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &o); err != nil {
			return o, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &o); err != nil {
			return o, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return o, fmt.Errorf("unsupported settings extension: %s", ext)
	}
	return o, nil
}

type envOverrides struct {
	OverlayButtonsEnabled *bool `env:"RSR_ENABLE_OVERLAY_BUTTONS"`
	QuickItemEnabled      *bool `env:"RSR_ENABLE_QUICK_ITEM"`
	AlwaysRollMulti       *bool `env:"RSR_ALWAYS_ROLL_MULTI"`
	HideSaveDC            *bool `env:"RSR_HIDE_SAVE_DC"`
}

// LoadEnv reads overrides from environment variables. A nil environ uses
// the process environment.
func LoadEnv(environ map[string]string) (Overrides, error) {
	var e envOverrides

	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&e, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	o := Overrides{}
	for name, v := range map[string]*bool{
		OverlayButtonsEnabled: e.OverlayButtonsEnabled,
		QuickItemEnabled:      e.QuickItemEnabled,
		AlwaysRollMulti:       e.AlwaysRollMulti,
		HideSaveDC:            e.HideSaveDC,
	} {
		if v != nil {
			o[name] = *v
		}
	}
	return o, nil
}

// Merge layers later overrides over earlier ones.
func Merge(layers ...Overrides) Overrides {
	out := Overrides{}
	for _, l := range layers {
		for k, v := range l {
			out[k] = v
		}
	}
	return out
}
