package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file into a Config seeded with defaults, then
// overlays the documented environment variables. Unknown fields are
// rejected so a typo in the file surfaces immediately instead of silently
// falling back to a default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		cfg.OverlayEnv()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.OverlayEnv()
	return cfg, nil
}
