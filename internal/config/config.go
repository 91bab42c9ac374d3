// Package config assembles the per-package settings into one value. Each
// package reads its own environment variables; an optional YAML file then
// overrides whatever keys it sets.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quotla/quotla-api/internal/api"
	"github.com/quotla/quotla-api/internal/describe"
	"github.com/quotla/quotla-api/internal/export"
	"github.com/quotla/quotla-api/internal/fx"
	"github.com/quotla/quotla-api/internal/observability/logging"
)

type Config struct {
	API      api.Config      `yaml:"api"`
	FX       fx.Config       `yaml:"fx"`
	Export   export.Config   `yaml:"export"`
	Describe describe.Config `yaml:"describe"`
	Log      logging.Config  `yaml:"log"`
}

// FromEnv reads every section from the environment.
func FromEnv() Config {
	return Config{
		API:      api.LoadConfig(),
		FX:       fx.LoadConfig(),
		Export:   export.LoadConfig(),
		Describe: describe.LoadConfig(),
		Log:      logging.LoadConfig(),
	}
}

// Load returns the environment config overlaid with the YAML file at path.
// An empty path skips the file. Unknown keys in the file are an error.
func Load(path string) (Config, error) {
	cfg := FromEnv()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	if err := decode(f, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
