// Package config loads the runner configuration from YAML or JSON files
// with environment-variable overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/evgrid/fleetsim/core/metrics"
	"github.com/evgrid/fleetsim/infra/publish"
)

// Config is the full runner configuration.
type Config struct {
	Strategy PluginConfig   `json:"strategy"`
	Metrics  metrics.Config `json:"metrics"`
	Publish  publish.Config `json:"publish"`
	Logging  LoggingConfig  `json:"logging"`
	Output   OutputConfig   `json:"output"`
}

// OutputConfig selects where and how the run result is written.
type OutputConfig struct {
	// Path of the result file; "-" or empty writes to stdout.
	Path string `json:"path"`
	// Format is "json", "csv" or "soc-csv".
	Format string `json:"format"`
}

// SetDefaults applies sane defaults.
func (c *OutputConfig) SetDefaults() {
	if c.Format == "" {
		c.Format = "json"
	}
}

// Validate checks the output selection.
func (c OutputConfig) Validate() error {
	switch c.Format {
	case "json", "csv", "soc-csv":
		return nil
	default:
		return fmt.Errorf("unknown output format %s", c.Format)
	}
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.Strategy = PluginConfig{Type: "greedy"}
	cfg.Logging.SetDefaults()
	cfg.Output.SetDefaults()
	return cfg
}

// Load reads the configuration file, applies FLEETSIM_* environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides, FLEETSIM_METRICS__INFLUX_URL style.
	if err := k.Load(env.Provider("FLEETSIM_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "fleetsim_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if cfg.Strategy.Type == "" {
		cfg.Strategy.Type = "greedy"
	}
	cfg.Logging.SetDefaults()
	cfg.Output.SetDefaults()
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Output.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
