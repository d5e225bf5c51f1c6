// Package config provides the ambient, process-wide defaults the CLI
// layer falls back to when a flag isn't given: the work directory root
// and the default ITERATIVE cap. It is not a general scripting or
// rule-resolution layer — it only loads the few process defaults a CLI
// binary needs before it can build a runhelper.Options.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the optional YAML file a migrate invocation
// reads ambient defaults from.
const DefaultConfigFile = ".vcsmigrate.yaml"

// Config holds process-wide defaults.
type Config struct {
	// WorkRoot is the base directory under which origin checkouts are
	// materialized.
	WorkRoot string `yaml:"workRoot"`
	// DefaultIterativeLimit is the iterativeLimitChanges value used
	// when the CLI's --iterative-limit flag is left unset (0 means
	// unlimited).
	DefaultIterativeLimit int `yaml:"defaultIterativeLimit"`
}

// Default returns the built-in defaults, reading VCSMIGRATE_WORK_ROOT
// when set.
func Default() *Config {
	workRoot := os.Getenv("VCSMIGRATE_WORK_ROOT")
	if workRoot == "" {
		workRoot = ".vcsmigrate-work"
	}
	return &Config{WorkRoot: workRoot}
}

// Load reads a YAML config file at path, falling back to Default for
// any field the file doesn't set. A missing file is not an error: it
// just means the built-in defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = Default().WorkRoot
	}
	return cfg, nil
}

// CheckoutDir returns the directory a migration's origin tree should be
// materialized into.
func (c *Config) CheckoutDir() string {
	return filepath.Join(c.WorkRoot, "checkout")
}
