package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pgavlin/twig/engine"
)

// fileConfig is twig.yaml's shape: an engine.Config plus the search
// paths and initial variables a command-line invocation needs that
// engine.Config itself has no opinion about.
type fileConfig struct {
	engine.Config `yaml:",inline"`
	SearchPaths   []string               `yaml:"searchPaths"`
	Suffix        string                 `yaml:"suffix"`
	Variables     map[string]interface{} `yaml:"variables"`
}

// loadConfig reads path, if non-empty and present, over a zero-value
// fileConfig; a missing --config is not an error, matching the
// teacher's own preference for sensible zero-value defaults over
// required configuration files.
func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
