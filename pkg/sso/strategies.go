package sso

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// strategiesFile is the on-disk shape of the SSO configuration file.
type strategiesFile struct {
	Strategies []*StrategyConfig `yaml:"strategies"`
}

// LoadStrategies reads identity-provider strategy declarations from a
// YAML file. Disabled strategies are returned too; the caller decides
// what to instantiate.
func LoadStrategies(path string) ([]*StrategyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSO config: %w", err)
	}

	var file strategiesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse SSO config: %w", err)
	}

	seen := map[string]bool{}
	for _, cfg := range file.Strategies {
		if cfg.ID == "" {
			return nil, fmt.Errorf("SSO config: strategy with empty id")
		}
		if seen[cfg.ID] {
			return nil, fmt.Errorf("SSO config: duplicate strategy id %q", cfg.ID)
		}
		seen[cfg.ID] = true
	}
	return file.Strategies, nil
}
