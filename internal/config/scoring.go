package config

import (
	"errors"
	"fmt"
	"os"

	"erp-sync-service/internal/service/scoring"

	"gopkg.in/yaml.v3"
)

type scoringFile struct {
	Thresholds scoring.Thresholds `yaml:"thresholds"`
}

// LoadScoring reads heuristic thresholds from a YAML file. An empty path or a
// missing file yields the defaults; unset keys keep their defaults.
func LoadScoring(path string) (scoring.Thresholds, error) {
	if path == "" {
		return scoring.DefaultThresholds(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return scoring.DefaultThresholds(), nil
	}
	if err != nil {
		return scoring.Thresholds{}, fmt.Errorf("reading scoring config: %w", err)
	}

	var f scoringFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return scoring.Thresholds{}, fmt.Errorf("parsing scoring config %s: %w", path, err)
	}
	return f.Thresholds.Merge(), nil
}
