package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chunqiusha/cardforge/internal/pipeline"
	"gopkg.in/yaml.v3"
)

// RunConfig records what a batch run was started with.
type RunConfig struct {
	Cards     string `yaml:"cards"`
	Backend   string `yaml:"backend"`
	Output    string `yaml:"output"`
	StartFrom int    `yaml:"start_from,omitempty"`
	Only      int    `yaml:"only,omitempty"`
}

// RunReport is the YAML document saved after a batch run.
type RunReport struct {
	Config  RunConfig         `yaml:"config"`
	Summary *pipeline.Summary `yaml:"summary"`
}

// SaveRunSummary writes the run report to dir as run-<timestamp>.yaml and
// returns the file path.
func SaveRunSummary(cfg RunConfig, summary *pipeline.Summary, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := yaml.Marshal(&RunReport{Config: cfg, Summary: summary})
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}

	timestamp := summary.Started.Format("2006-01-02_15-04-05")
	filename := filepath.Join(dir, fmt.Sprintf("run-%s.yaml", timestamp))
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}
	return filename, nil
}
