package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/fiesta-bench/fiesta-runner/internal/corpus"
	"github.com/fiesta-bench/fiesta-runner/internal/model"
)

// RunSummary is a machine readable record of a finished run, stored next to
// the results file.
type RunSummary struct {
	RunID      string         `yaml:"run_id"`
	Started    time.Time      `yaml:"started"`
	Finished   time.Time      `yaml:"finished"`
	Config     model.Config   `yaml:"config"`
	Corpus     corpus.Stats   `yaml:"corpus"`
	Dispatched int            `yaml:"dispatched"`
	Skipped    int            `yaml:"skipped"`
	Dropped    int            `yaml:"dropped"`
	Recorded   int            `yaml:"recorded"`
	Successes  int            `yaml:"successes"`
	Percent    float64        `yaml:"success_percent"`
	Kinds      map[string]int `yaml:"kinds"`
}

func NewRunSummary(cfg model.Config, started time.Time) RunSummary {
	return RunSummary{
		RunID:   uuid.NewString(),
		Started: started.UTC(),
		Config:  cfg,
	}
}

// WithTally copies final counters of the collector.
func (s RunSummary) WithTally(t Tally) RunSummary {
	s.Recorded = t.Total
	s.Successes = t.Successes
	s.Percent = t.Percent()
	s.Kinds = t.Kinds()
	return s
}

// SummaryPath derives the summary location from the results path.
func SummaryPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".summary.yaml"
}

func (s RunSummary) Write(path string) error {
	b, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling run summary: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("writing run summary: %w", err)
	}
	return nil
}
