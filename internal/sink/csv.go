// Package sink persists result records.
package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fiesta-bench/fiesta-runner/internal/model"
)

// CSV appends one row per record to a results file. The file is opened for
// every write and closed right after, nothing is held across the run.
type CSV struct {
	path string
}

// NewCSV (re)creates the results file at path with its header row.
func NewCSV(path string) (*CSV, error) {
	if path == "" {
		return nil, errors.New("empty results path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating results %s: %w", path, err)
	}
	err = writeRow(f, model.Header)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("writing header to %s: %w", path, err)
	}
	return &CSV{path: path}, nil
}

func (s *CSV) Path() string {
	return s.path
}

func (s *CSV) Write(_ context.Context, r model.ResultRecord) error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("opening results: %w", err)
	}
	err = writeRow(f, r.Row())
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("appending %s to results: %w", r.BytecodeHash, err)
	}
	return nil
}

func writeRow(f *os.File, row []string) error {
	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
