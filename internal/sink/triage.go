package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/fiesta-bench/fiesta-runner/internal/model"
)

// Triage keeps the raw streams of outcomes which could not be interpreted, as
// <bytecode hash>.stdout and <bytecode hash>.stderr. Other records are ignored.
// Saving is best effort: failures are logged and never fail the run.
type Triage struct {
	root *os.Root
}

func NewTriage(path string) (*Triage, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating triage directory: %w", err)
	}
	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, err
	}
	return &Triage{root: root}, nil
}

func (t *Triage) Write(ctx context.Context, r model.ResultRecord) error {
	ni, ok := r.Exit.(model.NonInterpreted)
	if !ok {
		return nil
	}
	if t.root == nil {
		return errors.New("triage already closed")
	}
	// the results file is the record, a lost triage copy is only logged
	err := errors.Join(
		t.create(r.BytecodeHash+".stdout", ni.Stdout),
		t.create(r.BytecodeHash+".stderr", ni.Stderr),
	)
	if err != nil {
		slog.WarnContext(ctx, "raw streams not saved", "dir", t.root.Name(), "error", err)
		return nil
	}
	slog.DebugContext(ctx, "raw streams saved", "dir", t.root.Name())
	return nil
}

func (t *Triage) create(name, content string) error {
	f, err := t.root.Create(name)
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	_, err = f.WriteString(content)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("saving %s: %w", name, err)
	}
	err = f.Close()
	if err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	return nil
}

func (t *Triage) Close() error {
	if t.root == nil {
		return errors.New("triage already closed")
	}
	err := t.root.Close()
	t.root = nil
	return err
}
