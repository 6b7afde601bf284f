// Package corpus builds the task queue from a smart-contract-fiesta checkout.
//
// The expected layout is
//
//	<root>/organized_contracts/<XX>/<bytecode hash>/metadata.json
//
// with the sources of the item next to its metadata.json.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/fiesta-bench/fiesta-runner/internal/model"
	"github.com/fiesta-bench/fiesta-runner/internal/walk"
)

const organized = "organized_contracts"

// Options filter the items turned into tasks.
type Options struct {
	// Compiler is the supported compiler version prefix
	Compiler string
	// Skip is a number of leading corpus items ignored, before any filtering
	Skip int
	// Max is the maximum number of returned tasks, 0 means unlimited
	Max int
}

// Stats counts what happened to the visited corpus items.
type Stats struct {
	Items       int `yaml:"items"` // metadata.json files visited
	Skipped     int `yaml:"skipped"`
	Unsupported int `yaml:"unsupported"`
	Unresolved  int `yaml:"unresolved"`
	Invalid     int `yaml:"invalid"`
	Tasks       int `yaml:"tasks"`
}

// Check returns model.ErrNotDir when root does not exist or is not a directory.
func Check(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("the path %s does not exist or is not a dir: %w", root, errors.Join(model.ErrNotDir, err))
	}
	if !info.IsDir() {
		return fmt.Errorf("the path %s does not exist or is not a dir: %w", root, model.ErrNotDir)
	}
	return nil
}

// Tasks walks the corpus at root and returns the resolved tasks in walk order.
// Items which cannot be used are logged and left out.
func Tasks(ctx context.Context, root string, opts Options) ([]model.ContractTask, Stats, error) {
	var stats Stats
	if err := Check(root); err != nil {
		return nil, stats, err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, stats, err
	}
	contracts, err := os.OpenRoot(filepath.Join(abs, organized))
	if err != nil {
		return nil, stats, fmt.Errorf("opening corpus: %w", err)
	}
	defer func() {
		_ = contracts.Close()
	}()

	var tasks []model.ContractTask
	for entry, err := range walk.Roots(ctx, contracts) {
		if err != nil {
			if entry.Rel() == "." {
				return nil, stats, fmt.Errorf("walking %s: %w", organized, err)
			}
			slog.WarnContext(ctx, "walking corpus", "error", err)
			continue
		}
		if path.Base(entry.Rel()) != metadataFile {
			continue
		}
		stats.Items++
		if stats.Items <= opts.Skip {
			stats.Skipped++
			continue
		}

		task, err := item(ctx, contracts, path.Dir(entry.Rel()), entry, opts.Compiler)
		switch {
		case err == nil:
		case errors.Is(err, model.ErrUnsupportedCompiler):
			stats.Unsupported++
			continue
		case errors.Is(err, model.ErrNoSource):
			stats.Unresolved++
			slog.WarnContext(ctx, "found no .sol files, this is likely a main.vy that should be a main.sol", "path", filepath.Dir(entry.Path()))
			continue
		default:
			stats.Invalid++
			slog.WarnContext(ctx, "ignoring corpus item", "path", entry.Path(), "error", err)
			continue
		}

		tasks = append(tasks, task)
		stats.Tasks++
		if opts.Max > 0 && len(tasks) >= opts.Max {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}
	return tasks, stats, nil
}

func item(ctx context.Context, contracts *os.Root, dir string, entry walk.Entry, compiler string) (model.ContractTask, error) {
	f, err := entry.Open()
	if err != nil {
		return model.ContractTask{}, err
	}
	meta, err := decodeMetadata(f)
	_ = f.Close()
	if err != nil {
		return model.ContractTask{}, fmt.Errorf("%s: %w", entry.Path(), err)
	}
	if !meta.CompilerSupported(compiler) {
		return model.ContractTask{}, fmt.Errorf("%s: %w", meta.CompilerVersion, model.ErrUnsupportedCompiler)
	}

	source, err := Resolve(ctx, contracts.FS(), dir)
	if err != nil {
		return model.ContractTask{}, err
	}

	return model.ContractTask{
		BytecodeHash:     meta.BytecodeHash,
		ContractName:     meta.ContractName,
		CompilerVersion:  meta.CompilerVersion,
		Runs:             meta.Runs,
		OptimizationUsed: meta.OptimizationUsed,
		Dir:              filepath.Join(contracts.Name(), filepath.FromSlash(dir)),
		Source:           source,
	}, nil
}
