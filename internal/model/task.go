package model

import (
	"fmt"
	"log/slog"
)

// ContractTask is one corpus item bound to its resolved sources. It is the unit of scheduling.
type ContractTask struct {
	BytecodeHash     string
	ContractName     string
	CompilerVersion  string
	Runs             int64
	OptimizationUsed bool
	// Dir is the absolute path of the contract directory
	Dir    string
	Source SourceBundle
}

// SourcePath returns the path of the single source file the analyzer is invoked with.
func (t ContractTask) SourcePath() (string, error) {
	name, err := relPath(t.Source, t.ContractName)
	if err != nil {
		return "", fmt.Errorf("resolving source of %s: %w", t.BytecodeHash, err)
	}
	return joinDir(t.Dir, name), nil
}

// SourceKind returns the bundle label, empty for tasks without sources.
func (t ContractTask) SourceKind() BundleKind {
	if t.Source == nil {
		return ""
	}
	return t.Source.Kind()
}

func (t ContractTask) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("bytecode_hash", t.BytecodeHash),
		slog.String("contract", t.ContractName),
		slog.String("source_type", string(t.SourceKind())),
	}
}
