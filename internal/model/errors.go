package model

import (
	"errors"
)

var (
	// ErrSpawn marks a failure to launch the analyzer binary. It is fatal for the whole run.
	ErrSpawn = errors.New("analyzer spawn failed")
	// ErrContractNotFound is returned when no member of a multi file bundle declares the contract.
	ErrContractNotFound    = errors.New("contract declaration not found")
	ErrNoSource            = errors.New("no source files")
	ErrNotDir              = errors.New("not a directory")
	ErrUnsupportedCompiler = errors.New("unsupported compiler")
	ErrTooBig              = errors.New("file too big")
)
