package model

import (
	"fmt"
	"path/filepath"
	"regexp"
)

// BundleKind is the label of a SourceBundle variant as written to the results file.
type BundleKind string

const (
	BundleSingleFile    BundleKind = "SingleFile"
	BundleMultipleFiles BundleKind = "MultipleFiles"
	BundleJSON          BundleKind = "JSON"
)

// SourceBundle is a closed set of resolved sources for a task:
// SingleFile, MultiFile or OpaqueMetadata.
type SourceBundle interface {
	Kind() BundleKind
	sourceBundle()
}

// SingleFile is the only .sol file of a contract directory.
// Name is relative to the contract directory.
type SingleFile struct {
	Name string
	Text string
}

// SourceFile is a member of a MultiFile bundle.
type SourceFile struct {
	Name string
	Text string
}

// MultiFile holds every .sol file of a contract directory sorted by Name.
type MultiFile struct {
	Files []SourceFile
}

// OpaqueMetadata is a contract.json blob describing the sources in a foreign format.
type OpaqueMetadata struct {
	Name string
	JSON []byte
}

func (SingleFile) Kind() BundleKind     { return BundleSingleFile }
func (MultiFile) Kind() BundleKind      { return BundleMultipleFiles }
func (OpaqueMetadata) Kind() BundleKind { return BundleJSON }

func (SingleFile) sourceBundle()     {}
func (MultiFile) sourceBundle()      {}
func (OpaqueMetadata) sourceBundle() {}

// Declares returns the first file declaring contract name, or false.
func (m MultiFile) Declares(name string) (SourceFile, bool) {
	rx := declarationRx(name)
	for _, f := range m.Files {
		if rx.MatchString(f.Text) {
			return f, true
		}
	}
	return SourceFile{}, false
}

func declarationRx(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)(^|[^\w$])contract\s+` + regexp.QuoteMeta(name) + `(\s|\{|$)`)
}

// relPath resolves the file the analyzer is pointed at, relative to the contract directory.
func relPath(b SourceBundle, contract string) (string, error) {
	switch b := b.(type) {
	case SingleFile:
		return b.Name, nil
	case MultiFile:
		f, ok := b.Declares(contract)
		if !ok {
			return "", fmt.Errorf("%d files searched for %q: %w", len(b.Files), contract, ErrContractNotFound)
		}
		return f.Name, nil
	case OpaqueMetadata:
		return b.Name, nil
	case nil:
		return "", ErrNoSource
	default:
		panic(fmt.Sprintf("unknown source bundle %T", b))
	}
}

func joinDir(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}
