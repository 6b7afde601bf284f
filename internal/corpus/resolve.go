package corpus

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/fiesta-bench/fiesta-runner/internal/model"
	"github.com/fiesta-bench/fiesta-runner/internal/walk"
)

const (
	metadataFile = "metadata.json"
	contractJSON = "contract.json"

	// maxFileSize bounds every file read from the corpus
	maxFileSize = 10 * 1024 * 1024
)

// Resolve determines the sources of the contract directory dir of fsys:
//  1. a contract.json anywhere in dir wins, giving model.OpaqueMetadata
//  2. a single .sol file gives model.SingleFile
//  3. several .sol files give model.MultiFile sorted by name
//
// A directory without any of them returns model.ErrNoSource.
// Names are relative to dir.
func Resolve(ctx context.Context, fsys fs.FS, dir string) (model.SourceBundle, error) {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return nil, err
	}

	var sols []walk.Entry
	for entry, err := range walk.FS(ctx, sub, dir) {
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", dir, err)
		}
		switch {
		case path.Base(entry.Rel()) == contractJSON:
			b, err := readAll(entry)
			if err != nil {
				return nil, err
			}
			return model.OpaqueMetadata{Name: entry.Rel(), JSON: b}, nil
		case strings.HasSuffix(entry.Rel(), ".sol"):
			sols = append(sols, entry)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch len(sols) {
	case 0:
		return nil, fmt.Errorf("%s: %w", dir, model.ErrNoSource)
	case 1:
		b, err := readAll(sols[0])
		if err != nil {
			return nil, err
		}
		return model.SingleFile{Name: sols[0].Rel(), Text: string(b)}, nil
	}

	files := make([]model.SourceFile, 0, len(sols))
	for _, entry := range sols {
		b, err := readAll(entry)
		if err != nil {
			return nil, err
		}
		files = append(files, model.SourceFile{Name: entry.Rel(), Text: string(b)})
	}
	slices.SortFunc(files, func(a, b model.SourceFile) int {
		return strings.Compare(a.Name, b.Name)
	})
	return model.MultiFile{Files: files}, nil
}

func readAll(entry walk.Entry) ([]byte, error) {
	info, err := entry.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", entry.Path(), err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("%s has %d bytes: %w", entry.Path(), info.Size(), model.ErrTooBig)
	}
	f, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", entry.Path(), err)
	}
	defer func() {
		_ = f.Close()
	}()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", entry.Path(), err)
	}
	return b, nil
}
