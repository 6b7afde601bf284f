package fiesta_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var (
	fiestaPath string

	// tmpDir is a function used to create a tempdir
	// -test.keepdir flag says test to use os.MkdirTemp
	// default is t.TempDir, which will be cleaned up
	tmpDir func(t *testing.T) string
)

func TestMain(m *testing.M) {
	var keepTestDir bool
	flag.BoolVar(&keepTestDir, "test.keepdir", false, "use os.TempDir instead of t.TempDir to keep test artifacts")

	flag.Parse()

	if testing.Short() {
		slog.Warn("integration tests with -short are ignored")
		os.Exit(0)
	}

	if !keepTestDir {
		tmpDir = func(t *testing.T) string {
			t.Helper()
			return t.TempDir()
		}
	} else {
		tmpDir = func(t *testing.T) string {
			t.Helper()
			dir, err := os.MkdirTemp("", t.Name()+"*")
			require.NoError(t, err)
			_, err = fmt.Fprintf(t.Output(), "TEMPDIR %s: -test.keepdir used, so it won't be automatically deleted", dir)
			require.NoError(t, err)
			return dir
		}
	}

	if !isExecutable("fiesta-ci") {
		slog.Error("cannot locate fiesta-ci binary: run go build -race -cover -covermode=atomic -o fiesta-ci ./cmd/fiesta-runner/ first")
		os.Exit(1)
	}
	if _, err := exec.LookPath("sh"); err != nil {
		slog.Warn("integration tests need sh for a fake analyzer", "error", err)
		os.Exit(0)
	}

	var err error
	fiestaPath, err = filepath.Abs("fiesta-ci")
	if err != nil {
		slog.Error("can't get abspath for fiesta-ci", "error", err)
		os.Exit(1)
	}
	coverDir, err := filepath.Abs("coverage")
	if err != nil {
		slog.Error("can't get value for GOCOVERDIR for fiesta-ci", "error", err)
		os.Exit(1)
	}
	err = rmRfMkdirp(coverDir)
	if err != nil {
		slog.Error("can't reset GOCOVERDIR for fiesta-ci", "error", err, "coverdir", coverDir)
		os.Exit(1)
	}

	err = os.Setenv("GOCOVERDIR", coverDir)
	if err != nil {
		slog.Error("can't set GOCOVERDIR env variable", "error", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

const fakeAnalyzer = `#!/bin/sh
case "$1" in
*Slow*)
	sleep 30
	;;
*Broken*)
	echo "thread 'main' panicked at src/main.rs:7:5:" >&2
	echo "not yet implemented" >&2
	exit 101
	;;
*)
	echo "DONE ANALYZING IN: 1ms. Writing to cli..."
	;;
esac
`

func TestFiesta(t *testing.T) {
	dir := tmpDir(t)

	analyzer := filepath.Join(dir, "pyrometer")
	creat(t, analyzer, []byte(fakeAnalyzer))
	require.NoError(t, os.Chmod(analyzer, 0o755))

	root := filepath.Join(dir, "smart-contract-fiesta")
	item(t, root, "aa11", "Token", "v0.8.17+commit.8df45f5f", map[string]string{"Token.sol": "contract Token {}"})
	item(t, root, "bb22", "Broken", "v0.8.17+commit.8df45f5f", map[string]string{"Broken.sol": "contract Broken {}"})
	item(t, root, "cc33", "Slow", "v0.8.4+commit.c7e474f2", map[string]string{
		"contracts/Ownable.sol": "contract Ownable {}",
		"contracts/Slow.sol":    "contract Slow is Ownable {}",
	})
	item(t, root, "dd44", "Vault", "vyper:0.3.7", map[string]string{"Vault.vy": "# vyper"})

	config := fmt.Sprintf(`
version: 0
analyzer:
  path: %s
  args:
    - --debug
timeout: 0.5
jobs: 2
`, analyzer)
	configPath := filepath.Join(dir, "fiesta.yaml")
	creat(t, configPath, []byte(config))
	output := filepath.Join(dir, "data", "results.csv")

	ctx, cancel := context.WithTimeout(t.Context(), 60*time.Second)
	t.Cleanup(cancel)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, fiestaPath, "--config", configPath, "-o", output, root)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		t.Logf("%s", stderr.String())
		require.NoError(t, err)
	}

	require.Contains(t, stdout.String(), "Beginning analysis of 3 contracts")
	require.Contains(t, stdout.String(), "Parsed 1 out of 3 contracts")

	f, err := os.Open(output)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, []string{"bytecode_hash", "result", "time (sec)", "source_type"}, rows[0])
	got := make(map[string]string)
	for _, row := range rows[1:] {
		got[row[0]] = row[1] + "|" + row[3]
	}
	require.Equal(t, map[string]string{
		"aa11": "Success|SingleFile",
		"bb22": "ThreadPanic: src/main.rs:7:5: not yet implemented|SingleFile",
		"cc33": "PerformanceTimeout|MultipleFiles",
	}, got)

	raw, err := os.ReadFile(filepath.Join(dir, "data", "results.summary.yaml"))
	require.NoError(t, err)
	var summary struct {
		RunID      string `yaml:"run_id"`
		Dispatched int    `yaml:"dispatched"`
		Recorded   int    `yaml:"recorded"`
		Corpus     struct {
			Items       int `yaml:"items"`
			Unsupported int `yaml:"unsupported"`
		} `yaml:"corpus"`
	}
	require.NoError(t, yaml.Unmarshal(raw, &summary))
	require.NotEmpty(t, summary.RunID)
	require.Equal(t, 3, summary.Dispatched)
	require.Equal(t, 3, summary.Recorded)
	require.Equal(t, 4, summary.Corpus.Items)
	require.Equal(t, 1, summary.Corpus.Unsupported)
}

func TestFiestaMissingCorpus(t *testing.T) {
	dir := tmpDir(t)
	ctx, cancel := context.WithTimeout(t.Context(), 60*time.Second)
	t.Cleanup(cancel)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, fiestaPath, "-o", filepath.Join(dir, "results.csv"), filepath.Join(dir, "nope"))
	cmd.Stderr = &stderr
	err := cmd.Run()
	require.Error(t, err)
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 1, exitErr.ExitCode())
	require.Contains(t, stderr.String(), "does not exist or is not a dir")
	require.NoFileExists(t, filepath.Join(dir, "results.csv"))
}

// item creates a corpus item with its metadata.json and sources.
func item(t *testing.T, root, hash, name, compiler string, sources map[string]string) {
	t.Helper()
	dir := filepath.Join(root, "organized_contracts", hash[:2], hash)
	meta := fmt.Sprintf(`{"ContractName": %q, "CompilerVersion": %q, "Runs": 200, "OptimizationUsed": true, "BytecodeHash": %q}`,
		name, compiler, hash)
	creat(t, filepath.Join(dir, "metadata.json"), []byte(meta))
	for path, text := range sources {
		creat(t, filepath.Join(dir, filepath.FromSlash(path)), []byte(text))
	}
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().Perm()&0111 != 0
}

func rmRfMkdirp(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

func creat(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()
	_, err = f.Write(content)
	require.NoError(t, err)
	err = f.Sync()
	require.NoError(t, err)
}
