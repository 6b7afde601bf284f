package model

import (
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	DefaultAnalyzer  = "pyrometer"
	DefaultDebugFlag = "--debug"
	DefaultCompiler  = "v0.8."
	DefaultMaxTasks  = 3000
	DefaultTimeout   = 2.0
	DefaultDataDir   = "data"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

// Config is a configuration of a batch run. Nil fields fall back to defaults.
type Config struct {
	Version  int       `json:"version" yaml:"version"` // fixed 0 for now
	Corpus   string    `json:"corpus,omitempty" yaml:"corpus,omitempty"`
	Analyzer *Analyzer `json:"analyzer,omitempty" yaml:"analyzer,omitempty"`
	Compiler *string   `json:"compiler,omitempty" yaml:"compiler,omitempty"`
	MaxTasks *int      `json:"max_tasks,omitempty" yaml:"max_tasks,omitempty"`
	Skip     *int      `json:"skip,omitempty" yaml:"skip,omitempty"`
	Timeout  *float64  `json:"timeout,omitempty" yaml:"timeout,omitempty"` // seconds
	Jobs     *int      `json:"jobs,omitempty" yaml:"jobs,omitempty"`
	Output   *string   `json:"output,omitempty" yaml:"output,omitempty"`
	Triage   *string   `json:"triage,omitempty" yaml:"triage,omitempty"` // "" disables
	Verbose  *bool     `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// Analyzer describes the external binary. Args follow the source path on the command line.
type Analyzer struct {
	Path string   `json:"path" yaml:"path"`
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`
	Env  []string `json:"env,omitempty" yaml:"env,omitempty"`
}

// DefaultConfig returns a configuration with every default filled in. The output
// path is timestamped by now.
func DefaultConfig(now time.Time) Config {
	return Config{
		Version: 0,
		Analyzer: &Analyzer{
			Path: DefaultAnalyzer,
			Args: []string{DefaultDebugFlag},
		},
		Compiler: ptr(DefaultCompiler),
		MaxTasks: ptr(DefaultMaxTasks),
		Skip:     ptr(0),
		Timeout:  ptr(DefaultTimeout),
		Jobs:     ptr(runtime.NumCPU()),
		Output:   ptr(DefaultOutput(now)),
		Verbose:  ptr(false),
	}
}

// DefaultOutput is a timestamped results path under the data directory.
func DefaultOutput(now time.Time) string {
	return filepath.Join(DefaultDataDir, "results-"+now.Format("2006-01-02-15-04-05")+".csv")
}

// Merge returns c with nil fields taken from d.
func (c Config) Merge(d Config) Config {
	if c.Corpus == "" {
		c.Corpus = d.Corpus
	}
	if c.Analyzer == nil {
		c.Analyzer = d.Analyzer
	}
	c.Compiler = or(c.Compiler, d.Compiler)
	c.MaxTasks = or(c.MaxTasks, d.MaxTasks)
	c.Skip = or(c.Skip, d.Skip)
	c.Timeout = or(c.Timeout, d.Timeout)
	c.Jobs = or(c.Jobs, d.Jobs)
	c.Output = or(c.Output, d.Output)
	c.Triage = or(c.Triage, d.Triage)
	c.Verbose = or(c.Verbose, d.Verbose)
	return c
}

// Deadline converts the timeout in seconds to a duration. 0 means no deadline.
func (c Config) Deadline() time.Duration {
	return time.Duration(Get(c.Timeout) * float64(time.Second))
}

// TriageDir returns the directory for raw streams of non interpreted outcomes,
// or an empty string when disabled.
func (c Config) TriageDir() string {
	if c.Triage != nil {
		return *c.Triage
	}
	out := Get(c.Output)
	if out == "" {
		return ""
	}
	return strings.TrimSuffix(out, filepath.Ext(out)) + ".triage"
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}

	return out, nil
}

// Get dereferences p, returning the zero value for nil.
func Get[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func ptr[T any](v T) *T {
	return &v
}

func or[T any](a, b *T) *T {
	if a != nil {
		return a
	}
	return b
}
