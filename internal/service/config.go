package service

import (
	"os"
	"strings"
	"time"

	"github.com/fiesta-bench/fiesta-runner/internal/model"
)

const (
	// DefaultGrace is how long the collector keeps draining after the stop signal.
	DefaultGrace = 200 * time.Millisecond
	// StallSlack is added to the deadline of one run when guarding against a
	// stalled dispatcher. It covers spawn, kill and the reap of output pipes.
	StallSlack = 5 * time.Second
)

// CommandFor builds the analyzer invocation of a merged config. Environment
// values starting with $ are expanded from the environment of the runner.
func CommandFor(cfg model.Config) Command {
	var cmd Command
	if cfg.Analyzer != nil {
		cmd.Path = cfg.Analyzer.Path
		cmd.Args = cfg.Analyzer.Args
		if len(cfg.Analyzer.Env) > 0 {
			cmd.Env = make([]string, 0, len(cfg.Analyzer.Env))
			for _, kv := range cfg.Analyzer.Env {
				k, v, _ := strings.Cut(kv, "=")
				if strings.HasPrefix(v, "$") {
					v = os.ExpandEnv(v)
				}
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
	}
	cmd.Deadline = cfg.Deadline()
	return cmd
}
