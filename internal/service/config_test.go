package service_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fiesta-bench/fiesta-runner/internal/model"
	"github.com/fiesta-bench/fiesta-runner/internal/service"
)

const analyzerConfig = `
version: 0
analyzer:
  path: /opt/pyrometer/bin/pyrometer
  args:
    - --debug
  env:
    - HOME=$FIESTA_TEST_HOME
    - RUST_BACKTRACE=0
timeout: 1.5
`

func TestCommandFor(t *testing.T) {
	t.Setenv("FIESTA_TEST_HOME", "/home/fiesta")
	cfg, err := model.LoadConfig(strings.NewReader(analyzerConfig))
	require.NoError(t, err)

	cmd := service.CommandFor(cfg)
	require.Equal(t, "/opt/pyrometer/bin/pyrometer", cmd.Path)
	require.Equal(t, []string{"--debug"}, cmd.Args)
	require.Equal(t, []string{"HOME=/home/fiesta", "RUST_BACKTRACE=0"}, cmd.Env)
	require.Equal(t, 1500*time.Millisecond, cmd.Deadline)

	t.Run("defaults", func(t *testing.T) {
		cmd := service.CommandFor(model.DefaultConfig(time.Now()))
		require.Equal(t, model.DefaultAnalyzer, cmd.Path)
		require.Equal(t, []string{model.DefaultDebugFlag}, cmd.Args)
		require.Nil(t, cmd.Env)
		require.Equal(t, 2*time.Second, cmd.Deadline)
	})
}
