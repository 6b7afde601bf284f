package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/fiesta-bench/fiesta-runner/internal/log"
	"github.com/stretchr/testify/require"
)

func TestContextAttrs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := log.New(&buf, false)

	ctx := log.ContextAttrs(context.Background(), slog.String("bytecode_hash", "abcd"))
	child := log.ContextAttrs(ctx, slog.String("source_type", "SingleFile"))

	logger.InfoContext(child, "recorded")
	logger.DebugContext(child, "hidden")
	logger.With("run", "r1").InfoContext(ctx, "parent")

	dec := json.NewDecoder(&buf)
	var first, second map[string]any
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	require.False(t, dec.More())

	require.Equal(t, "recorded", first["msg"])
	require.Equal(t, "abcd", first["bytecode_hash"])
	require.Equal(t, "SingleFile", first["source_type"])

	require.Equal(t, "parent", second["msg"])
	require.Equal(t, "r1", second["run"])
	require.Equal(t, "abcd", second["bytecode_hash"])
	require.NotContains(t, second, "source_type")
}
