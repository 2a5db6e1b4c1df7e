package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, true, slog.LevelInfo)

	ctx := AppendCtx(context.Background(), slog.String("run", "abc"))
	ctx = AppendCtx(ctx, slog.Int("item", 3))
	log.InfoContext(ctx, "hello", "stage", "resize")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "abc", rec["run"])
	assert.Equal(t, float64(3), rec["item"])
	assert.Equal(t, "resize", rec["stage"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, false, slog.LevelWarn)
	log.Info("quiet")
	assert.Empty(t, buf.String())
	log.With("k", "v").Warn("loud")
	assert.Contains(t, buf.String(), "loud")
	assert.Contains(t, buf.String(), "k=v")
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)

	l, err = ParseLevel("loud")
	require.Error(t, err)
	assert.Equal(t, slog.LevelInfo, l)
}

func TestVerbosityLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, VerbosityLevel(0))
	assert.Equal(t, slog.LevelInfo, VerbosityLevel(1))
	assert.Equal(t, slog.LevelDebug, VerbosityLevel(3))
}

func TestFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	w := FileWriter(path)
	log := Logger(w, false, slog.LevelInfo)
	log.Info("to file")
	require.NoError(t, w.Close())
	assert.FileExists(t, path)
}
