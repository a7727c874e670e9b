package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestSlog_ForwardsLevelsAndKeyvals(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelDebug, true)
	ctx := context.Background()

	logger.Debug(ctx, "serial allocated", "key", "rule:R1:0:none", "value", 7)
	logger.Info(ctx, "batch job started", "task", "batch_1")
	logger.Error(ctx, "sequence store unavailable", "operation", "next")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)

	first := gjson.ParseBytes(lines[0])
	assert.Equal(t, "DEBUG", first.Get("level").String())
	assert.Equal(t, "serial allocated", first.Get("msg").String())
	assert.Equal(t, "rule:R1:0:none", first.Get("key").String())
	assert.Equal(t, int64(7), first.Get("value").Int())

	assert.Equal(t, "INFO", gjson.GetBytes(lines[1], "level").String())
	assert.Equal(t, "ERROR", gjson.GetBytes(lines[2], "level").String())
}

func TestSlog_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, false)

	logger.Debug(context.Background(), "hidden")

	assert.Empty(t, buf.String())
}

func TestNewSlog_NilUsesDefault(t *testing.T) {
	assert.NotNil(t, NewSlog(nil).logger)
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"":      slog.LevelInfo,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLevel("trace")
	assert.Error(t, err)
}
