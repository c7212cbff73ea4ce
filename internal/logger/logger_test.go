package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_JSONInProduction(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Level:       slog.LevelInfo,
		Environment: "production",
		Writer:      &buf,
	})

	log.Info("engine started", "items", 3)

	out := buf.String()
	assert.Contains(t, out, `"msg":"engine started"`)
	assert.Contains(t, out, `"items":3`)
}

func TestNew_PrettyInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Level:       slog.LevelInfo,
		Environment: "development",
		Writer:      &buf,
	})

	log.Info("engine started")

	out := buf.String()
	assert.Contains(t, out, "engine started")
	assert.NotContains(t, out, `"msg"`)
}

func TestNew_ExplicitFormatWins(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Level:       slog.LevelInfo,
		Format:      "json",
		Environment: "development",
		Writer:      &buf,
	})

	log.Info("test")
	assert.Contains(t, buf.String(), `"msg":"test"`)
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Level:       slog.LevelWarn,
		Format:      "json",
		Environment: "production",
		Writer:      &buf,
	})

	log.Info("quiet")
	log.Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), "input %q", tt.input)
	}
}

func TestWithField(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Level:       slog.LevelInfo,
		Format:      "json",
		Environment: "production",
		Writer:      &buf,
	})

	log.WithField("item_id", "ch1").Info("downloaded")
	assert.Contains(t, buf.String(), `"item_id":"ch1"`)
}
