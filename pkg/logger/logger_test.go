package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fustanlabs/fustan-sync/internal/common/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"WARN":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"unknown": zapcore.InfoLevel,
	}
	for in, exp := range cases {
		assert.Equal(t, exp, parseLevel(in), "level %q", in)
	}
}

func TestNewLogger_StdoutDefaults(t *testing.T) {
	cfg := &config.LoggerConfig{}
	lg, err := NewLogger(cfg)
	assert.NoError(t, err)
	assert.NotNil(t, lg)

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, 3, cfg.MaxBackups)
	assert.Equal(t, 7, cfg.MaxAge)
}

func TestNewLogger_FileOutput(t *testing.T) {
	tmp := t.TempDir()
	cfg := &config.LoggerConfig{
		Output:     "file",
		FilePath:   filepath.Join(tmp, "logs", "app.log"),
		Format:     "console",
		Color:      true,
		Stacktrace: true,
		Level:      "debug",
	}

	lg, err := NewLogger(cfg)
	assert.NoError(t, err)
	assert.NotNil(t, lg)

	lg.Debug("debug message")
	lg.Error("error message")

	// log directory is created on the way in
	_, err = os.Stat(filepath.Dir(cfg.FilePath))
	assert.NoError(t, err)
}

func TestNewLogger_FileWithoutPath(t *testing.T) {
	_, err := NewLogger(&config.LoggerConfig{Output: "file"})
	assert.Error(t, err)
}
