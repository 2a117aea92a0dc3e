package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathlab-mcp-server/internal/domain"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       domain.LoggingConfig
		level     logrus.Level
		formatter interface{}
	}{
		{"json default", domain.LoggingConfig{Level: "info", Format: "json"}, logrus.InfoLevel, &logrus.JSONFormatter{}},
		{"text debug", domain.LoggingConfig{Level: "debug", Format: "text"}, logrus.DebugLevel, &logrus.TextFormatter{}},
		{"bad level", domain.LoggingConfig{Level: "chatty"}, logrus.InfoLevel, &logrus.JSONFormatter{}},
		{"stderr", domain.LoggingConfig{Level: "warn", Output: "stderr"}, logrus.WarnLevel, &logrus.JSONFormatter{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.level, logger.GetLevel())
			assert.IsType(t, tt.formatter, logger.Formatter)
		})
	}
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lab.log")

	logger, err := NewLogger(domain.LoggingConfig{Level: "info", Output: "file", Filename: path})
	require.NoError(t, err)
	logger.WithField("report_id", "r-1").Info("report saved")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &line))
	assert.Equal(t, "report saved", line["message"])
	assert.Equal(t, "r-1", line["report_id"])
}

func TestNewLogger_BadOutput(t *testing.T) {
	_, err := NewLogger(domain.LoggingConfig{Output: "file"})
	assert.Error(t, err)

	_, err = NewLogger(domain.LoggingConfig{Output: "syslog"})
	assert.Error(t, err)
}

func TestCorrelationEntry(t *testing.T) {
	logger, hook := test.NewNullLogger()

	ctx := WithCorrelationID(context.Background(), "abc-123")
	assert.Equal(t, "abc-123", CorrelationID(ctx))
	assert.Equal(t, "", CorrelationID(context.Background()))

	Entry(ctx, logger).Info("classified")
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "abc-123", hook.LastEntry().Data["correlation_id"])

	Entry(context.Background(), logger).Info("no id")
	_, ok := hook.LastEntry().Data["correlation_id"]
	assert.False(t, ok)
}
