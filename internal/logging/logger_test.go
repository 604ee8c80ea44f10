// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 ExoSpaceLabs

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ExoSpaceLabs/CCSDSPack/internal/metrics"
)

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console", "text", ""} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := NewLogger(Config{Format: format, Level: "info", Output: zapcore.AddSync(&buf)})
			require.NoError(t, err)
			logger.Info("decoded packet", zap.Uint16("apid", 100))
			assert.Contains(t, buf.String(), "decoded packet")
			assert.Contains(t, buf.String(), "100")
		})
	}
}

func TestNewLogger_Invalid(t *testing.T) {
	_, err := NewLogger(Config{Format: "json", Level: "loud"})
	assert.Error(t, err)

	_, err = NewLogger(Config{Format: "xml", Level: "info"})
	assert.Error(t, err)
}

func TestNewLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Format: "json", Level: "debug", Output: zapcore.AddSync(&buf)})
	require.NoError(t, err)

	logger.Debug("segment", zap.Int("index", 2), zap.String("flag", "LAST"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "segment", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
	assert.EqualValues(t, 2, entry["index"])
	assert.Equal(t, "LAST", entry["flag"])
	assert.Contains(t, entry, "timestamp")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Format: "json", Level: "warn", Output: zapcore.AddSync(&buf)})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestMetricsHook_CountsWrittenEntries(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Format: "json", Level: "info", Output: zapcore.AddSync(&buf)})
	require.NoError(t, err)

	child := logger.With(zap.String("source", "test"))
	errorsBefore := testutil.ToFloat64(metrics.LogEntries.WithLabelValues("error"))
	debugBefore := testutil.ToFloat64(metrics.LogEntries.WithLabelValues("debug"))

	child.Error("checksum mismatch")
	child.Debug("filtered")

	assert.Equal(t, errorsBefore+1, testutil.ToFloat64(metrics.LogEntries.WithLabelValues("error")))
	assert.Equal(t, debugBefore, testutil.ToFloat64(metrics.LogEntries.WithLabelValues("debug")))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
