package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithField(t *testing.T) {
	logger, buf := testLogger()

	logger.WithField("foo", "bar").Info("test message")

	entry := singleEntry(t, buf)
	assert.Equal(t, "test message", entry["message"])
	assert.Equal(t, "bar", entry["foo"])
}

func TestWithFields(t *testing.T) {
	logger, buf := testLogger()

	logger.WithFields(map[string]any{
		"user":   "test_user",
		"action": "test_action",
	}).Info("test message")

	entry := singleEntry(t, buf)
	assert.Equal(t, "test_user", entry["user"])
	assert.Equal(t, "test_action", entry["action"])
}

func TestWithError(t *testing.T) {
	logger, buf := testLogger()

	logger.WithError(errors.New("test error")).Warnf("batch %d failed", 3)

	entry := singleEntry(t, buf)
	assert.Equal(t, "batch 3 failed", entry["message"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "test error", entry["error"])
}

func TestWithStacktrace(t *testing.T) {
	logger, buf := testLogger()

	err := errors.WithStack(errors.New("test error"))
	logger.WithStacktrace(err).Error("test message")

	entry := singleEntry(t, buf)
	assert.Equal(t, "test error", entry["error"])
	assert.Contains(t, entry[Stacktrace], "logger_test.go")
}

func TestWithStacktrace_NoStack(t *testing.T) {
	logger, buf := testLogger()

	logger.WithStacktrace(stdError("plain")).Error("test message")

	entry := singleEntry(t, buf)
	assert.NotContains(t, entry, Stacktrace)
}

func TestFilteredLevelWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := FromZerolog(zerolog.New(zerolog.MultiLevelWriter(createJsonWriter(buf, zerolog.WarnLevel))))

	logger.Info("dropped")
	logger.Error("kept")

	entry := singleEntry(t, buf)
	assert.Equal(t, "kept", entry["message"])
}

func TestPrometheusHook(t *testing.T) {
	registry := prometheus.NewRegistry()
	hook, err := NewPrometheusHook(registry)
	require.NoError(t, err)

	logger := FromZerolog(zerolog.New(&bytes.Buffer{}).Hook(hook))
	logger.Info("one")
	logger.Info("two")
	logger.Error("three")

	assert.Equal(t, 2.0, testutil.ToFloat64(hook.counters[zerolog.InfoLevel]))
	assert.Equal(t, 1.0, testutil.ToFloat64(hook.counters[zerolog.ErrorLevel]))
	assert.Equal(t, 0.0, testutil.ToFloat64(hook.counters[zerolog.WarnLevel]))

	_, err = NewPrometheusHook(registry)
	assert.Error(t, err, "second registration must fail")
}

func TestValidate(t *testing.T) {
	valid := defaultConfig()
	assert.NoError(t, validate(valid))

	badLevel := defaultConfig()
	badLevel.Console.Level = "chatty"
	assert.Error(t, validate(badLevel))

	badFormat := defaultConfig()
	badFormat.Console.Format = "xml"
	assert.ErrorContains(t, validate(badFormat), "unknown log format")

	noFile := defaultConfig()
	noFile.File.Enabled = true
	noFile.File.Level = "info"
	noFile.File.Format = FormatJSON
	assert.ErrorContains(t, validate(noFile), "logfile")

	badRotation := noFile
	badRotation.File.LogFile = "/tmp/tsbench.log"
	badRotation.File.Rotation.Enabled = true
	assert.ErrorContains(t, validate(badRotation), "maxSizeMb")
}

type stdError string

func (e stdError) Error() string { return string(e) }

func testLogger() (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return FromZerolog(zerolog.New(buf)), buf
}

func singleEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1, "Expected exactly one log entry")
	entry := map[string]any{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	return entry
}
