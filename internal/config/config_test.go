package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore-run/flowcore/internal/telemetry"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ValidFile(t *testing.T) {
	path := writeConfig(t, `
concurrency_limit: 64
lock_timeout: 2s
flush_interval: 10s
log_level_floor: warn
store_path: /tmp/run.db
`)
	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(64), f.ConcurrencyLimit)
	assert.Equal(t, "warn", f.LogLevelFloor)
}

func TestLoad_MissingRequiredField(t *testing.T) {
	path := writeConfig(t, `
lock_timeout: 2s
flush_interval: 10s
store_path: /tmp/run.db
`)
	_, err := Load(path)
	require.Error(t, err, "concurrency_limit is required and gt=0")
}

func TestLoad_RejectsUnknownLogLevel(t *testing.T) {
	path := writeConfig(t, `
concurrency_limit: 64
lock_timeout: 2s
flush_interval: 10s
log_level_floor: verbose
store_path: /tmp/run.db
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestFile_RuntimeConfig_ParsesDurations(t *testing.T) {
	f := Default()
	f.LockTimeout = "7s"
	f.FlushInterval = "30s"

	rc, err := f.RuntimeConfig()
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, rc.LockTimeout)
	assert.Equal(t, 30*time.Second, rc.FlushInterval)
	assert.Equal(t, f.ConcurrencyLimit, rc.ConcurrencyLimit)
}

func TestFile_RuntimeConfig_RejectsBadDuration(t *testing.T) {
	f := Default()
	f.LockTimeout = "not-a-duration"
	_, err := f.RuntimeConfig()
	require.Error(t, err)
}

func TestFile_LogLevel_DefaultsToDebugOnUnrecognized(t *testing.T) {
	f := Default()
	f.LogLevelFloor = ""
	assert.Equal(t, telemetry.Debug, f.LogLevel())

	f.LogLevelFloor = "garbage"
	assert.Equal(t, telemetry.Debug, f.LogLevel())
}

func TestFile_LogLevel_MapsKnownValues(t *testing.T) {
	cases := map[string]telemetry.Level{
		"info":  telemetry.Info,
		"warn":  telemetry.Warn,
		"error": telemetry.Error,
		"fatal": telemetry.Fatal,
	}
	for raw, want := range cases {
		f := Default()
		f.LogLevelFloor = raw
		assert.Equal(t, want, f.LogLevel())
	}
}
