// Package config loads the ambient execution limits from YAML, the way
// this codebase's teacher lineage wires gopkg.in/yaml.v3 plus
// go-playground/validator struct tags rather than hand-rolled parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/flowcore-run/flowcore/internal/runtime"
	"github.com/flowcore-run/flowcore/internal/telemetry"
)

// File is the on-disk shape of a runtime config file.
type File struct {
	ConcurrencyLimit uint64 `yaml:"concurrency_limit" validate:"required,gt=0"`
	LockTimeout      string `yaml:"lock_timeout" validate:"required"`
	FlushInterval    string `yaml:"flush_interval" validate:"required"`
	LogLevelFloor    string `yaml:"log_level_floor" validate:"omitempty,oneof=debug info warn error fatal"`
	StorePath        string `yaml:"store_path" validate:"required"`
}

// Default mirrors runtime.DefaultConfig's values in YAML form, used when
// no config file is supplied.
func Default() File {
	return File{
		ConcurrencyLimit: 128000,
		LockTimeout:      "3s",
		FlushInterval:    "5s",
		LogLevelFloor:    "debug",
		StorePath:        "flowcore.db",
	}
}

var validate = validator.New()

// Load reads and validates a YAML config file at path.
func Load(path string) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("config: parse %q: %w", path, err)
	}
	if err := validate.Struct(f); err != nil {
		return f, fmt.Errorf("config: invalid %q: %w", path, err)
	}
	return f, nil
}

// RuntimeConfig converts the validated file into runtime.Config.
func (f File) RuntimeConfig() (runtime.Config, error) {
	lock, err := time.ParseDuration(f.LockTimeout)
	if err != nil {
		return runtime.Config{}, fmt.Errorf("config: lock_timeout: %w", err)
	}
	flush, err := time.ParseDuration(f.FlushInterval)
	if err != nil {
		return runtime.Config{}, fmt.Errorf("config: flush_interval: %w", err)
	}
	return runtime.Config{
		ConcurrencyLimit: f.ConcurrencyLimit,
		LockTimeout:      lock,
		FlushInterval:    flush,
	}, nil
}

// LogLevel parses the configured floor into a telemetry.Level, defaulting
// to Debug on an empty or unrecognized value.
func (f File) LogLevel() telemetry.Level {
	switch f.LogLevelFloor {
	case "info":
		return telemetry.Info
	case "warn":
		return telemetry.Warn
	case "error":
		return telemetry.Error
	case "fatal":
		return telemetry.Fatal
	default:
		return telemetry.Debug
	}
}
