// Package config loads fitview service configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/teslashibe/fitview/pkg/camera"
	"github.com/teslashibe/fitview/pkg/detection"
	"github.com/teslashibe/fitview/pkg/exercise"
	"github.com/teslashibe/fitview/pkg/pipeline"
	"github.com/teslashibe/fitview/pkg/repcount"
	"gopkg.in/yaml.v3"
)

// Frame sources
const (
	SourceCamera = "camera"
	SourceRemote = "remote"
)

type Config struct {
	Server   ServerConfig     `yaml:"server"`
	Log      LogConfig        `yaml:"log"`
	Exercise string           `yaml:"exercise"`
	Source   string           `yaml:"source"`
	Camera   camera.Config    `yaml:"camera"`
	Detector detection.Config `yaml:"detector"`
	Remote   RemoteConfig     `yaml:"remote"`
	Pipeline pipeline.Config  `yaml:"pipeline"`
	Counting repcount.Config  `yaml:"counting"`
	Storage  StorageConfig    `yaml:"storage"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json; empty picks by FITVIEW_ENV
}

type RemoteConfig struct {
	URL string `yaml:"url"` // Landmark stream websocket
}

type StorageConfig struct {
	Path string `yaml:"path"` // SQLite file; empty disables set history
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Default returns a complete configuration; a config file only needs to
// list what differs.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080},
		Log:      LogConfig{Level: "info"},
		Exercise: exercise.Situps.String(),
		Source:   SourceCamera,
		Camera:   camera.DefaultConfig(),
		Detector: detection.DefaultConfig(),
		Pipeline: pipeline.DefaultConfig(),
		Counting: repcount.DefaultConfig(),
		Storage:  StorageConfig{Path: "fitview.db"},
	}
}

// Load reads config from a YAML file over the defaults, then applies
// environment variable overrides. An empty path skips the file.
// Env vars use the prefix FITVIEW_ and underscore-separated paths:
//
//	FITVIEW_SERVER_HOST, FITVIEW_SERVER_PORT,
//	FITVIEW_LOG_LEVEL, FITVIEW_LOG_FORMAT,
//	FITVIEW_EXERCISE, FITVIEW_SOURCE,
//	FITVIEW_CAMERA_DEVICE, FITVIEW_DETECTOR_MODEL, FITVIEW_REMOTE_URL,
//	FITVIEW_PIPELINE_WORKERS, FITVIEW_STORAGE_PATH
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FITVIEW_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("FITVIEW_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FITVIEW_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FITVIEW_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("FITVIEW_EXERCISE"); v != "" {
		cfg.Exercise = v
	}
	if v := os.Getenv("FITVIEW_SOURCE"); v != "" {
		cfg.Source = v
	}
	if v := os.Getenv("FITVIEW_CAMERA_DEVICE"); v != "" {
		cfg.Camera.Device = v
	}
	if v := os.Getenv("FITVIEW_DETECTOR_MODEL"); v != "" {
		cfg.Detector.ModelPath = v
	}
	if v := os.Getenv("FITVIEW_REMOTE_URL"); v != "" {
		cfg.Remote.URL = v
	}
	if v := os.Getenv("FITVIEW_PIPELINE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Workers = n
		}
	}
	if v, ok := os.LookupEnv("FITVIEW_STORAGE_PATH"); ok {
		cfg.Storage.Path = v
	}
}

// ExerciseKind returns the parsed initial exercise.
func (c *Config) ExerciseKind() (exercise.Kind, error) {
	return exercise.ParseKind(c.Exercise)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if _, err := c.ExerciseKind(); err != nil {
		return fmt.Errorf("exercise: %w", err)
	}

	switch c.Source {
	case SourceCamera:
		if errs := c.Camera.Validate(); len(errs) > 0 {
			return fmt.Errorf("camera: %v", errs)
		}
		if err := c.Detector.Validate(); err != nil {
			return err
		}
	case SourceRemote:
		if c.Remote.URL == "" {
			return errors.New("remote.url is required when source is remote")
		}
	default:
		return fmt.Errorf("source must be %s or %s, got %q", SourceCamera, SourceRemote, c.Source)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	if err := c.Counting.Validate(); err != nil {
		return fmt.Errorf("counting: %w", err)
	}
	return nil
}
