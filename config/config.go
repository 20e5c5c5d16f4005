// Package config loads the savestate settings from defaults, a yaml file, a
// .env file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "SAVESTATE_"

// StartDateLayout is the layout of Clock.StartDate.
const StartDateLayout = "2006-01-02 15:04:05"

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds every setting of a savestate process.
type Config struct {
	SaveFileName   string  `yaml:"save_file_name" env:"SAVE_FILE_NAME"`
	DataDir        string  `yaml:"data_dir" env:"DATA_DIR"`
	StorageBackend string  `yaml:"storage_backend" env:"STORAGE_BACKEND"`
	FrameRate      float64 `yaml:"frame_rate" env:"FRAME_RATE"`
	LogLevel       string  `yaml:"log_level" env:"LOG_LEVEL"`

	Clock    ClockConfig    `yaml:"clock" envPrefix:"CLOCK_"`
	PlayTime PlayTimeConfig `yaml:"play_time" envPrefix:"PLAY_TIME_"`
	Monitor  MonitorConfig  `yaml:"monitor" envPrefix:"MONITOR_"`
}

// ClockConfig configures the game clock.
type ClockConfig struct {
	StopOnPause      bool      `yaml:"stop_on_pause" env:"STOP_ON_PAUSE"`
	BaseMultiplier   float64   `yaml:"base_multiplier" env:"BASE_MULTIPLIER"`
	SpeedMultipliers []float64 `yaml:"speed_multipliers" env:"SPEED_MULTIPLIERS" envSeparator:","`
	SpeedIndex       int       `yaml:"speed_index" env:"SPEED_INDEX"`
	StartDate        string    `yaml:"start_date" env:"START_DATE"`
}

// PlayTimeConfig configures the play-time counter.
type PlayTimeConfig struct {
	StopOnPause bool `yaml:"stop_on_pause" env:"STOP_ON_PAUSE"`
}

// MonitorConfig configures the HTTP control server.
type MonitorConfig struct {
	Port        int  `yaml:"port" env:"PORT"`
	OpenBrowser bool `yaml:"open_browser" env:"OPEN_BROWSER"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		SaveFileName:   "savegame.dat",
		DataDir:        defaultDataDir(),
		StorageBackend: BackendFile,
		FrameRate:      60,
		LogLevel:       "info",
		Clock: ClockConfig{
			StopOnPause:      true,
			BaseMultiplier:   10,
			SpeedMultipliers: []float64{0, 1, 2, 3, 5},
			SpeedIndex:       1,
			StartDate:        "2010-01-01 09:00:00",
		},
		PlayTime: PlayTimeConfig{StopOnPause: true},
		Monitor:  MonitorConfig{Port: 0},
	}
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}

	return filepath.Join(dir, "savestate")
}

// Load builds the configuration. An empty configPath skips the yaml file and
// an envFile that does not exist is ignored. Variables already set in the
// process environment win over the ones in envFile.
func Load(configPath, envFile string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if envFile != "" {
		if err := loadEnvFile(envFile); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadEnvFile(name string) error {
	if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err := godotenv.Load(name); err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}

	return nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.SaveFileName) == "" {
		errs = append(errs, errors.New("save_file_name must not be empty"))
	}

	if c.StorageBackend != BackendFile && c.StorageBackend != BackendSQLite {
		errs = append(errs, fmt.Errorf("unknown storage_backend %q", c.StorageBackend))
	}

	if c.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("frame_rate must be positive, got %v", c.FrameRate))
	}

	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, c.Clock.validate()...)

	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		errs = append(errs, fmt.Errorf("monitor.port %d out of range", c.Monitor.Port))
	}

	return errors.Join(errs...)
}

func (c ClockConfig) validate() []error {
	var errs []error

	if c.BaseMultiplier < 0 {
		errs = append(errs, fmt.Errorf("clock.base_multiplier must not be negative"))
	}

	if len(c.SpeedMultipliers) == 0 {
		errs = append(errs, errors.New("clock.speed_multipliers must not be empty"))
	}

	for i, m := range c.SpeedMultipliers {
		if m < 0 {
			errs = append(errs, fmt.Errorf("clock.speed_multipliers[%d] is negative", i))
		}
	}

	if c.SpeedIndex < 0 || c.SpeedIndex >= len(c.SpeedMultipliers) {
		errs = append(errs, fmt.Errorf("clock.speed_index %d out of range", c.SpeedIndex))
	}

	if _, err := c.Start(); err != nil {
		errs = append(errs, err)
	}

	return errs
}

// Start parses StartDate as a UTC time.
func (c ClockConfig) Start() (time.Time, error) {
	t, err := time.Parse(StartDateLayout, c.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("clock.start_date: %w", err)
	}

	return t, nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(c.LogLevel))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}

	return level, nil
}

// SavePath returns the location of the durable save blob.
func (c *Config) SavePath() string {
	return filepath.Join(c.DataDir, c.SaveFileName)
}
