// Package cmd provides the command-line interface for savestate.
package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/savestate/config"
	"github.com/sarchlab/savestate/simulation"
)

var (
	configPath string
	envFile    string
	dataDir    string
	backend    string
	logLevel   string
	speed      int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "savestate",
	Short: "Create, save and load named game saves.",
	Long: `savestate manages the named saves of a game session. Every ` +
		`command opens the stored saves, runs a session with a game clock ` +
		`and a play-time counter, and writes the saves back.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "yaml config file")
	flags.StringVar(&envFile, "env-file", ".env", "env file with SAVESTATE_ variables")
	flags.StringVar(&dataDir, "data-dir", "", "directory of the save file")
	flags.StringVar(&backend, "backend", "", "storage backend (file or sqlite)")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	flags.IntVar(&speed, "speed", -1, "game speed index")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
	}

	if flags.Changed("backend") {
		cfg.StorageBackend = backend
	}

	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	if flags.Changed("speed") {
		cfg.Clock.SpeedIndex = speed
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// openSession loads the configuration and builds a session on the stored
// saves.
func openSession(
	cmd *cobra.Command,
	monitored bool,
	overrides ...func(*config.Config),
) (*simulation.Simulation, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	for _, o := range overrides {
		o(cfg)
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	b := simulation.MakeBuilder().
		WithConfig(cfg).
		WithLogger(logger)
	if monitored {
		b = b.WithMonitoring(true)
	}

	s, err := b.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("open saves: %w", err)
	}

	return s, cfg, nil
}
