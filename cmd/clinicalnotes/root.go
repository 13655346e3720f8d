package main

import (
	"github.com/spf13/cobra"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/config"
)

const (
	exitSuccess       = 0
	exitUsageError    = 1
	exitConfigError   = 2
	exitGenerateError = 3
	exitPartial       = 4
)

var (
	settingsFile string
	logLevel     string
	logFormat    string
)

var rootCmd = &cobra.Command{
	Use:          "clinicalnotes",
	Short:        "Generate insurance-ready clinical notes from session text",
	Long:         "Turns session text or recorded audio into SOAP/DAP notes, flags non-clinical language and suggests a billing code.",
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&settingsFile, "env-file", "", "Optional .env file to seed the environment from")
	pf.StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
	pf.StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides LOG_FORMAT)")
}

// loadConfig reads and validates the configuration, then applies the
// logging flags on top of it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(settingsFile)
	if err != nil {
		return nil, err
	}
	applyLogFlags(cfg)
	if err := cfg.Apply(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadUnvalidatedConfig is used by commands that never call a provider.
func loadUnvalidatedConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(settingsFile); err != nil {
		return nil, err
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	applyLogFlags(cfg)
	return cfg, cfg.Apply()
}

func applyLogFlags(cfg *config.Config) {
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
}
