package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/ronaldeddings/unified-agent/internal/logging"
)

// Result is the outcome of Bootstrap: the resolved config plus the path it
// was (or would have been) loaded from.
type Result struct {
	Config         *Config
	ConfigFilePath string
}

// Bootstrap resolves the config file path (explicit configPath, else
// $XDG_CONFIG_HOME/unified-agent-distill/config.yaml, else
// ~/.config/unified-agent-distill/config.yaml, or ./config.yaml when the
// home directory cannot be resolved),
// loads a .env file from the working directory if present, auto-creates a
// default config on first run, and applies environment overrides last.
func Bootstrap(configPath string) (*Result, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: get working directory: %w", err)
	}

	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			logging.WithError(errLoad).Warnf("bootstrap: failed to load .env file")
		}
	}

	if configPath == "" {
		configPath = defaultConfigPath()
	}

	if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
		autoInitConfig(configPath)
	}

	cfg, err := LoadConfigOptional(configPath, true)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load config: %w", err)
	}
	if cfg == nil {
		cfg = NewDefaultConfig()
	}

	ApplyEnvOverrides(cfg)

	cfg.StoragePath = ExpandPath(cfg.StoragePath)
	cfg.BuildOutputDir = ExpandPath(cfg.BuildOutputDir)

	return &Result{Config: cfg, ConfigFilePath: configPath}, nil
}

func defaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "unified-agent-distill", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "unified-agent-distill", "config.yaml")
}

// autoInitConfig silently writes out a default config on first run so the
// CLI has something to edit rather than failing outright.
func autoInitConfig(configPath string) {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.WithError(err).Warnf("bootstrap: failed to create config dir %s", dir)
		return
	}
	if err := os.WriteFile(configPath, GenerateDefaultConfigYAML(), 0o644); err != nil {
		logging.WithError(err).Warnf("bootstrap: failed to write default config %s", configPath)
		return
	}
	logging.Infof("first run: created default config at %s", configPath)
}
