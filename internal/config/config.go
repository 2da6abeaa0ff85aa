// Package config loads and resolves the unified-agent-distill configuration:
// a YAML base file, an optional commented-JSON local override, and
// environment-variable overrides for deployment contexts (C20).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/ronaldeddings/unified-agent/internal/assess"
	"github.com/ronaldeddings/unified-agent/internal/chunk"
	"github.com/ronaldeddings/unified-agent/internal/distill"
	"github.com/ronaldeddings/unified-agent/internal/event"
)

// ProviderCLI describes how to invoke one assisting coding-assistant CLI.
type ProviderCLI struct {
	Provider event.Provider `yaml:"provider" json:"provider"`
	Command  string         `yaml:"command" json:"command"`
	BaseArgs []string       `yaml:"baseArgs,omitempty" json:"baseArgs,omitempty"`
	Enabled  *bool          `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// IsEnabled returns true if the provider is enabled (default: true).
func (p ProviderCLI) IsEnabled() bool {
	if p.Enabled == nil {
		return true
	}
	return *p.Enabled
}

// Config is the fully-resolved application configuration.
type Config struct {
	Providers []ProviderCLI `yaml:"providers" json:"providers"`

	ScanDirs        []string `yaml:"scanDirs" json:"scanDirs"`
	PollIntervalSec int      `yaml:"pollIntervalSec,omitempty" json:"pollIntervalSec,omitempty"`

	Chunk     chunk.Config          `yaml:"chunk,omitempty" json:"chunk,omitempty"`
	Assess    assess.Config         `yaml:"assess,omitempty" json:"assess,omitempty"`
	Consensus assess.ConsensusConfig `yaml:"consensus,omitempty" json:"consensus,omitempty"`
	Budget    distill.BudgetConfig  `yaml:"budget,omitempty" json:"budget,omitempty"`

	MemoryServiceURL string `yaml:"memoryServiceUrl,omitempty" json:"memoryServiceUrl,omitempty"`
	StoragePath      string `yaml:"storagePath,omitempty" json:"storagePath,omitempty"`
	BuildOutputDir   string `yaml:"buildOutputDir,omitempty" json:"buildOutputDir,omitempty"`

	// ArchiveBucket, when set, enables C24: completed builds are additionally
	// uploaded to this S3-compatible bucket as an off-box backup.
	ArchiveBucket    string `yaml:"archiveBucket,omitempty" json:"archiveBucket,omitempty"`
	ArchiveEndpoint  string `yaml:"archiveEndpoint,omitempty" json:"archiveEndpoint,omitempty"`
	ArchiveAccessKey string `yaml:"archiveAccessKey,omitempty" json:"archiveAccessKey,omitempty"`
	ArchiveSecretKey string `yaml:"archiveSecretKey,omitempty" json:"archiveSecretKey,omitempty"`
	ArchiveUseSSL    bool   `yaml:"archiveUseSsl,omitempty" json:"archiveUseSsl,omitempty"`

	// StatusAddr, when set, starts C26's read-only introspection API.
	StatusAddr string `yaml:"statusAddr,omitempty" json:"statusAddr,omitempty"`

	// RelayURL, when set, wires C25's WebSocketRelay as the session watcher's
	// discovery publisher instead of the NullRelay default.
	RelayURL string `yaml:"relayUrl,omitempty" json:"relayUrl,omitempty"`

	LogFile string `yaml:"logFile,omitempty" json:"logFile,omitempty"`
	Debug   bool   `yaml:"debug,omitempty" json:"debug,omitempty"`
}

// PollInterval converts PollIntervalSec to a time.Duration, falling back to
// watch.DefaultInterval's value (5s) when unset.
func (c *Config) PollInterval() time.Duration {
	if c.PollIntervalSec <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.PollIntervalSec) * time.Second
}

// AssessProviders converts the enabled ProviderCLI entries into the shape
// the assessor (C9) needs to fan a prompt out across CLIs.
func (c *Config) AssessProviders() []assess.ProviderConfig {
	var out []assess.ProviderConfig
	for _, p := range c.Providers {
		if !p.IsEnabled() {
			continue
		}
		out = append(out, assess.ProviderConfig{Provider: p.Provider, Command: p.Command, BaseArgs: p.BaseArgs})
	}
	return out
}

// NewDefaultConfig returns a Config with every sub-config's documented
// defaults and the three standard assistant CLIs wired as providers.
func NewDefaultConfig() *Config {
	return &Config{
		Providers: []ProviderCLI{
			{Provider: event.ProviderClaude, Command: "claude", BaseArgs: []string{"-p"}},
			{Provider: event.ProviderCodex, Command: "codex", BaseArgs: []string{"exec"}},
			{Provider: event.ProviderGemini, Command: "gemini", BaseArgs: []string{"-p"}},
		},
		ScanDirs:         defaultScanDirs(),
		PollIntervalSec:  5,
		Chunk:            chunk.DefaultConfig,
		Assess:           assess.Config{TimeoutMs: 30000, RetryOnFailure: true, MaxConcurrent: 3},
		Consensus:        assess.DefaultConsensusConfig,
		Budget:           distill.DefaultBudgetConfig,
		MemoryServiceURL: "http://127.0.0.1:7865",
		StoragePath:      "~/.unified-agent-distill/distill.db",
		BuildOutputDir:   "~/.unified-agent-distill/builds",
	}
}

func defaultScanDirs() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".claude", "projects"),
		filepath.Join(home, ".codex", "sessions"),
		filepath.Join(home, ".gemini", "tmp"),
	}
}

// LoadConfigOptional loads path as YAML. If allowMissing and the file
// doesn't exist, returns (nil, nil) rather than an error. A sibling file
// with the same name plus ".local.jsonc" is applied on top, if present,
// parsed leniently (comments/trailing commas tolerated) via hujson.
func LoadConfigOptional(path string, allowMissing bool) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := applyLocalOverride(cfg, localOverridePath(path)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func localOverridePath(basePath string) string {
	ext := filepath.Ext(basePath)
	return strings.TrimSuffix(basePath, ext) + ".local.jsonc"
}

// applyLocalOverride merges a commented-JSON override file's fields onto
// cfg. Missing override file is not an error — it's an optional convenience
// for quick local tweaks without editing the checked-in YAML. Only the
// fields mergeOverlay copies (providers, scan dirs, poll interval, memory
// URL, storage path, build dir, log file, debug) take effect; any other
// field in the override is ignored.
func applyLocalOverride(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read local override %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return fmt.Errorf("config: parse local override %s: %w", path, err)
	}

	// Round-trip through YAML-compatible unmarshal since Config's yaml tags
	// double as json-equivalent field names for the override's purposes;
	// partial overrides simply leave untouched fields at their YAML values.
	overlay := &Config{}
	if err := yaml.Unmarshal(standardized, overlay); err != nil {
		return fmt.Errorf("config: apply local override %s: %w", path, err)
	}
	mergeOverlay(cfg, overlay)
	return nil
}

func mergeOverlay(base, overlay *Config) {
	if len(overlay.Providers) > 0 {
		base.Providers = overlay.Providers
	}
	if len(overlay.ScanDirs) > 0 {
		base.ScanDirs = overlay.ScanDirs
	}
	if overlay.PollIntervalSec > 0 {
		base.PollIntervalSec = overlay.PollIntervalSec
	}
	if overlay.MemoryServiceURL != "" {
		base.MemoryServiceURL = overlay.MemoryServiceURL
	}
	if overlay.StoragePath != "" {
		base.StoragePath = overlay.StoragePath
	}
	if overlay.BuildOutputDir != "" {
		base.BuildOutputDir = overlay.BuildOutputDir
	}
	if overlay.LogFile != "" {
		base.LogFile = overlay.LogFile
	}
	if overlay.Debug {
		base.Debug = true
	}
}

// GenerateDefaultConfigYAML renders NewDefaultConfig as YAML, for first-run
// auto-initialization of a config file.
func GenerateDefaultConfigYAML() []byte {
	b, err := yaml.Marshal(NewDefaultConfig())
	if err != nil {
		return nil
	}
	return b
}

// ApplyEnvOverrides overlays UNIFIED_AGENT_DISTILL_* environment variables
// onto cfg, for container/CI deployments that can't ship a local config
// file.
func ApplyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("UNIFIED_AGENT_DISTILL_MEMORY_URL"); ok {
		cfg.MemoryServiceURL = v
	}
	if v, ok := os.LookupEnv("UNIFIED_AGENT_DISTILL_STORAGE_PATH"); ok {
		cfg.StoragePath = v
	}
	if v, ok := os.LookupEnv("UNIFIED_AGENT_DISTILL_BUILD_DIR"); ok {
		cfg.BuildOutputDir = v
	}
	if v, ok := os.LookupEnv("UNIFIED_AGENT_DISTILL_LOG_FILE"); ok {
		cfg.LogFile = v
	}
	if v, ok := os.LookupEnv("UNIFIED_AGENT_DISTILL_DEBUG"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
	if v, ok := os.LookupEnv("UNIFIED_AGENT_DISTILL_POLL_INTERVAL_SEC"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PollIntervalSec = n
		}
	}
	if v, ok := os.LookupEnv("UNIFIED_AGENT_DISTILL_ARCHIVE_BUCKET"); ok {
		cfg.ArchiveBucket = v
	}
	if v, ok := os.LookupEnv("UNIFIED_AGENT_DISTILL_STATUS_ADDR"); ok {
		cfg.StatusAddr = v
	}
	if v, ok := os.LookupEnv("UNIFIED_AGENT_DISTILL_SCAN_DIRS"); ok {
		var dirs []string
		for _, d := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(d); trimmed != "" {
				dirs = append(dirs, trimmed)
			}
		}
		if len(dirs) > 0 {
			cfg.ScanDirs = dirs
		}
	}
}

// ExpandPath expands a leading "~" to the user's home directory.
func ExpandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
