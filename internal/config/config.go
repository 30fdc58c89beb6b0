package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for Zen AI.
type Config struct {
	General  GeneralConfig  `yaml:"general" json:"general"`
	Model    ModelConfig    `yaml:"model" json:"model"`
	Tools    ToolsConfig    `yaml:"tools" json:"tools"`
	Channels ChannelsConfig `yaml:"channels" json:"channels"`
	Audit    AuditConfig    `yaml:"audit" json:"audit"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
}

type GeneralConfig struct {
	Workspace      string  `yaml:"workspace" json:"workspace" env:"ZENAI_WORKSPACE"`
	LogLevel       string  `yaml:"logLevel" json:"logLevel" env:"ZENAI_LOG_LEVEL"`
	LogFile        string  `yaml:"logFile,omitempty" json:"logFile,omitempty" env:"ZENAI_LOG_FILE"`
	MaxTurns       int     `yaml:"maxTurns" json:"maxTurns" env:"ZENAI_MAX_TURNS"`
	TurnsPerMinute float64 `yaml:"turnsPerMinute" json:"turnsPerMinute" env:"ZENAI_TURNS_PER_MINUTE"` // 0 = unlimited
	HistoryLimit   int     `yaml:"historyLimit" json:"historyLimit"`
}

type ModelConfig struct {
	Provider       string `yaml:"provider" json:"provider" env:"ZENAI_MODEL_PROVIDER"` // "gemini" | "ollama"
	APIKey         string `yaml:"apiKey,omitempty" json:"apiKey,omitempty" env:"ZENAI_MODEL_API_KEY"`
	APIBase        string `yaml:"apiBase,omitempty" json:"apiBase,omitempty" env:"ZENAI_MODEL_API_BASE"`
	Name           string `yaml:"name" json:"name" env:"ZENAI_MODEL_NAME"` // empty picks the provider default
	Instructions   string `yaml:"instructions,omitempty" json:"instructions,omitempty"` // base system instructions
	TimeoutSeconds int    `yaml:"timeoutSeconds" json:"timeoutSeconds"`
}

type ToolsConfig struct {
	Dir            string        `yaml:"dir" json:"dir" env:"ZENAI_TOOLS_DIR"`
	BackupDir      string        `yaml:"backupDir" json:"backupDir"`
	TimeoutSeconds int           `yaml:"timeoutSeconds" json:"timeoutSeconds"`
	Browser        BrowserConfig `yaml:"browser" json:"browser"`
}

type BrowserConfig struct {
	Enabled        bool   `yaml:"enabled" json:"enabled" env:"ZENAI_BROWSER_ENABLED"`
	Headless       bool   `yaml:"headless" json:"headless"`
	ProfileDir     string `yaml:"profileDir,omitempty" json:"profileDir,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" json:"timeoutSeconds"`
}

type ChannelsConfig struct {
	Web      WebConfig      `yaml:"web" json:"web"`
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" env:"ZENAI_WEB_ENABLED"`
	Host    string `yaml:"host" json:"host" env:"ZENAI_WEB_HOST"`
	Port    int    `yaml:"port" json:"port" env:"ZENAI_WEB_PORT"`
}

type TelegramConfig struct {
	Enabled   bool           `yaml:"enabled" json:"enabled" env:"ZENAI_TELEGRAM_ENABLED"`
	Token     string         `yaml:"token,omitempty" json:"token,omitempty" env:"ZENAI_TELEGRAM_TOKEN"`
	AllowFrom FlexStringList `yaml:"allowFrom" json:"allowFrom" env:"ZENAI_TELEGRAM_ALLOW_FROM" envSeparator:","`
}

type AuditConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled" env:"ZENAI_AUDIT_ENABLED"`
	DBPath        string `yaml:"dbPath" json:"dbPath" env:"ZENAI_AUDIT_DB"`
	RetentionDays int    `yaml:"retentionDays" json:"retentionDays"`
}

type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// FlexStringList is a []string that accepts both strings and numbers in YAML
// (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if node.Value == "" {
			*f = nil
			return nil
		}
		*f = FlexStringList{node.Value}
		return nil
	}
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: expected a list", node.Line)
	}
	result := make([]string, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: list items must be scalars", item.Line)
		}
		result = append(result, item.Value)
	}
	*f = result
	return nil
}

// DefaultConfigDir returns the default config directory (~/.zenai).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zenai"
	}
	return filepath.Join(home, ".zenai")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Load reads the YAML config at path on top of Defaults. A missing file
// yields the defaults. ZENAI_* environment variables override file values.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	default:
		// Substitute environment variables: ${VAR} and ${VAR:-default}
		data = []byte(ExpandEnvVars(string(data)))
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	cfg.General.Workspace = ExpandPath(cfg.General.Workspace)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Tools.Dir = ExpandPath(cfg.Tools.Dir)
	cfg.Tools.BackupDir = ExpandPath(cfg.Tools.BackupDir)
	cfg.Tools.Browser.ProfileDir = ExpandPath(cfg.Tools.Browser.ProfileDir)
	cfg.Audit.DBPath = ExpandPath(cfg.Audit.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty; an unset
// variable without a default is left as written.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, def := groups[1], groups[2]
		if val := os.Getenv(name); val != "" {
			return val
		}
		if def != "" {
			return def
		}
		return match
	})
}

// Save writes cfg as YAML, creating the directory if needed.
func Save(path string, cfg *Config) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.MaxTurns < 1 || cfg.General.MaxTurns > 200 {
		errs = append(errs, "general.maxTurns must be between 1 and 200")
	}
	if cfg.General.TurnsPerMinute < 0 {
		errs = append(errs, "general.turnsPerMinute must be >= 0")
	}
	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch cfg.Model.Provider {
	case "gemini", "ollama":
	default:
		errs = append(errs, "model.provider must be one of: gemini, ollama")
	}
	if cfg.Model.TimeoutSeconds < 1 {
		errs = append(errs, "model.timeoutSeconds must be >= 1")
	}
	if cfg.Tools.TimeoutSeconds < 1 {
		errs = append(errs, "tools.timeoutSeconds must be >= 1")
	}
	if cfg.Tools.Browser.Enabled && cfg.Tools.Browser.TimeoutSeconds < 1 {
		errs = append(errs, "tools.browser.timeoutSeconds must be >= 1")
	}
	if cfg.Channels.Web.Port < 0 || cfg.Channels.Web.Port > 65535 {
		errs = append(errs, "channels.web.port must be between 0 and 65535")
	}
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
		errs = append(errs, "channels.telegram.token is required when telegram is enabled")
	}
	if cfg.Audit.Enabled && cfg.Audit.DBPath == "" {
		errs = append(errs, "audit.dbPath is required when audit is enabled")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Addr returns host:port for the web channel.
func (w WebConfig) Addr() string {
	return w.Host + ":" + strconv.Itoa(w.Port)
}
