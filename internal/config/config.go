// Package config handles configuration loading and management for taskflow.
// It supports XDG config paths, project-level overrides, .env files and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for taskflow.
type Config struct {
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	Log          LogConfig          `mapstructure:"log"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Notify       NotifyConfig       `mapstructure:"notify"`
	Server       ServerConfig       `mapstructure:"server"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StorageConfig holds database locations. Empty paths use the XDG data dir.
type StorageConfig struct {
	TasksDB  string `mapstructure:"tasks_db"`
	NotifyDB string `mapstructure:"notify_db"`
}

// OrchestratorConfig holds plan execution settings.
type OrchestratorConfig struct {
	// Classifier selects intent resolution: "rules" or "claude".
	Classifier string `mapstructure:"classifier"`
	// StepTimeout bounds each capability call.
	StepTimeout time.Duration `mapstructure:"step_timeout"`
}

// NotifyConfig holds email provider settings.
type NotifyConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RetryMax          int           `mapstructure:"retry_max"`
	VerifyOnConfigure bool          `mapstructure:"verify_on_configure"`
	// OwnerEmail is where "me" is delivered. Empty means the namespace inbox.
	OwnerEmail string `mapstructure:"owner_email"`
	// APIKey and Namespace configure the provider at startup when both are set.
	APIKey    string `mapstructure:"api_key"`
	Namespace string `mapstructure:"namespace"`
}

// ServerConfig holds HTTP front-end settings.
type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, TESTMAIL_API_KEY, TASKFLOW_*)
// 2. .env in the current directory
// 3. Project config (.taskflow.yaml in current directory or parent)
// 4. User config (~/.config/taskflow/config.yaml)
// 5. Built-in defaults
func Load() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	bindEnv(v)

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Watch re-reads the config file at path whenever it changes and passes the
// new configuration to fn. Events that produce an unreadable file are
// reported through fn with a nil Config.
func Watch(path string, fn func(*Config, fsnotify.Event, error)) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config from %s: %w", path, err)
	}
	bindEnv(v)

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := unmarshal(v)
		fn(cfg, e, err)
	})
	v.WatchConfig()
	return nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	return SaveTo(GetUserConfigPath(), cfg)
}

// SaveTo writes the configuration to path.
func SaveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)
	v.Set("storage.tasks_db", cfg.Storage.TasksDB)
	v.Set("storage.notify_db", cfg.Storage.NotifyDB)
	v.Set("orchestrator.classifier", cfg.Orchestrator.Classifier)
	v.Set("orchestrator.step_timeout", cfg.Orchestrator.StepTimeout.String())
	v.Set("notify.base_url", cfg.Notify.BaseURL)
	v.Set("notify.timeout", cfg.Notify.Timeout.String())
	v.Set("notify.retry_max", cfg.Notify.RetryMax)
	v.Set("notify.verify_on_configure", cfg.Notify.VerifyOnConfigure)
	v.Set("notify.owner_email", cfg.Notify.OwnerEmail)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("server.cors_origins", cfg.Server.CORSOrigins)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// DataDir returns the XDG data directory for taskflow.
func DataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "taskflow")
}

// TasksDBPath returns the configured task database path.
func (c *Config) TasksDBPath() string {
	if c.Storage.TasksDB != "" {
		return c.Storage.TasksDB
	}
	return filepath.Join(DataDir(), "taskflow.db")
}

// NotifyDBPath returns the configured notification settings path.
func (c *Config) NotifyDBPath() string {
	if c.Storage.NotifyDB != "" {
		return c.Storage.NotifyDB
	}
	return filepath.Join(DataDir(), "notify.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("storage.tasks_db", "")
	v.SetDefault("storage.notify_db", "")

	v.SetDefault("orchestrator.classifier", "rules")
	v.SetDefault("orchestrator.step_timeout", "10s")

	v.SetDefault("notify.base_url", "https://api.testmail.app")
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("notify.retry_max", 2)
	v.SetDefault("notify.verify_on_configure", false)
	v.SetDefault("notify.owner_email", "")
	v.SetDefault("notify.api_key", "")
	v.SetDefault("notify.namespace", "")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.cors_origins", []string{"*"})
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("TASKFLOW")
	v.AutomaticEnv()

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("notify.api_key", "TESTMAIL_API_KEY")
	v.BindEnv("notify.namespace", "TESTMAIL_NAMESPACE")
	v.BindEnv("log.level", "TASKFLOW_LOG_LEVEL")
	v.BindEnv("server.addr", "TASKFLOW_ADDR")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Notify.APIKey = expandEnv(cfg.Notify.APIKey)

	return cfg, nil
}

// getUserConfigDir returns the XDG config directory for taskflow.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "taskflow")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "taskflow")
	}
	return filepath.Join(home, ".config", "taskflow")
}

// findProjectConfig searches for .taskflow.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".taskflow.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Orchestrator: OrchestratorConfig{
			Classifier:  "rules",
			StepTimeout: 10 * time.Second,
		},
		Notify: NotifyConfig{
			BaseURL:  "https://api.testmail.app",
			Timeout:  10 * time.Second,
			RetryMax: 2,
		},
		Server: ServerConfig{
			Addr:        ":8000",
			CORSOrigins: []string{"*"},
		},
	}
}
