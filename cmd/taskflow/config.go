package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskflow/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify taskflow configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/taskflow/config.yaml
Project-specific overrides can be placed in .taskflow.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		out := cmd.OutOrStdout()
		switch len(args) {
		case 0:
			displayAllConfig(out, cfg)
			return nil
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, value)
			return nil
		default:
			if err := setConfigValue(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Fprintf(out, "Set %s = %s\n", args[0], args[1])
			return nil
		}
	},
}

var configKeys = []string{
	"anthropic.api_key",
	"anthropic.model",
	"anthropic.use_bedrock",
	"anthropic.aws_region",
	"anthropic.aws_profile",
	"log.level",
	"log.format",
	"storage.tasks_db",
	"storage.notify_db",
	"orchestrator.classifier",
	"orchestrator.step_timeout",
	"notify.base_url",
	"notify.timeout",
	"notify.retry_max",
	"notify.verify_on_configure",
	"notify.owner_email",
	"server.addr",
	"server.cors_origins",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(w io.Writer, cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Fprintf(w, "%s: %s\n", key, value)
	}
	fmt.Fprintf(w, "(tasks database: %s)\n", cfg.TasksDBPath())
	fmt.Fprintf(w, "(notify store: %s)\n", cfg.NotifyDBPath())
}

// describeAPIKey shows the masked effective key and where it comes from.
func describeAPIKey(cfg *config.Config) string {
	switch source := config.CredentialSource(cfg); source {
	case config.KeySourceBedrock, config.KeySourceNone:
		return fmt.Sprintf("(not set, %s)", source)
	default:
		key, _ := config.LookupAPIKey(cfg)
		return fmt.Sprintf("%s (%s)", config.MaskAPIKey(key), source)
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return describeAPIKey(cfg), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "log.level":
		return cfg.Log.Level, nil
	case "log.format":
		return cfg.Log.Format, nil
	case "storage.tasks_db":
		return cfg.Storage.TasksDB, nil
	case "storage.notify_db":
		return cfg.Storage.NotifyDB, nil
	case "orchestrator.classifier":
		return cfg.Orchestrator.Classifier, nil
	case "orchestrator.step_timeout":
		return cfg.Orchestrator.StepTimeout.String(), nil
	case "notify.base_url":
		return cfg.Notify.BaseURL, nil
	case "notify.timeout":
		return cfg.Notify.Timeout.String(), nil
	case "notify.retry_max":
		return strconv.Itoa(cfg.Notify.RetryMax), nil
	case "notify.verify_on_configure":
		return strconv.FormatBool(cfg.Notify.VerifyOnConfigure), nil
	case "notify.owner_email":
		return cfg.Notify.OwnerEmail, nil
	case "server.addr":
		return cfg.Server.Addr, nil
	case "server.cors_origins":
		return strings.Join(cfg.Server.CORSOrigins, ","), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if !strings.HasPrefix(value, "${") {
			if err := config.ValidateAPIKey(value); err != nil {
				return err
			}
		}
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for anthropic.use_bedrock: %w", err)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "log.level":
		cfg.Log.Level = value
	case "log.format":
		if value != "console" && value != "json" {
			return fmt.Errorf("invalid log.format %q: want console or json", value)
		}
		cfg.Log.Format = value
	case "storage.tasks_db":
		cfg.Storage.TasksDB = value
	case "storage.notify_db":
		cfg.Storage.NotifyDB = value
	case "orchestrator.classifier":
		if value != "rules" && value != "claude" {
			return fmt.Errorf("invalid orchestrator.classifier %q: want rules or claude", value)
		}
		cfg.Orchestrator.Classifier = value
	case "orchestrator.step_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for orchestrator.step_timeout: %w", err)
		}
		cfg.Orchestrator.StepTimeout = d
	case "notify.base_url":
		cfg.Notify.BaseURL = value
	case "notify.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for notify.timeout: %w", err)
		}
		cfg.Notify.Timeout = d
	case "notify.retry_max":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for notify.retry_max: %w", err)
		}
		cfg.Notify.RetryMax = n
	case "notify.verify_on_configure":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for notify.verify_on_configure: %w", err)
		}
		cfg.Notify.VerifyOnConfigure = b
	case "notify.owner_email":
		cfg.Notify.OwnerEmail = value
	case "server.addr":
		cfg.Server.Addr = value
	case "server.cors_origins":
		var origins []string
		for _, o := range strings.Split(value, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.CORSOrigins = origins
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
