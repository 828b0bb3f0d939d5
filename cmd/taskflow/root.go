package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskflow/internal/app"
	"github.com/ShayCichocki/taskflow/internal/config"
	"github.com/ShayCichocki/taskflow/internal/logging"
)

var (
	flagLogLevel   string
	flagClassifier string
)

var rootCmd = &cobra.Command{
	Use:   "taskflow",
	Short: "Natural-language task and email assistant",
	Long: `taskflow turns plain-English instructions into calls against a task
service and an email notification service, runs them in order, and reports
what happened.

With no arguments, launches the interactive chat.

Examples:
  taskflow ask "Add a task to finish report by Friday"
  taskflow ask "Complete task 3 and email team@company.com"
  taskflow serve --addr :8000`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagClassifier, "classifier", "", "Override orchestrator.classifier (rules or claude)")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the layered configuration and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagClassifier != "" {
		cfg.Orchestrator.Classifier = flagClassifier
	}
	return cfg, nil
}

// openApp loads config, builds the logger and assembles the system.
func openApp(ctx context.Context, format logging.Format, opts ...app.Option) (*app.App, zerolog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if format == "" {
		format = logging.Format(cfg.Log.Format)
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: format})
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	a, err := app.New(ctx, cfg, logger, opts...)
	if err != nil {
		return nil, logger, err
	}
	return a, logger, nil
}
