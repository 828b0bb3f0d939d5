package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskflow/internal/app"
	"github.com/ShayCichocki/taskflow/internal/logging"
	"github.com/ShayCichocki/taskflow/internal/orchestrator"
	"github.com/ShayCichocki/taskflow/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat",
	Long: `Open a full-screen chat. Each line you type is run as an instruction and
the steps are shown as they execute.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Log lines would corrupt the alt screen.
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: logging.FormatJSON, Out: io.Discard})
	if err != nil {
		return err
	}

	events := orchestrator.NewEventEmitter(64, logger)
	defer events.Close()

	a, err := app.New(ctx, cfg, logger, app.WithEvents(events))
	if err != nil {
		return err
	}
	defer a.Close()

	program, model := tui.NewChatProgram(orchestrator.WithCaller(ctx, "chat"), a, events.Events())
	model.SetSubtitle(fmt.Sprintf("%s classifier", cfg.Orchestrator.Classifier))

	_, err = program.Run()
	// An instruction may still be running after quit. Stop it and let it
	// return before the app and the emitter are closed.
	cancel()
	model.Wait()
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	return nil
}
