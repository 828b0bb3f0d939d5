package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskflow/internal/logging"
	"github.com/ShayCichocki/taskflow/internal/orchestrator"
	"github.com/ShayCichocki/taskflow/pkg/models"
)

var (
	askJSON   bool
	askCaller string
)

var askCmd = &cobra.Command{
	Use:   "ask <instruction>",
	Short: "Run one instruction and print the outcome",
	Long: `Run a single natural-language instruction and print what happened.

The exit status is non-zero when no step succeeded.

Examples:
  taskflow ask "Show my open tasks"
  taskflow ask --json "Send me a reminder about task 3"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full report as JSON")
	askCmd.Flags().StringVar(&askCaller, "caller", "cli", "Caller identity recorded on the report")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := openApp(ctx, logging.FormatConsole)
	if err != nil {
		return err
	}
	defer a.Close()

	instruction := strings.Join(args, " ")
	report := a.Handle(orchestrator.WithCaller(ctx, askCaller), instruction)

	out := cmd.OutOrStdout()
	if askJSON {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		printReport(out, report)
	}

	if report.Status == models.OutcomeFailed {
		return fmt.Errorf("instruction failed")
	}
	return nil
}
