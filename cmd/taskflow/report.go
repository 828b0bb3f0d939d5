package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/ShayCichocki/taskflow/pkg/models"
)

var statusColors = map[models.OutcomeStatus]color.Attribute{
	models.OutcomeOK:      color.FgGreen,
	models.OutcomePartial: color.FgYellow,
	models.OutcomeFailed:  color.FgRed,
}

// printReport writes a human-readable report.
func printReport(w io.Writer, r *models.OutcomeReport) {
	for _, s := range r.Steps {
		printStep(w, s)
	}
	if r.Error != nil {
		fmt.Fprintf(w, "%s %s\n", color.RedString("✗"), r.Summary)
	}

	status := color.New(statusColors[r.Status], color.Bold).Sprint(string(r.Status))
	fmt.Fprintf(w, "\n%s  %s\n", status, color.HiBlackString(r.Duration.Round(time.Millisecond).String()))
}

func printStep(w io.Writer, s models.StepResult) {
	switch s.Status {
	case models.StepSucceeded:
		fmt.Fprintf(w, "%s %s\n", color.GreenString("✓"), s.Summary)
	case models.StepSkipped:
		fmt.Fprintf(w, "%s %s\n", color.YellowString("↷"), s.Summary)
	default:
		fmt.Fprintf(w, "%s %s\n", color.RedString("✗"), s.Summary)
	}
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
