package orchestrator

import (
	"time"

	"github.com/ShayCichocki/taskflow/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventPlanned indicates an instruction was resolved to a plan.
	EventPlanned EventType = "planned"
	// EventStepStarted indicates a step is being dispatched.
	EventStepStarted EventType = "step_started"
	// EventStepFinished indicates a step succeeded, failed or was skipped.
	EventStepFinished EventType = "step_finished"
	// EventDone indicates the report is complete.
	EventDone EventType = "done"
)

// OrchestratorEvent is emitted while an instruction is handled.
// The chat TUI uses these to show progress.
type OrchestratorEvent struct {
	Type EventType
	// ReportID identifies the instruction being handled.
	ReportID string
	// Intent is set on planned events.
	Intent string
	// Step is the index of the related step, or -1.
	Step int
	// Tool is the related step's tool.
	Tool string
	// Status is the step status on step_finished events.
	Status models.StepStatus
	// Message is the step or report summary.
	Message   string
	Timestamp time.Time
}
