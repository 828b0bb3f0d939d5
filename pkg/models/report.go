package models

import "time"

// OutcomeStatus is the overall result of one instruction.
type OutcomeStatus string

const (
	// OutcomeOK means every step succeeded.
	OutcomeOK OutcomeStatus = "ok"
	// OutcomePartial means some steps succeeded and some did not.
	OutcomePartial OutcomeStatus = "partial"
	// OutcomeFailed means no step succeeded.
	OutcomeFailed OutcomeStatus = "failed"
)

// StepStatus is the result of one plan step.
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// StepError describes why a step or the planning phase failed.
type StepError struct {
	Kind    string `json:"kind"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// StepResult is the recorded outcome of one step.
type StepResult struct {
	Index    int            `json:"index"`
	Tool     string         `json:"tool"`
	Status   StepStatus     `json:"status"`
	Args     map[string]any `json:"args,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`
	Error    *StepError     `json:"error,omitempty"`
	Summary  string         `json:"summary"`
	Duration time.Duration  `json:"duration_ns"`
}

// Succeeded returns true if the step produced a payload.
func (r StepResult) Succeeded() bool {
	return r.Status == StepSucceeded
}

// OutcomeReport is the aggregated result of one instruction.
type OutcomeReport struct {
	ID          string        `json:"id"`
	Instruction string        `json:"instruction"`
	Caller      string        `json:"caller,omitempty"`
	Intent      string        `json:"intent,omitempty"`
	Status      OutcomeStatus `json:"status"`
	Steps       []StepResult  `json:"steps"`
	// Error is set when the instruction could not be planned at all.
	Error     *StepError    `json:"error,omitempty"`
	Summary   string        `json:"summary"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// Aggregate derives the overall status from step outcomes. A report with
// no steps has failed.
func Aggregate(steps []StepResult) OutcomeStatus {
	succeeded := 0
	for _, s := range steps {
		if s.Succeeded() {
			succeeded++
		}
	}
	switch {
	case len(steps) == 0 || succeeded == 0:
		return OutcomeFailed
	case succeeded == len(steps):
		return OutcomeOK
	default:
		return OutcomePartial
	}
}
