// Package orchestrator turns one instruction into an OutcomeReport: it
// resolves a plan, runs the steps in dependency order against the
// capability servers and aggregates the results.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ShayCichocki/taskflow/internal/graph"
	"github.com/ShayCichocki/taskflow/internal/planner"
	"github.com/ShayCichocki/taskflow/internal/registry"
	"github.com/ShayCichocki/taskflow/internal/toolerr"
	"github.com/ShayCichocki/taskflow/pkg/models"
)

// Orchestrator handles instructions. It holds no per-instruction state and
// is safe for concurrent Handle calls.
type Orchestrator struct {
	reg        *registry.Registry
	classifier planner.Classifier
	dispatcher Dispatcher

	stepTimeout time.Duration
	metrics     *Metrics
	events      *EventEmitter
	logger      zerolog.Logger
	now         func() time.Time
}

// New creates an orchestrator.
func New(reg *registry.Registry, classifier planner.Classifier, dispatcher Dispatcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		reg:         reg,
		classifier:  classifier,
		dispatcher:  dispatcher,
		stepTimeout: DefaultStepTimeout,
		logger:      zerolog.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry returns the tool registry the orchestrator plans against.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.reg
}

// Handle resolves and executes one instruction. Failures are reported in
// the returned report, never as a Go error.
func (o *Orchestrator) Handle(ctx context.Context, instruction string) *models.OutcomeReport {
	start := o.now()
	report := &models.OutcomeReport{
		ID:          uuid.NewString(),
		Instruction: instruction,
		Caller:      CallerFrom(ctx),
		Steps:       []models.StepResult{},
		StartedAt:   start.UTC(),
	}
	logger := o.logger.With().Str("report_id", report.ID).Logger()
	if report.Caller != "" {
		logger = logger.With().Str("caller", report.Caller).Logger()
	}

	o.metrics.begin()
	defer func() {
		report.Duration = o.now().Sub(start)
		o.metrics.finish(report.Status)
		o.emit(OrchestratorEvent{Type: EventDone, ReportID: report.ID, Step: -1, Message: report.Summary})
		logger.Info().
			Str("intent", report.Intent).
			Str("status", string(report.Status)).
			Int("steps", len(report.Steps)).
			Dur("duration", report.Duration).
			Msg("instruction handled")
	}()

	plan, err := o.classifier.Classify(ctx, instruction)
	if err != nil {
		o.planningFailed(report, err)
		logger.Debug().Err(err).Msg("instruction not planned")
		return report
	}
	report.Intent = string(plan.Intent)

	g, order, err := plan.Schedule(o.reg)
	if err != nil {
		logger.Error().Err(err).Str("intent", report.Intent).Msg("classifier produced an invalid plan")
		o.planningFailed(report, err)
		return report
	}

	o.emit(OrchestratorEvent{Type: EventPlanned, ReportID: report.ID, Intent: report.Intent, Step: -1})
	report.Steps = o.execute(ctx, report.ID, plan, g, order, logger)
	report.Status = models.Aggregate(report.Steps)
	report.Summary = summarize(report.Steps)
	return report
}

func (o *Orchestrator) planningFailed(report *models.OutcomeReport, err error) {
	report.Status = models.OutcomeFailed
	report.Error = stepError(err)
	report.Summary = "Could not handle the instruction: " + report.Error.Message + "."
}

// execute runs the steps in graph order. A step whose binding source did
// not succeed is skipped; independent steps still run.
func (o *Orchestrator) execute(ctx context.Context, reportID string, plan planner.Plan, g *graph.DependencyGraph, order []int, logger zerolog.Logger) []models.StepResult {
	results := make([]models.StepResult, len(plan.Steps))

	for _, i := range order {
		id := planner.StepID(i)
		step := plan.Steps[i]
		res := &results[i]
		res.Index = i
		res.Tool = step.Tool

		dispatched := false
		if dep, blocked := g.Blocked(id); blocked {
			d := planner.StepIndex(dep)
			res.Status = models.StepSkipped
			res.Error = stepError(toolerr.New(toolerr.DependencyFailed,
				"needs the result of step %d (%s), which did not succeed", d+1, plan.Steps[d].Tool))
		} else {
			o.emit(OrchestratorEvent{Type: EventStepStarted, ReportID: reportID, Step: i, Tool: step.Tool})
			dispatched = o.runStep(ctx, res, step, results)
		}
		if !res.Succeeded() {
			g.MarkFailed(id)
		}
		o.metrics.observeStep(*res, dispatched)

		res.Summary = describe(*res)
		o.emit(OrchestratorEvent{Type: EventStepFinished, ReportID: reportID, Step: i, Tool: step.Tool, Status: res.Status, Message: res.Summary})

		ev := logger.Debug()
		if res.Error != nil {
			ev = logger.Info().Str("kind", res.Error.Kind).Str("error", res.Error.Message)
		}
		ev.Int("step", i).Str("tool", step.Tool).Str("status", string(res.Status)).Dur("duration", res.Duration).Msg("step finished")
	}
	return results
}

// runStep binds, validates and dispatches one step. It reports whether the
// step reached its capability server.
func (o *Orchestrator) runStep(ctx context.Context, res *models.StepResult, step planner.Step, results []models.StepResult) bool {
	args := make(map[string]any, len(step.Args)+len(step.Bindings))
	for k, v := range step.Args {
		args[k] = v
	}
	for _, b := range step.Bindings {
		v, err := b.Resolve(results[b.Step].Payload)
		if err != nil {
			o.fail(res, toolerr.Wrap(toolerr.ValidationError, err, "could not bind "+b.Param))
			return false
		}
		args[b.Param] = v
	}

	normalized, err := o.reg.Validate(step.Tool, args)
	if err != nil {
		res.Args = args
		o.fail(res, err)
		return false
	}
	res.Args = normalized

	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	start := o.now()
	payload, err := o.dispatcher.Call(stepCtx, step.Tool, normalized)
	res.Duration = o.now().Sub(start)

	if err == nil && stepCtx.Err() != nil {
		err = stepCtx.Err()
	}
	if err != nil {
		if errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = toolerr.New(toolerr.CapabilityUnavailable, "%s timed out after %s", step.Tool, o.stepTimeout)
		}
		o.fail(res, err)
		return true
	}

	res.Status = models.StepSucceeded
	res.Payload = payload
	return true
}

func (o *Orchestrator) fail(res *models.StepResult, err error) {
	res.Status = models.StepFailed
	res.Error = stepError(err)
}

func (o *Orchestrator) emit(e OrchestratorEvent) {
	if o.events == nil {
		return
	}
	e.Timestamp = o.now()
	o.events.Emit(e)
}

// stepError converts any error to its reported form.
func stepError(err error) *models.StepError {
	p := toolerr.ToPayload(err)
	return &models.StepError{Kind: string(p.Kind), Field: p.Field, Message: p.Message}
}
