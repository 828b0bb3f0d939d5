// Package taskserver is the task capability server: a service over the task
// store and the MCP tools that expose it.
package taskserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ShayCichocki/taskflow/internal/dates"
	"github.com/ShayCichocki/taskflow/internal/state"
	"github.com/ShayCichocki/taskflow/internal/toolerr"
	"github.com/ShayCichocki/taskflow/pkg/models"
)

// Service implements the task operations. It is safe for concurrent use;
// the store serializes writers.
type Service struct {
	store  state.TaskStore
	dates  *dates.Parser
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock used for timestamps and relative dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.dates = dates.NewWithClock(now)
	}
}

// NewService creates a task service over store.
func NewService(store state.TaskStore, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		now:    time.Now,
		dates:  dates.New(),
		logger: logger.With().Str("component", "taskserver").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create adds an open task. dueDate may be empty, ISO, or a phrase such as "Friday".
func (s *Service) Create(ctx context.Context, description, dueDate string) (*models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, toolerr.Timeout(err)
	}

	description = strings.TrimSpace(description)
	if description == "" {
		return nil, toolerr.Missing("description")
	}

	var due *models.Date
	if strings.TrimSpace(dueDate) != "" {
		d, err := s.dates.Parse(dueDate)
		if err != nil {
			return nil, toolerr.Invalid("due_date", "could not understand date %q", dueDate)
		}
		due = &d
	}

	task, err := s.store.CreateTask(description, due, s.now())
	if err != nil {
		return nil, toolerr.Wrap(toolerr.CapabilityUnavailable, err, "task store unavailable")
	}

	s.logger.Info().Int64("task_id", task.ID).Str("due", dueString(task.DueDate)).Msg("task created")
	return task, nil
}

// List returns tasks matching filter in creation order.
func (s *Service) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, toolerr.Timeout(err)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, toolerr.Invalid("status", "unknown status %q", filter.Status)
	}

	tasks, err := s.store.ListTasks(filter)
	if err != nil {
		return nil, toolerr.Wrap(toolerr.CapabilityUnavailable, err, "task store unavailable")
	}
	return tasks, nil
}

// Complete marks a task complete. Completing an already complete task is
// not an error: the current state is returned unchanged with changed=false.
func (s *Service) Complete(ctx context.Context, id int64) (*models.Task, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, toolerr.Timeout(err)
	}
	if id <= 0 {
		return nil, false, toolerr.Invalid("task_id", "must be a positive integer")
	}

	task, changed, err := s.store.CompleteTask(id, s.now())
	if errors.Is(err, state.ErrTaskNotFound) {
		return nil, false, &toolerr.Error{Kind: toolerr.NotFound, Field: "task_id", Message: fmt.Sprintf("task %d not found", id)}
	}
	if err != nil {
		return nil, false, toolerr.Wrap(toolerr.CapabilityUnavailable, err, "task store unavailable")
	}

	if changed {
		s.logger.Info().Int64("task_id", id).Msg("task completed")
	} else {
		s.logger.Debug().Int64("task_id", id).Msg("task already complete")
	}
	return task, changed, nil
}

// QueryByDate returns tasks due within [start, end]. A reversed range is swapped.
func (s *Service) QueryByDate(ctx context.Context, start, end models.Date) ([]models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, toolerr.Timeout(err)
	}
	if end.Before(start) {
		start, end = end, start
	}

	tasks, err := s.store.ListTasksDueBetween(start, end)
	if err != nil {
		return nil, toolerr.Wrap(toolerr.CapabilityUnavailable, err, "task store unavailable")
	}
	return tasks, nil
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, id int64) (*models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, toolerr.Timeout(err)
	}

	task, err := s.store.DeleteTask(id)
	if errors.Is(err, state.ErrTaskNotFound) {
		return nil, &toolerr.Error{Kind: toolerr.NotFound, Field: "task_id", Message: fmt.Sprintf("task %d not found", id)}
	}
	if err != nil {
		return nil, toolerr.Wrap(toolerr.CapabilityUnavailable, err, "task store unavailable")
	}

	s.logger.Info().Int64("task_id", id).Msg("task deleted")
	return task, nil
}

// Summarize groups tasks into pending, completed and overdue. Overdue tasks
// are the pending ones whose due date is before today.
func (s *Service) Summarize(ctx context.Context) (models.TaskSummary, error) {
	tasks, err := s.List(ctx, models.TaskFilter{})
	if err != nil {
		return models.TaskSummary{}, err
	}

	today := s.dates.Today()
	summary := models.TaskSummary{
		Pending:   []models.Task{},
		Completed: []models.Task{},
		Overdue:   []models.Task{},
		Total:     len(tasks),
	}
	for _, t := range tasks {
		if t.IsComplete() {
			summary.Completed = append(summary.Completed, t)
			continue
		}
		summary.Pending = append(summary.Pending, t)
		if t.Overdue(today) {
			summary.Overdue = append(summary.Overdue, t)
		}
	}

	summary.Summary = fmt.Sprintf("%d tasks: %d pending, %d completed, %d overdue",
		summary.Total, len(summary.Pending), len(summary.Completed), len(summary.Overdue))
	return summary, nil
}

// ParseDate resolves a date phrase relative to the service clock.
func (s *Service) ParseDate(text string) (models.Date, error) {
	return s.dates.Parse(text)
}

func dueString(d *models.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}
