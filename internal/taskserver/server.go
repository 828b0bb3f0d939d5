package taskserver

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/ShayCichocki/taskflow/internal/capability"
	"github.com/ShayCichocki/taskflow/internal/registry"
	"github.com/ShayCichocki/taskflow/internal/toolerr"
	"github.com/ShayCichocki/taskflow/pkg/models"
)

// taskResult is the wire form of a single task.
type taskResult struct {
	ID              int64      `json:"id"`
	Description     string     `json:"description"`
	DueDate         string     `json:"due_date,omitempty"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	AlreadyComplete *bool      `json:"already_complete,omitempty"`
}

func newTaskResult(t *models.Task) taskResult {
	return taskResult{
		ID:          t.ID,
		Description: t.Description,
		DueDate:     dueString(t.DueDate),
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
	}
}

type taskList struct {
	Tasks []models.Task `json:"tasks"`
	Count int           `json:"count"`
}

// NewMCPServer builds the task capability server.
func NewMCPServer(svc *Service, reg *registry.Registry, logger zerolog.Logger) (*server.MCPServer, error) {
	s := capability.NewServer(registry.ServerTasks)

	handlers := map[string]capability.HandlerFunc{
		"add_task":        svc.handleAdd,
		"list_tasks":      svc.handleList,
		"complete_task":   svc.handleComplete,
		"tasks_by_date":   svc.handleByDate,
		"tasks_by_range":  svc.handleByRange,
		"delete_task":     svc.handleDelete,
		"summarize_tasks": svc.handleSummarize,
	}
	if err := capability.Register(s, reg, registry.ServerTasks, handlers, logger); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) handleAdd(ctx context.Context, args map[string]any) (any, error) {
	description, _ := args["description"].(string)
	due, _ := args["due_date"].(string)

	task, err := s.Create(ctx, description, due)
	if err != nil {
		return nil, err
	}
	return newTaskResult(task), nil
}

func (s *Service) handleList(ctx context.Context, args map[string]any) (any, error) {
	status, _ := args["status"].(string)

	tasks, err := s.List(ctx, models.TaskFilter{Status: models.TaskStatus(status)})
	if err != nil {
		return nil, err
	}
	return taskList{Tasks: tasks, Count: len(tasks)}, nil
}

func (s *Service) handleComplete(ctx context.Context, args map[string]any) (any, error) {
	id, _ := args["task_id"].(int64)

	task, changed, err := s.Complete(ctx, id)
	if err != nil {
		return nil, err
	}
	res := newTaskResult(task)
	already := !changed
	res.AlreadyComplete = &already
	return res, nil
}

func (s *Service) handleByDate(ctx context.Context, args map[string]any) (any, error) {
	day, err := s.dateArg(args, "date")
	if err != nil {
		return nil, err
	}

	tasks, err := s.QueryByDate(ctx, day, day)
	if err != nil {
		return nil, err
	}
	return struct {
		Date models.Date `json:"date"`
		taskList
	}{day, taskList{Tasks: tasks, Count: len(tasks)}}, nil
}

func (s *Service) handleByRange(ctx context.Context, args map[string]any) (any, error) {
	start, err := s.dateArg(args, "start_date")
	if err != nil {
		return nil, err
	}
	end, err := s.dateArg(args, "end_date")
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		start, end = end, start
	}

	tasks, err := s.QueryByDate(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return struct {
		StartDate models.Date `json:"start_date"`
		EndDate   models.Date `json:"end_date"`
		taskList
	}{start, end, taskList{Tasks: tasks, Count: len(tasks)}}, nil
}

func (s *Service) handleDelete(ctx context.Context, args map[string]any) (any, error) {
	id, _ := args["task_id"].(int64)

	task, err := s.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	return struct {
		ID          int64  `json:"id"`
		Description string `json:"description"`
	}{task.ID, task.Description}, nil
}

func (s *Service) handleSummarize(ctx context.Context, _ map[string]any) (any, error) {
	return s.Summarize(ctx)
}

func (s *Service) dateArg(args map[string]any, name string) (models.Date, error) {
	text, _ := args[name].(string)
	if text == "" {
		return models.Date{}, toolerr.Missing(name)
	}
	d, err := s.ParseDate(text)
	if err != nil {
		return models.Date{}, toolerr.Invalid(name, "could not understand date %q", text)
	}
	return d, nil
}
