package state

import (
	"io"
	"time"

	"github.com/ShayCichocki/taskflow/pkg/models"
)

// TaskStore handles task persistence.
type TaskStore interface {
	CreateTask(description string, due *models.Date, now time.Time) (*models.Task, error)
	GetTask(id int64) (*models.Task, error)
	ListTasks(filter models.TaskFilter) ([]models.Task, error)
	ListTasksDueBetween(start, end models.Date) ([]models.Task, error)
	CompleteTask(id int64, now time.Time) (*models.Task, bool, error)
	DeleteTask(id int64) (*models.Task, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore is the full storage surface used by the task server.
type StateStore interface {
	io.Closer
	Migrator
	TaskStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore = (*DB)(nil)
	_ Migrator   = (*DB)(nil)
	_ TaskStore  = (*DB)(nil)
)
