package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/taskflow/pkg/models"
)

// ErrTaskNotFound is returned when a task id does not exist.
var ErrTaskNotFound = errors.New("task not found")

const taskColumns = `id, description, due_date, status, created_at, completed_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// CreateTask inserts a new open task and returns it with its assigned ID.
func (db *DB) CreateTask(description string, due *models.Date, now time.Time) (*models.Task, error) {
	var dueDate *string
	if due != nil && !due.IsZero() {
		s := due.String()
		dueDate = &s
	} else {
		due = nil
	}

	result, err := db.Exec(`
		INSERT INTO tasks (description, due_date, status, created_at)
		VALUES (?, ?, ?, ?)
	`, description, dueDate, string(models.TaskStatusOpen), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get task id: %w", err)
	}

	created := now.UTC().Truncate(time.Second)
	return &models.Task{
		ID:          id,
		Description: description,
		DueDate:     due,
		Status:      models.TaskStatusOpen,
		CreatedAt:   created,
	}, nil
}

// GetTask retrieves a task by ID. It returns nil, nil if the task does not exist.
func (db *DB) GetTask(id int64) (*models.Task, error) {
	row := db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks lists tasks in creation order, optionally filtered by status.
func (db *DB) ListTasks(filter models.TaskFilter) ([]models.Task, error) {
	var rows *sql.Rows
	var err error

	if filter.Status != "" {
		rows, err = db.Query(`SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY id`, string(filter.Status))
	} else {
		rows, err = db.Query(`SELECT ` + taskColumns + ` FROM tasks ORDER BY id`)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// ListTasksDueBetween lists tasks whose due date falls in [start, end].
func (db *DB) ListTasksDueBetween(start, end models.Date) ([]models.Task, error) {
	rows, err := db.Query(`
		SELECT `+taskColumns+` FROM tasks
		WHERE due_date IS NOT NULL AND due_date >= ? AND due_date <= ?
		ORDER BY due_date, id
	`, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("list tasks due between: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// CompleteTask marks a task complete. The status read and the write happen in
// one transaction. Completing a task that is already complete leaves it
// unchanged; changed reports whether this call performed the transition.
func (db *DB) CompleteTask(id int64, now time.Time) (*models.Task, bool, error) {
	var task *models.Task
	var changed bool

	err := db.Transaction(func(tx *sql.Tx) error {
		t, err := scanTask(tx.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
		if err == sql.ErrNoRows {
			return ErrTaskNotFound
		}
		if err != nil {
			return fmt.Errorf("read task: %w", err)
		}

		if !t.IsComplete() {
			completedAt := formatTime(now)
			if _, err := tx.Exec(`
				UPDATE tasks SET status = ?, completed_at = ? WHERE id = ?
			`, string(models.TaskStatusComplete), completedAt, id); err != nil {
				return fmt.Errorf("update task: %w", err)
			}
			at, _ := parseTime(completedAt)
			t.Status = models.TaskStatusComplete
			t.CompletedAt = &at
			changed = true
		}

		task = t
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("complete task %d: %w", id, err)
	}
	return task, changed, nil
}

// DeleteTask removes a task and returns what was removed.
func (db *DB) DeleteTask(id int64) (*models.Task, error) {
	var task *models.Task

	err := db.Transaction(func(tx *sql.Tx) error {
		t, err := scanTask(tx.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
		if err == sql.ErrNoRows {
			return ErrTaskNotFound
		}
		if err != nil {
			return fmt.Errorf("read task: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM tasks WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete task %d: %w", id, err)
	}
	return task, nil
}

// scanTask scans a single task row.
func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var status, createdAt string
	var dueDate, completedAt sql.NullString

	if err := row.Scan(&t.ID, &t.Description, &dueDate, &status, &createdAt, &completedAt); err != nil {
		return nil, err
	}

	t.Status = models.TaskStatus(status)
	if dueDate.Valid && dueDate.String != "" {
		if d, err := models.ParseDate(dueDate.String); err == nil {
			t.DueDate = &d
		}
	}
	t.CreatedAt, _ = parseTime(createdAt)
	t.CompletedAt = parseNullableTime(completedAt)
	return &t, nil
}

// scanTasks scans task rows into a slice.
func scanTasks(rows *sql.Rows) ([]models.Task, error) {
	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}
