package taskserver

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/taskflow/internal/state"
	"github.com/ShayCichocki/taskflow/internal/toolerr"
	"github.com/ShayCichocki/taskflow/pkg/models"
)

// testNow is Tuesday 2025-10-14.
var testNow = time.Date(2025, 10, 14, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	return NewService(db, zerolog.Nop(), WithClock(func() time.Time { return testNow }))
}

func TestCreate_NaturalDueDate(t *testing.T) {
	svc := newTestService(t)

	task, err := svc.Create(context.Background(), "finish report", "Friday")
	require.NoError(t, err)

	require.NotNil(t, task.DueDate)
	assert.Equal(t, "2025-10-17", task.DueDate.String())
	assert.Equal(t, time.Friday, task.DueDate.Weekday())
	assert.Equal(t, models.TaskStatusOpen, task.Status)
}

func TestCreate_Errors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "  ", "")
	assert.ErrorIs(t, err, toolerr.MissingParameter)

	_, err = svc.Create(ctx, "call bob", "sometime-ish maybe")
	assert.ErrorIs(t, err, toolerr.ValidationError)
	assert.Equal(t, "due_date", toolerr.FieldOf(err))
}

func TestCreateListQueryRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "finish report", "Friday")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "undated chore", "")
	require.NoError(t, err)

	all, err := svc.List(ctx, models.TaskFilter{})
	require.NoError(t, err)

	matches := 0
	for _, task := range all {
		if task.ID == created.ID {
			matches++
			assert.Equal(t, "finish report", task.Description)
			assert.Equal(t, *created.DueDate, *task.DueDate)
		}
	}
	assert.Equal(t, 1, matches)

	friday := *created.DueDate
	onFriday, err := svc.QueryByDate(ctx, friday, friday)
	require.NoError(t, err)
	require.Len(t, onFriday, 1)
	assert.Equal(t, created.ID, onFriday[0].ID)
}

func TestComplete_TwiceSucceeds(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "ship it", "")
	require.NoError(t, err)

	first, changed, err := svc.Complete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.TaskStatusComplete, first.Status)

	second, changed, err := svc.Complete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.TaskStatusComplete, second.Status)
	assert.Equal(t, first.CompletedAt, second.CompletedAt)
}

func TestComplete_NotFound(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.Complete(context.Background(), 5)
	assert.ErrorIs(t, err, toolerr.NotFound)
	assert.Equal(t, "task_id", toolerr.FieldOf(err))
}

func TestQueryByDate_ReversedRange(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "a", "2025-10-16")
	require.NoError(t, err)

	start, _ := models.ParseDate("2025-10-15")
	end, _ := models.ParseDate("2025-10-17")

	tasks, err := svc.QueryByDate(ctx, end, start)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestSummarize(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "late", "2025-10-10")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "upcoming", "2025-10-20")
	require.NoError(t, err)
	done, err := svc.Create(ctx, "done", "2025-10-01")
	require.NoError(t, err)
	_, _, err = svc.Complete(ctx, done.ID)
	require.NoError(t, err)

	summary, err := svc.Summarize(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Len(t, summary.Pending, 2)
	assert.Len(t, summary.Completed, 1)
	require.Len(t, summary.Overdue, 1)
	assert.Equal(t, "late", summary.Overdue[0].Description)
	assert.Equal(t, "3 tasks: 2 pending, 1 completed, 1 overdue", summary.Summary)
}

func TestDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "temp", "")
	require.NoError(t, err)

	_, err = svc.Delete(ctx, created.ID)
	require.NoError(t, err)

	_, err = svc.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, toolerr.NotFound)
}

func TestCanceledContext(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Create(ctx, "never", "")
	assert.ErrorIs(t, err, toolerr.CapabilityUnavailable)
}
