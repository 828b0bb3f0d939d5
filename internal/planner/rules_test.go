package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/taskflow/internal/dates"
	"github.com/ShayCichocki/taskflow/internal/registry"
	"github.com/ShayCichocki/taskflow/internal/toolerr"
)

func newTestClassifier() *RuleClassifier {
	now := time.Date(2025, 10, 14, 9, 30, 0, 0, time.UTC)
	return NewRuleClassifier(dates.NewWithClock(func() time.Time { return now }))
}

func TestRuleClassifier_SingleIntents(t *testing.T) {
	tests := []struct {
		instruction string
		intent      Intent
		tool        string
		args        map[string]any
	}{
		{"Add a task to finish report by Friday", IntentTaskCreate, "add_task",
			map[string]any{"description": "finish report", "due_date": "Friday"}},
		{"create task: water plants", IntentTaskCreate, "add_task",
			map[string]any{"description": "water plants"}},
		{"Add a task to work on report", IntentTaskCreate, "add_task",
			map[string]any{"description": "work on report"}},
		{"add a task", IntentTaskCreate, "add_task", map[string]any{}},
		{"Complete task 5", IntentTaskComplete, "complete_task", map[string]any{"task_id": "5"}},
		{"mark task #7 as done.", IntentTaskComplete, "complete_task", map[string]any{"task_id": "7"}},
		{"task 2 is done", IntentTaskComplete, "complete_task", map[string]any{"task_id": "2"}},
		{"delete task 4", IntentTaskDelete, "delete_task", map[string]any{"task_id": "4"}},
		{"Show my open tasks", IntentTaskList, "list_tasks", map[string]any{"status": "open"}},
		{"list all tasks", IntentTaskList, "list_tasks", map[string]any{}},
		{"what are my completed tasks?", IntentTaskList, "list_tasks", map[string]any{"status": "complete"}},
		{"List tasks due on Friday", IntentTaskQuery, "tasks_by_date", map[string]any{"date": "Friday"}},
		{"What's due tomorrow?", IntentTaskQuery, "tasks_by_date", map[string]any{"date": "tomorrow"}},
		{"show tasks between 2025-10-01 and 2025-10-31", IntentTaskQuery, "tasks_by_range",
			map[string]any{"start_date": "2025-10-01", "end_date": "2025-10-31"}},
		{"summarize my tasks", IntentTaskSummary, "summarize_tasks", map[string]any{}},
		{"Configure email with api key abc123 and namespace ns1", IntentNotifyConfigure, "configure_testmail",
			map[string]any{"api_key": "abc123", "namespace": "ns1"}},
		{"Send me a reminder about task 3", IntentMessageSend, "send_email",
			map[string]any{"to": "me", "subject": "Reminder: task 3", "body": "Reminder: task 3"}},
		{"email bob@example.com saying lunch is at noon", IntentMessageSend, "send_email",
			map[string]any{"to": "bob@example.com", "subject": "Lunch is at noon", "body": "lunch is at noon"}},
		{"notify me that the build passed", IntentNotification, "send_notification",
			map[string]any{"to": "me", "title": "The build passed", "message": "the build passed"}},
		{"send a warning notification to ops@example.com about disk usage", IntentNotification, "send_notification",
			map[string]any{"to": "ops@example.com", "title": "Disk usage", "message": "disk usage", "type": "warning"}},
		{"check my inbox tag alerts", IntentInbox, "get_inbox_emails", map[string]any{"tag": "alerts"}},
		{"show email settings", IntentEmailConfig, "get_email_config", map[string]any{}},
		{"generate a test email address for demo", IntentTestAddress, "generate_test_email", map[string]any{"tag": "demo"}},
	}

	c := newTestClassifier()
	for _, tt := range tests {
		t.Run(tt.instruction, func(t *testing.T) {
			plan, err := c.Classify(context.Background(), tt.instruction)
			require.NoError(t, err)
			assert.Equal(t, tt.intent, plan.Intent)
			require.Len(t, plan.Steps, 1)
			assert.Equal(t, tt.tool, plan.Steps[0].Tool)
			assert.Equal(t, tt.args, plan.Steps[0].Args)
		})
	}
}

func TestRuleClassifier_CompleteAndEmail(t *testing.T) {
	plan, err := newTestClassifier().Classify(context.Background(), "Complete task 5 and email team@company.com")
	require.NoError(t, err)

	assert.Equal(t, Compound(IntentTaskComplete, IntentMessageSend), plan.Intent)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "complete_task", plan.Steps[0].Tool)
	assert.Equal(t, "send_email", plan.Steps[1].Tool)
	assert.Equal(t, "team@company.com", plan.Steps[1].Args["to"])
	assert.Equal(t, []int{0}, plan.Steps[1].DependsOn())

	_, order, err := plan.Schedule(registry.MustLoad())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, order)
}

func TestRuleClassifier_AddAndNotify(t *testing.T) {
	plan, err := newTestClassifier().Classify(context.Background(), "Add a task to buy milk by tomorrow and notify me")
	require.NoError(t, err)

	require.Len(t, plan.Steps, 2)
	assert.Equal(t, map[string]any{"description": "buy milk", "due_date": "tomorrow"}, plan.Steps[0].Args)
	send := plan.Steps[1]
	assert.Equal(t, "send_notification", send.Tool)
	assert.Equal(t, "me", send.Args["to"])
	assert.Equal(t, "info", send.Args["type"])

	msg, err := send.Bindings[1].Resolve(map[string]any{"id": 9, "description": "buy milk", "due_date": "2025-10-15"})
	require.NoError(t, err)
	assert.Equal(t, `Task #9 "buy milk" was created, due 2025-10-15.`, msg)
}

func TestRuleClassifier_SendTestEmail(t *testing.T) {
	plan, err := newTestClassifier().Classify(context.Background(), "send a test email")
	require.NoError(t, err)

	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "generate_test_email", plan.Steps[0].Tool)
	assert.Equal(t, []Binding{{Param: "to", Step: 0, Field: "email"}}, plan.Steps[1].Bindings)

	_, _, err = plan.Schedule(registry.MustLoad())
	require.NoError(t, err)
}

func TestRuleClassifier_Deterministic(t *testing.T) {
	c := newTestClassifier()
	first, err := c.Classify(context.Background(), "Complete task 5 and email team@company.com")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := c.Classify(context.Background(), "Complete task 5 and email team@company.com")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRuleClassifier_NoIntent(t *testing.T) {
	c := newTestClassifier()
	for _, text := range []string{"", "   ", "hello there", "what is the meaning of life"} {
		_, err := c.Classify(context.Background(), text)
		assert.ErrorIs(t, err, toolerr.ValidationError, text)
	}
}
