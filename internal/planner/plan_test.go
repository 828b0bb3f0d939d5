package planner

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/taskflow/internal/registry"
	"github.com/ShayCichocki/taskflow/internal/toolerr"
)

func TestBindingResolve(t *testing.T) {
	payload := map[string]any{
		"id":          json.Number("5"),
		"description": "finish report",
		"tasks": []any{
			map[string]any{"id": json.Number("1"), "description": "a", "status": "open"},
			map[string]any{"id": json.Number("2"), "description": "b", "status": "complete", "due_date": "2025-10-17"},
		},
	}

	tests := []struct {
		name    string
		binding Binding
		want    any
		wantErr bool
	}{
		{"field", Binding{Param: "to", Field: "description"}, "finish report", false},
		{"missing field", Binding{Param: "to", Field: "email"}, nil, true},
		{"template", Binding{Param: "body", Template: followUps["complete_task"].body}, `Task #5 "finish report" is complete.`, false},
		{"list template", Binding{Param: "body", Template: taskListBody}, "#1 a [open]\n#2 b (due 2025-10-17) [complete]\n", false},
		{"escaped literal", Binding{Param: "body", Template: literal("use {{braces}}")}, "use {{braces}}", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.binding.Resolve(payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	empty, err := Binding{Param: "body", Template: taskListBody}.Resolve(map[string]any{"tasks": []any{}})
	require.NoError(t, err)
	assert.Equal(t, "No tasks.\n", empty)
}

func TestPlanSchedule_Rejects(t *testing.T) {
	reg := registry.MustLoad()

	tests := []struct {
		name string
		plan Plan
		kind toolerr.Kind
	}{
		{
			name: "unknown tool",
			plan: Plan{Steps: []Step{{Tool: "launch_rocket"}}},
			kind: toolerr.UnknownTool,
		},
		{
			name: "forward binding",
			plan: Plan{Steps: []Step{
				{Tool: "send_email", Bindings: []Binding{{Param: "body", Step: 1, Template: "x"}}},
				{Tool: "add_task"},
			}},
			kind: toolerr.ValidationError,
		},
		{
			name: "self binding",
			plan: Plan{Steps: []Step{
				{Tool: "send_email", Bindings: []Binding{{Param: "body", Step: 0, Field: "message_id"}}},
			}},
			kind: toolerr.ValidationError,
		},
		{
			name: "unknown parameter",
			plan: Plan{Steps: []Step{
				{Tool: "add_task"},
				{Tool: "send_email", Bindings: []Binding{{Param: "cc", Step: 0, Field: "id"}}},
			}},
			kind: toolerr.ValidationError,
		},
		{
			name: "undeclared result field",
			plan: Plan{Steps: []Step{
				{Tool: "add_task"},
				{Tool: "send_email", Bindings: []Binding{{Param: "to", Step: 0, Field: "owner"}}},
			}},
			kind: toolerr.ValidationError,
		},
		{
			name: "bad template",
			plan: Plan{Steps: []Step{
				{Tool: "add_task"},
				{Tool: "send_email", Bindings: []Binding{{Param: "body", Step: 0, Template: "{{.id"}}},
			}},
			kind: toolerr.ValidationError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.plan.Schedule(reg)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestCompound(t *testing.T) {
	assert.Equal(t, Intent("task_create+message_send"), Compound(IntentTaskCreate, IntentMessageSend))
}

func TestIntentFor(t *testing.T) {
	assert.Equal(t, IntentTaskCreate, IntentFor("add_task"))
	assert.Equal(t, Compound(IntentTaskComplete, IntentMessageSend), IntentFor("complete_task", "send_email"))
	assert.Equal(t, IntentTaskQuery, IntentFor("tasks_by_date", "tasks_by_range"))
	assert.Equal(t, IntentNone, IntentFor())
}
