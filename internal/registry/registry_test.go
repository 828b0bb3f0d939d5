package registry

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/taskflow/internal/dates"
	"github.com/ShayCichocki/taskflow/internal/toolerr"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	clock := func() time.Time { return time.Date(2025, 10, 14, 12, 0, 0, 0, time.UTC) }
	r, err := Load(WithDateParser(dates.NewWithClock(clock)))
	require.NoError(t, err)
	return r
}

func TestLoad_DeclarationOrder(t *testing.T) {
	r := testRegistry(t)

	var names []string
	for _, d := range r.List() {
		names = append(names, d.Name)
	}

	assert.Equal(t, []string{
		"add_task", "list_tasks", "complete_task", "tasks_by_date", "tasks_by_range",
		"delete_task", "summarize_tasks",
		"configure_testmail", "send_email", "send_notification", "get_inbox_emails",
		"get_email_config", "generate_test_email",
	}, names)
}

func TestResolve(t *testing.T) {
	r := testRegistry(t)

	d, err := r.Resolve("complete_task")
	require.NoError(t, err)
	assert.Equal(t, ServerTasks, d.Server)
	assert.Equal(t, []string{"task_id"}, d.Required())
	assert.True(t, d.HasResultField("id"))

	_, err = r.Resolve("drop_database")
	assert.ErrorIs(t, err, toolerr.UnknownTool)
}

func TestList_ReturnsCopy(t *testing.T) {
	r := testRegistry(t)

	list := r.List()
	list[0].Name = "mutated"

	d, err := r.Resolve("add_task")
	require.NoError(t, err)
	assert.Equal(t, "add_task", d.Name)
	assert.Equal(t, "add_task", r.List()[0].Name)
}

func TestForServer(t *testing.T) {
	r := testRegistry(t)

	assert.Len(t, r.ForServer(ServerTasks), 7)
	assert.Len(t, r.ForServer(ServerNotify), 6)
	for _, d := range r.ForServer(ServerNotify) {
		assert.Equal(t, ServerNotify, d.Server)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"duplicate tool", "tools:\n  - {name: a, server: tasks}\n  - {name: a, server: tasks}\n"},
		{"unknown server", "tools:\n  - {name: a, server: billing}\n"},
		{"unknown type", "tools:\n  - name: a\n    server: tasks\n    params:\n      - {name: x, type: float}\n"},
		{"duplicate param", "tools:\n  - name: a\n    server: tasks\n    params:\n      - {name: x, type: string}\n      - {name: x, type: string}\n"},
		{"not yaml", "tools: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	r := testRegistry(t)

	tests := []struct {
		name      string
		tool      string
		args      map[string]any
		want      map[string]any
		wantKind  toolerr.Kind
		wantField string
	}{
		{
			name: "natural date normalized",
			tool: "add_task",
			args: map[string]any{"description": " finish report ", "due_date": "Friday"},
			want: map[string]any{"description": "finish report", "due_date": "2025-10-17"},
		},
		{
			name: "optional omitted",
			tool: "add_task",
			args: map[string]any{"description": "call bob"},
			want: map[string]any{"description": "call bob"},
		},
		{
			name:      "missing required",
			tool:      "add_task",
			args:      map[string]any{"due_date": "tomorrow"},
			wantKind:  toolerr.MissingParameter,
			wantField: "description",
		},
		{
			name:      "blank counts as missing",
			tool:      "send_email",
			args:      map[string]any{"to": "a@b.com", "subject": "  ", "body": "x"},
			wantKind:  toolerr.MissingParameter,
			wantField: "subject",
		},
		{
			name: "json float id",
			tool: "complete_task",
			args: map[string]any{"task_id": float64(5)},
			want: map[string]any{"task_id": int64(5)},
		},
		{
			name: "string id",
			tool: "complete_task",
			args: map[string]any{"task_id": "#7"},
			want: map[string]any{"task_id": int64(7)},
		},
		{
			name:      "non-positive id",
			tool:      "complete_task",
			args:      map[string]any{"task_id": 0},
			wantKind:  toolerr.ValidationError,
			wantField: "task_id",
		},
		{
			name:      "fractional id",
			tool:      "complete_task",
			args:      map[string]any{"task_id": 2.5},
			wantKind:  toolerr.ValidationError,
			wantField: "task_id",
		},
		{
			name:      "bad date",
			tool:      "tasks_by_date",
			args:      map[string]any{"date": "whenever you like"},
			wantKind:  toolerr.ValidationError,
			wantField: "date",
		},
		{
			name:      "bad email",
			tool:      "send_email",
			args:      map[string]any{"to": "not-an-address", "subject": "s", "body": "b"},
			wantKind:  toolerr.ValidationError,
			wantField: "to",
		},
		{
			name: "me recipient",
			tool: "send_email",
			args: map[string]any{"to": "Me", "subject": "s", "body": "b"},
			want: map[string]any{"to": "me", "subject": "s", "body": "b"},
		},
		{
			name:      "enum",
			tool:      "send_notification",
			args:      map[string]any{"to": "a@b.com", "title": "t", "message": "m", "type": "urgent"},
			wantKind:  toolerr.ValidationError,
			wantField: "type",
		},
		{
			name:      "unknown parameter",
			tool:      "list_tasks",
			args:      map[string]any{"owner": "bob"},
			wantKind:  toolerr.ValidationError,
			wantField: "owner",
		},
		{
			name:     "unknown tool",
			tool:     "nope",
			args:     nil,
			wantKind: toolerr.UnknownTool,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Validate(tt.tool, tt.args)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, toolerr.KindOf(err))
				assert.Equal(t, tt.wantField, toolerr.FieldOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate_IntegerRange(t *testing.T) {
	r := testRegistry(t)

	tests := []struct {
		name    string
		id      any
		want    int64
		wantMsg string
	}{
		{"json float beyond int64", 1e20, 0, "out of range"},
		{"float at 2^63", math.Pow(2, 63), 0, "out of range"},
		{"infinity", math.Inf(1), 0, "out of range"},
		{"numeric string beyond int64", "99999999999999999999", 0, "out of range"},
		{"json number beyond int64", json.Number("18446744073709551616"), 0, "out of range"},
		{"not a number", math.NaN(), 0, "expected an integer"},
		{"largest exact float", float64(1 << 53), 1 << 53, ""},
		{"max int64 string", "9223372036854775807", math.MaxInt64, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Validate("complete_task", map[string]any{"task_id": tt.id})
			if tt.wantMsg != "" {
				require.Error(t, err)
				assert.Equal(t, toolerr.ValidationError, toolerr.KindOf(err))
				assert.Equal(t, "task_id", toolerr.FieldOf(err))
				assert.ErrorContains(t, err, tt.wantMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got["task_id"])
		})
	}
}

func TestMCPTool(t *testing.T) {
	r := testRegistry(t)
	d, err := r.Resolve("send_notification")
	require.NoError(t, err)

	tool := d.MCPTool()

	assert.Equal(t, "send_notification", tool.Name)
	assert.Equal(t, "object", tool.InputSchema.Type)
	assert.Equal(t, []string{"to", "title", "message"}, tool.InputSchema.Required)
	typeSchema, ok := tool.InputSchema.Properties["type"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"info", "success", "warning", "error"}, typeSchema["enum"])

	summarize, err := r.Resolve("summarize_tasks")
	require.NoError(t, err)
	assert.NotNil(t, summarize.MCPTool().InputSchema.Required)
}
