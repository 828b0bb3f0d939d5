package api

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/taskflow/internal/planner"
	"github.com/ShayCichocki/taskflow/internal/registry"
	"github.com/ShayCichocki/taskflow/internal/toolerr"
)

// fakeMessages replies with a fixed message.
type fakeMessages struct {
	reply  string
	err    error
	params anthropic.MessageNewParams
}

func (f *fakeMessages) New(_ context.Context, body anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.params = body
	if f.err != nil {
		return nil, f.err
	}
	var msg anthropic.Message
	if err := json.Unmarshal([]byte(f.reply), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func reply(content string) string {
	return `{"id":"msg_1","type":"message","role":"assistant","model":"claude-haiku-4-5","content":` + content +
		`,"stop_reason":"tool_use","usage":{"input_tokens":12,"output_tokens":7}}`
}

func newTestClassifier(f *fakeMessages) *ClaudeClassifier {
	return NewClaudeClassifier(NewClientWith(f, ""), registry.MustLoad())
}

func TestClaudeClassifier_SingleTool(t *testing.T) {
	f := &fakeMessages{reply: reply(`[
		{"type":"text","text":"Adding it."},
		{"type":"tool_use","id":"tu_1","name":"add_task","input":{"description":"finish report","due_date":"Friday"}}
	]`)}
	c := newTestClassifier(f)

	plan, err := c.Classify(context.Background(), "Add a task to finish report by Friday")
	require.NoError(t, err)

	assert.Equal(t, planner.IntentTaskCreate, plan.Intent)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "add_task", plan.Steps[0].Tool)
	assert.Equal(t, map[string]any{"description": "finish report", "due_date": "Friday"}, plan.Steps[0].Args)

	assert.Len(t, f.params.Tools, len(registry.MustLoad().List()))
	assert.Equal(t, 1, c.client.Tracker().Calls())
}

func TestClaudeClassifier_Bindings(t *testing.T) {
	f := &fakeMessages{reply: reply(`[
		{"type":"tool_use","id":"tu_1","name":"complete_task","input":{"task_id":5}},
		{"type":"tool_use","id":"tu_2","name":"send_email","input":{
			"to":"team@company.com",
			"subject":"Task $1.id done",
			"body":"Task $1.id ($1.description) is complete."
		}}
	]`)}

	plan, err := newTestClassifier(f).Classify(context.Background(), "Complete task 5 and email team@company.com")
	require.NoError(t, err)

	assert.Equal(t, planner.Compound(planner.IntentTaskComplete, planner.IntentMessageSend), plan.Intent)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, json.Number("5"), plan.Steps[0].Args["task_id"])

	send := plan.Steps[1]
	assert.Equal(t, map[string]any{"to": "team@company.com"}, send.Args)
	assert.Equal(t, []planner.Binding{
		{Param: "body", Step: 0, Template: "Task {{.id}} ({{.description}}) is complete."},
		{Param: "subject", Step: 0, Template: "Task {{.id}} done"},
	}, send.Bindings)

	_, _, err = plan.Schedule(registry.MustLoad())
	require.NoError(t, err)
}

func TestToBinding(t *testing.T) {
	b, err := toBinding(1, "to", "$1.email")
	require.NoError(t, err)
	assert.Equal(t, planner.Binding{Param: "to", Step: 0, Field: "email"}, b)

	_, err = toBinding(1, "body", "$2.id")
	assert.ErrorIs(t, err, toolerr.ValidationError)

	_, err = toBinding(2, "body", "$1.id and $2.id")
	assert.ErrorIs(t, err, toolerr.ValidationError)
}

func TestClaudeClassifier_NoTool(t *testing.T) {
	f := &fakeMessages{reply: reply(`[{"type":"text","text":"I can only help with tasks and email."}]`)}

	_, err := newTestClassifier(f).Classify(context.Background(), "what is the weather")
	assert.ErrorIs(t, err, toolerr.ValidationError)
}

func TestClaudeClassifier_APIError(t *testing.T) {
	f := &fakeMessages{err: errors.New("overloaded")}

	_, err := newTestClassifier(f).Classify(context.Background(), "list tasks")
	assert.ErrorIs(t, err, toolerr.CapabilityUnavailable)
}
