// Package planner turns instructions into Plans: ordered tool invocations
// whose later steps may consume the output of earlier ones.
package planner

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/ShayCichocki/taskflow/internal/graph"
	"github.com/ShayCichocki/taskflow/internal/registry"
	"github.com/ShayCichocki/taskflow/internal/toolerr"
)

// Intent labels the classified meaning of an instruction.
type Intent string

const (
	IntentNone            Intent = ""
	IntentTaskCreate      Intent = "task_create"
	IntentTaskList        Intent = "task_list"
	IntentTaskComplete    Intent = "task_complete"
	IntentTaskQuery       Intent = "task_query"
	IntentTaskDelete      Intent = "task_delete"
	IntentTaskSummary     Intent = "task_summary"
	IntentNotifyConfigure Intent = "notify_configure"
	IntentMessageSend     Intent = "message_send"
	IntentNotification    Intent = "notification_send"
	IntentInbox           Intent = "inbox"
	IntentEmailConfig     Intent = "email_config"
	IntentTestAddress     Intent = "test_address"
)

// Compound joins the intents of a multi-operation instruction.
func Compound(parts ...Intent) Intent {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = string(p)
	}
	return Intent(strings.Join(s, "+"))
}

// Binding fills one parameter of a step from the output of an earlier step.
// With a Template the producer's payload is rendered through text/template;
// otherwise the named result Field is copied as is.
type Binding struct {
	Param    string `json:"param"`
	Step     int    `json:"step"`
	Field    string `json:"field,omitempty"`
	Template string `json:"template,omitempty"`
}

// Resolve computes the bound value from the producer's payload.
func (b Binding) Resolve(payload map[string]any) (any, error) {
	if b.Template == "" {
		v, ok := payload[b.Field]
		if !ok || v == nil {
			return nil, fmt.Errorf("step %d produced no %q", b.Step, b.Field)
		}
		return v, nil
	}

	tmpl, err := b.parse()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, payload); err != nil {
		return nil, fmt.Errorf("render %s: %w", b.Param, err)
	}
	return buf.String(), nil
}

func (b Binding) parse() (*template.Template, error) {
	tmpl, err := template.New(b.Param).Option("missingkey=zero").Parse(b.Template)
	if err != nil {
		return nil, fmt.Errorf("parse template for %s: %w", b.Param, err)
	}
	return tmpl, nil
}

// Step is one tool invocation.
type Step struct {
	Tool     string         `json:"tool"`
	Args     map[string]any `json:"args"`
	Bindings []Binding      `json:"bindings,omitempty"`
}

// DependsOn returns the indexes of the steps this step consumes, without duplicates.
func (s Step) DependsOn() []int {
	var deps []int
	seen := map[int]bool{}
	for _, b := range s.Bindings {
		if !seen[b.Step] {
			seen[b.Step] = true
			deps = append(deps, b.Step)
		}
	}
	return deps
}

// Plan is the resolved form of one instruction. It is never persisted.
type Plan struct {
	Intent Intent `json:"intent"`
	Steps  []Step `json:"steps"`
}

// ErrNoIntent is returned when an instruction maps to no operation.
var ErrNoIntent = &toolerr.Error{Kind: toolerr.ValidationError, Field: "instruction", Message: "could not determine intent"}

// Graph validates the plan against reg and returns its dependency graph.
// Every tool must exist; bindings must name a declared parameter and point
// at an earlier step; copied fields must be declared in the producer's result.
func (p Plan) Graph(reg *registry.Registry) (*graph.DependencyGraph, error) {
	nodes := make([]graph.Node, len(p.Steps))
	for i, step := range p.Steps {
		d, err := reg.Resolve(step.Tool)
		if err != nil {
			return nil, err
		}

		nodes[i].ID = StepID(i)
		for _, b := range step.Bindings {
			if _, ok := d.Param(b.Param); !ok {
				return nil, toolerr.Invalid(b.Param, "step %d binds unknown parameter %q of %s", i, b.Param, step.Tool)
			}
			if b.Step < 0 || b.Step >= i {
				return nil, toolerr.Invalid(b.Param, "step %d binds %q to step %d, which does not run before it", i, b.Param, b.Step)
			}
			if b.Template != "" {
				if _, err := b.parse(); err != nil {
					return nil, toolerr.Invalid(b.Param, "%v", err)
				}
			} else {
				producer, _ := reg.Resolve(p.Steps[b.Step].Tool)
				if !producer.HasResultField(b.Field) {
					return nil, toolerr.Invalid(b.Param, "%s has no result field %q", producer.Name, b.Field)
				}
			}
		}
		for _, dep := range step.DependsOn() {
			nodes[i].DependsOn = append(nodes[i].DependsOn, StepID(dep))
		}
	}

	g := graph.New()
	if err := g.Build(nodes); err != nil {
		if errors.Is(err, graph.ErrCycleDetected) {
			return nil, toolerr.Wrap(toolerr.ValidationError, err, "plan has a dependency cycle")
		}
		return nil, toolerr.Wrap(toolerr.ValidationError, err, "invalid plan")
	}
	return g, nil
}

// Schedule validates the plan and returns its dependency graph with step
// indexes in execution order.
func (p Plan) Schedule(reg *registry.Registry) (*graph.DependencyGraph, []int, error) {
	g, err := p.Graph(reg)
	if err != nil {
		return nil, nil, err
	}
	ids, err := g.TopologicalSort()
	if err != nil {
		return nil, nil, toolerr.Wrap(toolerr.ValidationError, err, "invalid plan")
	}

	order := make([]int, len(ids))
	for i, id := range ids {
		order[i] = StepIndex(id)
	}
	return g, order, nil
}

// StepID names step i in the dependency graph.
func StepID(i int) string {
	return "s" + strconv.Itoa(i)
}

// StepIndex reverses StepID. It returns -1 for a foreign ID.
func StepIndex(id string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(id, "s"))
	if err != nil || !strings.HasPrefix(id, "s") {
		return -1
	}
	return n
}

var toolIntents = map[string]Intent{
	"add_task":            IntentTaskCreate,
	"list_tasks":          IntentTaskList,
	"complete_task":       IntentTaskComplete,
	"tasks_by_date":       IntentTaskQuery,
	"tasks_by_range":      IntentTaskQuery,
	"delete_task":         IntentTaskDelete,
	"summarize_tasks":     IntentTaskSummary,
	"configure_testmail":  IntentNotifyConfigure,
	"send_email":          IntentMessageSend,
	"send_notification":   IntentNotification,
	"get_inbox_emails":    IntentInbox,
	"get_email_config":    IntentEmailConfig,
	"generate_test_email": IntentTestAddress,
}

// IntentFor derives the intent of a sequence of tool calls.
func IntentFor(tools ...string) Intent {
	var parts []Intent
	for _, t := range tools {
		intent, ok := toolIntents[t]
		if !ok {
			intent = Intent(t)
		}
		if len(parts) == 0 || parts[len(parts)-1] != intent {
			parts = append(parts, intent)
		}
	}
	return Compound(parts...)
}
