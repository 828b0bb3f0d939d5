package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/taskflow/internal/planner"
	"github.com/ShayCichocki/taskflow/internal/registry"
	"github.com/ShayCichocki/taskflow/internal/toolerr"
)

const classifierPrompt = `You turn one user instruction into calls to the provided tools.

Rules:
- Call the tools needed to carry out the instruction, in the order they must run.
- Only use values stated in the instruction. If a required value is missing, leave the parameter out; never invent one.
- When the user means themselves as an email recipient, use "me".
- Dates may be given as YYYY-MM-DD or as the user's own phrase, such as "Friday".
- When a value must come from the result of an earlier call, write $N.field, where N is the 1-based position of that call. For example "$1.id" or "Task $1.id is done". A parameter may reference only one earlier call.
- If no tool applies, reply with a short sentence and call nothing.`

// placeholderRe matches $N.field references to earlier tool calls.
var placeholderRe = regexp.MustCompile(`\$(\d+)\.([a-z_]+)`)

// ClaudeClassifier lets Claude choose tools for an instruction. It makes a
// single Messages call; the tool calls in the reply become the plan steps.
type ClaudeClassifier struct {
	client *Client
	reg    *registry.Registry
	tools  []anthropic.ToolUnionParam
}

// NewClaudeClassifier creates a classifier offering every registry tool.
func NewClaudeClassifier(client *Client, reg *registry.Registry) *ClaudeClassifier {
	return &ClaudeClassifier{
		client: client,
		reg:    reg,
		tools:  ToolDefinitions(reg),
	}
}

// Classify maps instruction to a Plan.
func (c *ClaudeClassifier) Classify(ctx context.Context, instruction string) (planner.Plan, error) {
	if strings.TrimSpace(instruction) == "" {
		return planner.Plan{}, planner.ErrNoIntent
	}

	resp, err := c.client.create(ctx, anthropic.MessageNewParams{
		MaxTokens:   1024,
		Temperature: anthropic.Float(0),
		System: []anthropic.TextBlockParam{
			{Text: classifierPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(instruction)),
		},
		Tools: c.tools,
	})
	if err != nil {
		return planner.Plan{}, toolerr.Wrap(toolerr.CapabilityUnavailable, err, "intent classifier unavailable")
	}

	var steps []planner.Step
	var names []string
	for _, block := range resp.Content {
		variant, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			continue
		}
		step, err := toStep(len(steps), variant.Name, variant.Input)
		if err != nil {
			return planner.Plan{}, err
		}
		steps = append(steps, step)
		names = append(names, variant.Name)
	}
	if len(steps) == 0 {
		return planner.Plan{}, planner.ErrNoIntent
	}

	return planner.Plan{Intent: planner.IntentFor(names...), Steps: steps}, nil
}

// toStep converts one tool call at position index into a plan step,
// turning $N.field references into bindings.
func toStep(index int, name string, input json.RawMessage) (planner.Step, error) {
	args := map[string]any{}
	if len(input) > 0 {
		dec := json.NewDecoder(bytes.NewReader(input))
		dec.UseNumber()
		if err := dec.Decode(&args); err != nil {
			return planner.Step{}, toolerr.Wrap(toolerr.CapabilityUnavailable, err, fmt.Sprintf("classifier sent malformed input for %s", name))
		}
	}

	step := planner.Step{Tool: name, Args: map[string]any{}}
	for param, v := range args {
		s, ok := v.(string)
		if !ok || !placeholderRe.MatchString(s) {
			step.Args[param] = v
			continue
		}
		b, err := toBinding(index, param, s)
		if err != nil {
			return planner.Step{}, err
		}
		step.Bindings = append(step.Bindings, b)
	}
	// Map iteration order must not change the plan shape.
	sort.Slice(step.Bindings, func(i, j int) bool { return step.Bindings[i].Param < step.Bindings[j].Param })
	return step, nil
}

func toBinding(index int, param, value string) (planner.Binding, error) {
	matches := placeholderRe.FindAllStringSubmatch(value, -1)

	ref, _ := strconv.Atoi(matches[0][1])
	for _, m := range matches[1:] {
		if n, _ := strconv.Atoi(m[1]); n != ref {
			return planner.Binding{}, toolerr.Invalid(param, "references more than one earlier step")
		}
	}
	if ref < 1 || ref > index {
		return planner.Binding{}, toolerr.Invalid(param, "references step %d, which does not run before step %d", ref, index+1)
	}

	b := planner.Binding{Param: param, Step: ref - 1}
	if len(matches) == 1 && matches[0][0] == value {
		b.Field = matches[0][2]
		return b, nil
	}

	escaped := strings.ReplaceAll(value, "{{", `{{"{{"}}`)
	b.Template = placeholderRe.ReplaceAllString(escaped, "{{.$2}}")
	return b, nil
}

var _ planner.Classifier = (*ClaudeClassifier)(nil)
