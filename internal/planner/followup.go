package planner

import "strings"

// followUp describes the message sent after a task operation.
type followUp struct {
	subject string
	body    string
	kind    string
}

const taskListBody = `{{range .tasks}}#{{.id}} {{.description}}{{with .due_date}} (due {{.}}){{end}} [{{.status}}]
{{else}}No tasks.
{{end}}`

var followUps = map[string]followUp{
	"add_task": {
		subject: `New task #{{.id}}: {{.description}}`,
		body:    `Task #{{.id}} "{{.description}}" was created{{with .due_date}}, due {{.}}{{end}}.`,
		kind:    "info",
	},
	"complete_task": {
		subject: `Task #{{.id}} completed`,
		body:    `Task #{{.id}} "{{.description}}" is complete.`,
		kind:    "success",
	},
	"delete_task": {
		subject: `Task #{{.id}} deleted`,
		body:    `Task #{{.id}} "{{.description}}" was deleted.`,
		kind:    "warning",
	},
	"list_tasks": {
		subject: `Your tasks ({{.count}})`,
		body:    taskListBody,
		kind:    "info",
	},
	"tasks_by_date": {
		subject: `Tasks due {{.date}} ({{.count}})`,
		body:    taskListBody,
		kind:    "info",
	},
	"tasks_by_range": {
		subject: `Tasks due {{.start_date}} to {{.end_date}} ({{.count}})`,
		body:    taskListBody,
		kind:    "info",
	},
	"summarize_tasks": {
		subject: `Task summary`,
		body:    `{{.summary}}`,
		kind:    "info",
	},
}

// literal escapes text for inclusion in a template.
func literal(text string) string {
	return strings.ReplaceAll(text, "{{", `{{"{{"}}`)
}

// sendStep builds the message step that follows producer at index from.
// note, when set, is user text placed before the generated details.
func sendStep(producer string, from int, to, note string, notification bool) Step {
	f := followUps[producer]
	body := f.body
	if note != "" {
		body = literal(note) + "\n\n" + body
	}

	if notification {
		return Step{
			Tool: "send_notification",
			Args: withRecipient(map[string]any{"type": f.kind}, to),
			Bindings: []Binding{
				{Param: "title", Step: from, Template: f.subject},
				{Param: "message", Step: from, Template: body},
			},
		}
	}
	return Step{
		Tool: "send_email",
		Args: withRecipient(map[string]any{}, to),
		Bindings: []Binding{
			{Param: "subject", Step: from, Template: f.subject},
			{Param: "body", Step: from, Template: body},
		},
	}
}

func withRecipient(args map[string]any, to string) map[string]any {
	if to != "" {
		args["to"] = to
	}
	return args
}
