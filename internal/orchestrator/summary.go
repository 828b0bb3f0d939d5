package orchestrator

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/taskflow/pkg/models"
)

// describe renders one sentence for a finished step. The wording depends
// only on the step result so reports are reproducible.
func describe(r models.StepResult) string {
	switch r.Status {
	case models.StepSkipped:
		return fmt.Sprintf("Skipped %s: %s.", r.Tool, r.Error.Message)
	case models.StepFailed:
		if r.Error.Field != "" {
			return fmt.Sprintf("%s failed (%s): %s: %s.", r.Tool, r.Error.Kind, r.Error.Field, r.Error.Message)
		}
		return fmt.Sprintf("%s failed (%s): %s.", r.Tool, r.Error.Kind, r.Error.Message)
	}

	p := r.Payload
	switch r.Tool {
	case "add_task":
		s := fmt.Sprintf("Created task %s %q", str(p, "id"), str(p, "description"))
		if due := str(p, "due_date"); due != "" {
			s += " due " + due
		}
		return s + "."
	case "list_tasks":
		return fmt.Sprintf("Found %s.", plural(str(p, "count"), "task"))
	case "complete_task":
		if b, _ := p["already_complete"].(bool); b {
			return fmt.Sprintf("Task %s %q was already complete.", str(p, "id"), str(p, "description"))
		}
		return fmt.Sprintf("Completed task %s %q.", str(p, "id"), str(p, "description"))
	case "tasks_by_date":
		return fmt.Sprintf("Found %s due %s.", plural(str(p, "count"), "task"), str(p, "date"))
	case "tasks_by_range":
		return fmt.Sprintf("Found %s due between %s and %s.",
			plural(str(p, "count"), "task"), str(p, "start_date"), str(p, "end_date"))
	case "delete_task":
		return fmt.Sprintf("Deleted task %s %q.", str(p, "id"), str(p, "description"))
	case "summarize_tasks":
		return str(p, "summary") + "."
	case "configure_testmail":
		s := fmt.Sprintf("Configured email for namespace %s (version %s)", str(p, "namespace"), str(p, "version"))
		if b, _ := p["verified"].(bool); b {
			s += ", credentials verified"
		}
		return s + "."
	case "send_email", "send_notification":
		return fmt.Sprintf("Sent %q to %s.", str(p, "subject"), str(p, "to"))
	case "get_inbox_emails":
		return fmt.Sprintf("Inbox has %s.", plural(str(p, "count"), "email"))
	case "get_email_config":
		if b, _ := p["configured"].(bool); !b {
			return "Email is not configured."
		}
		return fmt.Sprintf("Email is configured for namespace %s, sending from %s.",
			str(p, "namespace"), str(p, "default_from"))
	case "generate_test_email":
		return fmt.Sprintf("Test address: %s.", str(p, "email"))
	}
	return fmt.Sprintf("%s succeeded.", r.Tool)
}

// summarize joins the step sentences in plan order.
func summarize(steps []models.StepResult) string {
	if len(steps) == 0 {
		return "Nothing to do."
	}
	parts := make([]string, len(steps))
	for i, s := range steps {
		parts[i] = s.Summary
	}
	return strings.Join(parts, " ")
}

func str(p map[string]any, key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func plural(count, noun string) string {
	if count == "1" {
		return "1 " + noun
	}
	if count == "" {
		count = "0"
	}
	return count + " " + noun + "s"
}
