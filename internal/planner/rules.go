package planner

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/ShayCichocki/taskflow/internal/dates"
	"github.com/ShayCichocki/taskflow/internal/registry"
)

// RuleClassifier resolves instructions with fixed patterns. It is
// deterministic and needs no network access.
type RuleClassifier struct {
	dates *dates.Parser
}

// NewRuleClassifier creates a rule classifier. p decides whether a trailing
// "by <phrase>" is a due date; nil uses the wall clock.
func NewRuleClassifier(p *dates.Parser) *RuleClassifier {
	if p == nil {
		p = dates.New()
	}
	return &RuleClassifier{dates: p}
}

var (
	compoundRe = regexp.MustCompile(`(?i)^(.+?)\s*,?\s+(?:and|then|&)\s+(?:then\s+)?((?:e-?mail|mail|notify|send|tell|message)\b.*)$`)

	createRe = regexp.MustCompile(`(?i)^(?:please\s+)?(?:add|create|make|new)\s+(?:a\s+|an\s+)?(?:new\s+)?(?:task|todo|to-do)\b(?:\s+(?:to|for|called|named)\b|:)?\s*(.*)$`)
	dueRe    = regexp.MustCompile(`(?i)^(.*)\s+(?:by|due(?:\s+on)?|before|on)\s+(.+)$`)

	completeRe     = regexp.MustCompile(`(?i)^(?:please\s+)?(?:complete|finish|close|mark)\s+task\b(?:\s+#?(\d+))?(?:\s+as\s+(?:done|complete|completed|finished))?$`)
	completeTailRe = regexp.MustCompile(`(?i)^task\s+#?(\d+)\s+(?:is\s+)?(?:done|complete|completed|finished)$`)
	deleteRe       = regexp.MustCompile(`(?i)^(?:please\s+)?(?:delete|remove|drop)\s+task\b(?:\s+#?(\d+))?$`)

	listPrefix = `(?:(?:please\s+)?(?:list|show|get|display|what\s+are)\s+(?:me\s+)?(?:all\s+|my\s+|the\s+)*)?`
	rangeRe    = regexp.MustCompile(`(?i)^` + listPrefix + `(?:tasks|todos)\s+(?:due\s+)?(?:between|from)\s+(.+?)\s+(?:and|to|until|through)\s+(.+)$`)
	byDateRe   = regexp.MustCompile(`(?i)^` + listPrefix + `(?:tasks|todos)\s+(?:due\s+)?(?:on|for)\s+(.+)$`)
	dueWhenRe  = regexp.MustCompile(`(?i)^what(?:'s|\s+is)\s+due\s+(?:on\s+)?(.+)$`)
	listRe     = regexp.MustCompile(`(?i)^(?:please\s+)?(?:list|show|get|display|what\s+are)\s+(?:me\s+)?(?:all\s+|my\s+|the\s+)*(open|pending|incomplete|complete|completed|done|finished)?\s*(?:tasks|todos)$`)
	summaryRe  = regexp.MustCompile(`(?i)\b(?:summari[sz]e|summary|overview|overdue)\b`)

	configureRe  = regexp.MustCompile(`(?i)^(?:please\s+)?(?:configure|set\s*up|setup)\s+(?:the\s+|my\s+)?(?:email|e-mail|testmail|mail|notifications?)\b(.*)$`)
	apiKeyRe     = regexp.MustCompile(`(?i)api[\s_-]?key\s*(?:is|=|:)?\s*([^\s,]+)`)
	namespaceRe  = regexp.MustCompile(`(?i)namespace\s*(?:is|=|:)?\s*([^\s,]+)`)
	fromRe       = regexp.MustCompile(`(?i)\bfrom\s+([^\s,]+@[^\s,]+)`)
	inboxRe      = regexp.MustCompile(`(?i)^(?:please\s+)?(?:check|show|read|get|open)\s+(?:my\s+|the\s+)?(?:test\s+)?inbox\b(.*)$`)
	tagRe        = regexp.MustCompile(`(?i)\btag\s+([\w-]+)`)
	emailCfgRe   = regexp.MustCompile(`(?i)^(?:show|get|display|what(?:'s|\s+is))\s+(?:me\s+)?(?:my\s+|the\s+)?(?:email|e-mail|mail|testmail)\s+(?:config|configuration|settings)$`)
	testAddrRe   = regexp.MustCompile(`(?i)^(?:please\s+)?(?:generate|create|give\s+me|make)\s+(?:a\s+|an\s+)?test\s+(?:email\s+)?address(?:\s+(?:for|with\s+tag)\s+([\w-]+))?$`)
	sendTestRe   = regexp.MustCompile(`(?i)^(?:please\s+)?send\s+(?:a\s+|an\s+)?test\s+e-?mail(?:\s+(?:for|with\s+tag)\s+([\w-]+))?$`)
	notifyRe     = regexp.MustCompile(`(?i)^(?:please\s+)?(?:notify|tell)\s+(\S+)\s+(?:that|about)\s+(.+)$`)
	notifTypedRe = regexp.MustCompile(`(?i)^(?:please\s+)?send\s+(?:a\s+|an\s+)?(info|success|warning|error)?\s*notification\s+to\s+(\S+)\s+(?:about|saying|that)\s+(.+)$`)
	sendRe       = regexp.MustCompile(`(?i)^(?:please\s+)?(?:send|e-?mail|mail|message|remind)\b`)

	addressRe  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	meRe       = regexp.MustCompile(`(?i)\b(?:me|myself)\b`)
	subjectRe  = regexp.MustCompile(`(?i)\bsubject\s*(?::|is)?\s*"([^"]+)"`)
	sayingRe   = regexp.MustCompile(`(?i)\b(?:saying|that\s+says|with\s+(?:the\s+)?(?:message|body|text))\s*:?\s*(.+)$`)
	reminderRe = regexp.MustCompile(`(?i)\bremind(?:er)?\s+(?:(?:me|\S+@\S+)\s+)?(?:about|for|to|of)\s+(.+)$`)
	aboutRe    = regexp.MustCompile(`(?i)\babout\s+(.+)$`)
)

// Classify maps instruction to a Plan.
func (c *RuleClassifier) Classify(_ context.Context, instruction string) (Plan, error) {
	text := normalize(instruction)
	if text == "" {
		return Plan{}, ErrNoIntent
	}

	if m := compoundRe.FindStringSubmatch(text); m != nil {
		if intent, step, ok := c.taskStep(m[1]); ok {
			sendIntent, send := followUpStep(step.Tool, m[2])
			return Plan{Intent: Compound(intent, sendIntent), Steps: []Step{step, send}}, nil
		}
	}

	if intent, step, ok := c.taskStep(text); ok {
		return Plan{Intent: intent, Steps: []Step{step}}, nil
	}
	if plan, ok := notifyPlan(text); ok {
		return plan, nil
	}
	return Plan{}, ErrNoIntent
}

func normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimRightFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || unicode.IsSpace(r)
	})
}

// taskStep matches one task operation.
func (c *RuleClassifier) taskStep(text string) (Intent, Step, bool) {
	if m := createRe.FindStringSubmatch(text); m != nil {
		args := map[string]any{}
		desc := strings.TrimSpace(m[1])
		if d := dueRe.FindStringSubmatch(desc); d != nil {
			if _, err := c.dates.Parse(d[2]); err == nil {
				desc = strings.TrimSpace(d[1])
				args["due_date"] = strings.TrimSpace(d[2])
			}
		}
		if desc != "" {
			args["description"] = desc
		}
		return IntentTaskCreate, Step{Tool: "add_task", Args: args}, true
	}

	if m := completeRe.FindStringSubmatch(text); m != nil {
		return IntentTaskComplete, Step{Tool: "complete_task", Args: idArgs(m[1])}, true
	}
	if m := completeTailRe.FindStringSubmatch(text); m != nil {
		return IntentTaskComplete, Step{Tool: "complete_task", Args: idArgs(m[1])}, true
	}
	if m := deleteRe.FindStringSubmatch(text); m != nil {
		return IntentTaskDelete, Step{Tool: "delete_task", Args: idArgs(m[1])}, true
	}

	if m := rangeRe.FindStringSubmatch(text); m != nil {
		return IntentTaskQuery, Step{Tool: "tasks_by_range", Args: map[string]any{
			"start_date": strings.TrimSpace(m[1]),
			"end_date":   strings.TrimSpace(m[2]),
		}}, true
	}
	if m := byDateRe.FindStringSubmatch(text); m != nil {
		return IntentTaskQuery, Step{Tool: "tasks_by_date", Args: map[string]any{"date": strings.TrimSpace(m[1])}}, true
	}
	if m := dueWhenRe.FindStringSubmatch(text); m != nil {
		return IntentTaskQuery, Step{Tool: "tasks_by_date", Args: map[string]any{"date": strings.TrimSpace(m[1])}}, true
	}

	if m := listRe.FindStringSubmatch(text); m != nil {
		args := map[string]any{}
		switch strings.ToLower(m[1]) {
		case "open", "pending", "incomplete":
			args["status"] = "open"
		case "complete", "completed", "done", "finished":
			args["status"] = "complete"
		}
		return IntentTaskList, Step{Tool: "list_tasks", Args: args}, true
	}
	if summaryRe.MatchString(text) && !sendRe.MatchString(text) {
		return IntentTaskSummary, Step{Tool: "summarize_tasks", Args: map[string]any{}}, true
	}
	return IntentNone, Step{}, false
}

func idArgs(id string) map[string]any {
	if id == "" {
		return map[string]any{}
	}
	return map[string]any{"task_id": id}
}

// followUpStep builds the message that reports on the task step's result.
func followUpStep(producer, text string) (Intent, Step) {
	to := recipient(text)
	note := ""
	if m := sayingRe.FindStringSubmatch(text); m != nil {
		note = strings.TrimSpace(m[1])
	}
	verb := strings.ToLower(strings.Fields(text)[0])
	if verb == "notify" || verb == "tell" {
		return IntentNotification, sendStep(producer, 0, to, note, true)
	}
	return IntentMessageSend, sendStep(producer, 0, to, note, false)
}

// notifyPlan matches a notification-server operation.
func notifyPlan(text string) (Plan, bool) {
	if m := configureRe.FindStringSubmatch(text); m != nil {
		args := map[string]any{}
		if k := apiKeyRe.FindStringSubmatch(m[1]); k != nil {
			args["api_key"] = k[1]
		}
		if n := namespaceRe.FindStringSubmatch(m[1]); n != nil {
			args["namespace"] = n[1]
		}
		if f := fromRe.FindStringSubmatch(m[1]); f != nil {
			args["default_from"] = f[1]
		}
		return single(IntentNotifyConfigure, "configure_testmail", args), true
	}

	if m := inboxRe.FindStringSubmatch(text); m != nil {
		args := map[string]any{}
		if t := tagRe.FindStringSubmatch(m[1]); t != nil {
			args["tag"] = t[1]
		}
		return single(IntentInbox, "get_inbox_emails", args), true
	}
	if emailCfgRe.MatchString(text) {
		return single(IntentEmailConfig, "get_email_config", map[string]any{}), true
	}
	if m := testAddrRe.FindStringSubmatch(text); m != nil {
		return single(IntentTestAddress, "generate_test_email", tagArgs(m[1])), true
	}

	if m := sendTestRe.FindStringSubmatch(text); m != nil {
		return Plan{
			Intent: Compound(IntentTestAddress, IntentMessageSend),
			Steps: []Step{
				{Tool: "generate_test_email", Args: tagArgs(m[1])},
				{
					Tool: "send_email",
					Args: map[string]any{
						"subject": "Test email from taskflow",
						"body":    "This is a test message. If you can read it, email delivery works.",
					},
					Bindings: []Binding{{Param: "to", Step: 0, Field: "email"}},
				},
			},
		}, true
	}

	if m := notifTypedRe.FindStringSubmatch(text); m != nil {
		args := map[string]any{"to": m[2], "title": title(m[3]), "message": m[3]}
		if m[1] != "" {
			args["type"] = strings.ToLower(m[1])
		}
		return single(IntentNotification, "send_notification", args), true
	}
	if m := notifyRe.FindStringSubmatch(text); m != nil {
		args := map[string]any{"title": title(m[2]), "message": m[2]}
		if to := recipient(m[1]); to != "" {
			args["to"] = to
		}
		return single(IntentNotification, "send_notification", args), true
	}

	if sendRe.MatchString(text) {
		return single(IntentMessageSend, "send_email", messageArgs(text)), true
	}
	return Plan{}, false
}

func single(intent Intent, tool string, args map[string]any) Plan {
	return Plan{Intent: intent, Steps: []Step{{Tool: tool, Args: args}}}
}

func tagArgs(tag string) map[string]any {
	if tag == "" {
		return map[string]any{}
	}
	return map[string]any{"tag": tag}
}

// messageArgs extracts recipient, subject and body from a send instruction.
func messageArgs(text string) map[string]any {
	args := map[string]any{}
	if to := recipient(text); to != "" {
		args["to"] = to
	}

	var subject, body string
	if m := subjectRe.FindStringSubmatch(text); m != nil {
		subject = strings.TrimSpace(m[1])
	}
	switch {
	case sayingRe.MatchString(text):
		body = strings.TrimSpace(sayingRe.FindStringSubmatch(text)[1])
	case reminderRe.MatchString(text):
		topic := strings.TrimSpace(reminderRe.FindStringSubmatch(text)[1])
		body = "Reminder: " + topic
		if subject == "" {
			subject = "Reminder: " + topic
		}
	case aboutRe.MatchString(text):
		topic := strings.TrimSpace(aboutRe.FindStringSubmatch(text)[1])
		body = topic
		if subject == "" {
			subject = title(topic)
		}
	}
	if subject == "" && body != "" {
		subject = title(body)
	}

	if subject != "" {
		args["subject"] = subject
	}
	if body != "" {
		args["body"] = body
	}
	return args
}

// recipient returns the first address in text, "me" when the sender is the
// recipient, or "".
func recipient(text string) string {
	if addr := addressRe.FindString(text); addr != "" {
		return addr
	}
	if meRe.MatchString(text) {
		return registry.Me
	}
	return ""
}

// title shortens text to a subject line.
func title(text string) string {
	words := strings.Fields(text)
	if len(words) > 8 {
		words = append(words[:8], "...")
	}
	t := strings.Join(words, " ")
	if t == "" {
		return t
	}
	r := []rune(t)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
