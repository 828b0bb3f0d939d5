package notifyserver

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"
	"time"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var notificationTemplate = template.Must(template.ParseFS(templateFS, "templates/notification.html.tmpl"))

// NotificationType selects the banner style of a notification email.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Valid returns true if the type is a known value.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationInfo, NotificationSuccess, NotificationWarning, NotificationError:
		return true
	default:
		return false
	}
}

func (t NotificationType) style() (color, icon string) {
	switch t {
	case NotificationSuccess:
		return "#10b981", "✅"
	case NotificationWarning:
		return "#f59e0b", "⚠️"
	case NotificationError:
		return "#ef4444", "❌"
	default:
		return "#3b82f6", "ℹ️"
	}
}

// Subject returns the "[TYPE] title" subject line.
func (t NotificationType) Subject(title string) string {
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(t)), title)
}

// renderNotification renders the HTML body of a notification.
func renderNotification(t NotificationType, title, message string, sentAt time.Time) (string, error) {
	color, icon := t.style()
	var buf bytes.Buffer
	err := notificationTemplate.Execute(&buf, struct {
		Color, Icon, Title, Message string
		SentAt                      time.Time
	}{color, icon, title, message, sentAt})
	if err != nil {
		return "", fmt.Errorf("render notification: %w", err)
	}
	return buf.String(), nil
}

var (
	tagPattern   = regexp.MustCompile(`<[^<]+?>`)
	breakPattern = regexp.MustCompile(`(?i)<br\s*/?>`)
	htmlPattern  = regexp.MustCompile(`(?i)</?(html|body|div|p|br|h[1-6]|span|a|table|ul|li)\b`)
	blankLines   = regexp.MustCompile(`\n\s*\n+`)
)

// looksLikeHTML reports whether body contains common HTML tags.
func looksLikeHTML(body string) bool {
	return htmlPattern.MatchString(body)
}

// plainText strips tags from an HTML body to build the text alternative.
func plainText(body string) string {
	text := breakPattern.ReplaceAllString(body, "\n")
	text = tagPattern.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
