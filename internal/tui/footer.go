package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/taskflow/pkg/models"
)

// OutcomeCounts holds the number of reports per outcome this session.
type OutcomeCounts struct {
	OK      int
	Partial int
	Failed  int
}

// Add records one report status.
func (c *OutcomeCounts) Add(status models.OutcomeStatus) {
	switch status {
	case models.OutcomeOK:
		c.OK++
	case models.OutcomePartial:
		c.Partial++
	default:
		c.Failed++
	}
}

// Footer renders the status bar and keyboard hints.
type Footer struct {
	message string
	success bool
	busy    bool
	width   int
	counts  OutcomeCounts

	successStyle   lipgloss.Style
	warnStyle      lipgloss.Style
	errorStyle     lipgloss.Style
	hintStyle      lipgloss.Style
	separatorStyle lipgloss.Style
}

// NewFooter creates a new Footer instance.
func NewFooter() *Footer {
	return &Footer{
		successStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")).
			Bold(true),

		warnStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		separatorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("236")),
	}
}

// SetMessage sets the status message.
func (f *Footer) SetMessage(message string, success bool) {
	f.message = message
	f.success = success
}

// SetBusy marks an instruction as in flight.
func (f *Footer) SetBusy(busy bool) {
	f.busy = busy
}

// SetWidth sets the footer width.
func (f *Footer) SetWidth(width int) {
	f.width = width
}

// Record counts a finished report.
func (f *Footer) Record(status models.OutcomeStatus) {
	f.counts.Add(status)
}

// Counts returns the session outcome counts.
func (f *Footer) Counts() OutcomeCounts {
	return f.counts
}

// View renders the footer.
func (f *Footer) View() string {
	var left string
	if total := f.counts.OK + f.counts.Partial + f.counts.Failed; total > 0 {
		left = f.successStyle.Render(fmt.Sprintf("✓%d", f.counts.OK))
		if f.counts.Partial > 0 {
			left += f.warnStyle.Render(fmt.Sprintf(" ◐%d", f.counts.Partial))
		}
		if f.counts.Failed > 0 {
			left += f.errorStyle.Render(fmt.Sprintf(" ✗%d", f.counts.Failed))
		}
	}
	if f.message != "" {
		msg := f.hintStyle.Render(f.message)
		if !f.success {
			msg = f.errorStyle.Render(f.message)
		}
		if left != "" {
			left += " "
		}
		left += msg
	}

	right := f.keyboardHints()
	sep := f.separatorStyle.Render(" │ ")
	if left != "" {
		return left + sep + right
	}
	return right
}

func (f *Footer) keyboardHints() string {
	hints := "enter send │ ↑/↓ scroll │ /help │ ctrl+c quit"
	if f.busy {
		hints = "working… │ ↑/↓ scroll │ ctrl+c quit"
	}
	return f.hintStyle.Render(hints)
}
