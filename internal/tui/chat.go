package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/taskflow/internal/orchestrator"
	"github.com/ShayCichocki/taskflow/internal/version"
	"github.com/ShayCichocki/taskflow/pkg/models"
)

// Handler handles one instruction.
type Handler interface {
	Handle(ctx context.Context, instruction string) *models.OutcomeReport
}

// ReportMsg carries a finished report back to the model.
type ReportMsg struct {
	Report *models.OutcomeReport
}

// ProgressMsg carries one orchestrator event.
type ProgressMsg struct {
	Event orchestrator.OrchestratorEvent
}

type eventsClosedMsg struct{}

const helpText = `Examples:
  Add a task to finish report by Friday
  Show my open tasks
  Complete task 3 and email team@company.com
  Configure email with api key <key> and namespace <ns>
  Send me a reminder about task 3
Commands: /help /clear /quit`

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4")).
			Bold(true)
	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)
	statusStyles = map[models.OutcomeStatus]lipgloss.Style{
		models.OutcomeOK:      lipgloss.NewStyle().Foreground(lipgloss.Color("28")).Bold(true),
		models.OutcomePartial: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		models.OutcomeFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

// ChatApp is the chat model.
type ChatApp struct {
	ctx     context.Context
	handler Handler
	// events is nil when progress is not streamed.
	events <-chan orchestrator.OrchestratorEvent

	input      *InputField
	transcript *Transcript
	footer     *Footer
	spinner    spinner.Model

	subtitle string
	busy     bool
	width    int
	height   int
	quitting bool

	inflight sync.WaitGroup
}

// NewChatApp creates a chat model. events may be nil.
func NewChatApp(ctx context.Context, h Handler, events <-chan orchestrator.OrchestratorEvent) *ChatApp {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	return &ChatApp{
		ctx:        ctx,
		handler:    h,
		events:     events,
		input:      NewInputField(),
		transcript: NewTranscript(),
		footer:     NewFooter(),
		spinner:    sp,
	}
}

// Wait blocks until every submitted instruction has returned.
func (a *ChatApp) Wait() {
	a.inflight.Wait()
}

// SetSubtitle sets the text shown under the title, such as the classifier in use.
func (a *ChatApp) SetSubtitle(s string) {
	a.subtitle = s
}

// Init implements tea.Model.
func (a *ChatApp) Init() tea.Cmd {
	return tea.Batch(a.input.Focus(), a.waitForEvent())
}

// Update implements tea.Model.
func (a *ChatApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		case "up", "down", "pgup", "pgdown", "end", "ctrl+p", "ctrl+n":
			a.transcript, _ = a.transcript.Update(msg)
			return a, nil
		}
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.updateSizes()
		return a, nil

	case InstructionSubmittedMsg:
		return a, a.submit(msg.Instruction)

	case ProgressMsg:
		a.showProgress(msg.Event)
		return a, a.waitForEvent()

	case eventsClosedMsg:
		a.events = nil
		return a, nil

	case ReportMsg:
		a.showReport(msg.Report)
		return a, nil

	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *ChatApp) submit(text string) tea.Cmd {
	switch strings.ToLower(text) {
	case "/quit", "/exit":
		a.quitting = true
		return tea.Quit
	case "/clear":
		a.transcript.Clear()
		a.footer.SetMessage("", true)
		return nil
	case "/help":
		a.transcript.Append(SpeakerProgress, helpText)
		return nil
	}

	if a.busy {
		a.footer.SetMessage("still working on the previous instruction", false)
		return nil
	}

	a.transcript.Append(SpeakerUser, text)
	a.busy = true
	a.footer.SetBusy(true)
	a.footer.SetMessage("", true)

	h, ctx, wg := a.handler, a.ctx, &a.inflight
	wg.Add(1)
	run := func() tea.Msg {
		defer wg.Done()
		return ReportMsg{Report: h.Handle(ctx, text)}
	}
	return tea.Batch(run, a.spinner.Tick)
}

func (a *ChatApp) showProgress(e orchestrator.OrchestratorEvent) {
	switch e.Type {
	case orchestrator.EventStepStarted:
		a.transcript.Append(SpeakerProgress, "running "+e.Tool)
	case orchestrator.EventStepFinished:
		a.transcript.Append(stepSpeaker(e.Status), stepMark(e.Status)+" "+e.Message)
	}
}

func (a *ChatApp) showReport(r *models.OutcomeReport) {
	a.busy = false
	a.footer.SetBusy(false)
	if r == nil {
		return
	}
	a.footer.Record(r.Status)

	if a.events == nil {
		for _, s := range r.Steps {
			a.transcript.Append(stepSpeaker(s.Status), stepMark(s.Status)+" "+s.Summary)
		}
	}
	if r.Error != nil {
		a.transcript.Append(SpeakerError, r.Summary)
		return
	}
	status := statusStyles[r.Status].Render(strings.ToUpper(string(r.Status)))
	a.transcript.Append(SpeakerAssistant, fmt.Sprintf("%s (%s)", status, r.Duration.Round(time.Millisecond)))
}

func stepSpeaker(s models.StepStatus) Speaker {
	if s == models.StepSucceeded {
		return SpeakerAssistant
	}
	return SpeakerError
}

func stepMark(s models.StepStatus) string {
	switch s {
	case models.StepSucceeded:
		return "✓"
	case models.StepSkipped:
		return "↷"
	default:
		return "✗"
	}
}

// waitForEvent reads the next orchestrator event.
func (a *ChatApp) waitForEvent() tea.Cmd {
	if a.events == nil {
		return nil
	}
	events := a.events
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return ProgressMsg{Event: e}
	}
}

func (a *ChatApp) updateSizes() {
	const headerHeight, activityHeight, inputHeight, footerHeight = 2, 1, 3, 1
	a.transcript.SetSize(a.width, a.height-headerHeight-activityHeight-inputHeight-footerHeight)
	a.input.SetWidth(a.width)
	a.footer.SetWidth(a.width)
}

// View implements tea.Model.
func (a *ChatApp) View() string {
	if a.quitting {
		return "Goodbye!\n"
	}

	header := titleStyle.Render(version.String())
	if a.subtitle != "" {
		header += "  " + subtitleStyle.Render(a.subtitle)
	}

	activity := ""
	if a.busy {
		activity = a.spinner.View() + subtitleStyle.Render(" working…")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		a.transcript.View(),
		activity,
		a.input.View(),
		a.footer.View(),
	)
}

// NewChatProgram creates a Bubbletea program for the chat model.
func NewChatProgram(ctx context.Context, h Handler, events <-chan orchestrator.OrchestratorEvent) (*tea.Program, *ChatApp) {
	app := NewChatApp(ctx, h, events)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	return p, app
}
