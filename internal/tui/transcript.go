package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Speaker identifies who wrote a transcript entry.
type Speaker int

const (
	SpeakerUser Speaker = iota
	SpeakerAssistant
	SpeakerProgress
	SpeakerError
)

var speakerStyles = map[Speaker]lipgloss.Style{
	SpeakerUser:      lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
	SpeakerAssistant: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
	SpeakerProgress:  lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true),
	SpeakerError:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
}

var speakerPrefix = map[Speaker]string{
	SpeakerUser:      "you  ",
	SpeakerAssistant: "     ",
	SpeakerProgress:  "  ·  ",
	SpeakerError:     "  !  ",
}

type entry struct {
	speaker Speaker
	text    string
}

// Transcript is a scrollable view of the conversation.
type Transcript struct {
	entries []entry
	// scrollOffset is the first visible wrapped line.
	scrollOffset int
	width        int
	height       int
	// autoScroll keeps the newest line visible.
	autoScroll bool
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{
		width:      80,
		height:     20,
		autoScroll: true,
	}
}

// Update handles scrolling keys.
func (t *Transcript) Update(msg tea.Msg) (*Transcript, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return t, nil
	}
	switch key.String() {
	case "up", "ctrl+p":
		t.ScrollUp()
		t.autoScroll = false
	case "down", "ctrl+n":
		t.ScrollDown()
	case "pgup":
		t.ScrollPageUp()
		t.autoScroll = false
	case "pgdown":
		t.ScrollPageDown()
	case "end":
		t.autoScroll = true
		t.scrollToBottom()
	}
	return t, nil
}

// Append adds an entry. Multi-line text becomes several lines.
func (t *Transcript) Append(speaker Speaker, text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		t.entries = append(t.entries, entry{speaker: speaker, text: line})
	}
	if t.autoScroll {
		t.scrollToBottom()
	}
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	return len(t.entries)
}

// Clear removes every entry.
func (t *Transcript) Clear() {
	t.entries = nil
	t.scrollOffset = 0
	t.autoScroll = true
}

// View renders the visible part of the transcript.
func (t *Transcript) View() string {
	lines := t.wrapLines()
	if len(lines) == 0 {
		return speakerStyles[SpeakerProgress].Render("No messages yet. Type an instruction and press Enter.")
	}

	if t.scrollOffset > len(lines)-t.height {
		t.scrollOffset = max(0, len(lines)-t.height)
	}
	end := min(t.scrollOffset+t.height, len(lines))

	var sb strings.Builder
	for i := t.scrollOffset; i < end; i++ {
		sb.WriteString(lines[i])
		if i < end-1 {
			sb.WriteString("\n")
		}
	}
	if info := t.scrollIndicator(len(lines)); info != "" {
		sb.WriteString("\n")
		sb.WriteString(info)
	}
	return sb.String()
}

// ScrollUp moves the view up by one line.
func (t *Transcript) ScrollUp() {
	if t.scrollOffset > 0 {
		t.scrollOffset--
	}
}

// ScrollDown moves the view down by one line.
func (t *Transcript) ScrollDown() {
	maxOffset := max(0, len(t.wrapLines())-t.height)
	if t.scrollOffset < maxOffset {
		t.scrollOffset++
	}
	if t.scrollOffset == maxOffset {
		t.autoScroll = true
	}
}

// ScrollPageUp moves the view up by one page.
func (t *Transcript) ScrollPageUp() {
	t.scrollOffset = max(0, t.scrollOffset-t.height)
}

// ScrollPageDown moves the view down by one page.
func (t *Transcript) ScrollPageDown() {
	maxOffset := max(0, len(t.wrapLines())-t.height)
	t.scrollOffset = min(t.scrollOffset+t.height, maxOffset)
	if t.scrollOffset == maxOffset {
		t.autoScroll = true
	}
}

// SetSize updates the view dimensions.
func (t *Transcript) SetSize(width, height int) {
	t.width = width
	t.height = max(1, height)
	if t.autoScroll {
		t.scrollToBottom()
	}
}

func (t *Transcript) scrollToBottom() {
	t.scrollOffset = max(0, len(t.wrapLines())-t.height)
}

// wrapLines renders every entry with its prefix, wrapped to the view width.
func (t *Transcript) wrapLines() []string {
	var out []string
	for _, e := range t.entries {
		prefix := speakerPrefix[e.speaker]
		style := speakerStyles[e.speaker]
		avail := t.width - runewidth.StringWidth(prefix)
		for i, part := range wrap(e.text, avail) {
			p := prefix
			if i > 0 {
				p = strings.Repeat(" ", runewidth.StringWidth(prefix))
			}
			out = append(out, p+style.Render(part))
		}
	}
	return out
}

// wrap breaks line into pieces no wider than width, preferring spaces.
func wrap(line string, width int) []string {
	if width <= 0 || runewidth.StringWidth(line) <= width {
		return []string{line}
	}

	var parts []string
	runes := []rune(line)
	for len(runes) > 0 {
		w, cut, lastSpace := 0, 0, -1
		for cut < len(runes) {
			rw := runewidth.RuneWidth(runes[cut])
			if w+rw > width {
				break
			}
			if runes[cut] == ' ' {
				lastSpace = cut
			}
			w += rw
			cut++
		}
		if cut == len(runes) {
			parts = append(parts, string(runes))
			break
		}
		if lastSpace > width/2 {
			cut = lastSpace + 1
		}
		if cut == 0 {
			cut = 1
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), " "))
		runes = runes[cut:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	return parts
}

func (t *Transcript) scrollIndicator(total int) string {
	if total <= t.height {
		return ""
	}
	percent := 0
	if maxOffset := total - t.height; maxOffset > 0 {
		percent = t.scrollOffset * 100 / maxOffset
	}
	follow := " [FOLLOW]"
	if !t.autoScroll {
		follow = " [PAUSED - End to follow]"
	}
	return speakerStyles[SpeakerProgress].Render(fmt.Sprintf("--- %d%% ---%s", percent, follow))
}
