// Package tui provides the interactive terminal chat.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dpshade/scriptureqa/internal/pipeline"
	"github.com/dpshade/scriptureqa/internal/reference"
	"github.com/dpshade/scriptureqa/internal/session"
)

// ErrNoAsker indicates that no pipeline was provided.
var ErrNoAsker = errors.New("asker is required")

// Asker runs a question through the pipeline.
type Asker interface {
	Run(ctx context.Context, question string, rec pipeline.Recorder) (*pipeline.Result, error)
}

type role int

const (
	roleUser role = iota
	roleAssistant
	roleError
)

type entry struct {
	role role
	text string
}

// answerMsg carries a finished turn back to the UI.
type answerMsg struct {
	result *pipeline.Result
	err    error
}

// Model is the chat view: transcript viewport, spinner and question input.
type Model struct {
	ctx        context.Context
	asker      Asker
	transcript *session.Transcript
	styles     *Styles

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	entries []entry
	busy    bool
	width   int
	height  int
}

// New creates the chat model. The transcript lives as long as the model.
func New(ctx context.Context, asker Asker, transcript *session.Transcript) (*Model, error) {
	if asker == nil {
		return nil, ErrNoAsker
	}
	if transcript == nil {
		transcript = session.NewTranscript()
	}

	ti := textinput.New()
	ti.Placeholder = "What does the Bible say about..."
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		ctx:        ctx,
		asker:      asker,
		transcript: transcript,
		styles:     DefaultStyles(),
		input:      ti,
		viewport:   viewport.New(80, 16),
		spinner:    sp,
		width:      80,
		height:     24,
	}
	m.refresh()
	return m, nil
}

// Transcript returns the session transcript.
func (m *Model) Transcript() *session.Transcript {
	return m.transcript
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		//nolint:exhaustive // handling only relevant key types
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.handleAnswer(msg)
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit starts a turn for the current input.
func (m *Model) submit() tea.Cmd {
	question := strings.TrimSpace(m.input.Value())
	if question == "" || m.busy {
		return nil
	}

	m.input.Reset()
	m.busy = true
	m.entries = append(m.entries, entry{role: roleUser, text: question})
	m.refresh()

	return tea.Batch(m.ask(question), m.spinner.Tick)
}

// ask runs the pipeline off the UI loop.
func (m *Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		result, err := m.asker.Run(m.ctx, question, m.transcript)
		return answerMsg{result: result, err: err}
	}
}

func (m *Model) handleAnswer(msg answerMsg) {
	m.busy = false

	switch {
	case msg.err == nil:
		m.entries = append(m.entries, entry{role: roleAssistant, text: m.formatAnswer(msg.result.Answer)})
	case errors.Is(msg.err, pipeline.ErrNoVersesResolved):
		m.entries = append(m.entries, entry{role: roleError, text: "Could not fetch Bible verses. Please try again."})
	default:
		m.entries = append(m.entries, entry{role: roleError, text: msg.err.Error()})
	}
	m.refresh()
}

// formatAnswer renders the summary, then the timing and every proposed
// reference in the meta style.
func (m *Model) formatAnswer(a *pipeline.Answer) string {
	var b strings.Builder
	b.WriteString(m.styles.Assistant.Render(a.Text))
	b.WriteString("\n\n")
	b.WriteString(m.styles.Meta.Render(fmt.Sprintf("Generated in %.1fs", a.Elapsed.Seconds())))
	b.WriteString("\n")
	b.WriteString(m.styles.Meta.Render("References: " + strings.Join(reference.Strings(a.References), ", ")))
	return b.String()
}

func (m *Model) setSize(width, height int) {
	m.width = width
	m.height = height

	inputWidth := width - 8
	if inputWidth < 20 {
		inputWidth = 20
	}
	m.input.Width = inputWidth

	// Header (2 lines), status (1) and bordered input (3).
	vpHeight := height - 7
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = width
	m.viewport.Height = vpHeight
	m.refresh()
}

// refresh re-renders the transcript into the viewport.
func (m *Model) refresh() {
	wrap := lipgloss.NewStyle().Width(m.width)

	var parts []string
	for _, e := range m.entries {
		switch e.role {
		case roleUser:
			parts = append(parts, m.styles.User.Render("You: ")+e.text)
		case roleAssistant:
			parts = append(parts, wrap.Render(e.text))
		case roleError:
			parts = append(parts, wrap.Render(m.styles.Error.Render(e.text)))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, m.styles.Subtitle.Render("Ask any question about the Bible and get answers with references."))
	}

	m.viewport.SetContent(strings.Join(parts, "\n\n"))
	m.viewport.GotoBottom()
}

// View implements tea.Model.
func (m *Model) View() string {
	header := lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Title.Render("Bible Study"),
		m.styles.Subtitle.Render(fmt.Sprintf("%d answered this session", m.transcript.Len())),
	)

	status := m.styles.Help.Render("enter: ask • pgup/pgdn: scroll • esc: quit")
	if m.busy {
		status = m.spinner.View() + " Searching the Bible..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		status,
		m.styles.InputField.Render(m.input.View()),
	)
}
