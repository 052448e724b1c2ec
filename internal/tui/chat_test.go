package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpshade/scriptureqa/internal/pipeline"
	"github.com/dpshade/scriptureqa/internal/reference"
	"github.com/dpshade/scriptureqa/internal/session"
)

type MockAsker struct {
	err       error
	questions []string
}

func (m *MockAsker) Run(ctx context.Context, question string, rec pipeline.Recorder) (*pipeline.Result, error) {
	m.questions = append(m.questions, question)
	if m.err != nil {
		return &pipeline.Result{Question: question}, m.err
	}
	answer := &pipeline.Answer{
		Question:   question,
		Text:       "Love is patient (1 Corinthians 13:4).",
		References: []reference.Reference{"1 Corinthians 13:4", "John 3:16"},
		Elapsed:    1500 * time.Millisecond,
	}
	rec.Append(pipeline.Turn{Question: question, Answer: answer})
	return &pipeline.Result{Outcome: pipeline.OutcomeAnswered, Question: question, Answer: answer}, nil
}

func typeText(m *Model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func TestNew_RequiresAsker(t *testing.T) {
	m, err := New(context.Background(), nil, nil)

	assert.ErrorIs(t, err, ErrNoAsker)
	assert.Nil(t, m)
}

func TestNew_CreatesTranscriptWhenNil(t *testing.T) {
	m, err := New(context.Background(), &MockAsker{}, nil)

	require.NoError(t, err)
	assert.NotNil(t, m.Transcript())
}

func TestUpdate_EnterSubmitsQuestion(t *testing.T) {
	asker := &MockAsker{}
	m, _ := New(context.Background(), asker, session.NewTranscript())
	typeText(m, "What does the Bible say about love?")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Empty(t, m.input.Value())
	require.Len(t, m.entries, 1)
	assert.Equal(t, roleUser, m.entries[0].role)
}

func TestUpdate_EnterIgnoresBlankInput(t *testing.T) {
	m, _ := New(context.Background(), &MockAsker{}, nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.False(t, m.busy)
}

func TestUpdate_EnterIgnoredWhileBusy(t *testing.T) {
	m, _ := New(context.Background(), &MockAsker{}, nil)
	m.busy = true
	typeText(m, "another")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Empty(t, m.entries)
}

func TestAsk_SuccessRecordsTurn(t *testing.T) {
	asker := &MockAsker{}
	tr := session.NewTranscript()
	m, _ := New(context.Background(), asker, tr)
	m.busy = true

	msg := m.ask("love")()
	m.Update(msg)

	assert.False(t, m.busy)
	assert.Equal(t, 1, tr.Len())
	require.Len(t, m.entries, 1)
	assert.Equal(t, roleAssistant, m.entries[0].role)
	assert.Contains(t, m.entries[0].text, "Generated in 1.5s")
	assert.Contains(t, m.entries[0].text, "References: 1 Corinthians 13:4, John 3:16")
}

func TestFormatAnswer_MetaLinesUseMetaStyle(t *testing.T) {
	m, _ := New(context.Background(), &MockAsker{}, nil)

	out := m.formatAnswer(&pipeline.Answer{
		Text:       "Grace is a gift (Ephesians 2:8).",
		References: []reference.Reference{"Ephesians 2:8", "Romans 6:23"},
		Elapsed:    900 * time.Millisecond,
	})

	assert.Contains(t, out, m.styles.Assistant.Render("Grace is a gift (Ephesians 2:8)."))
	assert.Contains(t, out, m.styles.Meta.Render("Generated in 0.9s"))
	assert.Contains(t, out, m.styles.Meta.Render("References: Ephesians 2:8, Romans 6:23"))
}

func TestAsk_NoVersesShowsError(t *testing.T) {
	asker := &MockAsker{err: pipeline.ErrNoVersesResolved}
	tr := session.NewTranscript()
	m, _ := New(context.Background(), asker, tr)

	m.Update(m.ask("xyz")())

	assert.Equal(t, 0, tr.Len())
	require.Len(t, m.entries, 1)
	assert.Equal(t, roleError, m.entries[0].role)
	assert.Equal(t, "Could not fetch Bible verses. Please try again.", m.entries[0].text)
}

func TestAsk_CompositionFailureShowsError(t *testing.T) {
	asker := &MockAsker{err: &pipeline.CompositionError{Err: errors.New("model overloaded")}}
	m, _ := New(context.Background(), asker, nil)

	m.Update(m.ask("love")())

	require.Len(t, m.entries, 1)
	assert.Equal(t, roleError, m.entries[0].role)
	assert.Contains(t, m.entries[0].text, "model overloaded")
}

func TestUpdate_EscQuits(t *testing.T) {
	m, _ := New(context.Background(), &MockAsker{}, nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestUpdate_WindowSize(t *testing.T) {
	m, _ := New(context.Background(), &MockAsker{}, nil)

	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	assert.Equal(t, 120, m.width)
	assert.Equal(t, 33, m.viewport.Height)
}

func TestView_ShowsSpinnerWhileBusy(t *testing.T) {
	m, _ := New(context.Background(), &MockAsker{}, nil)

	assert.Contains(t, m.View(), "esc: quit")

	m.busy = true
	assert.Contains(t, m.View(), "Searching the Bible...")
}
