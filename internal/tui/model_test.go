package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-assistant/internal/models"
	"research-assistant/internal/parser"
	"research-assistant/internal/session"
)

type fakeAssistant struct {
	mode     session.Mode
	uploaded string
	answers  []string
}

func (f *fakeAssistant) Upload(_ context.Context, name string, r io.Reader) (*models.IngestResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.uploaded = string(data)
	return &models.IngestResult{Name: name, UploadID: "abc", Documents: []models.Document{{Content: string(data)}}, Chunks: 1}, nil
}

func (f *fakeAssistant) SetMode(mode session.Mode) error {
	f.mode = mode
	return nil
}

func (f *fakeAssistant) Ask(_ context.Context, query string) (*models.PromptResponse, error) {
	return &models.PromptResponse{Query: query, Content: "answer to " + query, Sources: []models.Source{{Content: "evidence"}}}, nil
}

func (f *fakeAssistant) GenerateQuiz(context.Context) ([]string, error) {
	return []string{"Q one?", "Q two?"}, nil
}

func (f *fakeAssistant) SubmitAnswers(_ context.Context, answers []string) ([]models.Evaluation, error) {
	f.answers = answers
	evals := make([]models.Evaluation, len(answers))
	for i, a := range answers {
		evals[i] = models.Evaluation{Answer: a, Verdict: fmt.Sprintf("verdict %d", i+1)}
	}
	return evals, nil
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func ready(t *testing.T, a Assistant) Model {
	t.Helper()
	return update(t, New(context.Background(), a, 300), tea.WindowSizeMsg{Width: 100, Height: 40})
}

func TestUploadCmd(t *testing.T) {
	a := &fakeAssistant{}
	m := ready(t, a)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("some notes"), 0o644))

	msg := m.uploadCmd(path)()
	require.IsType(t, ingestedMsg{}, msg)
	assert.Equal(t, "some notes", a.uploaded)
	assert.Equal(t, "notes.txt", msg.(ingestedMsg).res.Name)

	missing := m.uploadCmd(filepath.Join(t.TempDir(), "gone.txt"))()
	assert.IsType(t, errMsg{}, missing)
}

func TestEnterStartsUpload(t *testing.T) {
	m := ready(t, &fakeAssistant{})
	m.input.SetValue("/tmp/paper.pdf")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	nm := next.(Model)
	assert.True(t, nm.busy)
	assert.NotNil(t, cmd)
	assert.Contains(t, nm.status, "paper.pdf")

	// keys are ignored while a model call is running
	nm = update(t, nm, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Equal(t, "", nm.input.Value())
}

func TestUnsupportedUploadMessage(t *testing.T) {
	m := ready(t, &fakeAssistant{})
	m = update(t, m, errMsg{fmt.Errorf("%w: %q", parser.ErrUnsupportedFormat, ".md")})
	assert.Equal(t, models.UnsupportedMsg, m.status)
	assert.Equal(t, stageFile, m.stage)

	m = update(t, m, errMsg{errors.New("boom")})
	assert.Equal(t, "Error: boom", m.status)
}

func TestAskFlow(t *testing.T) {
	a := &fakeAssistant{}
	m := ready(t, a)
	m = update(t, m, ingestedMsg{&models.IngestResult{Name: "paper.txt", Documents: make([]models.Document, 2)}})
	assert.Equal(t, stageMode, m.stage)
	assert.Contains(t, m.status, "Loaded 2 document chunks")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, stageAsk, m.stage)
	assert.Equal(t, session.ModeAsk, a.mode)

	msg := m.askCmd("why?")()
	m = update(t, m, msg)
	assert.Contains(t, m.viewport.View(), "answer to why?")
	assert.Contains(t, m.View(), "Answer")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, stageMode, m.stage)
}

func TestChallengeFlow(t *testing.T) {
	a := &fakeAssistant{}
	m := ready(t, a)
	m = update(t, m, ingestedMsg{&models.IngestResult{Name: "paper.txt"}})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.cursor)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	assert.Equal(t, stageChallenge, m.stage)
	assert.Equal(t, session.ModeChallenge, a.mode)
	assert.True(t, m.busy)
	assert.NotNil(t, cmd)

	m = update(t, m, m.quizCmd()())
	require.Len(t, m.answers, 2)
	assert.Contains(t, m.viewport.View(), "Q1: Q one?")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("first")})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("second")})
	assert.Equal(t, "first", m.answers[0].Value())
	assert.Equal(t, "second", m.answers[1].Value())

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	m = next.(Model)
	assert.True(t, m.busy)
	assert.NotNil(t, cmd)

	m = update(t, m, m.evaluateCmd([]string{"first", "second"})())
	assert.False(t, m.busy)
	assert.Equal(t, []string{"first", "second"}, a.answers)
	assert.Contains(t, m.viewport.View(), "verdict 2")
}
