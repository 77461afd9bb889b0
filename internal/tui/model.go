package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"research-assistant/internal/helper"
	"research-assistant/internal/models"
	"research-assistant/internal/parser"
	"research-assistant/internal/session"
)

// Assistant is the TUI-facing side of a session.
type Assistant interface {
	Upload(ctx context.Context, name string, r io.Reader) (*models.IngestResult, error)
	SetMode(mode session.Mode) error
	Ask(ctx context.Context, query string) (*models.PromptResponse, error)
	GenerateQuiz(ctx context.Context) ([]string, error)
	SubmitAnswers(ctx context.Context, answers []string) ([]models.Evaluation, error)
}

type stage int

const (
	stageFile stage = iota
	stageMode
	stageAsk
	stageChallenge
)

var modes = []struct {
	label string
	mode  session.Mode
}{
	{"Ask Anything", session.ModeAsk},
	{"Challenge Me", session.ModeChallenge},
}

type (
	ingestedMsg  struct{ res *models.IngestResult }
	answerMsg    struct{ resp *models.PromptResponse }
	questionsMsg struct{ questions []string }
	evaluatedMsg struct{ evals []models.Evaluation }
	errMsg       struct{ err error }
)

// Model is the Bubble Tea model: file prompt, mode selector, then ask or challenge view.
type Model struct {
	ctx          context.Context
	assistant    Assistant
	previewChars int

	stage    stage
	input    textinput.Model
	answers  []textinput.Model
	focus    int
	cursor   int
	viewport viewport.Model
	spinner  spinner.Model

	upload    *models.IngestResult
	questions []string
	status    string
	busy      bool
	ready     bool
}

func New(ctx context.Context, assistant Assistant, previewChars int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Path to a PDF or TXT file"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:          ctx,
		assistant:    assistant,
		previewChars: previewChars,
		stage:        stageFile,
		input:        ti,
		viewport:     viewport.New(0, 0),
		spinner:      sp,
		status:       "Upload a PDF or TXT file",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := boxStyle.GetFrameSize()
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-fh-8)
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case errMsg:
		m.busy = false
		m.status = "Error: " + msg.err.Error()
		if errors.Is(msg.err, parser.ErrUnsupportedFormat) {
			m.status = models.UnsupportedMsg
		}
		return m, nil

	case ingestedMsg:
		m.busy = false
		m.upload = msg.res
		m.questions = nil
		m.answers = nil
		m.stage = stageMode
		m.cursor = 0
		m.status = fmt.Sprintf("File uploaded successfully! Loaded %d document chunks.", len(msg.res.Documents))
		m.viewport.SetContent("")
		return m, nil

	case answerMsg:
		m.busy = false
		m.status = "Answered"
		m.viewport.SetContent(m.renderAnswer(msg.resp))
		m.viewport.GotoTop()
		return m, nil

	case questionsMsg:
		m.busy = false
		m.questions = msg.questions
		if len(msg.questions) == 0 {
			m.status = "The model did not return any numbered questions"
			return m, nil
		}
		m.answers = make([]textinput.Model, len(msg.questions))
		for i := range m.answers {
			ti := textinput.New()
			ti.Prompt = fmt.Sprintf("Your Answer to Q%d: ", i+1)
			ti.CharLimit = 0
			m.answers[i] = ti
		}
		m.focus = 0
		m.answers[0].Focus()
		m.status = "Questions generated successfully! tab to move, ctrl+s to submit"
		m.viewport.SetContent(m.renderQuestions())
		return m, nil

	case evaluatedMsg:
		m.busy = false
		m.status = "Evaluation Results"
		m.viewport.SetContent(m.renderEvaluations(msg.evals))
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		return m.handleKey(msg)
	}

	return m.updateInputs(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.stage {
	case stageFile:
		if msg.Type == tea.KeyEnter {
			path := strings.TrimSpace(m.input.Value())
			if path == "" {
				return m, nil
			}
			m.input.SetValue("")
			return m.start("Indexing "+filepath.Base(path), m.uploadCmd(path))
		}

	case stageMode:
		switch msg.String() {
		case "up", "k":
			m.cursor = (m.cursor - 1 + len(modes)) % len(modes)
			return m, nil
		case "down", "j":
			m.cursor = (m.cursor + 1) % len(modes)
			return m, nil
		case "u":
			m.stage = stageFile
			m.status = "Upload a PDF or TXT file"
			m.input.Placeholder = "Path to a PDF or TXT file"
			return m, nil
		case "enter":
			return m.chooseMode()
		}
		return m, nil

	case stageAsk:
		switch msg.Type {
		case tea.KeyEsc:
			m.stage = stageMode
			return m, nil
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			return m.start("Thinking", m.askCmd(q))
		}

	case stageChallenge:
		switch msg.Type {
		case tea.KeyEsc:
			m.stage = stageMode
			return m, nil
		case tea.KeyTab, tea.KeyDown:
			m.moveFocus(1)
			return m, nil
		case tea.KeyShiftTab, tea.KeyUp:
			m.moveFocus(-1)
			return m, nil
		case tea.KeyCtrlS:
			if len(m.answers) == 0 {
				return m, nil
			}
			answers := make([]string, len(m.answers))
			for i, a := range m.answers {
				answers[i] = a.Value()
			}
			return m.start("Evaluating answers", m.evaluateCmd(answers))
		}
	}
	return m.updateInputs(msg)
}

func (m Model) chooseMode() (tea.Model, tea.Cmd) {
	mode := modes[m.cursor].mode
	if err := m.assistant.SetMode(mode); err != nil {
		m.status = "Error: " + err.Error()
		return m, nil
	}
	m.viewport.SetContent("")
	if mode == session.ModeAsk {
		m.stage = stageAsk
		m.input.Placeholder = "Enter your question"
		m.input.Focus()
		m.status = "Ask Anything About the Document"
		return m, nil
	}
	m.stage = stageChallenge
	if len(m.questions) > 0 {
		m.viewport.SetContent(m.renderQuestions())
		return m, nil
	}
	return m.start("Generating questions", m.quizCmd())
}

func (m Model) start(status string, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.busy = true
	m.status = status
	return m, tea.Batch(m.spinner.Tick, cmd)
}

func (m *Model) moveFocus(delta int) {
	if len(m.answers) == 0 {
		return
	}
	m.answers[m.focus].Blur()
	m.focus = (m.focus + delta + len(m.answers)) % len(m.answers)
	m.answers[m.focus].Focus()
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	switch m.stage {
	case stageFile, stageAsk:
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	case stageChallenge:
		if len(m.answers) > 0 {
			m.answers[m.focus], cmd = m.answers[m.focus].Update(msg)
			cmds = append(cmds, cmd)
		}
	}
	// letters belong to the inputs; the viewport only scrolls by page keys
	if k, ok := msg.(tea.KeyMsg); !ok || k.Type == tea.KeyPgUp || k.Type == tea.KeyPgDown {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) uploadCmd(path string) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return errMsg{err}
		}
		defer f.Close()
		res, err := m.assistant.Upload(m.ctx, filepath.Base(path), f)
		if err != nil {
			return errMsg{err}
		}
		return ingestedMsg{res}
	}
}

func (m Model) askCmd(query string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.assistant.Ask(m.ctx, query)
		if err != nil {
			return errMsg{err}
		}
		return answerMsg{resp}
	}
}

func (m Model) quizCmd() tea.Cmd {
	return func() tea.Msg {
		questions, err := m.assistant.GenerateQuiz(m.ctx)
		if err != nil {
			return errMsg{err}
		}
		return questionsMsg{questions}
	}
}

func (m Model) evaluateCmd(answers []string) tea.Cmd {
	return func() tea.Msg {
		evals, err := m.assistant.SubmitAnswers(m.ctx, answers)
		if err != nil {
			return errMsg{err}
		}
		return evaluatedMsg{evals}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Smart Research Assistant"))
	b.WriteString("\n")
	if m.upload != nil {
		b.WriteString(dimStyle.Render(fmt.Sprintf("%s  upload=%s  chunks=%d  collection=%d",
			m.upload.Name, m.upload.UploadID, m.upload.Chunks, m.upload.CollectionSize)))
		b.WriteString("\n")
	}

	switch m.stage {
	case stageFile:
		b.WriteString(boxStyle.Render(m.input.View()))
	case stageMode:
		b.WriteString("Choose Interaction Mode\n")
		for i, opt := range modes {
			mark := "( )"
			if i == m.cursor {
				mark = selectedStyle.Render("(•)")
			}
			b.WriteString(fmt.Sprintf("  %s %s\n", mark, opt.label))
		}
		b.WriteString(dimStyle.Render("enter to choose, u to upload another file"))
	case stageAsk:
		b.WriteString(boxStyle.Render(m.viewport.View()))
		b.WriteString("\n")
		b.WriteString(boxStyle.Render(m.input.View()))
	case stageChallenge:
		b.WriteString(boxStyle.Render(m.viewport.View()))
		for _, a := range m.answers {
			b.WriteString("\n")
			b.WriteString(a.View())
		}
	}

	b.WriteString("\n")
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(statusStyle.Render(status))
	return b.String()
}

func (m Model) renderAnswer(resp *models.PromptResponse) string {
	var b strings.Builder
	b.WriteString(headingStyle.Render("Answer"))
	b.WriteString("\n")
	b.WriteString(resp.Content)
	b.WriteString("\n\n")
	b.WriteString(headingStyle.Render("Sources"))
	for _, s := range resp.Sources {
		b.WriteString("\n")
		b.WriteString(sourceStyle.Render(helper.Preview(s.Content, m.previewChars)))
	}
	return b.String()
}

func (m Model) renderQuestions() string {
	var b strings.Builder
	for i, q := range m.questions {
		b.WriteString(headingStyle.Render(fmt.Sprintf("Q%d: %s", i+1, q)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderEvaluations(evals []models.Evaluation) string {
	var b strings.Builder
	for i, e := range evals {
		b.WriteString(headingStyle.Render(fmt.Sprintf("Q%d Evaluation:", i+1)))
		b.WriteString("\n")
		b.WriteString(e.Verdict)
		b.WriteString("\n\n")
	}
	return b.String()
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	headingStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).PaddingLeft(1)
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
