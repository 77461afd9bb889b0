package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"research-assistant/internal/models"
)

type Phase string

const (
	PhaseEmpty   Phase = "empty"
	PhaseIndexed Phase = "indexed"
	PhaseMode    Phase = "mode"
)

type Mode string

const (
	ModeNone      Mode = ""
	ModeAsk       Mode = "ask"
	ModeChallenge Mode = "challenge"
)

var (
	ErrNoDocument  = errors.New("no document has been uploaded")
	ErrWrongMode   = errors.New("operation not allowed in the current mode")
	ErrUnknownMode = errors.New("unknown mode")
	ErrNoQuiz      = errors.New("no quiz questions have been generated")
	ErrNotFound    = errors.New("session not found")
)

// Pipeline is the ingest and QA side of the assistant.
type Pipeline interface {
	Ingest(ctx context.Context, name string, r io.Reader) (*models.IngestResult, error)
	Query(ctx context.Context, query, uploadID string) (*models.PromptResponse, error)
}

// QuizMaker generates questions and evaluates answers to them.
type QuizMaker interface {
	Generate(ctx context.Context, docs []models.Document) ([]string, error)
	EvaluateAll(ctx context.Context, questions, answers []string, uploadID string) ([]models.Evaluation, error)
}

// Session is one user's walk through upload, mode choice and interaction.
// All state changes go through its methods, which serialise on mu.
type Session struct {
	mu sync.Mutex

	ID        string
	CreatedAt time.Time

	phase       Phase
	mode        Mode
	upload      *models.IngestResult
	questions   []string
	evaluations []models.Evaluation
	history     []models.PromptResponse

	pipeline Pipeline
	quiz     QuizMaker
}

// State is a copy of a session's state at one moment.
type State struct {
	ID          string
	Phase       Phase
	Mode        Mode
	Upload      *models.IngestResult
	Questions   []string
	Evaluations []models.Evaluation
	Exchanges   int
}

func New(id string, pipeline Pipeline, quiz QuizMaker) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		phase:     PhaseEmpty,
		pipeline:  pipeline,
		quiz:      quiz,
	}
}

// Upload indexes a new document. On failure the session keeps its previous state.
func (s *Session) Upload(ctx context.Context, name string, r io.Reader) (*models.IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.pipeline.Ingest(ctx, name, r)
	if err != nil {
		return nil, err
	}

	s.upload = res
	s.phase = PhaseIndexed
	s.mode = ModeNone
	s.questions = nil
	s.evaluations = nil
	log.Info().Str("session", s.ID).Str("file", res.Name).Str("upload_id", res.UploadID).Msg("Session document indexed")
	return res, nil
}

func (s *Session) SetMode(mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.upload == nil {
		return ErrNoDocument
	}
	switch mode {
	case ModeAsk, ModeChallenge:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	s.mode = mode
	s.phase = PhaseMode
	return nil
}

// Ask answers a free-form question about the indexed documents.
func (s *Session) Ask(ctx context.Context, query string) (*models.PromptResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(ModeAsk); err != nil {
		return nil, err
	}
	resp, err := s.pipeline.Query(ctx, query, s.upload.UploadID)
	if err != nil {
		return nil, err
	}
	s.history = append(s.history, *resp)
	return resp, nil
}

// GenerateQuiz returns the questions for the current upload, generating them on first use.
func (s *Session) GenerateQuiz(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(ModeChallenge); err != nil {
		return nil, err
	}
	if len(s.questions) > 0 {
		return s.questions, nil
	}

	questions, err := s.quiz.Generate(ctx, s.upload.Documents)
	if err != nil {
		return nil, err
	}
	s.questions = questions
	return questions, nil
}

// SubmitAnswers evaluates one answer per generated question.
func (s *Session) SubmitAnswers(ctx context.Context, answers []string) ([]models.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(ModeChallenge); err != nil {
		return nil, err
	}
	if len(s.questions) == 0 {
		return nil, ErrNoQuiz
	}

	evals, err := s.quiz.EvaluateAll(ctx, s.questions, answers, s.upload.UploadID)
	if err != nil {
		return nil, err
	}
	s.evaluations = evals
	return evals, nil
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		ID:          s.ID,
		Phase:       s.phase,
		Mode:        s.mode,
		Upload:      s.upload,
		Questions:   append([]string(nil), s.questions...),
		Evaluations: append([]models.Evaluation(nil), s.evaluations...),
		Exchanges:   len(s.history),
	}
}

func (s *Session) History() []models.PromptResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PromptResponse(nil), s.history...)
}

// caller holds mu
func (s *Session) require(mode Mode) error {
	if s.upload == nil {
		return ErrNoDocument
	}
	if s.mode != mode {
		return fmt.Errorf("%w: need %q, session is in %q", ErrWrongMode, mode, s.mode)
	}
	return nil
}
