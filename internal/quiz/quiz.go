package quiz

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/prompts"

	"research-assistant/internal/config"
	"research-assistant/internal/helper"
	"research-assistant/internal/llmservice"
	"research-assistant/internal/models"
)

// ErrNoQuestions is returned in strict mode when the model output held too few numbered questions.
var ErrNoQuestions = errors.New("model output contained too few numbered questions")

// Answerer is the QA orchestrator evaluations are routed through.
type Answerer interface {
	QueryFor(ctx context.Context, retrievalQuery, question, uploadID string) (*models.PromptResponse, error)
}

type Quiz struct {
	llm        llmservice.Generator
	answerer   Answerer
	cfg        config.QuizConfig
	prompt     prompts.PromptTemplate
	evalPrompt prompts.PromptTemplate
}

func New(llm llmservice.Generator, answerer Answerer, cfg config.QuizConfig) *Quiz {
	return &Quiz{
		llm:        llm,
		answerer:   answerer,
		cfg:        cfg,
		prompt:     prompts.NewPromptTemplate(models.QuizPromptTemplate, []string{"count", "context", "format"}),
		evalPrompt: prompts.NewPromptTemplate(models.EvaluationPromptTemplate, []string{"question", "answer"}),
	}
}

// BuildContext joins the first n documents with newlines and cuts the result to limit characters.
func BuildContext(docs []models.Document, n, limit int) string {
	if n < len(docs) {
		docs = docs[:n]
	}
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return helper.Truncate(strings.Join(parts, "\n"), limit)
}

// Generate asks the model for numbered questions about the leading documents.
func (q *Quiz) Generate(ctx context.Context, docs []models.Document) ([]string, error) {
	prompt, err := q.prompt.Format(map[string]any{
		"count":   q.cfg.Questions,
		"context": BuildContext(docs, q.cfg.ContextDocs, q.cfg.ContextChars),
		"format":  numberedFormat(q.cfg.Questions),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format quiz prompt: %w", err)
	}

	output, err := q.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	questions := ParseNumbered(output, q.cfg.Questions)
	if len(questions) < q.cfg.Questions {
		if q.cfg.Strict {
			return questions, fmt.Errorf("%w: got %d of %d", ErrNoQuestions, len(questions), q.cfg.Questions)
		}
		log.Warn().Int("parsed", len(questions)).Int("wanted", q.cfg.Questions).Msg("Quiz output did not follow the numbered format")
	}
	return questions, nil
}

// Evaluate judges one answer through the orchestrator and keeps the sources it used.
func (q *Quiz) Evaluate(ctx context.Context, question, answer, uploadID string) (*models.Evaluation, error) {
	prompt, err := q.evalPrompt.Format(map[string]any{
		"question": question,
		"answer":   answer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format evaluation prompt: %w", err)
	}

	retrieval := prompt
	if q.cfg.EvaluationRetrieval == config.RetrieveByQuestion {
		retrieval = question
	}

	resp, err := q.answerer.QueryFor(ctx, retrieval, prompt, uploadID)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate answer: %w", err)
	}
	return &models.Evaluation{
		Question: question,
		Answer:   answer,
		Verdict:  resp.Content,
		Sources:  resp.Sources,
	}, nil
}

// EvaluateAll evaluates answers[i] against questions[i], in order.
func (q *Quiz) EvaluateAll(ctx context.Context, questions, answers []string, uploadID string) ([]models.Evaluation, error) {
	if len(questions) != len(answers) {
		return nil, fmt.Errorf("got %d answers for %d questions", len(answers), len(questions))
	}
	evals := make([]models.Evaluation, 0, len(questions))
	for i := range questions {
		e, err := q.Evaluate(ctx, questions[i], answers[i], uploadID)
		if err != nil {
			return evals, err
		}
		evals = append(evals, *e)
	}
	return evals, nil
}

var numberedLine = regexp.MustCompile(`^([1-9]\d*)\.`)

// ParseQuestions extracts the lines numbered "1." to "3.".
func ParseQuestions(output string) []string {
	return ParseNumbered(output, 3)
}

// ParseNumbered keeps lines whose trimmed text starts with "1." up to "n.", minus that prefix.
// Any other line is dropped.
func ParseNumbered(output string, n int) []string {
	var questions []string
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil || num < 1 || num > n {
			continue
		}
		questions = append(questions, strings.TrimSpace(line[len(m[0]):]))
	}
	return questions
}

func numberedFormat(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("%d. ...", i+1)
	}
	return strings.Join(lines, "\n")
}
