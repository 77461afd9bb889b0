package llmservice

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/genai"

	"research-assistant/internal/config"
	"research-assistant/internal/models"
)

// Generator turns one prompt into one completion.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

var thinkRe = regexp.MustCompile(models.ThinkTag)

// StripThinking drops <think>...</think> blocks emitted by reasoning models.
func StripThinking(s string) string {
	return strings.TrimSpace(thinkRe.ReplaceAllString(s, ""))
}

// NewLLM builds a langchaingo model for the ollama and openai providers.
func NewLLM(llmConfig *config.LLMConfig) (llms.Model, error) {
	switch llmConfig.Provider {
	case config.ProviderOllama:
		return ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	case config.ProviderOpenAI:
		return openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(llmConfig.APIKey(), "Bearer ")),
			openai.WithModel(llmConfig.Model),
		)
	default:
		return nil, fmt.Errorf("provider %q has no langchaingo model", llmConfig.Provider)
	}
}

// NewGeminiClient connects to the Gemini API with the configured key.
func NewGeminiClient(ctx context.Context, llmConfig *config.LLMConfig) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  llmConfig.APIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}

// NewGenerator returns the generator for llmConfig.Provider.
func NewGenerator(ctx context.Context, llmConfig *config.LLMConfig) (Generator, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Msg("Creating generator")
	timeout := time.Duration(llmConfig.TimeoutSecs) * time.Second

	if llmConfig.Provider == config.ProviderGemini {
		client, err := NewGeminiClient(ctx, llmConfig)
		if err != nil {
			return nil, err
		}
		return &geminiGenerator{client: client, model: llmConfig.Model, timeout: timeout}, nil
	}

	llm, err := NewLLM(llmConfig)
	if err != nil {
		return nil, err
	}
	return NewClient(llm, timeout), nil
}

// Client generates through any langchaingo model.
type Client struct {
	llm     llms.Model
	timeout time.Duration
}

func NewClient(llm llms.Model, timeout time.Duration) *Client {
	return &Client{llm: llm, timeout: timeout}
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msgContent := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	res, err := GenerateContent(ctx, c.llm, msgContent)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return StripThinking(res.Choices[0].Content), nil
}

// call llm
func GenerateContent(ctx context.Context, llm llms.Model, messages []llms.MessageContent) (*llms.ContentResponse, error) {
	start := time.Now()
	res, err := llm.GenerateContent(ctx, messages)
	log.Debug().Dur("took", time.Since(start)).Err(err).Msg("Generated content")
	return res, err
}

type geminiGenerator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini api call failed: %w", err)
	}
	return StripThinking(resp.Text()), nil
}
