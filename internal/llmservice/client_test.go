package llmservice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"research-assistant/internal/config"
)

type stubModel struct {
	reply    string
	err      error
	messages []llms.MessageContent
}

func (s *stubModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	s.messages = messages
	if s.err != nil {
		return nil, s.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s.reply}}}, nil
}

func (s *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, prompt, options...)
}

func TestStripThinking(t *testing.T) {
	assert.Equal(t, "The answer.", StripThinking("<think>\nlet me see\n</think>\nThe answer."))
	assert.Equal(t, "plain", StripThinking("  plain \n"))
}

func TestClientGenerate(t *testing.T) {
	model := &stubModel{reply: "<think>hmm</think>Paris"}
	got, err := NewClient(model, 0).Generate(context.Background(), "Capital of France?")
	require.NoError(t, err)

	assert.Equal(t, "Paris", got)
	require.Len(t, model.messages, 1)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[0].Role)
}

func TestClientGeneratePropagatesErrors(t *testing.T) {
	model := &stubModel{err: errors.New("connection refused")}
	_, err := NewClient(model, 0).Generate(context.Background(), "hi")
	assert.ErrorContains(t, err, "connection refused")
}

func TestNewLLMUnknownProvider(t *testing.T) {
	_, err := NewLLM(&config.LLMConfig{Provider: config.ProviderGemini})
	assert.Error(t, err)
}
