package translator

import (
	"context"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"pdf-translator/internal/types"
)

const (
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// OpenAIConfig configures an OpenAI-compatible chat backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIBackend translates through any OpenAI-compatible chat completions
// endpoint.
type OpenAIBackend struct {
	chat  model.BaseChatModel
	model string
}

// NewOpenAIBackend creates the eino chat model. No request is made.
func NewOpenAIBackend(ctx context.Context, cfg OpenAIConfig) (*OpenAIBackend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, types.NewAppError(types.ErrConfig, "OpenAI API key is empty", nil)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	// the client appends /chat/completions itself
	baseURL := strings.TrimSuffix(strings.TrimSuffix(cfg.BaseURL, "/"), "/chat/completions")

	temperature := float32(0.1)
	chat, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     baseURL,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrAPICall, "failed to create chat model", err)
	}
	return &OpenAIBackend{chat: chat, model: cfg.Model}, nil
}

func (b *OpenAIBackend) Name() string { return "openai:" + b.model }

// Translate sends one system and one user message and returns the reply.
func (b *OpenAIBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	msg, err := b.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(buildSystemPrompt(sourceLang, targetLang)),
		schema.UserMessage(text),
	})
	if err != nil {
		return "", types.NewAppError(types.ErrAPICall, "chat completion failed", err)
	}
	if msg == nil {
		return "", nil
	}
	return cleanResponse(msg.Content), nil
}
