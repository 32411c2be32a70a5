package translator

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"pdf-translator/internal/types"
)

const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiBackend translates with Google Gemini. The client is created once
// and released by Close.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

func NewGeminiBackend(ctx context.Context, cfg GeminiConfig) (*GeminiBackend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, types.NewAppError(types.ErrConfig, "Gemini API key is empty", nil)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, types.NewAppError(types.ErrAPICall, "failed to create gemini client", err)
	}
	return &GeminiBackend{client: cl, model: strings.TrimSpace(cfg.Model)}, nil
}

func (b *GeminiBackend) Name() string { return "gemini:" + b.model }

func (b *GeminiBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	m := b.client.GenerativeModel(b.model)
	m.SetTemperature(0.1)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(buildSystemPrompt(sourceLang, targetLang))},
	}

	resp, err := m.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		return "", types.NewAppError(types.ErrAPICall, "gemini generate failed", err)
	}
	return cleanResponse(firstText(resp)), nil
}

// Close releases the client's connections.
func (b *GeminiBackend) Close() error {
	return b.client.Close()
}

// firstText returns the first text part of the first candidate that has one.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}
