// Package translator calls a translation service for one unit of text at a
// time. Backends wrap a concrete model API; Invoker adds timeouts and
// retries on top of any backend.
package translator

import (
	"context"
	"fmt"
	"strings"

	"pdf-translator/internal/types"
)

// Backend translates a single unit of text.
type Backend interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
	Name() string
}

// Func adapts a plain function to Backend.
type Func func(ctx context.Context, text, sourceLang, targetLang string) (string, error)

func (f Func) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return f(ctx, text, sourceLang, targetLang)
}

func (f Func) Name() string { return "func" }

// NewBackend 根据配置创建翻译后端
func NewBackend(ctx context.Context, cfg *types.Config) (Backend, error) {
	if cfg == nil {
		return nil, types.NewAppError(types.ErrConfig, "config is nil", nil)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", types.BackendOpenAI:
		b, err := NewOpenAIBackend(ctx, OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case types.BackendGemini:
		b, err := NewGeminiBackend(ctx, GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, types.NewAppErrorWithDetails(types.ErrConfig, "unknown backend", cfg.Backend, nil)
	}
}

var languageNames = map[string]string{
	"zh":    "Chinese",
	"zh-cn": "Simplified Chinese",
	"zh-tw": "Traditional Chinese",
	"en":    "English",
	"ja":    "Japanese",
	"ko":    "Korean",
	"fr":    "French",
	"de":    "German",
	"es":    "Spanish",
	"ru":    "Russian",
}

// LanguageName maps a language code to the name used in prompts. Unknown
// codes are returned as given.
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(strings.TrimSpace(code))]; ok {
		return name
	}
	return code
}

// buildSystemPrompt 构建翻译系统提示词
func buildSystemPrompt(sourceLang, targetLang string) string {
	return fmt.Sprintf(`You are a professional translator specializing in technical documents. Translate the %s text you are given into %s.

Requirements:
1. Keep the original formatting and structure, including line breaks and blank lines
2. Translate technical terms accurately and consistently
3. Keep proper nouns, company names and product names as appropriate
4. Keep numbering, bullet points, page numbers and dot leaders exactly as they are
5. Make the translation natural and professional

Output only the translated text, without explanations, notes or quotation marks.`,
		LanguageName(sourceLang), LanguageName(targetLang))
}

// cleanResponse strips wrappers some models put around the answer.
func cleanResponse(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") && len(s) >= 6 {
		s = strings.TrimSuffix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSpace(s)
	}
	return s
}
