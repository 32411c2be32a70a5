// Package types defines the configuration and error types shared by the
// PDF translator packages.
package types

import (
	"errors"
	"time"
)

// Backend names accepted in Config.Backend.
const (
	BackendOpenAI = "openai"
	BackendGemini = "gemini"
)

// Config 应用配置
type Config struct {
	Backend string `json:"backend"` // "openai" 或 "gemini"

	OpenAIAPIKey  string `json:"openai_api_key"`
	OpenAIBaseURL string `json:"openai_base_url"` // OpenAI 兼容 API 的 Base URL
	OpenAIModel   string `json:"openai_model"`

	GeminiAPIKey string `json:"gemini_api_key"`
	GeminiModel  string `json:"gemini_model"`

	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`

	// 分块参数（字符数）
	MaxChunkLength int `json:"max_chunk_length"`
	ChunkOverlap   int `json:"chunk_overlap"`

	// 重试与超时
	MaxAttempts      int `json:"max_attempts"`
	BaseRetryDelayMs int `json:"base_retry_delay_ms"`
	BaseTimeoutSec   int `json:"base_timeout_sec"`
	MaxTimeoutSec    int `json:"max_timeout_sec"`
	PageDelayMs      int `json:"page_delay_ms"`

	// 单页允许失败的单元比例，0 表示任何失败都判定整页失败
	MaxFailedChunkRatio float64 `json:"max_failed_chunk_ratio"`

	CachePath string `json:"cache_path"` // 空表示不使用翻译缓存
	OutputDir string `json:"output_dir"`
	FlatText  bool   `json:"flat_text"` // true 时整页折叠为单行，不保留行结构
}

// BaseRetryDelay is the wait before the second attempt.
func (c *Config) BaseRetryDelay() time.Duration {
	return time.Duration(c.BaseRetryDelayMs) * time.Millisecond
}

func (c *Config) BaseTimeout() time.Duration {
	return time.Duration(c.BaseTimeoutSec) * time.Second
}

func (c *Config) MaxTimeout() time.Duration {
	return time.Duration(c.MaxTimeoutSec) * time.Second
}

// PageDelay is the pause between consecutive pages.
func (c *Config) PageDelay() time.Duration {
	return time.Duration(c.PageDelayMs) * time.Millisecond
}

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	ErrConfig       ErrorCode = "CONFIG_ERROR"
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrPDFInvalid   ErrorCode = "PDF_INVALID"
	ErrExtract      ErrorCode = "EXTRACT_FAILED"
	ErrAPICall      ErrorCode = "API_CALL_ERROR"
	ErrTranslation  ErrorCode = "TRANSLATION_FAILED"
	ErrOutput       ErrorCode = "OUTPUT_ERROR"
	ErrCache        ErrorCode = "CACHE_ERROR"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

func (e *AppError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Details: details, Cause: cause}
}

// IsCode reports whether err wraps an *AppError carrying code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	return errors.As(err, &ae) && ae.Code == code
}
