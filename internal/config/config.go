// Package config loads the translator configuration from a JSON file,
// fills defaults and applies environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

const (
	DefaultConfigFileName = "pdf-translator-config.json"

	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvOpenAIModel   = "OPENAI_MODEL"
	EnvGeminiAPIKey  = "GEMINI_API_KEY"
	EnvGeminiModel   = "GEMINI_MODEL"
	EnvBackend       = "TRANSLATOR_BACKEND"

	DefaultBackend     = types.BackendOpenAI
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-1.5-flash"
	DefaultSourceLang  = "zh-CN"
	DefaultTargetLang  = "en"

	DefaultMaxChunkLength   = 800
	DefaultChunkOverlap     = 100
	DefaultMaxAttempts      = 5
	DefaultBaseRetryDelayMs = 1000
	DefaultBaseTimeoutSec   = 30
	DefaultMaxTimeoutSec    = 180
	DefaultPageDelayMs      = 2000
	DefaultOutputDir        = "output"
)

// ConfigManager manages application configuration
type ConfigManager struct {
	configPath string
	config     *types.Config
	getenv     func(string) string
}

// NewConfigManager creates a ConfigManager for configPath. An empty path
// resolves to ~/.config/pdf-translator/pdf-translator-config.json.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "pdf-translator", DefaultConfigFileName)
	}

	logger.Debug("ConfigManager initialized", logger.String("configPath", configPath))
	return &ConfigManager{
		configPath: configPath,
		config:     Defaults(),
		getenv:     os.Getenv,
	}, nil
}

// Defaults returns a Config with every field set to its default.
func Defaults() *types.Config {
	return &types.Config{
		Backend:          DefaultBackend,
		OpenAIBaseURL:    DefaultBaseURL,
		OpenAIModel:      DefaultModel,
		GeminiModel:      DefaultGeminiModel,
		SourceLang:       DefaultSourceLang,
		TargetLang:       DefaultTargetLang,
		MaxChunkLength:   DefaultMaxChunkLength,
		ChunkOverlap:     DefaultChunkOverlap,
		MaxAttempts:      DefaultMaxAttempts,
		BaseRetryDelayMs: DefaultBaseRetryDelayMs,
		BaseTimeoutSec:   DefaultBaseTimeoutSec,
		MaxTimeoutSec:    DefaultMaxTimeoutSec,
		PageDelayMs:      DefaultPageDelayMs,
		OutputDir:        DefaultOutputDir,
	}
}

// Load reads the config file over the defaults. A missing file or invalid
// JSON falls back to defaults; other read errors are returned. Explicitly
// empty fields are defaulted and environment variables are applied last.
func (m *ConfigManager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	data, err := os.ReadFile(m.configPath)
	switch {
	case os.IsNotExist(err):
		logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
		m.config = Defaults()
	case err != nil:
		logger.Error("failed to read config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to read config file", err)
	default:
		// 以默认值为底，文件中缺省的字段保持默认
		cfg := Defaults()
		if err := json.Unmarshal(data, cfg); err != nil {
			logger.Warn("invalid config file format, using defaults", logger.String("path", m.configPath), logger.Err(err))
			cfg = Defaults()
		}
		m.config = cfg
	}

	fillDefaults(m.config)
	m.applyEnv()

	logger.Info("configuration loaded",
		logger.String("backend", m.config.Backend),
		logger.String("model", m.activeModel()),
		logger.Int("maxChunk", m.config.MaxChunkLength),
		logger.Int("overlap", m.config.ChunkOverlap))
	return nil
}

// fillDefaults repairs empty or out-of-range values.
func fillDefaults(c *types.Config) {
	d := Defaults()
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.OpenAIBaseURL == "" {
		c.OpenAIBaseURL = d.OpenAIBaseURL
	}
	if c.OpenAIModel == "" {
		c.OpenAIModel = d.OpenAIModel
	}
	if c.GeminiModel == "" {
		c.GeminiModel = d.GeminiModel
	}
	if c.SourceLang == "" {
		c.SourceLang = d.SourceLang
	}
	if c.TargetLang == "" {
		c.TargetLang = d.TargetLang
	}
	if c.MaxChunkLength <= 0 {
		c.MaxChunkLength = d.MaxChunkLength
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = d.ChunkOverlap
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseRetryDelayMs <= 0 {
		c.BaseRetryDelayMs = d.BaseRetryDelayMs
	}
	if c.BaseTimeoutSec <= 0 {
		c.BaseTimeoutSec = d.BaseTimeoutSec
	}
	if c.MaxTimeoutSec <= 0 {
		c.MaxTimeoutSec = d.MaxTimeoutSec
	}
	if c.PageDelayMs < 0 {
		c.PageDelayMs = d.PageDelayMs
	}
	if c.OutputDir == "" {
		c.OutputDir = d.OutputDir
	}
}

// applyEnv lets environment variables override file values, except that
// an API key in the file wins over the environment.
func (m *ConfigManager) applyEnv() {
	c := m.config
	if c.OpenAIAPIKey == "" {
		c.OpenAIAPIKey = m.getenv(EnvOpenAIAPIKey)
	}
	if c.GeminiAPIKey == "" {
		c.GeminiAPIKey = m.getenv(EnvGeminiAPIKey)
	}
	if v := m.getenv(EnvOpenAIBaseURL); v != "" {
		c.OpenAIBaseURL = v
	}
	if v := m.getenv(EnvOpenAIModel); v != "" {
		c.OpenAIModel = v
	}
	if v := m.getenv(EnvGeminiModel); v != "" {
		c.GeminiModel = v
	}
	if v := m.getenv(EnvBackend); v != "" {
		c.Backend = strings.ToLower(v)
	}
}

func (m *ConfigManager) activeModel() string {
	if m.config.Backend == types.BackendGemini {
		return m.config.GeminiModel
	}
	return m.config.OpenAIModel
}

// Validate checks the values that cannot be defaulted away.
func (m *ConfigManager) Validate() error {
	return Validate(m.GetConfig())
}

// Validate checks c for a known backend with an API key and consistent
// chunking parameters.
func Validate(c *types.Config) error {
	var problems []string
	switch c.Backend {
	case types.BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			problems = append(problems, fmt.Sprintf("openai backend requires an API key (%s)", EnvOpenAIAPIKey))
		}
	case types.BackendGemini:
		if c.GeminiAPIKey == "" {
			problems = append(problems, fmt.Sprintf("gemini backend requires an API key (%s)", EnvGeminiAPIKey))
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown backend %q", c.Backend))
	}
	if c.MaxChunkLength <= 0 {
		problems = append(problems, "max_chunk_length must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.MaxChunkLength {
		problems = append(problems, "chunk_overlap must be in [0, max_chunk_length)")
	}
	if c.MaxFailedChunkRatio < 0 || c.MaxFailedChunkRatio > 1 {
		problems = append(problems, "max_failed_chunk_ratio must be in [0, 1]")
	}
	if c.MaxTimeoutSec < c.BaseTimeoutSec {
		problems = append(problems, "max_timeout_sec must not be below base_timeout_sec")
	}
	if len(problems) > 0 {
		return types.NewAppErrorWithDetails(types.ErrConfig, "invalid configuration", strings.Join(problems, "; "), nil)
	}
	return nil
}

// Save writes the current configuration, creating its directory.
func (m *ConfigManager) Save() error {
	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	// 配置中包含 API key，仅本人可读
	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved", logger.String("path", m.configPath))
	return nil
}

// GetConfig returns the current configuration.
func (m *ConfigManager) GetConfig() *types.Config {
	if m.config == nil {
		return Defaults()
	}
	return m.config
}

func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}
