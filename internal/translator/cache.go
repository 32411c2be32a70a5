package translator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

const cacheVersion = "1.0"

// CacheEntry 缓存条目
type CacheEntry struct {
	Hash        string    `json:"hash"`
	SourceLang  string    `json:"source_lang"`
	TargetLang  string    `json:"target_lang"`
	Original    string    `json:"original"`
	Translation string    `json:"translation"`
	CreatedAt   time.Time `json:"created_at"`
}

// CacheFile 缓存文件格式
type CacheFile struct {
	Version string       `json:"version"`
	Entries []CacheEntry `json:"entries"`
}

// Cache 负责缓存翻译结果，以 SHA256(源语言|目标语言|原文) 为键
type Cache struct {
	cachePath string
	entries   map[string]CacheEntry
	dirty     bool
	mu        sync.RWMutex
}

// NewCache creates an empty cache. An empty path keeps it in memory only.
func NewCache(cachePath string) *Cache {
	return &Cache{
		cachePath: cachePath,
		entries:   make(map[string]CacheEntry),
	}
}

// ComputeHash 计算缓存键
func ComputeHash(sourceLang, targetLang, text string) string {
	hash := sha256.Sum256([]byte(sourceLang + "|" + targetLang + "|" + text))
	return hex.EncodeToString(hash[:])
}

func (c *Cache) Get(sourceLang, targetLang, text string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[ComputeHash(sourceLang, targetLang, text)]
	if !ok {
		return "", false
	}
	return entry.Translation, true
}

func (c *Cache) Set(sourceLang, targetLang, text, translation string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hash := ComputeHash(sourceLang, targetLang, text)
	c.entries[hash] = CacheEntry{
		Hash:        hash,
		SourceLang:  sourceLang,
		TargetLang:  targetLang,
		Original:    text,
		Translation: translation,
		CreatedAt:   time.Now(),
	}
	c.dirty = true
}

// Load 从文件加载缓存。文件不存在时保持空缓存
func (c *Cache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachePath == "" {
		return nil
	}
	data, err := os.ReadFile(c.cachePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return types.NewAppError(types.ErrCache, "failed to read cache file", err)
	}

	var file CacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return types.NewAppError(types.ErrCache, "failed to parse cache file", err)
	}
	c.entries = make(map[string]CacheEntry, len(file.Entries))
	for _, entry := range file.Entries {
		c.entries[entry.Hash] = entry
	}
	c.dirty = false
	logger.Debug("translation cache loaded",
		logger.String("path", c.cachePath),
		logger.Int("entries", len(c.entries)))
	return nil
}

// Save 保存缓存到文件。没有新条目时不写盘
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachePath == "" || !c.dirty {
		return nil
	}
	entries := make([]CacheEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	data, err := json.MarshalIndent(CacheFile{Version: cacheVersion, Entries: entries}, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrCache, "failed to marshal cache", err)
	}
	if dir := filepath.Dir(c.cachePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return types.NewAppError(types.ErrCache, "failed to create cache directory", err)
		}
	}
	if err := os.WriteFile(c.cachePath, data, 0644); err != nil {
		return types.NewAppError(types.ErrCache, "failed to write cache file", err)
	}
	c.dirty = false
	return nil
}

func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) Path() string { return c.cachePath }

type cachedBackend struct {
	inner Backend
	cache *Cache
}

// Cached serves repeated texts from cache and stores every non-blank reply
// of inner.
func Cached(inner Backend, cache *Cache) Backend {
	if cache == nil {
		return inner
	}
	return &cachedBackend{inner: inner, cache: cache}
}

func (b *cachedBackend) Name() string { return b.inner.Name() }

// Close closes inner if it holds resources.
func (b *cachedBackend) Close() error {
	if c, ok := b.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (b *cachedBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if hit, ok := b.cache.Get(sourceLang, targetLang, text); ok {
		return hit, nil
	}
	out, err := b.inner.Translate(ctx, text, sourceLang, targetLang)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) != "" {
		b.cache.Set(sourceLang, targetLang, text, out)
	}
	return out, nil
}
