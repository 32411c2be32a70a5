// Package errors keeps the ledger of pages that failed to translate, so a
// later run can retry just those pages.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"pdf-translator/internal/logger"
)

// LedgerFile is the ledger's file name inside the output directory.
const LedgerFile = "errors.json"

// ErrorStage 错误阶段枚举
type ErrorStage string

const (
	StageExtract     ErrorStage = "extract"   // 文本提取阶段
	StageTranslation ErrorStage = "translate" // 翻译阶段
)

// ErrorRecord 错误记录，每个文档的每一页一条
type ErrorRecord struct {
	ID         string     `json:"id"`          // 文档标识 + 页码
	Document   string     `json:"document"`    // 文档标识（文件 MD5 或文件名）
	Input      string     `json:"input"`       // 输入文件路径
	Page       int        `json:"page"`        // 页码
	Stage      ErrorStage `json:"stage"`       // 出错阶段
	ErrorMsg   string     `json:"error_msg"`   // 错误信息
	Timestamp  time.Time  `json:"timestamp"`   // 首次失败时间
	RetryCount int        `json:"retry_count"` // 重试后再次失败的次数
	LastRetry  time.Time  `json:"last_retry"`  // 最后一次失败时间
}

// RecordID is the ledger key of a page.
func RecordID(document string, page int) string {
	return fmt.Sprintf("%s#p%d", document, page)
}

// ErrorManager 错误管理器
type ErrorManager struct {
	baseDir string
	mu      sync.RWMutex
	errors  map[string]*ErrorRecord // key: ID
}

// NewErrorManager 创建新的错误管理器并加载已有记录
func NewErrorManager(baseDir string) (*ErrorManager, error) {
	if baseDir == "" {
		baseDir = "output"
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create errors directory: %w", err)
	}

	em := &ErrorManager{
		baseDir: baseDir,
		errors:  make(map[string]*ErrorRecord),
	}
	if err := em.load(); err != nil {
		return nil, err
	}
	return em, nil
}

// Path returns the ledger file path.
func (em *ErrorManager) Path() string {
	return filepath.Join(em.baseDir, LedgerFile)
}

// RecordError 记录页面失败。同一页再次失败时重试次数加一
func (em *ErrorManager) RecordError(document, input string, page int, stage ErrorStage, errorMsg string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	now := time.Now()
	id := RecordID(document, page)
	record := &ErrorRecord{
		ID:        id,
		Document:  document,
		Input:     input,
		Page:      page,
		Stage:     stage,
		ErrorMsg:  errorMsg,
		Timestamp: now,
	}
	if existing, ok := em.errors[id]; ok {
		record.Timestamp = existing.Timestamp
		record.RetryCount = existing.RetryCount + 1
		record.LastRetry = now
	}
	em.errors[id] = record

	return em.save()
}

// RemoveError 移除错误记录（翻译成功后）。记录不存在时不写文件
func (em *ErrorManager) RemoveError(document string, page int) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	id := RecordID(document, page)
	if _, ok := em.errors[id]; !ok {
		return nil
	}
	delete(em.errors, id)
	return em.save()
}

// GetError 获取特定页面的错误记录
func (em *ErrorManager) GetError(document string, page int) (*ErrorRecord, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()

	record, ok := em.errors[RecordID(document, page)]
	if !ok {
		return nil, false
	}
	recordCopy := *record
	return &recordCopy, true
}

// ListErrors 列出所有错误记录，按文档和页码排序
func (em *ErrorManager) ListErrors() []*ErrorRecord {
	em.mu.RLock()
	defer em.mu.RUnlock()

	records := make([]*ErrorRecord, 0, len(em.errors))
	for _, record := range em.errors {
		recordCopy := *record
		records = append(records, &recordCopy)
	}
	sortRecords(records)
	return records
}

// FailedPages 返回某文档仍处于失败状态的页码，升序
func (em *ErrorManager) FailedPages(document string) []int {
	em.mu.RLock()
	defer em.mu.RUnlock()

	var pages []int
	for _, record := range em.errors {
		if record.Document == document {
			pages = append(pages, record.Page)
		}
	}
	sort.Ints(pages)
	return pages
}

// ClearDocument 清除某文档的所有错误记录
func (em *ErrorManager) ClearDocument(document string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	for id, record := range em.errors {
		if record.Document == document {
			delete(em.errors, id)
		}
	}
	return em.save()
}

// load 从文件加载错误记录
func (em *ErrorManager) load() error {
	data, err := os.ReadFile(em.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read errors file: %w", err)
	}

	var records []*ErrorRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal errors: %w", err)
	}
	for _, record := range records {
		if record == nil || record.ID == "" {
			continue
		}
		em.errors[record.ID] = record
	}
	return nil
}

// save 保存错误记录到文件
func (em *ErrorManager) save() error {
	records := make([]*ErrorRecord, 0, len(em.errors))
	for _, record := range em.errors {
		records = append(records, record)
	}
	sortRecords(records)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal errors: %w", err)
	}
	if err := os.WriteFile(em.Path(), data, 0644); err != nil {
		return fmt.Errorf("failed to write errors file: %w", err)
	}
	return nil
}

func sortRecords(records []*ErrorRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Document != records[j].Document {
			return records[i].Document < records[j].Document
		}
		return records[i].Page < records[j].Page
	})
}

// GetStageDisplayName 获取阶段的显示名称
func GetStageDisplayName(stage ErrorStage) string {
	switch stage {
	case StageExtract:
		return "文本提取"
	case StageTranslation:
		return "翻译"
	default:
		return string(stage)
	}
}

// DocumentLedger records the failures of one document.
type DocumentLedger struct {
	em       *ErrorManager
	document string
	input    string
}

// ForDocument returns a ledger view bound to one document.
func (em *ErrorManager) ForDocument(document, input string) *DocumentLedger {
	return &DocumentLedger{em: em, document: document, input: input}
}

// RecordPageFailure records a failed page. Write errors are logged, not
// returned to the caller's page loop.
func (l *DocumentLedger) RecordPageFailure(page int, stage ErrorStage, msg string) {
	if err := l.em.RecordError(l.document, l.input, page, stage, msg); err != nil {
		logger.Warn("failed to record page failure", logger.Int("page", page), logger.Err(err))
	}
}

// ResolvePage drops the record of a page that has now succeeded.
func (l *DocumentLedger) ResolvePage(page int) {
	if err := l.em.RemoveError(l.document, page); err != nil {
		logger.Warn("failed to clear page failure", logger.Int("page", page), logger.Err(err))
	}
}

// FailedPages lists the document's failed pages.
func (l *DocumentLedger) FailedPages() []int {
	return l.em.FailedPages(l.document)
}
