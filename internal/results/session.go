// Package results holds the per-run translation record and writes it out as
// JSON, CSV and Excel.
package results

import (
	"sort"
	"time"
	"unicode/utf8"
)

// TimestampLayout is the format of Session.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// Status 页面最终状态
type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
)

// PageResult 单页翻译结果
type PageResult struct {
	PageNumber          int     `json:"page_number"`
	OriginalText        string  `json:"original_text"`
	TranslatedText      string  `json:"translated_text"`
	OriginalCharCount   int     `json:"original_char_count"`
	TranslatedCharCount int     `json:"translated_char_count"`
	TranslationTime     float64 `json:"translation_time"` // seconds
	Status              Status  `json:"status"`
	ContentType         string  `json:"content_type,omitempty"`
	Chunks              int     `json:"chunks,omitempty"`
	FailedUnits         int     `json:"failed_units,omitempty"`
	Error               string  `json:"error,omitempty"`
}

// Succeeded reports whether the page was translated.
func (r PageResult) Succeeded() bool { return r.Status == StatusSuccess }

// CountChars fills the char counts from the texts.
func (r *PageResult) CountChars() {
	r.OriginalCharCount = utf8.RuneCountInString(r.OriginalText)
	r.TranslatedCharCount = utf8.RuneCountInString(r.TranslatedText)
}

// Session is the record of one run, written once after all pages.
type Session struct {
	TotalPages      int          `json:"total_pages_processed"`
	Timestamp       string       `json:"timestamp"`
	SuccessfulCount int          `json:"successful_translations"`
	Source          string       `json:"source,omitempty"`
	Backend         string       `json:"backend,omitempty"`
	SourceLang      string       `json:"source_lang,omitempty"`
	TargetLang      string       `json:"target_lang,omitempty"`
	Pages           []PageResult `json:"pages"`
}

// NewSession starts an empty session stamped with the current time.
func NewSession(source string) *Session {
	return &Session{
		Source:    source,
		Timestamp: time.Now().Format(TimestampLayout),
		Pages:     []PageResult{},
	}
}

// Add appends a page result and updates the counters.
func (s *Session) Add(r PageResult) {
	s.Pages = append(s.Pages, r)
	s.TotalPages++
	if r.Succeeded() {
		s.SuccessfulCount++
	}
}

// FailedCount is the number of pages that did not succeed.
func (s *Session) FailedCount() int { return s.TotalPages - s.SuccessfulCount }

// SuccessRate is the percentage of successful pages, 0 for an empty session.
func (s *Session) SuccessRate() float64 {
	if s.TotalPages == 0 {
		return 0
	}
	return float64(s.SuccessfulCount) / float64(s.TotalPages) * 100
}

// FailedPages lists the page numbers with StatusFailed, ascending.
func (s *Session) FailedPages() []int {
	var pages []int
	for _, p := range s.Pages {
		if !p.Succeeded() {
			pages = append(pages, p.PageNumber)
		}
	}
	sort.Ints(pages)
	return pages
}

// Recount recomputes the counters from Pages. Loaded sessions may carry
// counts written by other tools.
func (s *Session) Recount() {
	s.TotalPages = len(s.Pages)
	s.SuccessfulCount = 0
	for _, p := range s.Pages {
		if p.Succeeded() {
			s.SuccessfulCount++
		}
	}
}

// Merge returns prev with its pages replaced by the pages of rerun that have
// the same number. Pages only in rerun are added. The result is ordered by
// page number and carries rerun's timestamp.
func Merge(prev, rerun *Session) *Session {
	if prev == nil {
		prev = &Session{}
	}
	if rerun == nil {
		rerun = &Session{Timestamp: prev.Timestamp}
	}

	merged := *prev
	merged.Timestamp = rerun.Timestamp
	if rerun.Backend != "" {
		merged.Backend = rerun.Backend
	}
	if merged.Source == "" {
		merged.Source = rerun.Source
	}

	byPage := make(map[int]PageResult, len(prev.Pages)+len(rerun.Pages))
	for _, p := range prev.Pages {
		byPage[p.PageNumber] = p
	}
	for _, p := range rerun.Pages {
		byPage[p.PageNumber] = p
	}
	merged.Pages = make([]PageResult, 0, len(byPage))
	for _, p := range byPage {
		merged.Pages = append(merged.Pages, p)
	}
	sort.Slice(merged.Pages, func(i, j int) bool {
		return merged.Pages[i].PageNumber < merged.Pages[j].PageNumber
	})
	merged.Recount()
	return &merged
}
