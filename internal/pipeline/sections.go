package pipeline

import (
	"sort"

	"pdf-translator/internal/classify"
	"pdf-translator/internal/results"
	"pdf-translator/internal/structure"
)

// Sections builds the TOC outline from the session's TOC pages and lists,
// for each numbered entry, the pages whose text starts under it. It
// returns nil when the session has no usable TOC.
func Sections(s *results.Session) []results.SectionRow {
	var items []structure.TOCItem
	texts := make([]structure.PageText, 0, len(s.Pages))
	for _, p := range s.Pages {
		if p.ContentType == string(classify.TOC) {
			items = append(items, structure.ParseTOC(p.OriginalText)...)
			continue
		}
		texts = append(texts, structure.PageText{Number: p.PageNumber, Text: p.OriginalText})
	}
	outline := structure.BuildOutline(items)
	if len(outline.Entries) == 0 {
		return nil
	}

	pagesBySection := make(map[string][]int)
	for page, section := range structure.MapPages(texts) {
		pagesBySection[section] = append(pagesBySection[section], page)
	}

	rows := make([]results.SectionRow, 0, len(outline.Entries))
	for _, e := range outline.Entries {
		pages := pagesBySection[e.Number]
		sort.Ints(pages)
		rows = append(rows, results.SectionRow{
			Number: e.Number,
			Title:  e.Title,
			Level:  e.Level,
			Page:   e.Page,
			Pages:  pages,
		})
	}
	return rows
}
