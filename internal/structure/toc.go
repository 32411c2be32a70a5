// Package structure translates pages whose layout matters more than their
// prose: tables of contents and tables. Only the human-readable text is sent
// for translation; numbering, page numbers, leaders, delimiters and borders
// are copied through unchanged.
package structure

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"pdf-translator/internal/chunker"
	"pdf-translator/internal/logger"
)

// UnitTranslator translates one short unit of text, such as a TOC label or
// a table cell.
type UnitTranslator interface {
	TranslateUnit(ctx context.Context, text string) (string, error)
}

// UnitFunc adapts a function to UnitTranslator.
type UnitFunc func(ctx context.Context, text string) (string, error)

func (f UnitFunc) TranslateUnit(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Options 结构化翻译的失败策略
type Options struct {
	// MaxFailedRatio has the same meaning as chunker.MergeOptions.MaxFailedRatio.
	MaxFailedRatio float64
}

// Result of translating a structured page. Units counts distinct texts sent
// for translation. Text is always complete: failed units keep their source
// text.
type Result struct {
	Text   string
	Units  int
	Failed int
	Err    error
}

// TOCItem is one entry of a table of contents. Concatenating Indent, Number,
// Gap, Label, Leader and Page reproduces the entry line.
type TOCItem struct {
	Indent string `json:"-"`
	Number string `json:"number,omitempty"`
	Gap    string `json:"-"`
	Label  string `json:"label"`
	Leader string `json:"-"`
	Page   string `json:"page,omitempty"`
	Depth  int    `json:"depth"`
}

func (it TOCItem) String() string {
	return it.Indent + it.Number + it.Gap + it.Label + it.Leader + it.Page
}

// WithLabel returns a copy of it carrying label.
func (it TOCItem) WithLabel(label string) TOCItem {
	it.Label = label
	return it
}

var (
	// leader run followed by a page number and more text: where flattened
	// entries are re-split
	entryEnd = regexp.MustCompile(`[.·…．_⋯]{2,}\s*(?:-\s*)?(?:\d{1,4}|[ivxlcdmIVXLCDM]{1,7})(?:\s*-)?\s+`)

	// title, separator, arabic page number (optionally "- n -")
	arabicTail = regexp.MustCompile(`^(.*?)(\s*[.·…．_⋯\-—－]{2,}\s*|\s+)((?:-\s*)?\d{1,4}(?:\s*-)?)$`)
	// roman page numbers only count after leaders
	romanTail = regexp.MustCompile(`^(.*?)(\s*[.·…．_⋯]{2,}\s*)([ivxlcdmIVXLCDM]{1,7})$`)
	// bare leaders at the end of a line without a page number
	leaderTail = regexp.MustCompile(`^(.*?)(\s*[.·…．_⋯]{2,}\s*)$`)

	dottedNumber  = regexp.MustCompile(`^(?:\d+(?:\.\d+)*\.?|[A-Z](?:\.\d+)+)`)
	chapterNumber = regexp.MustCompile(`^第\s*[一二三四五六七八九十百零〇两\d]+\s*([章节条部篇])`)
	listNumber    = regexp.MustCompile(`^(?:[一二三四五六七八九十]+、|[（(]\d{1,2}[)）])`)
)

// ParseTOC splits text into TOC items, one per non-blank line. Lines that
// hold several entries run together (text extracted without line breaks)
// are first re-split after each "leader + page number".
func ParseTOC(text string) []TOCItem {
	var items []TOCItem
	for _, line := range strings.Split(text, "\n") {
		for _, entry := range splitFlattened(line) {
			if strings.TrimSpace(entry) == "" {
				continue
			}
			items = append(items, parseEntry(entry))
		}
	}
	return items
}

func splitFlattened(line string) []string {
	locs := entryEnd.FindAllStringIndex(line, -1)
	if len(locs) == 0 {
		return []string{line}
	}
	var out []string
	start := 0
	for _, loc := range locs {
		if loc[1] >= len(line) {
			break
		}
		out = append(out, strings.TrimRightFunc(line[start:loc[1]], unicode.IsSpace))
		start = loc[1]
	}
	return append(out, line[start:])
}

func parseEntry(line string) TOCItem {
	var it TOCItem
	body := strings.TrimRightFunc(line, unicode.IsSpace)
	trimmed := strings.TrimLeftFunc(body, unicode.IsSpace)
	it.Indent = body[:len(body)-len(trimmed)]
	body = trimmed

	if m := arabicTail.FindStringSubmatch(body); m != nil && hasLetter(m[1]) {
		body, it.Leader, it.Page = m[1], m[2], m[3]
	} else if m := romanTail.FindStringSubmatch(body); m != nil && hasLetter(m[1]) {
		body, it.Leader, it.Page = m[1], m[2], m[3]
	} else if m := leaderTail.FindStringSubmatch(body); m != nil && hasLetter(m[1]) {
		body, it.Leader = m[1], m[2]
	}

	it.Number, it.Depth = splitNumber(body)
	rest := body[len(it.Number):]
	label := strings.TrimLeftFunc(rest, unicode.IsSpace)
	it.Gap = rest[:len(rest)-len(label)]
	it.Label = label
	if it.Depth == 0 {
		it.Depth = indentDepth(it.Indent)
	}
	return it
}

// splitNumber returns the leading section number of s and the depth it
// implies, or "" and 0.
func splitNumber(s string) (string, int) {
	if m := chapterNumber.FindStringSubmatch(s); m != nil {
		switch m[1] {
		case "节":
			return m[0], 2
		case "条":
			return m[0], 3
		default:
			return m[0], 1
		}
	}
	if m := listNumber.FindString(s); m != "" {
		if strings.HasSuffix(m, "、") {
			return m, 1
		}
		return m, 2
	}
	m := dottedNumber.FindString(s)
	if m == "" {
		return "", 0
	}
	// "3D" and "2024年" are not section numbers; "1.1概述" is
	if next := s[len(m):]; next != "" {
		r := []rune(next)[0]
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return "", 0
		}
		if unicode.Is(unicode.Han, r) && !strings.Contains(m, ".") {
			return "", 0
		}
	}
	return m, len(strings.Split(strings.TrimSuffix(m, "."), "."))
}

// indentDepth counts two columns per level; a tab is four columns and an
// ideographic space two.
func indentDepth(indent string) int {
	cols := 0
	for _, r := range indent {
		switch r {
		case '\t':
			cols += 4
		case '\u3000':
			cols += 2
		default:
			cols++
		}
	}
	return 1 + cols/2
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}

// TranslateTOC translates the label of every item independently and
// rebuilds the page one item per line. Identical labels are translated
// once. Items whose label failed keep the source label.
func TranslateTOC(ctx context.Context, items []TOCItem, tr UnitTranslator, opts Options) ([]TOCItem, Result) {
	memo := newMemo(ctx, tr)
	out := make([]TOCItem, len(items))
	lines := make([]string, len(items))
	for i, it := range items {
		out[i] = it
		if hasLetter(it.Label) {
			if label, ok := memo.translate(it.Label); ok {
				out[i] = it.WithLabel(singleLine(label))
			}
		}
		lines[i] = out[i].String()
	}
	res := memo.result(opts)
	res.Text = strings.Join(lines, "\n")
	if res.Failed > 0 {
		logger.Warn("toc labels left untranslated",
			logger.Int("failed", res.Failed),
			logger.Int("labels", res.Units))
	}
	return out, res
}

// singleLine keeps a translated label on its entry line.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// memo translates each distinct unit once and tallies failures.
type memo struct {
	ctx      context.Context
	tr       UnitTranslator
	done     map[string]string
	failed   map[string]bool
	firstErr error
}

func newMemo(ctx context.Context, tr UnitTranslator) *memo {
	return &memo{ctx: ctx, tr: tr, done: make(map[string]string), failed: make(map[string]bool)}
}

func (m *memo) translate(text string) (string, bool) {
	if out, ok := m.done[text]; ok {
		return out, true
	}
	if m.failed[text] {
		return "", false
	}
	out, err := m.tr.TranslateUnit(m.ctx, text)
	if err == nil && strings.TrimSpace(out) == "" {
		err = fmt.Errorf("empty translation for %q", text)
	}
	if err != nil {
		m.failed[text] = true
		if m.firstErr == nil {
			m.firstErr = fmt.Errorf("unit %q: %w", text, err)
		}
		return "", false
	}
	m.done[text] = out
	return out, true
}

func (m *memo) result(opts Options) Result {
	res := Result{Units: len(m.done) + len(m.failed), Failed: len(m.failed)}
	if res.Failed > 0 && float64(res.Failed) > opts.MaxFailedRatio*float64(res.Units) {
		res.Err = fmt.Errorf("%w: %d of %d failed, first: %v", chunker.ErrTooManyFailures, res.Failed, res.Units, m.firstErr)
	}
	return res
}
