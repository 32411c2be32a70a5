// Package classify labels normalized page text as a table of contents, a
// table, or running prose. The rules are heuristic and deterministic: the
// same text always gets the same label.
package classify

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Label 页面内容类型
type Label string

const (
	TOC   Label = "TOC"
	Table Label = "TABLE"
	Prose Label = "PROSE"
)

func (l Label) String() string { return string(l) }

// Signal names the rule that produced a label.
type Signal string

const (
	SignalTOCMarker     Signal = "toc-marker"
	SignalLeaderRatio   Signal = "leader-ratio"
	SignalEntryLines    Signal = "entry-lines"
	SignalBoxDrawing    Signal = "box-drawing"
	SignalTableMarker   Signal = "table-marker"
	SignalColumnarLines Signal = "columnar-lines"
	SignalDefault       Signal = "default"
)

// Thresholds. Ratios are fractions of the rune count.
const (
	LeaderRatioThreshold = 0.15
	EntryLineMajority    = 0.5
	MinEntryLines        = 3
	MinBoxRunes          = 6
	MinColumnarLines     = 4
	ColumnarShare        = 0.6
	MaxColumnarLineLen   = 40
)

var (
	tocMarker = regexp.MustCompile(`目\s*录|目\s*次|(?i:table\s+of\s+contents)|(?m:^\s*(?i:contents)\s*$)`)

	// 标题 + 引导符 + 页码（可写作 "- 12 -" 或罗马数字），或标题 + 空格 + 阿拉伯数字页码
	entryLine = regexp.MustCompile(`^(.*\pL.*?)\s*(?:` +
		`[.·…．_\-—－⋯]{2,}\s*(?:-\s*)?(?:\d{1,4}|[ivxlc]{1,6}|[IVXLC]{1,6})(?:\s*-)?` +
		`|\s(?:-\s*)?\d{1,4}(?:\s*-)?)$`)

	// 单行（扁平化）文本中的目录条目：连续引导符后接页码
	inlineEntry = regexp.MustCompile(`[.·…．_⋯]{3,}\s*-?\s*\d{1,4}`)

	// 纯边框行不计入引导符
	borderLine = regexp.MustCompile(`^[\s+\-=|_:]+$`)

	tableMarker = regexp.MustCompile(`(?m:^\s*(?:表|续表)\s*\d+(?:[-.．]\d+)*)|(?m:^\s*(?i:table)\s+\d+(?:[-.]\d+)*\b)|功能矩阵|\|[^|\n]*\|[^|\n]*\|`)

	fieldSep = regexp.MustCompile(`[\t|│┃║]+|\s+`)
)

// Result carries the label and the rule that fired.
type Result struct {
	Label  Label
	Signal Signal
}

// Classify returns the label for normalized page text.
func Classify(text string) Label {
	return Explain(text).Label
}

// Explain applies the rules in order, first match wins: TOC, then TABLE,
// then PROSE.
func Explain(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Prose, SignalDefault}
	}
	lines := nonEmptyLines(text)

	if tocMarker.MatchString(text) {
		return Result{TOC, SignalTOCMarker}
	}
	if LeaderRatio(text) > LeaderRatioThreshold {
		return Result{TOC, SignalLeaderRatio}
	}
	if entryLinesMajority(lines) {
		return Result{TOC, SignalEntryLines}
	}

	if BoxRuneCount(text) >= MinBoxRunes {
		return Result{Table, SignalBoxDrawing}
	}
	if tableMarker.MatchString(text) {
		return Result{Table, SignalTableMarker}
	}
	if columnar(lines) {
		return Result{Table, SignalColumnarLines}
	}
	return Result{Prose, SignalDefault}
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func isLeader(r rune) bool {
	switch r {
	case '.', '·', '…', '-', '—', '_', '－', '．', '⋯':
		return true
	}
	return false
}

// LeaderRatio is the share of runes that are leader characters used as
// fillers: runs of two or more, outside lines made only of border
// characters.
func LeaderRatio(text string) float64 {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return 0
	}
	leaders := 0
	for _, line := range strings.Split(text, "\n") {
		if borderLine.MatchString(line) {
			continue
		}
		run := 0
		for _, r := range line {
			if isLeader(r) {
				run++
				continue
			}
			if run >= 2 {
				leaders += run
			}
			run = 0
		}
		if run >= 2 {
			leaders += run
		}
	}
	return float64(leaders) / float64(total)
}

// IsEntryLine reports whether line looks like "title ... page-number".
func IsEntryLine(line string) bool {
	return entryLine.MatchString(strings.TrimSpace(line))
}

func entryLinesMajority(lines []string) bool {
	if len(lines) < MinEntryLines {
		// 扁平文本：按行内条目计数
		return len(inlineEntry.FindAllStringIndex(strings.Join(lines, " "), -1)) >= MinEntryLines
	}
	n := 0
	for _, l := range lines {
		if IsEntryLine(l) {
			n++
		}
	}
	return float64(n) > EntryLineMajority*float64(len(lines))
}

// BoxRuneCount counts runes in the Box Drawing block (U+2500 to U+257F).
func BoxRuneCount(text string) int {
	n := 0
	for _, r := range text {
		if r >= 0x2500 && r <= 0x257F {
			n++
		}
	}
	return n
}

// columnar detects short lines that split into the same number of fields.
func columnar(lines []string) bool {
	if len(lines) < MinColumnarLines {
		return false
	}
	totalLen := 0
	counts := make(map[int]int)
	for _, l := range lines {
		totalLen += utf8.RuneCountInString(l)
		counts[fieldCount(l)]++
	}
	if totalLen/len(lines) > MaxColumnarLineLen {
		return false
	}
	best := 0
	for fields, n := range counts {
		if fields >= 2 && n > best {
			best = n
		}
	}
	return float64(best) >= ColumnarShare*float64(len(lines))
}

func fieldCount(line string) int {
	n := 0
	for _, f := range fieldSep.Split(strings.TrimSpace(line), -1) {
		if strings.IndexFunc(f, func(r rune) bool { return !unicode.IsSpace(r) }) >= 0 {
			n++
		}
	}
	return n
}
