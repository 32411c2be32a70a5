package structure

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// OutlineEntry 目录大纲条目
type OutlineEntry struct {
	Number string `json:"number"`
	Title  string `json:"title"`
	Level  int    `json:"level"`
	Page   int    `json:"page,omitempty"`
	Parent string `json:"parent,omitempty"`
}

// Outline is the numbered section hierarchy of a document.
type Outline struct {
	Entries []OutlineEntry `json:"entries"`
	byNum   map[string]int
}

// BuildOutline keeps the items that carry a dotted section number. Level is
// the number of components and Parent the number without its last one.
func BuildOutline(items []TOCItem) *Outline {
	o := &Outline{byNum: make(map[string]int)}
	for _, it := range items {
		num := strings.TrimSuffix(it.Number, ".")
		if !sectionNumber.MatchString(num) {
			continue
		}
		e := OutlineEntry{
			Number: num,
			Title:  strings.TrimSpace(it.Label),
			Level:  strings.Count(num, ".") + 1,
			Page:   pageNumber(it.Page),
		}
		if i := strings.LastIndexByte(num, '.'); i > 0 {
			e.Parent = num[:i]
		}
		if _, dup := o.byNum[num]; dup {
			continue
		}
		o.byNum[num] = len(o.Entries)
		o.Entries = append(o.Entries, e)
	}
	return o
}

var sectionNumber = regexp.MustCompile(`^\d+(?:\.\d+){0,4}$`)

func pageNumber(s string) int {
	n, err := strconv.Atoi(strings.Trim(s, " -"))
	if err != nil {
		return 0
	}
	return n
}

// Lookup returns the entry numbered num.
func (o *Outline) Lookup(num string) (OutlineEntry, bool) {
	if o == nil {
		return OutlineEntry{}, false
	}
	i, ok := o.byNum[num]
	if !ok {
		return OutlineEntry{}, false
	}
	return o.Entries[i], true
}

// Children returns the direct children of num in document order.
func (o *Outline) Children(num string) []OutlineEntry {
	var out []OutlineEntry
	for _, e := range o.Entries {
		if e.Parent == num {
			out = append(out, e)
		}
	}
	return out
}

// Path returns num and its ancestors from the top: "3.1.2" gives
// ["3", "3.1", "3.1.2"].
func Path(num string) []string {
	parts := strings.Split(num, ".")
	out := make([]string, len(parts))
	for i := range parts {
		out[i] = strings.Join(parts[:i+1], ".")
	}
	return out
}

// Format renders an entry indented two spaces per level.
func (e OutlineEntry) Format() string {
	s := strings.Repeat("  ", max(e.Level-1, 0)) + e.Number + " " + e.Title
	if e.Page > 0 {
		s += " (p. " + strconv.Itoa(e.Page) + ")"
	}
	return strings.TrimRight(s, " ")
}

// sectionHeads are tried in order against the head of a page.
var sectionHeads = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^(\d+(?:\.\d+){0,4})[ \t]+[^\d\s]`),
	regexp.MustCompile(`第\s*(\d+(?:\.\d+){0,4})\s*章`),
	regexp.MustCompile(`(?m)^(\d+(?:\.\d+){0,4})\s*[、，]`),
	regexp.MustCompile(`(?m)^(\d+(?:\.\d+){0,4})\s*\p{Han}`),
	regexp.MustCompile(`(?m)^(\d+(?:\.\d+){1,4})(?:\s|$)`),
}

const sectionSearchRunes = 2000

// SectionOf finds the section number a page starts in, looking only at its
// first 2000 runes. It returns "" when none is found.
func SectionOf(text string) string {
	head := text
	if utf8.RuneCountInString(head) > sectionSearchRunes {
		head = string([]rune(head)[:sectionSearchRunes])
	}
	for _, re := range sectionHeads {
		if m := re.FindStringSubmatch(head); m != nil && len(m[1]) <= 10 {
			return m[1]
		}
	}
	return ""
}

// PageText is the minimal page view MapPages needs.
type PageText struct {
	Number int
	Text   string
}

// MapPages assigns each page a section. Pages without a detectable section
// inherit the previous page's; pages before the first section are left out.
func MapPages(pages []PageText) map[int]string {
	sorted := slices.Clone(pages)
	slices.SortFunc(sorted, func(a, b PageText) int { return a.Number - b.Number })

	out := make(map[int]string, len(pages))
	current := ""
	for _, p := range sorted {
		if s := SectionOf(p.Text); s != "" {
			current = s
		}
		if current != "" {
			out[p.Number] = current
		}
	}
	return out
}
