package structure

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"pdf-translator/internal/logger"
)

// Cell is a piece of a table row. Delimiter cells are copied verbatim.
type Cell struct {
	Text  string
	Delim bool
}

var (
	// box-drawing runes, pipes and tabs with the spaces around them, or a
	// gap of two or more spaces
	cellDelim = regexp.MustCompile(`[ \t\x{3000}]*[\x{2500}-\x{257F}|\t][\x{2500}-\x{257F}|\t \x{3000}]*|[ \x{3000}]{2,}`)
	// rules and borders: nothing but drawing characters and whitespace
	borderOnly = regexp.MustCompile(`^[\s\x{2500}-\x{257F}+\-=|_:.·]*$`)
)

// IsBorder reports whether line holds no cell text at all.
func IsBorder(line string) bool {
	return borderOnly.MatchString(line)
}

// SplitRow splits a table line into cells and the delimiters between them.
// Joining the Text of all cells gives back line.
func SplitRow(line string) []Cell {
	var cells []Cell
	last := 0
	for _, loc := range cellDelim.FindAllStringIndex(line, -1) {
		if loc[0] > last {
			cells = append(cells, Cell{Text: line[last:loc[0]]})
		}
		cells = append(cells, Cell{Text: line[loc[0]:loc[1]], Delim: true})
		last = loc[1]
	}
	if last < len(line) {
		cells = append(cells, Cell{Text: line[last:]})
	}
	return cells
}

// TranslateTable translates the text cells of every row, keeping delimiters,
// border lines and cells without letters (numbers, dates, codes) unchanged.
// Identical cells are translated once per call. Failed cells keep their
// source text.
func TranslateTable(ctx context.Context, text string, tr UnitTranslator, opts Options) Result {
	memo := newMemo(ctx, tr)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if IsBorder(line) {
			continue
		}
		var b strings.Builder
		for _, c := range SplitRow(line) {
			if c.Delim || !hasLetter(c.Text) {
				b.WriteString(c.Text)
				continue
			}
			lead, core, trail := splitSpace(c.Text)
			b.WriteString(lead)
			if out, ok := memo.translate(core); ok {
				b.WriteString(singleLine(out))
			} else {
				b.WriteString(core)
			}
			b.WriteString(trail)
		}
		lines[i] = b.String()
	}
	res := memo.result(opts)
	res.Text = strings.Join(lines, "\n")
	if res.Failed > 0 {
		logger.Warn("table cells left untranslated",
			logger.Int("failed", res.Failed),
			logger.Int("cells", res.Units))
	}
	return res
}

func splitSpace(s string) (lead, core, trail string) {
	core = strings.TrimLeftFunc(s, unicode.IsSpace)
	lead = s[:len(s)-len(core)]
	trimmed := strings.TrimRightFunc(core, unicode.IsSpace)
	trail = core[len(trimmed):]
	return lead, trimmed, trail
}
