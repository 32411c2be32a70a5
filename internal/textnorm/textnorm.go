// Package textnorm turns raw extracted page text into a clean, stable form.
// Every function here is total: any input, including invalid byte
// sequences, yields a string and never an error.
package textnorm

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"
)

// noTextPattern matches placeholders that extraction tools emit instead of
// text for empty pages.
var noTextPattern = regexp.MustCompile(`(?i)^(none|null|nil|\[page \d+ - no extractable text\])$`)

// IsSentinel reports whether s, once cleaned, is a "no text" marker.
func IsSentinel(s string) bool {
	return noTextPattern.MatchString(strings.TrimSpace(s))
}

// Normalize collapses every whitespace run to a single space and trims the
// result. Sentinels normalize to "".
func Normalize(text string) string {
	out := strings.Join(strings.Fields(clean(text)), " ")
	if IsSentinel(out) {
		return ""
	}
	return out
}

// NormalizeLayout cleans text like Normalize but keeps line structure:
// whitespace inside each line collapses to one space, lines are trimmed,
// and runs of blank lines become a single paragraph break ("\n\n").
func NormalizeLayout(text string) string {
	return joinLines(text, collapseLine)
}

// NormalizeRows is NormalizeLayout for tabular text. Column gaps inside a
// line (a tab, or two or more spaces) become a single tab; other
// whitespace runs collapse to one space.
func NormalizeRows(text string) string {
	return joinLines(text, collapseRow)
}

var columnGap = regexp.MustCompile(`[ \t\x{3000}]*\t[ \t\x{3000}]*|[ \x{3000}]{2,}`)

func collapseLine(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

func collapseRow(line string) string {
	cells := strings.Split(columnGap.ReplaceAllString(strings.TrimSpace(line), "\t"), "\t")
	for i, c := range cells {
		cells[i] = collapseLine(c)
	}
	return strings.Join(cells, "\t")
}

func joinLines(text string, collapse func(string) string) string {
	text = clean(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.NewReplacer("\r", "\n", "\f", "\n\n", "\v", "\n", "\u2028", "\n", "\u2029", "\n\n").Replace(text)

	var b strings.Builder
	b.Grow(len(text))
	pendingBreak := false
	for _, line := range strings.Split(text, "\n") {
		line = collapse(line)
		if line == "" {
			pendingBreak = b.Len() > 0
			continue
		}
		if b.Len() > 0 {
			if pendingBreak {
				b.WriteString("\n\n")
			} else {
				b.WriteByte('\n')
			}
		}
		pendingBreak = false
		b.WriteString(line)
	}
	out := b.String()
	if IsSentinel(out) {
		return ""
	}
	return out
}

// NormalizeBytes decodes b permissively and returns the flat form.
func NormalizeBytes(b []byte) string {
	return Normalize(Decode(b))
}

// Decode converts raw bytes to a UTF-8 string. UTF-16 with a byte order
// mark and GBK are recognised; anything else has its invalid sequences
// dropped.
func Decode(b []byte) string {
	switch {
	case bytes.HasPrefix(b, []byte{0xFF, 0xFE}):
		if s, ok := decodeWith(xunicode.UTF16(xunicode.LittleEndian, xunicode.UseBOM), b); ok {
			return s
		}
	case bytes.HasPrefix(b, []byte{0xFE, 0xFF}):
		if s, ok := decodeWith(xunicode.UTF16(xunicode.BigEndian, xunicode.UseBOM), b); ok {
			return s
		}
	}
	if utf8.Valid(b) {
		return string(b)
	}
	if s, ok := decodeWith(simplifiedchinese.GBK, b); ok {
		return s
	}
	return string(bytes.ToValidUTF8(b, nil))
}

func decodeWith(enc encoding.Encoding, b []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil || !utf8.Valid(out) || bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

// clean drops invalid UTF-8, composes to NFC and removes control and
// format characters other than line breaks and tabs.
func clean(text string) string {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	text = norm.NFC.String(text)
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t', '\f', '\v':
			return r
		case '\u0085':
			return '\n'
		case utf8.RuneError:
			return -1
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, text)
}
