// Package chunker splits long page text into overlapping chunks at natural
// boundaries and merges the translated chunks back into one text.
//
// All offsets are rune offsets into the text being split.
package chunker

import (
	"iter"
	"strings"
	"unicode"
)

const (
	DefaultMaxLength = 800
	DefaultOverlap   = 100
)

// Minimum fill of the window, as a fraction of MaxLength, before a
// boundary of each kind is accepted as a split point.
const (
	paragraphFill  = 0.7
	sentenceFill   = 0.7
	clauseFill     = 0.8
	whitespaceFill = 0.5
)

// Options 分块参数
type Options struct {
	MaxLength int
	Overlap   int
}

// Validate reports whether 0 <= Overlap < MaxLength.
func (o Options) Validate() bool {
	return o.MaxLength > 0 && o.Overlap >= 0 && o.Overlap < o.MaxLength
}

func (o Options) orDefault() Options {
	if o.Validate() {
		return o
	}
	return Options{MaxLength: DefaultMaxLength, Overlap: DefaultOverlap}
}

// Chunk is a window of the source text. Overlap is how many leading runes
// it shares with the previous chunk.
type Chunk struct {
	Index   int    `json:"index"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Text    string `json:"-"`
	Overlap int    `json:"overlap"`
}

// Len is the chunk length in runes.
func (c Chunk) Len() int { return c.End - c.Start }

// Fresh returns the text after the shared overlap.
func (c Chunk) Fresh() string {
	if c.Overlap == 0 {
		return c.Text
	}
	return string([]rune(c.Text)[c.Overlap:])
}

// Splitter 按段落、句子、分句、空白的优先级切分文本
type Splitter struct {
	opts Options
}

// NewSplitter returns a splitter; invalid options fall back to the
// defaults of 800 and 100.
func NewSplitter(opts Options) *Splitter {
	return &Splitter{opts: opts.orDefault()}
}

func (s *Splitter) Options() Options { return s.opts }

// Chunks returns the chunk sequence for text. The sequence is computed
// lazily and can be ranged over any number of times. Blank text yields
// nothing; text that fits in MaxLength yields one chunk.
func (s *Splitter) Chunks(text string) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		if strings.TrimSpace(text) == "" {
			return
		}
		runes := []rune(text)
		maxLen, overlap := s.opts.MaxLength, s.opts.Overlap

		start, shared := 0, 0
		for index := 0; ; index++ {
			if len(runes)-start <= maxLen {
				yield(Chunk{Index: index, Start: start, End: len(runes), Text: string(runes[start:]), Overlap: shared})
				return
			}
			split := findSplit(runes, start, maxLen, overlap)
			if !yield(Chunk{Index: index, Start: start, End: split, Text: string(runes[start:split]), Overlap: shared}) {
				return
			}
			// findSplit guarantees split-overlap > start
			start, shared = split-overlap, overlap
		}
	}
}

// Split collects Chunks into a slice.
func (s *Splitter) Split(text string) []Chunk {
	var out []Chunk
	for c := range s.Chunks(text) {
		out = append(out, c)
	}
	return out
}

// Reassemble joins chunks with their overlaps removed. For chunks produced
// by Split it returns the original text.
func Reassemble(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Fresh())
	}
	return b.String()
}

// findSplit picks the end of the chunk starting at start. The window is
// runes[start:start+maxLen] and the caller ensures more than maxLen runes
// remain. Every candidate lies beyond start+overlap so the next chunk
// advances.
func findSplit(runes []rune, start, maxLen, overlap int) int {
	limit := start + maxLen
	floor := func(fill float64) int {
		lo := start + int(fill*float64(maxLen)+0.5)
		if lo <= start+overlap {
			lo = start + overlap + 1
		}
		return lo
	}

	if p := lastBoundary(runes, floor(paragraphFill), limit, isParagraphEnd); p > 0 {
		return p
	}
	if p := lastBoundary(runes, floor(sentenceFill), limit, isSentenceEnd); p > 0 {
		return p
	}
	if p := lastBoundary(runes, floor(clauseFill), limit, isClauseEnd); p > 0 {
		return p
	}
	if p := lastBoundary(runes, floor(whitespaceFill), limit, isSpaceEnd); p > 0 {
		return p
	}
	return limit
}

// lastBoundary scans split positions p from hi down to lo and returns the
// first p for which ok(runes, p) holds, or -1.
func lastBoundary(runes []rune, lo, hi int, ok func([]rune, int) bool) int {
	for p := hi; p >= lo; p-- {
		if ok(runes, p) {
			return p
		}
	}
	return -1
}

// isParagraphEnd: the chunk would end right after a blank line.
func isParagraphEnd(runes []rune, p int) bool {
	return p >= 2 && runes[p-1] == '\n' && runes[p-2] == '\n'
}

func isCJKTerminator(r rune) bool {
	return r == '。' || r == '！' || r == '？'
}

func isClosingQuote(r rune) bool {
	switch r {
	case '”', '’', '」', '』', '）', ')', '"', '\'':
		return true
	}
	return false
}

// isSentenceEnd: the chunk would end after a sentence terminator, optionally
// followed by a closing quote. ASCII terminators also need whitespace (or
// the end of text) after them so that "3.5" is not a sentence end.
func isSentenceEnd(runes []rune, p int) bool {
	if p < 1 {
		return false
	}
	i := p - 1
	if isClosingQuote(runes[i]) && i > 0 {
		i--
	}
	r := runes[i]
	if isCJKTerminator(r) {
		return true
	}
	if r == '.' || r == '!' || r == '?' {
		return p == len(runes) || unicode.IsSpace(runes[p])
	}
	return false
}

func isClauseEnd(runes []rune, p int) bool {
	if p < 1 {
		return false
	}
	switch runes[p-1] {
	case '，', '；', ';':
		return true
	case ',':
		return p == len(runes) || !unicode.IsDigit(runes[p])
	}
	return false
}

func isSpaceEnd(runes []rune, p int) bool {
	return p >= 1 && unicode.IsSpace(runes[p-1])
}
