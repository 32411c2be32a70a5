package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Translated pairs a chunk with its translation. Err is set when the chunk
// could not be translated.
type Translated struct {
	Chunk Chunk
	Text  string
	Err   error
}

// MergeOptions controls partial-failure handling.
type MergeOptions struct {
	// MaxFailedRatio is the largest failed/total share that still counts as
	// success. Zero means any failed chunk fails the merge.
	MaxFailedRatio float64
	// Placeholder renders the stand-in text for failed chunk i (1-based)
	// of n. Nil uses FailedPlaceholder.
	Placeholder func(i, n int) string
}

// MergeResult is the page-level merge outcome. Err is non-nil when too
// many chunks failed; Text still holds the successful translations with
// placeholders for the gaps.
type MergeResult struct {
	Text   string
	Total  int
	Failed int
	Err    error
}

// ErrTooManyFailures is wrapped by MergeResult.Err.
var ErrTooManyFailures = errors.New("too many untranslated units")

// FailedPlaceholder marks a gap left by an untranslated unit.
func FailedPlaceholder(i, n int) string {
	return fmt.Sprintf("[untranslated chunk %d/%d]", i, n)
}

// Dedup window sizes and minimum match lengths. Windows are in runes and
// are widened by headWindow when a translation runs longer than its source.
const (
	wordWindow     = 40
	minWordMatch   = 2
	runeWindow     = 200
	minRuneMatch   = 4
	fuzzyWindow    = 160
	maxFuzzyWindow = 1200
	minFuzzyMatch  = 12
	minAnchorMatch = 12
	fuzzySlack     = 3
)

// Merge joins translated chunks in order. Where a chunk overlaps the
// previous one and both translated, the repeated head of its translation
// is trimmed. Chunks without overlap are joined as is; only a separator
// may be added (see joinSeparator). Failed chunks leave a placeholder.
func Merge(parts []Translated, opts MergeOptions) MergeResult {
	res := MergeResult{Total: len(parts)}
	if len(parts) == 0 {
		return res
	}
	placeholder := opts.Placeholder
	if placeholder == nil {
		placeholder = FailedPlaceholder
	}

	var b strings.Builder
	var firstErr error
	prevOK := false
	for i, p := range parts {
		if p.Err != nil {
			res.Failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("chunk %d: %w", i+1, p.Err)
			}
			if b.Len() > 0 {
				b.WriteString(" ")
			}
			b.WriteString(placeholder(i+1, len(parts)))
			prevOK = false
			continue
		}

		text := p.Text
		switch {
		case i == 0:
		case prevOK:
			if p.Chunk.Overlap > 0 {
				text = trimHead(b.String(), text, headWindow(p.Chunk, text))
			}
			b.WriteString(joinSeparator(b.String(), text, parts[i-1].Chunk, p.Chunk))
		case text != "":
			b.WriteString(" ")
		}
		b.WriteString(text)
		prevOK = true
	}
	res.Text = b.String()

	if res.Failed > 0 && float64(res.Failed) > opts.MaxFailedRatio*float64(res.Total) {
		res.Err = fmt.Errorf("%w: %d of %d failed, first: %v", ErrTooManyFailures, res.Failed, res.Total, firstErr)
	}
	return res
}

// TrimRepeatedHead removes the part of next that repeats the end of prev.
// It tries, in order, the longest suffix of prev found near the start of
// next, a word-level suffix/prefix match, an exact rune-level suffix/prefix
// match, and a fuzzy longest common substring that must reach the end of
// prev. When nothing matches next is returned unchanged.
func TrimRepeatedHead(prev, next string) string {
	return trimHead(prev, next, fuzzyWindow)
}

// headWindow is how far into next the repeated overlap can reach: twice
// the overlap's share of the chunk, measured on the translation.
func headWindow(c Chunk, next string) int {
	if c.Overlap <= 0 || c.Len() <= 0 {
		return fuzzyWindow
	}
	w := 2 * utf8.RuneCountInString(next) * c.Overlap / c.Len()
	return max(w, fuzzyWindow)
}

func trimHead(prev, next string, window int) string {
	if prev == "" || next == "" {
		return next
	}
	// whitespace that prev already ends with is not repeated
	trail := prev[len(strings.TrimRightFunc(prev, unicode.IsSpace)):]
	if cut, ok := anchorOverlap(prev, next, window); ok {
		return strings.TrimPrefix(next[cut:], trail)
	}
	if cut, ok := wordOverlap(prev, next, max(wordWindow, window/4)); ok {
		return strings.TrimPrefix(next[cut:], trail)
	}
	if cut, ok := runeOverlap(prev, next, max(runeWindow, window)); ok {
		return next[cut:]
	}
	if cut, ok := fuzzyOverlap(prev, next, min(window, maxFuzzyWindow)); ok {
		return strings.TrimPrefix(next[cut:], trail)
	}
	return next
}

// anchorOverlap finds the longest suffix of prev (at least minAnchorMatch
// runes) that occurs in the first window runes of next, and returns the
// byte offset in next just past its first occurrence. Whatever precedes
// the match in next translates text prev already covers.
func anchorOverlap(prev, next string, window int) (int, bool) {
	p := []rune(strings.TrimRightFunc(prev, unicode.IsSpace))
	head := next
	if n := []rune(next); len(n) > window {
		head = string(n[:window])
	}
	occurs := func(k int) bool { return strings.Contains(head, string(p[len(p)-k:])) }

	lo, hi := minAnchorMatch, min(len(p), utf8.RuneCountInString(head))
	if hi < lo || !occurs(lo) {
		return 0, false
	}
	// a suffix that occurs implies every shorter suffix occurs
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if occurs(mid) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	suffix := string(p[len(p)-lo:])
	return strings.Index(head, suffix) + len(suffix), true
}

type word struct {
	norm string
	end  int // byte offset just past the word in its source string
}

func words(s string) []word {
	var out []word
	i := 0
	for _, f := range strings.Fields(s) {
		idx := strings.Index(s[i:], f)
		i += idx + len(f)
		n := strings.ToLower(strings.TrimFunc(f, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		}))
		out = append(out, word{norm: n, end: i})
	}
	return out
}

// wordOverlap finds the longest k >= minWordMatch such that the last k words
// of prev equal the first k words of next, ignoring case and punctuation.
// It returns the byte offset in next just past those k words.
func wordOverlap(prev, next string, window int) (int, bool) {
	pw, nw := words(prev), words(next)
	if len(pw) > window {
		pw = pw[len(pw)-window:]
	}
	if len(nw) > window {
		nw = nw[:window]
	}
	for k := min(len(pw), len(nw)); k >= minWordMatch; k-- {
		match := true
		for j := 0; j < k; j++ {
			if pw[len(pw)-k+j].norm != nw[j].norm {
				match = false
				break
			}
		}
		if match && hasContent(nw[:k]) {
			return nw[k-1].end, true
		}
	}
	return 0, false
}

func hasContent(ws []word) bool {
	for _, w := range ws {
		if w.norm != "" {
			return true
		}
	}
	return false
}

// runeOverlap finds the longest suffix of prev that is also a prefix of
// next, compared rune by rune.
func runeOverlap(prev, next string, window int) (int, bool) {
	p, n := []rune(prev), []rune(next)
	for k := min(len(p), len(n), window); k >= minRuneMatch; k-- {
		if string(p[len(p)-k:]) == string(n[:k]) {
			return len(string(n[:k])), true
		}
	}
	return 0, false
}

// fuzzyOverlap looks for the longest common substring between the tail of
// prev and the head of next. It only counts when the match ends within
// fuzzySlack runes of the end of prev; everything in next up to the end of
// the match is then dropped.
func fuzzyOverlap(prev, next string, window int) (int, bool) {
	p := []rune(strings.TrimRightFunc(prev, unicode.IsSpace))
	n := []rune(next)
	if len(p) > window {
		p = p[len(p)-window:]
	}
	if len(n) > window {
		n = n[:window]
	}

	// dp[j] = length of the common suffix of p[:i] and n[:j]
	dp := make([]int, len(n)+1)
	bestLen, bestPEnd, bestNEnd := 0, 0, 0
	for i := 1; i <= len(p); i++ {
		prevDiag := 0
		for j := 1; j <= len(n); j++ {
			tmp := dp[j]
			if foldEqual(p[i-1], n[j-1]) {
				dp[j] = prevDiag + 1
				if dp[j] > bestLen || (dp[j] == bestLen && i > bestPEnd) {
					bestLen, bestPEnd, bestNEnd = dp[j], i, j
				}
			} else {
				dp[j] = 0
			}
			prevDiag = tmp
		}
	}
	if bestLen < minFuzzyMatch || len(p)-bestPEnd > fuzzySlack {
		return 0, false
	}
	return len(string(n[:bestNEnd])), true
}

func foldEqual(a, b rune) bool {
	return a == b || unicode.ToLower(a) == unicode.ToLower(b)
}

// joinSeparator decides what goes between the merged text so far and the
// next translation. Boundary whitespace already present is kept as is.
// Otherwise whitespace at the source boundary is reproduced, and a CJK
// source boundary translated into a spaced script gets a single space.
func joinSeparator(sofar, next string, prevChunk, nextChunk Chunk) string {
	if sofar == "" || next == "" {
		return ""
	}
	last, _ := utf8.DecodeLastRuneInString(sofar)
	first, _ := utf8.DecodeRuneInString(next)
	if unicode.IsSpace(last) || unicode.IsSpace(first) {
		return ""
	}

	trail, lead := sourceBoundary(prevChunk, nextChunk)
	switch ws := trail + lead; {
	case strings.Contains(ws, "\n\n"):
		return "\n\n"
	case strings.Contains(ws, "\n"):
		return "\n"
	case ws != "":
		return " "
	}
	srcLast, _ := utf8.DecodeLastRuneInString(prevChunk.Text)
	if isCJK(srcLast) && !isCJK(last) && !isCJK(first) {
		return " "
	}
	return ""
}

// sourceBoundary returns the whitespace on either side of the point where
// nextChunk's fresh text begins, which is where prevChunk ends.
func sourceBoundary(prevChunk, nextChunk Chunk) (trail, lead string) {
	prev, fresh := prevChunk.Text, nextChunk.Fresh()
	trail = prev[len(strings.TrimRightFunc(prev, unicode.IsSpace)):]
	lead = fresh[:len(fresh)-len(strings.TrimLeftFunc(fresh, unicode.IsSpace))]
	return trail, lead
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) ||
		(r >= 0x3000 && r <= 0x303F) || (r >= 0xFF00 && r <= 0xFFEF)
}
