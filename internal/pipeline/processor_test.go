package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/chunker"
	ledger "pdf-translator/internal/errors"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/results"
	"pdf-translator/internal/translator"
)

// fakeService translates through a fixed table. Texts containing a key of
// failing fail on every attempt; unknown texts fail too.
type fakeService struct {
	mu      sync.Mutex
	words   map[string]string
	failing []string
	calls   []string
}

func (f *fakeService) translate(_ context.Context, text, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	for _, bad := range f.failing {
		if strings.Contains(text, bad) {
			return "", errors.New("service unavailable")
		}
	}
	if out, ok := f.words[text]; ok {
		return out, nil
	}
	return "", fmt.Errorf("no translation for %q", text)
}

func noSleep(context.Context, time.Duration) error { return nil }

func newProcessor(svc *fakeService, opts Options) *Processor {
	inv := translator.NewInvoker(translator.Func(svc.translate), "zh-CN", "en", translator.InvokerOptions{Sleep: noSleep})
	if opts.Sleep == nil {
		opts.Sleep = noSleep
	}
	return NewProcessor(inv, opts)
}

// fourSentences is 80 runes that split into exactly four 20-rune chunks.
func fourSentences() (string, []string) {
	var parts []string
	for _, r := range []string{"甲", "乙", "丙", "丁"} {
		parts = append(parts, strings.Repeat(r, 19)+"。")
	}
	return strings.Join(parts, ""), parts
}

var smallChunks = chunker.Options{MaxLength: 20, Overlap: 0}

func TestProcessPageProse(t *testing.T) {
	svc := &fakeService{words: map[string]string{"系统支持用户登录。": "The system supports user login."}}
	p := newProcessor(svc, Options{})

	res := p.ProcessPage(context.Background(), pdf.Page{Number: 1, RawText: "  系统支持用户登录。 \n"})
	assert.Equal(t, results.StatusSuccess, res.Status)
	assert.Equal(t, "系统支持用户登录。", res.OriginalText)
	assert.Equal(t, "The system supports user login.", res.TranslatedText)
	assert.Equal(t, 9, res.OriginalCharCount)
	assert.Equal(t, len("The system supports user login."), res.TranslatedCharCount)
	assert.Equal(t, "PROSE", res.ContentType)
	assert.Equal(t, 1, res.Chunks)
	assert.Empty(t, res.Error)
	assert.GreaterOrEqual(t, res.TranslationTime, 0.0)
}

func TestProcessPageChunked(t *testing.T) {
	text, parts := fourSentences()
	svc := &fakeService{words: map[string]string{parts[0]: "One.", parts[1]: "Two.", parts[2]: "Three.", parts[3]: "Four."}}
	p := newProcessor(svc, Options{Chunk: smallChunks})

	res := p.ProcessPage(context.Background(), pdf.Page{Number: 2, RawText: text})
	require.Equal(t, results.StatusSuccess, res.Status, res.Error)
	assert.Equal(t, "One. Two. Three. Four.", res.TranslatedText)
	assert.Equal(t, 4, res.Chunks)
	assert.Equal(t, parts, svc.calls, "chunks are translated in order, one call each")
}

func TestProcessPageRetriesThenSucceeds(t *testing.T) {
	calls := 0
	backend := translator.Func(func(context.Context, string, string, string) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("timeout")
		}
		return "Overview", nil
	})
	var waits []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	inv := translator.NewInvoker(backend, "zh-CN", "en", translator.InvokerOptions{Sleep: sleep})
	p := NewProcessor(inv, Options{Sleep: noSleep})

	res := p.ProcessPage(context.Background(), pdf.Page{Number: 1, RawText: "概述"})
	assert.Equal(t, results.StatusSuccess, res.Status)
	assert.Equal(t, "Overview", res.TranslatedText)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
}

// One chunk of a four-chunk page fails on all attempts. With the default
// ratio every such page fails; with a tolerated ratio every such page
// succeeds with a marked gap.
func TestPartialFailurePolicyIsUniform(t *testing.T) {
	text, parts := fourSentences()
	words := map[string]string{parts[0]: "One.", parts[1]: "Two.", parts[3]: "Four."}
	pages := []pdf.Page{{Number: 1, RawText: text}, {Number: 2, RawText: text}}

	t.Run("default fails the page", func(t *testing.T) {
		svc := &fakeService{words: words, failing: []string{"丙"}}
		p := newProcessor(svc, Options{Chunk: smallChunks})
		session, err := p.Run(context.Background(), pages)
		require.NoError(t, err)

		assert.Equal(t, 0, session.SuccessfulCount)
		for _, res := range session.Pages {
			assert.Equal(t, results.StatusFailed, res.Status)
			assert.Equal(t, 4, res.Chunks)
			assert.Equal(t, 1, res.FailedUnits)
			assert.Contains(t, res.Error, "1 of 4 failed")
			assert.Equal(t, "One. Two. [untranslated chunk 3/4] Four.", res.TranslatedText)
		}
		attempts := 0
		for _, c := range svc.calls {
			if c == parts[2] {
				attempts++
			}
		}
		assert.Equal(t, 10, attempts, "five attempts per failing chunk per page")
	})

	t.Run("tolerated ratio keeps the gap", func(t *testing.T) {
		svc := &fakeService{words: words, failing: []string{"丙"}}
		p := newProcessor(svc, Options{Chunk: smallChunks, MaxFailedRatio: 0.25})
		session, err := p.Run(context.Background(), pages)
		require.NoError(t, err)

		assert.Equal(t, 2, session.SuccessfulCount)
		for _, res := range session.Pages {
			assert.Equal(t, results.StatusSuccess, res.Status)
			assert.Equal(t, 1, res.FailedUnits)
			assert.Contains(t, res.TranslatedText, "[untranslated chunk 3/4]")
		}
	})
}

func TestProcessPageEdgeCases(t *testing.T) {
	tests := []struct {
		name       string
		page       pdf.Page
		status     results.Status
		translated string
		errPrefix  string
	}{
		{"extraction error", pdf.Page{Number: 3, Err: errors.New("bad stream")}, results.StatusFailed, "", "extraction failed: bad stream"},
		{"blank page", pdf.Page{Number: 4, RawText: " \n\t "}, results.StatusSuccess, "", ""},
		{"no-text sentinel", pdf.Page{Number: 5, RawText: "[Page 5 - No extractable text]"}, results.StatusSuccess, "", ""},
		{"numbers only", pdf.Page{Number: 6, RawText: "- 12 -\n\n2023.01"}, results.StatusSuccess, "- 12 -\n\n2023.01", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			p := newProcessor(svc, Options{})
			res := p.ProcessPage(context.Background(), tt.page)
			assert.Equal(t, tt.page.Number, res.PageNumber)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.translated, res.TranslatedText)
			if tt.errPrefix != "" {
				assert.True(t, strings.HasPrefix(res.Error, tt.errPrefix), res.Error)
			} else {
				assert.Empty(t, res.Error)
			}
			assert.Empty(t, svc.calls, "no translation call")
		})
	}
}

func TestProcessPageTOC(t *testing.T) {
	svc := &fakeService{words: map[string]string{"目录": "Contents", "概述": "Overview", "范围": "Scope"}}
	p := newProcessor(svc, Options{})

	res := p.ProcessPage(context.Background(), pdf.Page{Number: 1, RawText: "目录\n1 概述 ........ 1\n2 范围 ........ 3"})
	require.Equal(t, results.StatusSuccess, res.Status, res.Error)
	assert.Equal(t, "TOC", res.ContentType)
	assert.Equal(t, "Contents\n1 Overview ........ 1\n2 Scope ........ 3", res.TranslatedText)
	assert.Equal(t, 3, res.Chunks)
}

func TestProcessPageTable(t *testing.T) {
	raw := "序号   功能   状态\n1   登录   完成\n2   注册   完成\n表 1 功能列表"
	svc := &fakeService{words: map[string]string{
		"序号":     "No.",
		"功能":     "Feature",
		"状态":     "Status",
		"登录":     "Login",
		"注册":     "Sign-up",
		"完成":     "Done",
		"表 1 功能列表": "Table 1 Feature list",
	}}
	p := newProcessor(svc, Options{})

	res := p.ProcessPage(context.Background(), pdf.Page{Number: 1, RawText: raw})
	require.Equal(t, results.StatusSuccess, res.Status, res.Error)
	assert.Equal(t, "TABLE", res.ContentType)
	assert.Equal(t, "序号\t功能\t状态\n1\t登录\t完成\n2\t注册\t完成\n表 1 功能列表", res.OriginalText)
	assert.Equal(t, "No.\tFeature\tStatus\n1\tLogin\tDone\n2\tSign-up\tDone\nTable 1 Feature list", res.TranslatedText)
	assert.Len(t, svc.calls, 7, "repeated cells translated once")
}

func TestLongTableCellIsChunked(t *testing.T) {
	text, parts := fourSentences()
	svc := &fakeService{words: map[string]string{parts[0]: "One.", parts[1]: "Two.", parts[2]: "Three.", parts[3]: "Four."}}
	p := newProcessor(svc, Options{Chunk: smallChunks})

	out, err := p.unitTranslator().TranslateUnit(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, "One. Two. Three. Four.", out)

	svc.failing = []string{"乙"}
	_, err = p.unitTranslator().TranslateUnit(context.Background(), text)
	assert.ErrorIs(t, err, chunker.ErrTooManyFailures)
}

type recorder struct {
	failed   map[int]ledger.ErrorStage
	resolved []int
}

func (r *recorder) RecordPageFailure(page int, stage ledger.ErrorStage, _ string) {
	r.failed[page] = stage
}

func (r *recorder) ResolvePage(page int) { r.resolved = append(r.resolved, page) }

func TestRunDelayProgressAndRecorder(t *testing.T) {
	svc := &fakeService{words: map[string]string{"概述": "Overview"}}
	var waits []time.Duration
	var progress []string
	rec := &recorder{failed: map[int]ledger.ErrorStage{}}

	p := newProcessor(svc, Options{
		PageDelay: DefaultPageDelay,
		Sleep: func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
		Progress: func(done, total int, r results.PageResult) {
			progress = append(progress, fmt.Sprintf("%d/%d:%d:%s", done, total, r.PageNumber, r.Status))
		},
		Recorder:   rec,
		Source:     "a.pdf",
		Backend:    "func",
		SourceLang: "zh-CN",
		TargetLang: "en",
	})

	pages := []pdf.Page{
		{Number: 1, RawText: "概述"},
		{Number: 2, Err: errors.New("unreadable")},
		{Number: 5, RawText: "未知内容"},
	}
	session, err := p.Run(context.Background(), pages)
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, waits, "no delay after the last page")
	assert.Equal(t, []string{"1/3:1:Success", "2/3:2:Failed", "3/3:5:Failed"}, progress)
	assert.Equal(t, map[int]ledger.ErrorStage{2: ledger.StageExtract, 5: ledger.StageTranslation}, rec.failed)
	assert.Equal(t, []int{1}, rec.resolved)

	assert.Equal(t, 3, session.TotalPages)
	assert.Equal(t, 1, session.SuccessfulCount)
	assert.Equal(t, []int{2, 5}, session.FailedPages())
	assert.Equal(t, "a.pdf", session.Source)
	assert.Equal(t, "func", session.Backend)
	assert.Equal(t, "en", session.TargetLang)
}

func TestRunWithoutDelay(t *testing.T) {
	svc := &fakeService{words: map[string]string{"概述": "Overview"}}
	slept := false
	p := newProcessor(svc, Options{Sleep: func(context.Context, time.Duration) error {
		slept = true
		return nil
	}})
	session, err := p.Run(context.Background(), []pdf.Page{{Number: 1, RawText: "概述"}, {Number: 2, RawText: "概述"}})
	require.NoError(t, err)
	assert.False(t, slept)
	assert.Equal(t, 2, session.SuccessfulCount)
}

func TestRunCancelled(t *testing.T) {
	svc := &fakeService{words: map[string]string{"概述": "Overview"}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newProcessor(svc, Options{
		PageDelay: time.Second,
		Sleep:     func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
		Progress:  func(int, int, results.PageResult) { cancel() },
	})
	session, err := p.Run(ctx, []pdf.Page{{Number: 1, RawText: "概述"}, {Number: 2, RawText: "概述"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, session.TotalPages)
	assert.Len(t, svc.calls, 1)
}

func TestRunCancelledMidPage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backend := translator.Func(func(ctx context.Context, text, _, _ string) (string, error) {
		if text == "需求说明" {
			cancel()
			return "", ctx.Err()
		}
		return "Overview", nil
	})
	inv := translator.NewInvoker(backend, "zh-CN", "en", translator.InvokerOptions{Sleep: noSleep})
	rec := &recorder{failed: map[int]ledger.ErrorStage{}}
	p := NewProcessor(inv, Options{Sleep: noSleep, Recorder: rec})

	session, err := p.Run(ctx, []pdf.Page{{Number: 1, RawText: "概述"}, {Number: 2, RawText: "需求说明"}, {Number: 3, RawText: "概述"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, session.TotalPages)
	assert.Empty(t, session.FailedPages(), "the interrupted page is not a failure")
	assert.Empty(t, rec.failed)
	assert.Equal(t, []int{1}, rec.resolved)
}

func TestRunEmpty(t *testing.T) {
	p := newProcessor(&fakeService{}, Options{PageDelay: time.Second})
	session, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, session.TotalPages)
	assert.NotNil(t, session.Pages)
}
