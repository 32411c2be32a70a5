// Package pipeline runs each extracted page through normalization,
// classification, structure-aware or chunked translation and merging, and
// accumulates the results of a run.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"pdf-translator/internal/chunker"
	"pdf-translator/internal/classify"
	ledger "pdf-translator/internal/errors"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/results"
	"pdf-translator/internal/structure"
	"pdf-translator/internal/textnorm"
	"pdf-translator/internal/translator"
)

// DefaultPageDelay is the pause between pages.
const DefaultPageDelay = 2 * time.Second

// Invoker translates one unit of text with retries. *translator.Invoker
// implements it.
type Invoker interface {
	Invoke(ctx context.Context, text string) translator.Outcome
}

// ProgressFunc is called after each page with the number of pages done.
type ProgressFunc func(done, total int, r results.PageResult)

// FailureRecorder is told about every page outcome. The failure ledger
// implements it.
type FailureRecorder interface {
	RecordPageFailure(page int, stage ledger.ErrorStage, msg string)
	ResolvePage(page int)
}

// Options 流水线参数
type Options struct {
	Chunk chunker.Options
	// MaxFailedRatio applies to chunks, TOC labels and table cells alike.
	MaxFailedRatio float64
	// PageDelay is waited between pages, never after the last one. Zero
	// disables the delay.
	PageDelay time.Duration
	// FlatText classifies and chunks the single-line form of the page.
	FlatText bool
	// Sleep waits out PageDelay. Nil uses translator.ContextSleep.
	Sleep    translator.Sleeper
	Progress ProgressFunc
	Recorder FailureRecorder

	// Session metadata.
	Source     string
	Backend    string
	SourceLang string
	TargetLang string
}

// Processor 逐页处理器
type Processor struct {
	inv      Invoker
	splitter *chunker.Splitter
	opts     Options
}

// NewProcessor creates a processor translating through inv.
func NewProcessor(inv Invoker, opts Options) *Processor {
	if opts.Sleep == nil {
		opts.Sleep = translator.ContextSleep
	}
	if opts.MaxFailedRatio < 0 {
		opts.MaxFailedRatio = 0
	}
	return &Processor{
		inv:      inv,
		splitter: chunker.NewSplitter(opts.Chunk),
		opts:     opts,
	}
}

// State is a step of the per-page state machine.
type State string

const (
	StateExtracted   State = "extracted"
	StateNormalized  State = "normalized"
	StateClassified  State = "classified"
	StateTOC         State = "toc-processing"
	StateTable       State = "table-processing"
	StateChunking    State = "chunking"
	StateTranslating State = "translating"
	StateMerging     State = "merging"
	StateFinalized   State = "finalized"
)

func trace(page int, s State, fields ...logger.Field) {
	logger.Debug("page state", append([]logger.Field{logger.Int("page", page), logger.String("state", string(s))}, fields...)...)
}

// translation is the outcome of the translate step of one page.
type translation struct {
	text   string
	units  int
	failed int
	err    error
}

// ProcessPage takes one page to a final Success or Failed result. It never
// panics and never returns an error: every problem ends up in the result.
func (p *Processor) ProcessPage(ctx context.Context, page pdf.Page) (res results.PageResult) {
	start := time.Now()
	res.PageNumber = page.Number
	trace(page.Number, StateExtracted)

	defer func() {
		if rec := recover(); rec != nil {
			res.Status = results.StatusFailed
			res.Error = fmt.Sprintf("internal error: %v", rec)
			logger.Error("page processing panicked", fmt.Errorf("%v", rec), logger.Int("page", page.Number))
		}
		res.TranslationTime = math.Round(time.Since(start).Seconds()*100) / 100
		res.CountChars()
		trace(page.Number, StateFinalized, logger.String("status", string(res.Status)))
	}()

	if page.Err != nil {
		res.Status = results.StatusFailed
		res.Error = "extraction failed: " + page.Err.Error()
		return res
	}

	text := p.normalize(page.RawText)
	res.OriginalText = text
	trace(page.Number, StateNormalized, logger.Int("chars", utf8.RuneCountInString(text)))

	if text == "" {
		res.Status = results.StatusSuccess
		return res
	}
	if !hasLetter(text) {
		// page numbers, rules and figures only
		res.TranslatedText = text
		res.Status = results.StatusSuccess
		return res
	}

	cls := classify.Explain(text)
	res.ContentType = string(cls.Label)
	trace(page.Number, StateClassified, logger.String("label", string(cls.Label)), logger.String("signal", string(cls.Signal)))

	var tr translation
	switch cls.Label {
	case classify.TOC:
		trace(page.Number, StateTOC)
		tr = p.translateTOC(ctx, text)
	case classify.Table:
		trace(page.Number, StateTable)
		if !p.opts.FlatText {
			if rows := textnorm.NormalizeRows(page.RawText); rows != "" {
				text = rows
				res.OriginalText = rows
			}
		}
		tr = p.translateTable(ctx, text)
	default:
		tr = p.translateChunks(ctx, page.Number, text)
	}

	res.TranslatedText = tr.text
	res.Chunks = tr.units
	res.FailedUnits = tr.failed
	if tr.err != nil {
		res.Status = results.StatusFailed
		res.Error = tr.err.Error()
	} else {
		res.Status = results.StatusSuccess
	}
	return res
}

func (p *Processor) normalize(raw string) string {
	if p.opts.FlatText {
		return textnorm.Normalize(raw)
	}
	return textnorm.NormalizeLayout(raw)
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}

func (p *Processor) structureOptions() structure.Options {
	return structure.Options{MaxFailedRatio: p.opts.MaxFailedRatio}
}

func (p *Processor) translateTOC(ctx context.Context, text string) translation {
	_, r := structure.TranslateTOC(ctx, structure.ParseTOC(text), p.unitTranslator(), p.structureOptions())
	return translation{text: r.Text, units: r.Units, failed: r.Failed, err: r.Err}
}

func (p *Processor) translateTable(ctx context.Context, text string) translation {
	r := structure.TranslateTable(ctx, text, p.unitTranslator(), p.structureOptions())
	return translation{text: r.Text, units: r.Units, failed: r.Failed, err: r.Err}
}

func (p *Processor) translateChunks(ctx context.Context, pageNum int, text string) translation {
	trace(pageNum, StateChunking)
	chunks := p.splitter.Split(text)
	trace(pageNum, StateTranslating, logger.Int("chunks", len(chunks)))

	parts := p.invokeAll(ctx, chunks)
	trace(pageNum, StateMerging)
	m := chunker.Merge(parts, chunker.MergeOptions{MaxFailedRatio: p.opts.MaxFailedRatio})
	return translation{text: m.Text, units: m.Total, failed: m.Failed, err: m.Err}
}

// invokeAll translates chunks one at a time, in order.
func (p *Processor) invokeAll(ctx context.Context, chunks []chunker.Chunk) []chunker.Translated {
	parts := make([]chunker.Translated, len(chunks))
	for i, c := range chunks {
		out := p.inv.Invoke(ctx, c.Text)
		parts[i] = chunker.Translated{Chunk: c, Text: out.Text, Err: out.Err}
		if out.OK() && out.Retries() > 0 {
			logger.Info("chunk translated after retries",
				logger.Int("chunk", c.Index+1),
				logger.Int("attempts", len(out.Attempts)))
		}
	}
	return parts
}

// unitTranslator translates a TOC label or table cell. A unit longer than
// the chunk limit is chunked and must translate completely.
func (p *Processor) unitTranslator() structure.UnitTranslator {
	return structure.UnitFunc(func(ctx context.Context, text string) (string, error) {
		if utf8.RuneCountInString(text) <= p.splitter.Options().MaxLength {
			out := p.inv.Invoke(ctx, text)
			return out.Text, out.Err
		}
		m := chunker.Merge(p.invokeAll(ctx, p.splitter.Split(text)), chunker.MergeOptions{})
		if m.Err != nil {
			return "", m.Err
		}
		return m.Text, nil
	})
}

// Run processes pages in order and collects a session. The page delay is
// waited between pages. If ctx is cancelled the pages finished so far are
// returned together with ctx's error; a page cut short by the cancellation
// is neither added nor recorded.
func (p *Processor) Run(ctx context.Context, pages []pdf.Page) (*results.Session, error) {
	session := results.NewSession(p.opts.Source)
	session.Backend = p.opts.Backend
	session.SourceLang = p.opts.SourceLang
	session.TargetLang = p.opts.TargetLang

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			logger.Warn("run interrupted", logger.Int("done", i), logger.Int("total", len(pages)))
			return session, err
		}

		res := p.ProcessPage(ctx, page)
		if err := ctx.Err(); err != nil && !res.Succeeded() {
			// the page failed because of the cancellation, not the service
			logger.Warn("run interrupted", logger.Int("done", i), logger.Int("total", len(pages)),
				logger.Int("page", page.Number))
			return session, err
		}
		session.Add(res)
		p.record(page, res)
		p.logPage(res)
		if p.opts.Progress != nil {
			p.opts.Progress(i+1, len(pages), res)
		}

		if i < len(pages)-1 && p.opts.PageDelay > 0 {
			if err := p.opts.Sleep(ctx, p.opts.PageDelay); err != nil {
				logger.Warn("run interrupted", logger.Int("done", i+1), logger.Int("total", len(pages)))
				return session, err
			}
		}
	}

	logger.Info("run finished",
		logger.Int("pages", session.TotalPages),
		logger.Int("successful", session.SuccessfulCount),
		logger.Int("failed", session.FailedCount()))
	return session, nil
}

func (p *Processor) record(page pdf.Page, res results.PageResult) {
	if p.opts.Recorder == nil {
		return
	}
	switch {
	case res.Succeeded():
		p.opts.Recorder.ResolvePage(res.PageNumber)
	case page.Err != nil:
		p.opts.Recorder.RecordPageFailure(res.PageNumber, ledger.StageExtract, res.Error)
	default:
		p.opts.Recorder.RecordPageFailure(res.PageNumber, ledger.StageTranslation, res.Error)
	}
}

func (p *Processor) logPage(res results.PageResult) {
	fields := []logger.Field{
		logger.Int("page", res.PageNumber),
		logger.String("type", res.ContentType),
		logger.Int("chars", res.OriginalCharCount),
		logger.Int("units", res.Chunks),
		logger.Float64("seconds", res.TranslationTime),
	}
	if res.Succeeded() {
		logger.Info("page translated", fields...)
		return
	}
	fields = append(fields, logger.Int("failed_units", res.FailedUnits), logger.String("reason", res.Error))
	logger.Warn("page failed", fields...)
}
