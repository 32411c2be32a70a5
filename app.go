package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"pdf-translator/internal/chunker"
	"pdf-translator/internal/config"
	ledger "pdf-translator/internal/errors"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/pipeline"
	"pdf-translator/internal/results"
	"pdf-translator/internal/translator"
	"pdf-translator/internal/types"
)

// RunOptions 单次翻译任务参数
type RunOptions struct {
	Input string
	// Pages is a page list such as "1-3,5"; empty means all pages.
	Pages string
	// RetryFrom is a previous session file. Only its failed pages are run
	// and the results are merged into it.
	RetryFrom string
	// RetryFailed runs the pages the failure ledger holds for Input.
	RetryFailed bool
	Excel       bool
	Progress    pipeline.ProgressFunc
}

// RunResult is what a finished run produced.
type RunResult struct {
	Info        *pdf.PDFInfo
	// Document is the input's key in the failure ledger.
	Document    string
	Session     *results.Session
	Files       results.OutputFiles
	Interrupted bool
}

// App wires configuration, backend, pipeline and output together.
type App struct {
	ctx      context.Context
	config   *config.ConfigManager
	backend  translator.Backend
	cache    *translator.Cache
	results  *results.ResultManager
	errorMgr *ledger.ErrorManager
	parser   *pdf.PDFParser

	// sleep overrides the retry and page delays (tests).
	sleep translator.Sleeper

	mu         sync.Mutex
	processing bool
}

// NewApp creates an App using the default config location.
func NewApp() *App {
	return &App{}
}

// NewAppWithConfig creates an App with a custom config path.
func NewAppWithConfig(configPath string) (*App, error) {
	configMgr, err := config.NewConfigManager(configPath)
	if err != nil {
		return nil, err
	}
	return &App{config: configMgr}, nil
}

// startup loads the configuration, lets override adjust it (command-line
// flags) and creates every module. Errors here are configuration problems
// and abort the run.
func (a *App) startup(ctx context.Context, override func(*types.Config)) error {
	a.ctx = ctx
	logger.Info("application starting up")

	if err := a.loadConfig(override); err != nil {
		return err
	}
	return a.initModules()
}

func (a *App) loadConfig(override func(*types.Config)) error {
	if a.config == nil {
		configMgr, err := config.NewConfigManager("")
		if err != nil {
			return err
		}
		a.config = configMgr
	}
	if err := a.config.Load(); err != nil {
		return err
	}
	if override != nil {
		override(a.config.GetConfig())
	}
	return nil
}

// openOutputs opens only the output directory and the failure ledger.
// It needs no API key.
func (a *App) openOutputs(override func(*types.Config)) error {
	if err := a.loadConfig(override); err != nil {
		return err
	}
	return a.initOutputs(a.config.GetConfig().OutputDir)
}

func (a *App) initOutputs(dir string) error {
	var err error
	if a.results, err = results.NewResultManager(dir); err != nil {
		return err
	}
	if a.errorMgr, err = ledger.NewErrorManager(dir); err != nil {
		return types.NewAppError(types.ErrOutput, "无法加载失败记录", err)
	}
	return nil
}

// initModules builds the modules from the current configuration. A
// backend already set on the App is kept.
func (a *App) initModules() error {
	if err := a.config.Validate(); err != nil {
		return err
	}
	cfg := a.config.GetConfig()

	backend := a.backend
	if backend == nil {
		b, err := translator.NewBackend(a.ctx, cfg)
		if err != nil {
			return err
		}
		backend = b
	}
	if cfg.CachePath != "" {
		a.cache = translator.NewCache(cfg.CachePath)
		if err := a.cache.Load(); err != nil {
			// a broken cache only costs extra calls
			logger.Warn("translation cache ignored", logger.Err(err))
			a.cache = translator.NewCache(cfg.CachePath)
		}
	}
	a.backend = translator.Cached(backend, a.cache)

	if err := a.initOutputs(cfg.OutputDir); err != nil {
		return err
	}

	mode := pdf.ModeAuto
	if cfg.FlatText {
		mode = pdf.ModePlain
	}
	a.parser = pdf.NewPDFParser(mode)

	logger.Info("application startup complete",
		logger.String("backend", a.backend.Name()),
		logger.String("output", cfg.OutputDir))
	return nil
}

// shutdown saves the translation cache and closes the backend.
func (a *App) shutdown() {
	logger.Info("application shutting down")
	if a.cache != nil {
		if err := a.cache.Save(); err != nil {
			logger.Warn("failed to save translation cache", logger.Err(err))
		}
	}
	if c, ok := a.backend.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close backend", logger.Err(err))
		}
	}
}

// GetConfig returns the config manager.
func (a *App) GetConfig() *config.ConfigManager {
	return a.config
}

// IsProcessing reports whether a run is in progress.
func (a *App) IsProcessing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.processing
}

// LoadPDF validates the input and reports its page count.
func (a *App) LoadPDF(path string) (*pdf.PDFInfo, error) {
	info, err := a.parser.GetPDFInfo(path)
	if err != nil {
		return nil, err
	}
	if !info.IsTextPDF {
		logger.Warn("pdf has no extractable text, pages will translate as blank",
			logger.String("file", info.FileName))
	}
	return info, nil
}

// documentKey identifies the input in the failure ledger.
func documentKey(path string) string {
	if sum, err := results.CalculateFileMD5(path); err == nil {
		return sum
	}
	return filepath.Base(path)
}

// selection decides which pages to run. It also returns the previous
// session to merge into, if any.
func (a *App) selection(opts RunOptions, doc string) (pdf.Selection, *results.Session, error) {
	switch {
	case opts.RetryFrom != "":
		prev, err := results.LoadSession(opts.RetryFrom)
		if err != nil {
			return pdf.Selection{}, nil, err
		}
		failed := prev.FailedPages()
		logger.Info("retrying failed pages of previous session",
			logger.String("session", opts.RetryFrom),
			logger.Int("pages", len(failed)))
		return pdf.SelectPages(failed...), prev, nil

	case opts.RetryFailed:
		failed := a.errorMgr.FailedPages(doc)
		logger.Info("retrying pages from failure ledger", logger.Int("pages", len(failed)))
		var prev *results.Session
		stem := results.BaseName(opts.Input)
		if s, err := results.LoadSession(a.results.Paths(stem).JSON); err == nil {
			prev = s
		}
		return pdf.SelectPages(failed...), prev, nil
	}

	sel, err := pdf.ParseSelection(opts.Pages)
	return sel, nil, err
}

// TranslatePDF runs the whole document flow: select, extract, translate,
// write. Only failing to read the input or to write the outputs is an
// error; page failures are recorded in the session.
func (a *App) TranslatePDF(ctx context.Context, opts RunOptions) (*RunResult, error) {
	a.mu.Lock()
	if a.processing {
		a.mu.Unlock()
		return nil, types.NewAppError(types.ErrInternal, "已有翻译任务正在进行", nil)
	}
	a.processing = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.processing = false
		a.mu.Unlock()
	}()

	info, err := a.LoadPDF(opts.Input)
	if err != nil {
		return nil, err
	}
	doc := documentKey(opts.Input)
	sel, prev, err := a.selection(opts, doc)
	if err != nil {
		return nil, err
	}

	pages, err := a.parser.Extract(ctx, opts.Input, sel)
	if err != nil && ctx.Err() == nil {
		return nil, err
	}

	cfg := a.config.GetConfig()
	inv := translator.NewInvoker(a.backend, cfg.SourceLang, cfg.TargetLang, translator.InvokerOptions{
		MaxAttempts:    cfg.MaxAttempts,
		BaseRetryDelay: cfg.BaseRetryDelay(),
		BaseTimeout:    cfg.BaseTimeout(),
		MaxTimeout:     cfg.MaxTimeout(),
		Sleep:          a.sleep,
	})
	proc := pipeline.NewProcessor(inv, pipeline.Options{
		Chunk:          chunker.Options{MaxLength: cfg.MaxChunkLength, Overlap: cfg.ChunkOverlap},
		MaxFailedRatio: cfg.MaxFailedChunkRatio,
		PageDelay:      cfg.PageDelay(),
		FlatText:       cfg.FlatText,
		Sleep:          a.sleep,
		Progress:       opts.Progress,
		Recorder:       a.errorMgr.ForDocument(doc, opts.Input),
		Source:         opts.Input,
		Backend:        a.backend.Name(),
		SourceLang:     cfg.SourceLang,
		TargetLang:     cfg.TargetLang,
	})

	session, runErr := proc.Run(ctx, pages)
	interrupted := runErr != nil || ctx.Err() != nil
	if prev != nil {
		session = results.Merge(prev, session)
	}
	// 重试全部成功后，清掉该文档残留的失败记录（例如已不存在的页码）
	if opts.RetryFailed && !interrupted && len(session.FailedPages()) == 0 {
		if err := a.errorMgr.ClearDocument(doc); err != nil {
			logger.Warn("failed to clear failure ledger", logger.Err(err))
		}
	}

	saveOpts := results.SaveOptions{Excel: opts.Excel}
	if opts.Excel {
		saveOpts.Sections = pipeline.Sections(session)
	}
	files, err := a.results.SaveSession(session, results.BaseName(opts.Input), saveOpts)
	if err != nil {
		return nil, err
	}

	return &RunResult{Info: info, Document: doc, Session: session, Files: files, Interrupted: interrupted}, nil
}

// failureDetails describes the ledger record of each failed page of doc.
// Pages the ledger does not hold (failed in an earlier session) are
// listed without details.
func (a *App) failureDetails(doc string, pages []int) []string {
	lines := make([]string, 0, len(pages))
	for _, n := range pages {
		r, ok := a.errorMgr.GetError(doc, n)
		if !ok {
			lines = append(lines, fmt.Sprintf("p.%d", n))
			continue
		}
		lines = append(lines, fmt.Sprintf("p.%d  [%s] retries=%d  %s",
			n, ledger.GetStageDisplayName(r.Stage), r.RetryCount, r.ErrorMsg))
	}
	return lines
}

// describeFailures renders the ledger, one line per failed page.
func (a *App) describeFailures() []string {
	var lines []string
	for _, r := range a.errorMgr.ListErrors() {
		lines = append(lines, fmt.Sprintf("%s  p.%d  [%s] retries=%d  %s",
			filepath.Base(r.Input), r.Page, ledger.GetStageDisplayName(r.Stage), r.RetryCount, r.ErrorMsg))
	}
	return lines
}
