package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

func init() {
	// pdfcpu would otherwise install its config under the user config dir
	api.DisableConfigDir()
}

// Horizontal gaps between text runs of a row, in units of font size. A gap
// wider than columnGap is written as two spaces so that table columns
// survive NormalizeRows.
const (
	wordGap   = 0.25
	columnGap = 1.5
)

// PDFParser 负责打开 PDF 并逐页提取文本
type PDFParser struct {
	mode Mode
}

// NewPDFParser creates a parser reading pages in mode.
func NewPDFParser(mode Mode) *PDFParser {
	return &PDFParser{mode: mode}
}

// GetPDFInfo 获取 PDF 基本信息（页数、文件大小、是否含文本）
func (p *PDFParser) GetPDFInfo(pdfPath string) (*PDFInfo, error) {
	fileInfo, err := statPDF(pdfPath)
	if err != nil {
		return nil, err
	}

	info := &PDFInfo{
		FilePath:  pdfPath,
		FileName:  filepath.Base(pdfPath),
		FileSize:  fileInfo.Size(),
		Validated: true,
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(pdfPath, conf); err != nil {
		info.Validated = false
		logger.Warn("pdf validation reported problems",
			logger.String("file", info.FileName),
			logger.Err(err))
	}
	if ctx, err := api.ReadContextFile(pdfPath); err == nil {
		info.PageCount = ctx.PageCount
	} else {
		logger.Debug("pdfcpu could not read context, using ledongthuc page count",
			logger.String("file", info.FileName),
			logger.Err(err))
	}

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, types.NewAppError(types.ErrPDFInvalid, "无法打开 PDF 文件", err)
	}
	defer f.Close()

	if n := r.NumPage(); info.PageCount == 0 || n < info.PageCount {
		// ledongthuc can only read the pages it can see
		info.PageCount = n
	}
	info.IsTextPDF = isTextPDF(r)
	return info, nil
}

// Open validates pdfPath and reports its basic information.
func Open(pdfPath string) (*PDFInfo, error) {
	return NewPDFParser(ModeAuto).GetPDFInfo(pdfPath)
}

func statPDF(pdfPath string) (os.FileInfo, error) {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "文件不存在，请检查路径", pdfPath, err)
		}
		return nil, types.NewAppError(types.ErrPDFInvalid, "无法访问文件", err)
	}
	if fileInfo.IsDir() {
		return nil, types.NewAppErrorWithDetails(types.ErrPDFInvalid, "路径指向目录而非文件", pdfPath, nil)
	}
	return fileInfo, nil
}

// isTextPDF looks for extractable text on the first three pages. Scanned
// documents have none.
func isTextPDF(r *pdf.Reader) bool {
	total := 0
	for n := 1; n <= min(3, r.NumPage()); n++ {
		text, err := readPage(r, n, ModePlain)
		if err != nil {
			continue
		}
		for _, c := range text {
			if !unicode.IsSpace(c) {
				total++
			}
		}
		if total > 50 {
			return true
		}
	}
	return total > 0
}

// Extract reads the selected pages in order. A page that cannot be read
// yields a Page with Err set; only failing to open the file is an error.
// Cancelling ctx stops after the current page and returns what was read.
func (p *PDFParser) Extract(ctx context.Context, pdfPath string, sel Selection) ([]Page, error) {
	if _, err := statPDF(pdfPath); err != nil {
		return nil, err
	}
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, types.NewAppError(types.ErrPDFInvalid, "无法打开 PDF 文件", err)
	}
	defer f.Close()

	numbers := sel.Pages(r.NumPage())
	pages := make([]Page, 0, len(numbers))
	for _, n := range numbers {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		text, err := readPage(r, n, p.mode)
		if err != nil {
			logger.Warn("page extraction failed", logger.Int("page", n), logger.Err(err))
			pages = append(pages, Page{Number: n, Err: err})
			continue
		}
		pages = append(pages, Page{Number: n, RawText: text})
	}
	logger.Info("pdf text extracted",
		logger.String("file", filepath.Base(pdfPath)),
		logger.Int("pages", len(pages)),
		logger.String("mode", p.mode.String()))
	return pages, nil
}

// Extract reads pages with ModeAuto.
func Extract(ctx context.Context, pdfPath string, sel Selection) ([]Page, error) {
	return NewPDFParser(ModeAuto).Extract(ctx, pdfPath, sel)
}

// ExtractWithRows reads pages with ModeRows.
func ExtractWithRows(ctx context.Context, pdfPath string, sel Selection) ([]Page, error) {
	return NewPDFParser(ModeRows).Extract(ctx, pdfPath, sel)
}

// readPage never panics; the reader does on some malformed content streams.
func readPage(r *pdf.Reader, n int, mode Mode) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", types.NewAppErrorWithDetails(types.ErrExtract, "page content unreadable", fmt.Sprintf("page %d: %v", n, rec), nil)
		}
	}()

	page := r.Page(n)
	if page.V.IsNull() {
		return "", types.NewAppErrorWithDetails(types.ErrExtract, "page object missing", fmt.Sprintf("page %d", n), nil)
	}
	if page.V.Key("Contents").Kind() == pdf.Null {
		return "", nil
	}

	if mode != ModePlain {
		text, err = rowText(page)
		if mode == ModeRows || (err == nil && strings.TrimSpace(text) != "") {
			if err != nil {
				return "", types.NewAppError(types.ErrExtract, fmt.Sprintf("page %d rows", n), err)
			}
			return text, nil
		}
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", types.NewAppError(types.ErrExtract, fmt.Sprintf("page %d text", n), err)
	}
	return text, nil
}

// rowText joins the page's rows top to bottom, one line per row.
func rowText(page pdf.Page) (string, error) {
	rows, err := page.GetTextByRow()
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		line := joinRow(row.Content)
		if line == "" || isPostScriptCode(line) || hasExcessiveNonPrintable(line) {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

func joinRow(texts pdf.TextHorizontal) string {
	runs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if t.S != "" {
			runs = append(runs, t)
		}
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].X < runs[j].X })

	var b strings.Builder
	for i, t := range runs {
		if i > 0 {
			b.WriteString(gapBetween(runs[i-1], t))
		}
		b.WriteString(t.S)
	}
	return strings.TrimSpace(b.String())
}

// gapBetween is the whitespace implied by the distance between two runs.
// Without glyph widths the distance is unknown and nothing is inserted.
func gapBetween(prev, next pdf.Text) string {
	if prev.W <= 0 || prev.FontSize <= 0 {
		return ""
	}
	gap := next.X - (prev.X + prev.W)
	switch {
	case gap > columnGap*prev.FontSize:
		return "  "
	case gap > wordGap*prev.FontSize && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(next.S, " "):
		return " "
	}
	return ""
}

var postScriptOperators = []string{
	"currentpoint", "gsave", "grestore", "newpath", "closepath",
	"setrgbcolor", "setgray", "setlinewidth", "showpage",
	"moveto", "lineto", "curveto",
}

// isPostScriptCode 识别混入文本流的 PostScript 指令
func isPostScriptCode(text string) bool {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "null def") || strings.Contains(text, "@stx") || strings.Contains(text, "@etx") {
		return true
	}
	if (strings.Contains(text, " def ") || strings.HasSuffix(text, " def")) && strings.Contains(text, "/") {
		return true
	}
	for _, op := range postScriptOperators {
		if strings.Contains(lower, op) {
			return true
		}
	}
	if strings.Contains(text, "://") {
		return false
	}
	names := 0
	for _, w := range strings.Fields(text) {
		if len(w) > 1 && w[0] == '/' && strings.IndexFunc(w[1:], func(r rune) bool {
			return !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '@'))
		}) < 0 {
			names++
		}
	}
	return names >= 3
}

// hasExcessiveNonPrintable reports more than 10% control characters.
func hasExcessiveNonPrintable(text string) bool {
	total, bad := 0, 0
	for _, r := range text {
		total++
		if (r < 32 && r != '\n' && r != '\r' && r != '\t') || (r >= 0x7F && r <= 0x9F) {
			bad++
		}
	}
	return total > 0 && float64(bad)/float64(total) > 0.1
}
