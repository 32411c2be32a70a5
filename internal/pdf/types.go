// Package pdf extracts the text of a PDF page by page.
package pdf

import "unicode/utf8"

// PDFInfo PDF 文件信息
type PDFInfo struct {
	FilePath  string `json:"file_path"`
	FileName  string `json:"file_name"`
	PageCount int    `json:"page_count"`
	FileSize  int64  `json:"file_size"`
	IsTextPDF bool   `json:"is_text_pdf"`
	// Validated is false when pdfcpu reported structural problems; the
	// file may still be readable.
	Validated bool `json:"validated"`
}

// Page 单页提取结果。Err 非空表示该页无法读取
type Page struct {
	Number  int
	RawText string
	Err     error
}

// CharCount is the length of RawText in runes.
func (p Page) CharCount() int {
	return utf8.RuneCountInString(p.RawText)
}

// Mode selects how page text is read.
type Mode int

const (
	// ModeAuto reads text by row and falls back to plain text when rows
	// yield nothing.
	ModeAuto Mode = iota
	// ModeRows joins GetTextByRow rows with newlines.
	ModeRows
	// ModePlain uses GetPlainText.
	ModePlain
)

func (m Mode) String() string {
	switch m {
	case ModeRows:
		return "rows"
	case ModePlain:
		return "plain"
	default:
		return "auto"
	}
}
