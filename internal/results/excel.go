package results

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the readable workbook.
const (
	SheetSummary  = "Summary"
	SheetAll      = "All Pages"
	SheetSuccess  = "Success"
	SheetFailed   = "Failed"
	SheetSections = "Sections"
)

// excelSampleRunes is the text sample length in the page sheets.
const excelSampleRunes = 300

// SectionRow is one line of the Sections sheet: a TOC entry with the pages
// whose text falls under it.
type SectionRow struct {
	Number string
	Title  string
	Level  int
	Page   int
	Pages  []int
}

var pageHeader = []any{"Page", "Original", "Translation", "Original Length", "Translation Length", "Status", "Time (s)"}

type workbookStyles struct {
	header, label, wrap, success, failed int
}

func newStyles(f *excelize.File) (workbookStyles, error) {
	var st workbookStyles
	var err error
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&st.header, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11},
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		}},
		{&st.label, &excelize.Style{
			Font: &excelize.Font{Bold: true},
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E7E6E6"}},
		}},
		{&st.wrap, &excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}}},
		{&st.success, &excelize.Style{
			Font: &excelize.Font{Color: "006100"},
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"C6EFCE"}},
		}},
		{&st.failed, &excelize.Style{
			Font: &excelize.Font{Color: "9C0006"},
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFC7CE"}},
		}},
	}
	for _, d := range defs {
		if *d.dst, err = f.NewStyle(d.style); err != nil {
			return st, err
		}
	}
	return st, nil
}

// WriteExcel writes a readable workbook: run statistics, every page,
// successful pages, failed pages (when any), and the TOC sections when
// sections is non-empty.
func WriteExcel(path string, s *Session, sections []SectionRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := buildWorkbook(f, s, sections); err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}
	return writeAtomic(path, func(w io.Writer) error {
		return f.Write(w)
	})
}

func buildWorkbook(f *excelize.File, s *Session, sections []SectionRow) error {
	st, err := newStyles(f)
	if err != nil {
		return err
	}
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	if err := writeSummary(f, st, s); err != nil {
		return err
	}

	var ok, failed []PageResult
	for _, p := range s.Pages {
		if p.Succeeded() {
			ok = append(ok, p)
		} else {
			failed = append(failed, p)
		}
	}
	if err := writePageSheet(f, st, SheetAll, s.Pages); err != nil {
		return err
	}
	if err := writePageSheet(f, st, SheetSuccess, ok); err != nil {
		return err
	}
	if len(failed) > 0 {
		if err := writePageSheet(f, st, SheetFailed, failed); err != nil {
			return err
		}
	}
	if len(sections) > 0 {
		if err := writeSections(f, st, sections); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)
	return nil
}

func writeSummary(f *excelize.File, st workbookStyles, s *Session) error {
	rows := [][2]any{
		{"Source", s.Source},
		{"Backend", s.Backend},
		{"Languages", s.SourceLang + " -> " + s.TargetLang},
		{"Total pages", s.TotalPages},
		{"Successful", s.SuccessfulCount},
		{"Failed", s.FailedCount()},
		{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate())},
		{"Timestamp", s.Timestamp},
	}
	if err := f.SetCellValue(SheetSummary, "A1", "Translation Summary"); err != nil {
		return err
	}
	for i, r := range rows {
		row := i + 3
		if err := f.SetSheetRow(SheetSummary, fmt.Sprintf("A%d", row), &[]any{r[0], r[1]}); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetSummary, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), st.label); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(SheetSummary, "A", "A", 20); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "B", "B", 40)
}

func writePageSheet(f *excelize.File, st workbookStyles, sheet string, pages []PageResult) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &pageHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "G1", st.header); err != nil {
		return err
	}

	for i, p := range pages {
		row := i + 2
		values := []any{
			p.PageNumber,
			Sample(p.OriginalText, excelSampleRunes),
			Sample(p.TranslatedText, excelSampleRunes),
			p.OriginalCharCount,
			p.TranslatedCharCount,
			string(p.Status),
			p.TranslationTime,
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, fmt.Sprintf("B%d", row), fmt.Sprintf("C%d", row), st.wrap); err != nil {
			return err
		}
		status := st.success
		if !p.Succeeded() {
			status = st.failed
		}
		if err := f.SetCellStyle(sheet, fmt.Sprintf("F%d", row), fmt.Sprintf("F%d", row), status); err != nil {
			return err
		}
		if err := f.SetRowHeight(sheet, row, 80); err != nil {
			return err
		}
	}

	widths := map[string]float64{"A": 8, "B": 50, "C": 50, "D": 12, "E": 12, "F": 12, "G": 10}
	for col, w := range widths {
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

func writeSections(f *excelize.File, st workbookStyles, sections []SectionRow) error {
	if _, err := f.NewSheet(SheetSections); err != nil {
		return err
	}
	header := []any{"Section", "Title", "Level", "TOC Page", "Pages"}
	if err := f.SetSheetRow(SheetSections, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSections, "A1", "E1", st.header); err != nil {
		return err
	}
	for i, sec := range sections {
		values := []any{sec.Number, sec.Title, sec.Level, sec.Page, joinPages(sec.Pages)}
		if err := f.SetSheetRow(SheetSections, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(SheetSections, "B", "B", 40); err != nil {
		return err
	}
	return f.SetColWidth(SheetSections, "E", "E", 30)
}

func joinPages(pages []int) string {
	out := ""
	for i, p := range pages {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprint(p)
	}
	return out
}
