// Command check_pages shows how each page of a PDF would be handled without
// calling a translation service: extracted size, content type and the
// signal that decided it.
//
// Usage:
//
//	go run ./cmd/check_pages <input.pdf> [pages] [rows]
//
// With "rows" every page is extracted row by row (pdf.ModeRows) instead
// of in the automatic mode.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"pdf-translator/internal/classify"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/textnorm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: check_pages <input.pdf> [pages] [rows]")
		fmt.Println()
		fmt.Println("Prints, per page:")
		fmt.Println("  - extracted character count")
		fmt.Println("  - content type (TOC, TABLE, PROSE) and the deciding signal")
		fmt.Println("  - the first line of normalized text")
		os.Exit(1)
	}

	inputPath := os.Args[1]
	sel := pdf.AllPages()
	if len(os.Args) > 2 {
		var err error
		if sel, err = pdf.ParseSelection(os.Args[2]); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}

	info, err := pdf.Open(inputPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s: %d pages, %d bytes, text=%v, validated=%v\n\n",
		info.FileName, info.PageCount, info.FileSize, info.IsTextPDF, info.Validated)

	extract := pdf.Extract
	if len(os.Args) > 3 && os.Args[3] == "rows" {
		extract = pdf.ExtractWithRows
	}
	pages, err := extract(context.Background(), inputPath, sel)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	counts := make(map[classify.Label]int)
	for _, p := range pages {
		if p.Err != nil {
			fmt.Printf("p.%-4d  extraction failed: %v\n", p.Number, p.Err)
			continue
		}
		text := textnorm.NormalizeLayout(p.RawText)
		if text == "" {
			fmt.Printf("p.%-4d  (blank)\n", p.Number)
			continue
		}
		r := classify.Explain(text)
		counts[r.Label]++
		first, _, _ := strings.Cut(text, "\n")
		if utf8.RuneCountInString(first) > 40 {
			first = string([]rune(first)[:40]) + "..."
		}
		fmt.Printf("p.%-4d  %5d chars  %-5s  %-14s  %s\n",
			p.Number, utf8.RuneCountInString(text), r.Label, r.Signal, first)
	}

	fmt.Printf("\nTOC: %d  TABLE: %d  PROSE: %d\n", counts[classify.TOC], counts[classify.Table], counts[classify.Prose])
}
