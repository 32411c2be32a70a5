// Command toc_outline prints the section outline recovered from the TOC
// pages of a saved translation session, with the pages filed under each
// section.
//
// Usage:
//
//	go run ./cmd/toc_outline <session.json>
package main

import (
	"fmt"
	"os"
	"strings"

	"pdf-translator/internal/pipeline"
	"pdf-translator/internal/results"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: toc_outline <session.json>")
		os.Exit(1)
	}

	s, err := results.LoadSession(os.Args[1])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	rows := pipeline.Sections(s)
	if len(rows) == 0 {
		fmt.Println("No table of contents found in this session.")
		return
	}
	for _, r := range rows {
		indent := strings.Repeat("  ", max(r.Level-1, 0))
		fmt.Printf("%s%s %s  (TOC p.%d)  pages: %v\n", indent, r.Number, r.Title, r.Page, r.Pages)
	}
}
