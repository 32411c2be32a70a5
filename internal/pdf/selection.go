package pdf

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"pdf-translator/internal/types"
)

type pageRange struct {
	from, to int // to == 0 means through the last page
}

// Selection restricts which pages are read. The zero value selects every
// page.
type Selection struct {
	ranges []pageRange
}

// AllPages selects every page.
func AllPages() Selection { return Selection{} }

// SelectPages selects exactly the given page numbers.
func SelectPages(numbers ...int) Selection {
	var s Selection
	for _, n := range numbers {
		if n > 0 {
			s.ranges = append(s.ranges, pageRange{n, n})
		}
	}
	if len(s.ranges) == 0 {
		// all-invalid input must not widen to every page
		s.ranges = []pageRange{{1, -1}}
	}
	return s
}

// ParseSelection parses a page list such as "1-3,5,8-" or "-4". An empty
// string or "all" selects every page.
func ParseSelection(list string) (Selection, error) {
	list = strings.TrimSpace(list)
	if list == "" || strings.EqualFold(list, "all") {
		return AllPages(), nil
	}

	var s Selection
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r, err := parseRange(part)
		if err != nil {
			return Selection{}, types.NewAppErrorWithDetails(types.ErrInvalidInput, "页码范围无效", list, err)
		}
		s.ranges = append(s.ranges, r)
	}
	if len(s.ranges) == 0 {
		return Selection{}, types.NewAppErrorWithDetails(types.ErrInvalidInput, "页码范围无效", list, nil)
	}
	return s, nil
}

func parseRange(part string) (pageRange, error) {
	lo, hi, isRange := strings.Cut(part, "-")
	if !isRange {
		n, err := parsePage(lo)
		return pageRange{n, n}, err
	}

	r := pageRange{from: 1}
	var err error
	if lo = strings.TrimSpace(lo); lo != "" {
		if r.from, err = parsePage(lo); err != nil {
			return r, err
		}
	}
	if hi = strings.TrimSpace(hi); hi != "" {
		if r.to, err = parsePage(hi); err != nil {
			return r, err
		}
		if r.to < r.from {
			return r, fmt.Errorf("range %q is reversed", part)
		}
	}
	return r, nil
}

func parsePage(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%q is not a page number", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("page %d is out of range", n)
	}
	return n, nil
}

// IsAll reports whether every page is selected.
func (s Selection) IsAll() bool { return len(s.ranges) == 0 }

// Contains reports whether page n is selected.
func (s Selection) Contains(n int) bool {
	if n < 1 {
		return false
	}
	if s.IsAll() {
		return true
	}
	for _, r := range s.ranges {
		if n >= r.from && (r.to == 0 || n <= r.to) {
			return true
		}
	}
	return false
}

// Pages lists the selected page numbers of a document with total pages,
// ascending and without duplicates.
func (s Selection) Pages(total int) []int {
	var pages []int
	for n := 1; n <= total; n++ {
		if s.Contains(n) {
			pages = append(pages, n)
		}
	}
	return pages
}

func (s Selection) String() string {
	if s.IsAll() {
		return "all"
	}
	ranges := append([]pageRange(nil), s.ranges...)
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].from < ranges[j].from })
	parts := make([]string, 0, len(ranges))
	for _, r := range ranges {
		switch {
		case r.to < 0:
			continue
		case r.to == 0:
			parts = append(parts, fmt.Sprintf("%d-", r.from))
		case r.to == r.from:
			parts = append(parts, strconv.Itoa(r.from))
		default:
			parts = append(parts, fmt.Sprintf("%d-%d", r.from, r.to))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}
