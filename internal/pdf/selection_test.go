package pdf

import (
	"reflect"
	"testing"

	"pdf-translator/internal/types"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		list  string
		pages []int // of a 10-page document
		str   string
	}{
		{"", []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, "all"},
		{"all", []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, "all"},
		{"ALL", []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, "all"},
		{"3", []int{3}, "3"},
		{"1-3,5", []int{1, 2, 3, 5}, "1-3,5"},
		{"5, 1-3", []int{1, 2, 3, 5}, "1-3,5"},
		{"8-", []int{8, 9, 10}, "8-"},
		{"-4", []int{1, 2, 3, 4}, "1-4"},
		{"2-4,3-5", []int{2, 3, 4, 5}, "2-4,3-5"},
		{"12-20", nil, "12-20"},
		{"1-3,,", []int{1, 2, 3}, "1-3"},
	}
	for _, tt := range tests {
		sel, err := ParseSelection(tt.list)
		if err != nil {
			t.Errorf("ParseSelection(%q) error = %v", tt.list, err)
			continue
		}
		if got := sel.Pages(10); !reflect.DeepEqual(got, tt.pages) {
			t.Errorf("ParseSelection(%q).Pages(10) = %v, want %v", tt.list, got, tt.pages)
		}
		if got := sel.String(); got != tt.str {
			t.Errorf("ParseSelection(%q).String() = %q, want %q", tt.list, got, tt.str)
		}
	}
}

func TestParseSelectionInvalid(t *testing.T) {
	for _, list := range []string{"abc", "0", "3-1", "1-x", "-0", ",", "2--3"} {
		_, err := ParseSelection(list)
		if err == nil {
			t.Errorf("ParseSelection(%q) expected error", list)
			continue
		}
		if !types.IsCode(err, types.ErrInvalidInput) {
			t.Errorf("ParseSelection(%q) error = %v, want ErrInvalidInput", list, err)
		}
	}
}

func TestSelectPages(t *testing.T) {
	sel := SelectPages(4, 2, 2, 9)
	if sel.IsAll() {
		t.Fatal("SelectPages() should not select all")
	}
	if got := sel.Pages(5); !reflect.DeepEqual(got, []int{2, 4}) {
		t.Errorf("Pages(5) = %v, want [2 4]", got)
	}
	if !sel.Contains(9) || sel.Contains(3) || sel.Contains(0) {
		t.Error("Contains() mismatch")
	}

	none := SelectPages(0, -1)
	if none.IsAll() {
		t.Error("invalid page numbers must not select every page")
	}
	if got := none.Pages(5); len(got) != 0 {
		t.Errorf("Pages() = %v, want none", got)
	}
	if none.String() != "none" {
		t.Errorf("String() = %q, want none", none.String())
	}
	if empty := SelectPages(); empty.IsAll() || len(empty.Pages(3)) != 0 {
		t.Error("SelectPages() with no numbers should select nothing")
	}
}

func TestAllPages(t *testing.T) {
	sel := AllPages()
	if !sel.IsAll() || !sel.Contains(1000) || sel.Contains(0) {
		t.Error("AllPages() mismatch")
	}
	if got := sel.Pages(0); len(got) != 0 {
		t.Errorf("Pages(0) = %v, want none", got)
	}
}
