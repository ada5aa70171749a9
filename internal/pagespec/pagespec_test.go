package pagespec

import (
	"reflect"
	"strings"
	"testing"

	"github.com/Lllllllleong/pdftoolkit/internal/failure"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		spec  string
		total int
		want  Set
	}{
		{"empty selects all", "", 4, Set{0, 1, 2, 3}},
		{"all", "all", 3, Set{0, 1, 2}},
		{"all is case-insensitive", "ALL", 2, Set{0, 1}},
		{"all of empty document", "all", 0, Set{}},
		{"empty of empty document", "", 0, Set{}},
		{"single page", "2", 5, Set{1}},
		{"list", "1,3,5", 5, Set{0, 2, 4}},
		{"range", "2-4", 5, Set{1, 2, 3}},
		{"open range", "3-", 5, Set{2, 3, 4}},
		{"mixed", "1,3-5", 6, Set{0, 2, 3, 4}},
		{"overlaps collapse", "1-3,2-4,3", 5, Set{0, 1, 2, 3}},
		{"order does not matter", "5,1,3", 5, Set{0, 2, 4}},
		{"whitespace around parts", " 1 , 3 - 4 ", 5, Set{0, 2, 3}},
		{"single page range", "2-2", 3, Set{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.spec, tt.total)
			if err != nil {
				t.Fatalf("Parse(%q, %d) error: %v", tt.spec, tt.total, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q, %d) = %v, want %v", tt.spec, tt.total, got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		total   int
		message string
	}{
		{"letters", "abc", 5, "Invalid character in page specification: 'abc'"},
		{"letters in range", "1-x", 5, "Invalid character in page specification: '1-x'"},
		{"missing start", "-3", 5, "Invalid character in page specification: '-3'"},
		{"trailing comma", "1,", 5, "Invalid character in page specification: ''"},
		{"double hyphen", "1-2-3", 5, "Invalid character in page specification: '1-2-3'"},
		{"zero page", "0", 5, "Invalid page number: '0' for PDF with 5 pages (1-indexed)."},
		{"past end", "6", 5, "Invalid page number: '6' for PDF with 5 pages (1-indexed)."},
		{"reversed range", "2-1", 5, "Invalid page range: '2-1' for PDF with 5 pages (1-indexed)."},
		{"range past end", "4-9", 5, "Invalid page range: '4-9' for PDF with 5 pages (1-indexed)."},
		{"open range past end", "9-", 5, "Invalid page range: '9-' for PDF with 5 pages (1-indexed)."},
		{"open range of empty document", "1-", 0, "Cannot parse range ending with '-' for an empty PDF."},
		{"page of empty document", "1", 0, "Invalid page number: '1' for PDF with 0 pages (1-indexed)."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.spec, tt.total)
			if err == nil {
				t.Fatalf("Parse(%q, %d) succeeded, want error", tt.spec, tt.total)
			}
			if !failure.Is(err, failure.PageRange) {
				t.Fatalf("error kind = %v, want %v", failure.KindOf(err), failure.PageRange)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.message)
			}
		})
	}
}

func TestParseIsStrictlyAscending(t *testing.T) {
	specs := []string{"5,4,3,2,1", "1-10,3-7,10", "9-,1-2,5", "all", "2,2,2"}
	for _, spec := range specs {
		got, err := Parse(spec, 10)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", spec, err)
		}
		for i, p := range got {
			if p < 0 || p >= 10 {
				t.Errorf("Parse(%q): page %d out of range", spec, p)
			}
			if i > 0 && got[i-1] >= p {
				t.Errorf("Parse(%q) = %v is not strictly ascending", spec, got)
			}
		}
	}
}

func TestSetHelpers(t *testing.T) {
	s := Set{0, 1, 2, 4, 7, 8}

	if !s.Contains(4) || s.Contains(3) || s.Contains(9) {
		t.Error("Contains returned wrong membership")
	}
	if got, want := s.String(), "1-3,5,8-9"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got, want := s.Complement(10), (Set{3, 5, 6, 9}); !reflect.DeepEqual(got, want) {
		t.Errorf("Complement() = %v, want %v", got, want)
	}
	if got := (Set{}).String(); got != "" {
		t.Errorf("empty String() = %q", got)
	}
}
