// Package pagespec parses the 1-indexed page specification grammar used on the
// command line ("1,3-5,8-", "all") into a validated set of 0-indexed pages.
package pagespec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Lllllllleong/pdftoolkit/internal/failure"
)

// All is the specification selecting every page.
const All = "all"

// Set is an ascending list of unique 0-indexed page positions.
type Set []int

// Full returns the set of every page of a document with total pages.
func Full(total int) Set {
	s := make(Set, 0, total)
	for i := 0; i < total; i++ {
		s = append(s, i)
	}
	return s
}

// Contains reports whether page index i is selected.
func (s Set) Contains(i int) bool {
	n := sort.SearchInts(s, i)
	return n < len(s) && s[n] == i
}

// Len returns the number of selected pages.
func (s Set) Len() int { return len(s) }

// Complement returns the pages of [0,total) not in s.
func (s Set) Complement(total int) Set {
	out := make(Set, 0, total)
	for i := 0; i < total; i++ {
		if !s.Contains(i) {
			out = append(out, i)
		}
	}
	return out
}

// String renders s back into compact 1-indexed form, e.g. "1-3,5".
func (s Set) String() string {
	var b strings.Builder
	for i := 0; i < len(s); {
		j := i
		for j+1 < len(s) && s[j+1] == s[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		if i == j {
			b.WriteString(strconv.Itoa(s[i] + 1))
		} else {
			fmt.Fprintf(&b, "%d-%d", s[i]+1, s[j]+1)
		}
		i = j + 1
	}
	return b.String()
}

// Parse converts spec into a Set for a document with total pages. An empty spec
// or "all" (any case) selects every page. Every failure is a PageRange error.
func Parse(spec string, total int) (Set, error) {
	if spec == "" || strings.EqualFold(spec, All) {
		return Full(total), nil
	}

	selected := make(map[int]struct{})
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if err := parsePart(part, total, selected); err != nil {
			return nil, err
		}
	}

	if len(selected) == 0 && total > 0 {
		return nil, failure.Newf(failure.PageRange,
			"Page specification '%s' resulted in no pages selected for a PDF with %d pages.", spec, total)
	}

	out := make(Set, 0, len(selected))
	for p := range selected {
		out = append(out, p)
	}
	sort.Ints(out)
	return out, nil
}

func parsePart(part string, total int, selected map[int]struct{}) error {
	startStr, endStr, isRange := strings.Cut(part, "-")
	if !isRange {
		n, err := atoi(part)
		if err != nil {
			return invalidCharacter(part)
		}
		page := n - 1
		if page < 0 || page >= total {
			return failure.Newf(failure.PageRange,
				"Invalid page number: '%s' for PDF with %d pages (1-indexed).", part, total)
		}
		selected[page] = struct{}{}
		return nil
	}

	n, err := atoi(startStr)
	if err != nil {
		return invalidCharacter(part)
	}
	start := n - 1

	var end int
	if endStr == "" {
		if total == 0 {
			return failure.New(failure.PageRange, "Cannot parse range ending with '-' for an empty PDF.")
		}
		end = total - 1
	} else {
		m, err := atoi(endStr)
		if err != nil {
			return invalidCharacter(part)
		}
		end = m - 1
	}

	if start < 0 || start >= total || end < 0 || end >= total || start > end {
		return failure.Newf(failure.PageRange,
			"Invalid page range: '%s' for PDF with %d pages (1-indexed).", part, total)
	}
	for p := start; p <= end; p++ {
		selected[p] = struct{}{}
	}
	return nil
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func invalidCharacter(part string) error {
	return failure.Newf(failure.PageRange,
		"Invalid character in page specification: '%s'. Use numbers, commas, hyphens.", part)
}
