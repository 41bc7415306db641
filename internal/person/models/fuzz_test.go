//go:build go1.18

package models

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// FuzzParseListQuery checks that query parsing never panics and that any
// accepted query is well formed.
func FuzzParseListQuery(f *testing.F) {
	f.Add("", "")
	f.Add("2", "DESC")
	f.Add("0", "asc")
	f.Add("-1", "ASC")
	f.Add("100", "id,desc")
	f.Add("9999999999999999999999", "name,asc")
	f.Add("abc", "sideways")
	f.Add(" 3 ", " desc ")

	f.Fuzz(func(t *testing.T, size, sort string) {
		q, err := ParseListQuery(size, sort)
		if err != nil {
			return
		}
		if q.Sort != SortAsc && q.Sort != SortDesc {
			t.Errorf("accepted query has sort %q", q.Sort)
		}
		if q.Size != nil && *q.Size < 0 {
			t.Errorf("accepted query has negative size %d", *q.Size)
		}
		if strings.TrimSpace(size) == "" && q.Size != nil {
			t.Error("blank size produced a limit")
		}
	})
}

// FuzzNormalizeName checks that an accepted name is trimmed, non-empty and
// within the length bound.
func FuzzNormalizeName(f *testing.F) {
	f.Add("Alex")
	f.Add("   ")
	f.Add("  Michael  ")
	f.Add(strings.Repeat("x", MaxNameLength+1))
	f.Add("Zoë")

	f.Fuzz(func(t *testing.T, input string) {
		name, err := NormalizeName(input)
		if err != nil {
			return
		}
		if name == "" {
			t.Error("accepted an empty name")
		}
		if name != strings.TrimSpace(name) {
			t.Errorf("accepted name %q is not trimmed", name)
		}
		if utf8.RuneCountInString(name) > MaxNameLength {
			t.Errorf("accepted name has %d runes", utf8.RuneCountInString(name))
		}
	})
}
