package predicate

import (
	"cmp"
	"slices"
	"strings"
	"unicode/utf8"
)

// Range is a half-open byte range [Start, End) within a text.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Terms splits a search string on whitespace. It never returns empty terms.
func Terms(searchText string) []string {
	return strings.Fields(searchText)
}

// Highlight returns the byte ranges of text matched by any of terms, using
// the same case-insensitive comparison as ContentContains. Overlapping and
// adjacent ranges are merged; the result is sorted by Start.
func Highlight(text string, terms []string) []Range {
	var out []Range
	for _, term := range terms {
		if term == "" {
			continue
		}
		for from := 0; from < len(text); {
			i := indexFold(text, term, from)
			if i < 0 {
				break
			}
			end := i + foldLen(text[i:], utf8.RuneCountInString(term))
			out = append(out, Range{Start: i, End: end})
			_, size := utf8.DecodeRuneInString(text[i:])
			from = i + size
		}
	}
	return mergeRanges(out)
}

// indexFold returns the byte offset of the first case-insensitive occurrence
// of sub in s at or after from, or -1.
func indexFold(s, sub string, from int) int {
	if sub == "" {
		return from
	}
	n := utf8.RuneCountInString(sub)
	for i := from; i < len(s); {
		w := foldLen(s[i:], n)
		if w > 0 && equalFold(s[i:i+w], sub) {
			return i
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1
}

// equalFold reports whether s and t are equal under Unicode case folding.
// Invalid UTF-8 bytes only match the identical byte.
func equalFold(s, t string) bool {
	for s != "" && t != "" {
		r1, n1 := utf8.DecodeRuneInString(s)
		r2, n2 := utf8.DecodeRuneInString(t)
		bad1 := r1 == utf8.RuneError && n1 == 1
		bad2 := r2 == utf8.RuneError && n2 == 1
		switch {
		case bad1 || bad2:
			if !bad1 || !bad2 || s[0] != t[0] {
				return false
			}
		case !strings.EqualFold(s[:n1], t[:n2]):
			return false
		}
		s, t = s[n1:], t[n2:]
	}
	return s == "" && t == ""
}

// foldLen returns the byte length of the first n runes of s, or 0 when s
// holds fewer than n runes.
func foldLen(s string, n int) int {
	w := 0
	for k := 0; k < n; k++ {
		if w >= len(s) {
			return 0
		}
		_, size := utf8.DecodeRuneInString(s[w:])
		w += size
	}
	return w
}

func mergeRanges(rs []Range) []Range {
	if len(rs) < 2 {
		return rs
	}
	slices.SortFunc(rs, func(a, b Range) int {
		return cmp.Or(cmp.Compare(a.Start, b.Start), cmp.Compare(a.End, b.End))
	})
	merged := []Range{rs[0]}
	for _, r := range rs[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
