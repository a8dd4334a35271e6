package predicate

import (
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/starford/notesearch/internal/models"
)

func TestHighlight_MergesAndSorts(t *testing.T) {
	text := "Milk and more milk, buttermilk"
	got := Highlight(text, []string{"milk", "butter"})
	want := []Range{{0, 4}, {14, 18}, {20, 30}}
	if len(got) != len(want) {
		t.Fatalf("ranges = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("range[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestHighlight_NoTerms(t *testing.T) {
	if got := Highlight("anything", nil); len(got) != 0 {
		t.Errorf("ranges = %v, want none", got)
	}
	if got := Highlight("anything", Terms("   ")); len(got) != 0 {
		t.Errorf("ranges = %v, want none", got)
	}
}

func TestHighlight_Unicode(t *testing.T) {
	text := "Über café ÜBER"
	got := Highlight(text, []string{"über"})
	if len(got) != 2 {
		t.Fatalf("ranges = %v, want 2", got)
	}
	for _, r := range got {
		if !strings.EqualFold(text[r.Start:r.End], "über") {
			t.Errorf("range %v covers %q", r, text[r.Start:r.End])
		}
	}
}

func TestProperty_EmptyQueryMatchesEverything(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		blank := rapid.StringOfN(rapid.SampledFrom([]rune{' ', '\t', '\n', '\r'}), 0, 8, -1).Draw(t, "blank")
		if ps := ForSearchText(blank); len(ps) != 0 {
			t.Fatalf("ForSearchText(%q) produced %d predicates", blank, len(ps))
		}
		content := rapid.String().Draw(t, "content")
		if !And(ForSearchText(blank)...).Matches(models.Note{Content: content}) {
			t.Fatalf("blank query rejected %q", content)
		}
	})
}

func TestProperty_SubstringMatchesAnyCase(t *testing.T) {
	letters := rapid.SampledFrom([]rune("abcdefgxyzABCXYZ 01"))
	rapid.Check(t, func(t *rapid.T) {
		content := rapid.StringOfN(letters, 1, 40, -1).Draw(t, "content")
		start := rapid.IntRange(0, len(content)-1).Draw(t, "start")
		end := rapid.IntRange(start+1, len(content)).Draw(t, "end")
		term := content[start:end]
		if rapid.Bool().Draw(t, "upper") {
			term = strings.ToUpper(term)
		} else {
			term = strings.ToLower(term)
		}
		if !ContentContains(term).Matches(models.Note{Content: content}) {
			t.Fatalf("term %q not found in %q", term, content)
		}
	})
}

func TestContentContains_InvalidUTF8MatchesOnlySameByte(t *testing.T) {
	p := ContentContains("\xff")
	for _, content := range []string{"a\xfeb", "caf\uFFFD", "plain"} {
		if p.Matches(models.Note{Content: content}) {
			t.Errorf("%q matched %q", "\xff", content)
		}
		if got := Highlight(content, []string{"\xff"}); len(got) != 0 {
			t.Errorf("Highlight(%q) = %v, want none", content, got)
		}
	}
	if !p.Matches(models.Note{Content: "a\xffb"}) {
		t.Fatal("identical invalid byte did not match")
	}
	got := Highlight("a\xffb", []string{"\xff"})
	if len(got) != 1 || got[0] != (Range{1, 2}) {
		t.Fatalf("Highlight = %v, want [{1 2}]", got)
	}
}

func TestProperty_InvalidBytesNeverMatchOtherBytes(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := rapid.ByteRange(0x80, 0xff).Draw(t, "byte")
		other := rapid.ByteRange(0x80, 0xff).Filter(func(o byte) bool { return o != b }).Draw(t, "other")
		content := "x" + string([]byte{other}) + "y"
		if ContentContains(string([]byte{b})).Matches(models.Note{Content: content}) {
			t.Fatalf("byte %#x matched content %q", b, content)
		}
	})
}

func TestProperty_AbsentTermDoesNotMatch(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		content := rapid.StringOfN(rapid.SampledFrom([]rune("abAB ")), 0, 40, -1).Draw(t, "content")
		term := rapid.StringOfN(rapid.SampledFrom([]rune("abAB")), 0, 5, -1).Draw(t, "prefix") + "q"
		if ContentContains(term).Matches(models.Note{Content: content}) {
			t.Fatalf("term %q matched %q", term, content)
		}
	})
}

func TestProperty_StatusPartitionsCorpus(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := models.Note{Deleted: rapid.Bool().Draw(t, "deleted")}
		live := ForStatus(false).Matches(n)
		gone := ForStatus(true).Matches(n)
		if live == gone {
			t.Fatalf("note with deleted=%v matched live=%v gone=%v", n.Deleted, live, gone)
		}
	})
}

func TestProperty_TagRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tags := rapid.SliceOfN(rapid.StringMatching(`[a-zA-Z\\"<>&/ ]{1,8}`), 1, 5).Draw(t, "tags")
		stored := models.EncodeTags(tags)
		pick := rapid.SampledFrom(tags).Draw(t, "pick")
		n := models.Note{Tags: stored}
		if !ForTag(pick).Matches(n) {
			t.Fatalf("tag %q not found in %s", pick, stored)
		}
		if !strings.Contains(stored, EscapeTag(pick)) {
			t.Fatalf("escaped form %s absent from %s", EscapeTag(pick), stored)
		}
		if ForUntaggedNotes().Matches(n) {
			t.Fatalf("tagged note %s reported untagged", stored)
		}
	})
}

func TestProperty_HighlightAgreesWithMatch(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		content := rapid.StringOfN(rapid.SampledFrom([]rune("aAbBé É")), 0, 30, -1).Draw(t, "content")
		term := rapid.StringOfN(rapid.SampledFrom([]rune("aAbBéÉ")), 1, 3, -1).Draw(t, "term")
		ranges := Highlight(content, []string{term})
		if ContentContains(term).Matches(models.Note{Content: content}) != (len(ranges) > 0) {
			t.Fatalf("match and highlight disagree for %q in %q", term, content)
		}
	})
}
