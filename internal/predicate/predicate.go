// Package predicate builds composable boolean filters over notes.
//
// A Predicate is an immutable tagged value. Leaves test one field of a
// models.Note; And, Or and Not combine them. Predicates never fail: data that
// cannot be interpreted (for example a malformed tags field) simply does not
// match.
package predicate

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/starford/notesearch/internal/models"
)

// Kind identifies the variant held by a Predicate.
type Kind int

const (
	KindContentContains Kind = iota + 1
	KindTagEquals
	KindTagContains
	KindUntagged
	KindSystemTagContains
	KindStatusEquals
	KindAnd
	KindOr
	KindNot
)

func (k Kind) String() string {
	switch k {
	case KindContentContains:
		return "content_contains"
	case KindTagEquals:
		return "tag_equals"
	case KindTagContains:
		return "tag_contains"
	case KindUntagged:
		return "untagged"
	case KindSystemTagContains:
		return "system_tag_contains"
	case KindStatusEquals:
		return "status_equals"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	case KindNot:
		return "not"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Predicate is a pure boolean test over a note. The zero value matches
// everything.
type Predicate struct {
	kind     Kind
	text     string
	flag     bool
	children []Predicate
}

// Kind returns the variant of p.
func (p Predicate) Kind() Kind {
	if p.kind == 0 {
		return KindAnd
	}
	return p.kind
}

// Text returns the term or tag a leaf predicate tests for.
func (p Predicate) Text() string { return p.text }

// Children returns a copy of the operands of a composite predicate.
func (p Predicate) Children() []Predicate {
	return append([]Predicate(nil), p.children...)
}

// ContentContains matches notes whose content contains term, ignoring case.
func ContentContains(term string) Predicate {
	return Predicate{kind: KindContentContains, text: term}
}

// ForSearchText splits searchText into terms and returns one
// ContentContains predicate per term. Empty or whitespace-only input yields
// no predicates, which combined with And matches every note.
func ForSearchText(searchText string) []Predicate {
	return lo.Map(Terms(searchText), func(term string, _ int) Predicate {
		return ContentContains(term)
	})
}

// TagContains matches notes with at least one tag containing term, ignoring
// case.
func TagContains(term string) Predicate {
	return Predicate{kind: KindTagContains, text: term}
}

// ForKeyword is the keyword filter used by the results controller: every
// term must occur in the content or inside one of the note's tags.
func ForKeyword(keyword string) []Predicate {
	return lo.Map(Terms(keyword), func(term string, _ int) Predicate {
		return Or(ContentContains(term), TagContains(term))
	})
}

// ForStatus matches notes whose deleted flag equals deleted.
func ForStatus(deleted bool) Predicate {
	return Predicate{kind: KindStatusEquals, flag: deleted}
}

// ForSystemTag matches notes carrying tag as a whole system tag token.
// "pin" does not match "pinned".
func ForSystemTag(tag string) Predicate {
	return Predicate{kind: KindSystemTagContains, text: tag}
}

// ForTag matches notes whose tags contain an element equal to tag. tag is
// the raw, unescaped value: `\Yosemite` matches the stored `["\\Yosemite"]`.
func ForTag(tag string) Predicate {
	return Predicate{kind: KindTagEquals, text: tag}
}

// ForUntaggedNotes matches notes whose tags field is empty, whitespace or an
// empty JSON array with arbitrary interior whitespace.
func ForUntaggedNotes() Predicate {
	return Predicate{kind: KindUntagged}
}

// And matches when every operand matches. And() matches everything.
func And(ps ...Predicate) Predicate {
	return Predicate{kind: KindAnd, children: append([]Predicate(nil), ps...)}
}

// Or matches when at least one operand matches. Or() matches nothing.
func Or(ps ...Predicate) Predicate {
	return Predicate{kind: KindOr, children: append([]Predicate(nil), ps...)}
}

// Not inverts p.
func Not(p Predicate) Predicate {
	return Predicate{kind: KindNot, children: []Predicate{p}}
}

// Matches evaluates p against n.
func (p Predicate) Matches(n models.Note) bool {
	switch p.Kind() {
	case KindContentContains:
		return indexFold(n.Content, p.text, 0) >= 0
	case KindTagEquals:
		tags, ok := models.DecodeTags(n.Tags)
		return ok && lo.Contains(tags, p.text)
	case KindTagContains:
		tags, ok := models.DecodeTags(n.Tags)
		return ok && lo.SomeBy(tags, func(tag string) bool { return indexFold(tag, p.text, 0) >= 0 })
	case KindUntagged:
		return isUntagged(n.Tags)
	case KindSystemTagContains:
		return lo.Contains(SplitSystemTags(n.SystemTags), p.text)
	case KindStatusEquals:
		return n.Deleted == p.flag
	case KindAnd:
		return lo.EveryBy(p.children, func(c Predicate) bool { return c.Matches(n) })
	case KindOr:
		return lo.SomeBy(p.children, func(c Predicate) bool { return c.Matches(n) })
	case KindNot:
		return len(p.children) == 1 && !p.children[0].Matches(n)
	default:
		return false
	}
}

// StatusOf reports the deleted value p requires, when p is a status leaf or
// an And with a status leaf among its direct operands. Storage layers use it
// to narrow their query; Matches remains the source of truth.
func StatusOf(p Predicate) (deleted bool, ok bool) {
	switch p.Kind() {
	case KindStatusEquals:
		return p.flag, true
	case KindAnd:
		for _, c := range p.children {
			if d, found := StatusOf(c); found {
				return d, true
			}
		}
	}
	return false, false
}

// EscapeTag returns tag as it appears inside the stored JSON array:
// backslashes and quotes escaped, wrapped in double quotes.
func EscapeTag(tag string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(tag) + `"`
}

// SplitSystemTags returns the tokens of a system tags field.
func SplitSystemTags(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

func isUntagged(raw string) bool {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	return stripped == "" || stripped == "[]"
}

// String renders p for logs, e.g. and(status_equals(false), content_contains("milk")).
func (p Predicate) String() string {
	switch p.Kind() {
	case KindContentContains, KindTagEquals, KindTagContains, KindSystemTagContains:
		return fmt.Sprintf("%s(%q)", p.Kind(), p.text)
	case KindStatusEquals:
		return fmt.Sprintf("%s(%t)", p.Kind(), p.flag)
	case KindUntagged:
		return p.Kind().String()
	default:
		parts := lo.Map(p.children, func(c Predicate, _ int) string { return c.String() })
		return fmt.Sprintf("%s(%s)", p.Kind(), strings.Join(parts, ", "))
	}
}
