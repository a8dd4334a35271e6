package results

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/starford/notesearch/internal/models"
	"github.com/starford/notesearch/internal/predicate"
)

// SortField selects the primary sort key of a result list.
type SortField string

const (
	SortModified     SortField = "modified"
	SortCreated      SortField = "created"
	SortAlphabetical SortField = "alphabetical"
)

// Direction is the sort direction of the primary key.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Section names produced by Group.
const (
	SectionPinned = "Pinned"
	SectionNotes  = "Notes"
)

// Ordering describes how matching notes are grouped and sorted.
type Ordering struct {
	Field       SortField
	Direction   Direction
	PinnedFirst bool
}

// DefaultOrdering lists pinned notes first, then everything else by most
// recent modification.
func DefaultOrdering() Ordering {
	return Ordering{Field: SortModified, Direction: Descending, PinnedFirst: true}
}

// ParseOrdering builds an Ordering from its textual config form.
func ParseOrdering(field, direction string, pinnedFirst bool) (Ordering, error) {
	o := Ordering{Field: SortField(field), Direction: Direction(direction), PinnedFirst: pinnedFirst}
	switch o.Field {
	case SortModified, SortCreated, SortAlphabetical:
	default:
		return Ordering{}, fmt.Errorf("results: unknown sort field %q", field)
	}
	switch o.Direction {
	case Ascending, Descending:
	default:
		return Ordering{}, fmt.Errorf("results: unknown sort direction %q", direction)
	}
	return o, nil
}

// Section is a named, ordered group of notes.
type Section struct {
	Name  string        `json:"name"`
	Notes []models.Note `json:"notes"`
}

// IndexPath addresses one row of a sectioned result set.
type IndexPath struct {
	Section int `json:"section"`
	Row     int `json:"row"`
}

var pinned = predicate.ForSystemTag(models.SystemTagPinned)

// Group sorts notes by o and splits them into sections. The result is
// deterministic for a given input set: ties on the primary key are broken
// by note ID. Empty sections are omitted. notes is not modified.
func Group(notes []models.Note, o Ordering) []Section {
	sorted := slices.Clone(notes)
	slices.SortStableFunc(sorted, o.compare)

	if !o.PinnedFirst {
		if len(sorted) == 0 {
			return nil
		}
		return []Section{{Name: SectionNotes, Notes: sorted}}
	}

	var top, rest []models.Note
	for _, n := range sorted {
		if pinned.Matches(n) {
			top = append(top, n)
		} else {
			rest = append(rest, n)
		}
	}
	var out []Section
	if len(top) > 0 {
		out = append(out, Section{Name: SectionPinned, Notes: top})
	}
	if len(rest) > 0 {
		out = append(out, Section{Name: SectionNotes, Notes: rest})
	}
	return out
}

func (o Ordering) compare(a, b models.Note) int {
	var c int
	switch o.Field {
	case SortCreated:
		c = a.CreatedAt.Compare(b.CreatedAt)
	case SortAlphabetical:
		c = cmp.Compare(strings.ToLower(a.Title()), strings.ToLower(b.Title()))
	default:
		c = a.ModifiedAt.Compare(b.ModifiedAt)
	}
	if o.Direction == Descending {
		c = -c
	}
	if c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Snapshot is an immutable view of the notes matching a keyword.
// Generation increases with every successful fetch of a controller.
type Snapshot struct {
	Generation  uint64    `json:"generation"`
	Keyword     string    `json:"keyword"`
	Terms       []string  `json:"terms"`
	Sections    []Section `json:"sections"`
	ScrollToTop bool      `json:"scroll_to_top"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// NumberOfSections returns the number of non-empty sections.
func (s *Snapshot) NumberOfSections() int {
	if s == nil {
		return 0
	}
	return len(s.Sections)
}

// NumberOfRows returns the row count of section, or 0 when it is out of range.
func (s *Snapshot) NumberOfRows(section int) int {
	if s == nil || section < 0 || section >= len(s.Sections) {
		return 0
	}
	return len(s.Sections[section].Notes)
}

// Object returns the note at ip.
func (s *Snapshot) Object(ip IndexPath) (models.Note, bool) {
	if ip.Row < 0 || ip.Row >= s.NumberOfRows(ip.Section) {
		return models.Note{}, false
	}
	return s.Sections[ip.Section].Notes[ip.Row], true
}

// At returns the note at position i of the flattened view, counting rows
// across sections in order.
func (s *Snapshot) At(i int) (models.Note, bool) {
	if i < 0 {
		return models.Note{}, false
	}
	for sec := 0; sec < s.NumberOfSections(); sec++ {
		rows := s.NumberOfRows(sec)
		if i < rows {
			return s.Sections[sec].Notes[i], true
		}
		i -= rows
	}
	return models.Note{}, false
}

// Len returns the total number of notes across sections.
func (s *Snapshot) Len() int {
	total := 0
	for i := 0; i < s.NumberOfSections(); i++ {
		total += s.NumberOfRows(i)
	}
	return total
}

// Highlights returns the ranges of n's content matched by the snapshot's
// keyword terms.
func (s *Snapshot) Highlights(n models.Note) []predicate.Range {
	if s == nil || len(s.Terms) == 0 {
		return nil
	}
	return predicate.Highlight(n.Content, s.Terms)
}
