// Package models defines the domain types for notesearch.
package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// System tags are reserved flags stored in Note.SystemTags, distinct from
// user-created tags.
const (
	SystemTagPinned    = "pinned"
	SystemTagShared    = "shared"
	SystemTagMarkdown  = "markdown"
	SystemTagPublished = "published"
)

// TrashDir is the vault directory holding deleted notes.
const TrashDir = ".trash"

// Note is a single record of the corpus.
//
// Tags holds the JSON-array-shaped encoding of the user tags (for example
// `["work","\\Yosemite"]`). An empty or whitespace-only value means no tags.
// SystemTags is a space or comma delimited list of system flags.
type Note struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Content    string    `json:"content"`
	Tags       string    `json:"tags"`
	SystemTags string    `json:"system_tags"`
	Deleted    bool      `json:"deleted"`
	Checksum   string    `json:"checksum"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Title returns the first non-empty line of the content with any leading
// Markdown heading markers removed.
func (n Note) Title() string {
	for _, line := range strings.Split(n.Content, "\n") {
		trimmed := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// TagList decodes Tags. Malformed data yields an empty list.
func (n Note) TagList() []string {
	tags, _ := DecodeTags(n.Tags)
	return tags
}

// NoteMetadata is a lightweight representation of a vault file returned by
// list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EncodeTags returns the stored JSON array form of tags. HTML characters are
// kept verbatim so the stored text only escapes what JSON requires.
func EncodeTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tags); err != nil {
		return "[]"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// DecodeTags parses a stored tags field. Empty or whitespace-only input is a
// valid empty list. ok is false when raw is not a JSON array of strings.
func DecodeTags(raw string) (tags []string, ok bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, true
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, false
	}
	return tags, true
}

// IDFromPath returns the note ID for a vault path and whether the path lies
// in the trash. The ID is the path with any trash prefix removed, so a note
// keeps its ID when it is deleted and restored.
func IDFromPath(path string) (id string, deleted bool) {
	if rest, ok := strings.CutPrefix(path, TrashDir+"/"); ok {
		return rest, true
	}
	return path, false
}

// PathFor returns the vault path of note id in the live tree or the trash.
func PathFor(id string, deleted bool) string {
	if deleted {
		return TrashDir + "/" + id
	}
	return id
}
