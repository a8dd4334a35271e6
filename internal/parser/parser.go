// Package parser turns vault Markdown files into corpus notes.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/starford/notesearch/internal/models"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([\p{L}][\p{L}\p{N}_/-]*)`)

// flagKeys are boolean frontmatter keys that map onto system tags.
var flagKeys = []string{
	models.SystemTagPinned,
	models.SystemTagShared,
	models.SystemTagPublished,
	models.SystemTagMarkdown,
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Tags        []string
	SystemTags  []string
	Deleted     bool
	Created     time.Time // zero when absent
}

// Parse splits frontmatter from the body and collects tags and flags.
// Invalid frontmatter is not an error: the whole input becomes the body.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)

	r := &Result{
		Frontmatter: fm,
		Body:        body,
		Tags:        extractTags(body, fm),
		SystemTags:  systemTags(fm),
		Deleted:     boolKey(fm, "deleted"),
	}
	if raw, ok := fm["created"]; ok {
		created, err := parseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("parser: created: %w", err)
		}
		r.Created = created
	}
	return r, nil
}

// ParseNote parses the file at vault path into a corpus note. Files under the
// trash directory are deleted regardless of their frontmatter. modified is the
// file modification time; it also stands in for a missing created date.
func ParseNote(path string, data []byte, checksum string, modified time.Time) (models.Note, error) {
	r, err := Parse(data)
	if err != nil {
		return models.Note{}, fmt.Errorf("parser: %s: %w", path, err)
	}
	id, trashed := models.IDFromPath(path)
	created := r.Created
	if created.IsZero() {
		created = modified
	}
	return models.Note{
		ID:         id,
		Path:       path,
		Content:    r.Body,
		Tags:       models.EncodeTags(r.Tags),
		SystemTags: strings.Join(r.SystemTags, " "),
		Deleted:    trashed || r.Deleted,
		Checksum:   checksum,
		CreatedAt:  created.UTC(),
		ModifiedAt: modified.UTC(),
	}, nil
}

// splitFrontmatter separates YAML frontmatter between leading --- lines from
// the body. Without valid frontmatter the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}
	block := rest[:idx]
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

// extractTags returns frontmatter tags followed by inline #tags, without
// duplicates. Frontmatter tags keep their exact spelling.
func extractTags(body string, fm map[string]any) []string {
	var tags []string
	switch v := fm["tags"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				tags = append(tags, strings.TrimSpace(s))
			}
		}
	case string:
		tags = append(tags, strings.Fields(strings.ReplaceAll(v, ",", " "))...)
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		tags = append(tags, m[1])
	}
	return lo.Uniq(lo.Compact(tags))
}

// systemTags collects the boolean flags and any explicit system_tags list.
func systemTags(fm map[string]any) []string {
	var out []string
	for _, key := range flagKeys {
		if boolKey(fm, key) {
			out = append(out, key)
		}
	}
	if list, ok := fm["system_tags"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, strings.ToLower(strings.TrimSpace(s)))
			}
		}
	}
	return lo.Uniq(lo.Compact(out))
}

func boolKey(fm map[string]any, key string) bool {
	b, _ := fm[key].(bool)
	return b
}

func parseDate(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognised date %q", v)
	default:
		return time.Time{}, fmt.Errorf("unexpected type %T", raw)
	}
}
