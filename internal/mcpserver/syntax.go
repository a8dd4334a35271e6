package mcpserver

// QuerySyntax describes how search_notes interprets its arguments.
const QuerySyntax = `# notesearch Query Syntax

## Keyword

- The query is split on whitespace. Every term must match (AND).
- A term matches when it occurs in the note content, ignoring case.
  Unless ` + "`content_only`" + ` is set, a term also matches when it occurs inside one of
  the note's tags.
- Term order does not matter: ` + "`milk shopping`" + ` and ` + "`shopping milk`" + ` are equivalent.
- An empty query matches every note of the scope.

## Filters

| Argument             | Meaning                                                  |
|----------------------|----------------------------------------------------------|
| ` + "`tag`" + `                | exact tag, case-sensitive (` + "`Sub`" + ` does not match ` + "`Subset`" + `) |
| ` + "`untagged`" + `           | only notes without tags; cannot be combined with ` + "`tag`" + `  |
| ` + "`system_tag`" + `         | require a system tag such as ` + "`pinned`" + ` or ` + "`markdown`" + `      |
| ` + "`exclude_system_tag`" + ` | drop notes carrying that system tag                      |
| ` + "`scope`" + `              | ` + "`active`" + ` (default), ` + "`trash`" + ` or ` + "`all`" + `                     |

## Results

Notes are grouped into a "Pinned" section followed by "Notes", each sorted by
the configured order (most recently modified first by default). Ties are
broken by note ID, so repeated searches return the same order.

Each hit lists the byte ranges of its content matched by the terms.
`
