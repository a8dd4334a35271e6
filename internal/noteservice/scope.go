package noteservice

import (
	"fmt"

	"github.com/starford/notesearch/internal/apperr"
	"github.com/starford/notesearch/internal/predicate"
)

// Scope selects which notes a listing or search covers.
type Scope string

const (
	ScopeActive Scope = "active"
	ScopeTrash  Scope = "trash"
	ScopeAll    Scope = "all"
)

// ParseScope accepts the textual scope. An empty string means fallback.
func ParseScope(s string, fallback Scope) (Scope, error) {
	switch Scope(s) {
	case "":
		return fallback, nil
	case ScopeActive, ScopeTrash, ScopeAll:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("noteservice: scope %q: %w", s, apperr.ErrInvalidQuery)
	}
}

// Predicate returns the status filter of the scope.
func (s Scope) Predicate() predicate.Predicate {
	switch s {
	case ScopeTrash:
		return predicate.ForStatus(true)
	case ScopeAll:
		return predicate.And()
	default:
		return predicate.ForStatus(false)
	}
}
