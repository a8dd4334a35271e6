// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes note search tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/lo"

	"github.com/starford/notesearch/internal/models"
	"github.com/starford/notesearch/internal/noteservice"
	"github.com/starford/notesearch/internal/predicate"
	"github.com/starford/notesearch/internal/results"
)

const querySyntaxURI = "notesearch://query-syntax"

// Server wraps the MCP server with note search tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"notesearch",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search notes by keyword. Every whitespace separated term must match. "+
			"Read get_query_syntax for the filter semantics."),
		mcp.WithString("query", mcp.Description("Keyword; empty lists every note of the scope")),
		mcp.WithString("tag", mcp.Description("Exact tag the notes must carry")),
		mcp.WithBoolean("untagged", mcp.Description("Only notes without tags")),
		mcp.WithString("system_tag", mcp.Description("Required system tag, e.g. pinned")),
		mcp.WithString("exclude_system_tag", mcp.Description("System tag the notes must not carry")),
		mcp.WithString("scope", mcp.Description("active, trash or all"), mcp.Enum("active", "trash", "all")),
		mcp.WithBoolean("content_only", mcp.Description("Match terms against the content only, not tags")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Note ID, the vault-relative path (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List the distinct tags used by live notes."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("get_query_syntax",
		mcp.WithDescription("Returns how search_notes interprets keywords and filters."),
	), s.getQuerySyntax)

	s.mcp.AddResource(
		mcp.NewResource(querySyntaxURI, "Query Syntax",
			mcp.WithResourceDescription("Keyword and filter semantics of search_notes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readQuerySyntaxResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type searchHit struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Tags       []string          `json:"tags"`
	Highlights []predicate.Range `json:"highlights,omitempty"`
}

type searchSection struct {
	Name string      `json:"name"`
	Hits []searchHit `json:"hits"`
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope, err := noteservice.ParseScope(req.GetString("scope", ""), s.svc.DefaultScope())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.svc.Search(ctx, noteservice.Query{
		Text:             req.GetString("query", ""),
		Tag:              req.GetString("tag", ""),
		Untagged:         req.GetBool("untagged", false),
		SystemTag:        req.GetString("system_tag", ""),
		ExcludeSystemTag: req.GetString("exclude_system_tag", ""),
		Scope:            scope,
		ContentOnly:      req.GetBool("content_only", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if snap.Len() == 0 {
		return mcp.NewToolResultText("no matching notes"), nil
	}
	sections := lo.Map(snap.Sections, func(sec results.Section, _ int) searchSection {
		return searchSection{
			Name: sec.Name,
			Hits: lo.Map(sec.Notes, func(n models.Note, _ int) searchHit {
				return searchHit{
					ID:         n.ID,
					Title:      n.Title(),
					Tags:       n.TagList(),
					Highlights: snap.Highlights(n),
				}
			}),
		}
	})
	out, _ := json.MarshalIndent(sections, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) listTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := s.svc.Tags(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(tags) == 0 {
		return mcp.NewToolResultText("no tags"), nil
	}
	return mcp.NewToolResultText(strings.Join(tags, "\n")), nil
}

func (s *Server) getQuerySyntax(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(QuerySyntax), nil
}

func (s *Server) readQuerySyntaxResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      querySyntaxURI,
			MIMEType: "text/markdown",
			Text:     QuerySyntax,
		},
	}, nil
}
