// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Othala tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/vault"
)

// Server wraps the MCP server with Othala tools.
type Server struct {
	mcp *server.MCPServer
	svc *vault.Service
}

// New creates a new MCP server with all Othala tools registered.
func New(svc *vault.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Othala",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a Markdown note: content, frontmatter, tags, links and backlinks."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new Markdown note at the specified path. "+
			"Content MUST follow the canonical note format (YAML frontmatter with title, "+
			"optional tags, Markdown body with [[wikilinks]]). Read the contract first via "+
			"the get_note_contract tool or the othala://note-format resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new note (must end with .md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the Othala note format contract")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace the content of an existing note. Pass the checksum "+
			"from read_note as if_match to fail instead of overwriting concurrent edits."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New Markdown content")),
		mcp.WithString("if_match", mcp.Description("Optional checksum the stored note must still have")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("update_frontmatter",
		mcp.WithDescription("Merge fields into a note's YAML frontmatter without touching "+
			"the body. A null value deletes the field."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note")),
		mcp.WithString("fields", mcp.Required(), mcp.Description("JSON object of frontmatter fields to merge")),
	), s.updateFrontmatter)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note. By default wikilinks pointing at it elsewhere "+
			"in the vault are rewritten to plain text."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note")),
		mcp.WithBoolean("keep_refs", mcp.Description("Leave links to the deleted note untouched")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("rename_note",
		mcp.WithDescription("Move a note to a new path. By default every wikilink pointing "+
			"at the old path is retargeted to the new one."),
		mcp.WithString("from", mcp.Required(), mcp.Description("Current relative path")),
		mcp.WithString("to", mcp.Required(), mcp.Description("New relative path")),
		mcp.WithBoolean("keep_refs", mcp.Description("Leave links to the old path untouched")),
	), s.renameNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes or notes in a specific folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Scan note contents for a substring or regular expression. "+
			"Returns matching lines with 1-based line numbers."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithBoolean("regex", mcp.Description("Interpret the query as a Go regular expression")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_forward_links",
		mcp.WithDescription("List the notes the specified note links out to."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the note to inspect")),
	), s.getForwardLinks)

	s.mcp.AddTool(mcp.NewTool("find_orphaned_notes",
		mcp.WithDescription("List notes with no incoming and no outgoing links."),
	), s.findOrphans)

	s.mcp.AddTool(mcp.NewTool("get_note_connections",
		mcp.WithDescription("Explore the neighbourhood of a note up to the given depth, "+
			"following links in both directions."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the note to start from")),
		mcp.WithNumber("depth", mcp.Description("Maximum hops to follow (default 1)")),
	), s.noteConnections)

	s.mcp.AddTool(mcp.NewTool("find_most_connected",
		mcp.WithDescription("Rank notes by total link degree, descending."),
		mcp.WithNumber("limit", mcp.Description("Maximum notes to return (default 10)")),
	), s.mostConnected)

	s.mcp.AddTool(mcp.NewTool("find_shortest_path",
		mcp.WithDescription("Find the shortest chain of links leading from one note to another."),
		mcp.WithString("from", mcp.Required(), mcp.Description("Source note path")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Target note path")),
	), s.shortestPath)

	s.mcp.AddTool(mcp.NewTool("graph_stats",
		mcp.WithDescription("Summarise the link graph: note and link counts, orphan count, "+
			"average connections and the most linked-to notes."),
	), s.graphStats)

	s.mcp.AddTool(mcp.NewTool("compare_notes",
		mcp.WithDescription("Score the similarity of two notes (0.0 to 1.0)."),
		mcp.WithString("path_a", mcp.Required(), mcp.Description("First note path")),
		mcp.WithString("path_b", mcp.Required(), mcp.Description("Second note path")),
		mcp.WithBoolean("titles", mcp.Description("Also compare titles and report the higher score")),
	), s.compareNotes)

	s.mcp.AddTool(mcp.NewTool("find_duplicates",
		mcp.WithDescription("Scan the vault for groups of near-duplicate notes."),
		mcp.WithNumber("threshold", mcp.Description("Minimum similarity score, 0.0-1.0 (default 0.8)")),
		mcp.WithBoolean("titles", mcp.Description("Also compare titles when scoring pairs")),
	), s.findDuplicates)

	s.mcp.AddTool(mcp.NewTool("cache_stats",
		mcp.WithDescription("Report item counts, byte usage and access statistics for the "+
			"content and query caches."),
	), s.cacheStats)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical Othala note format contract. "+
			"Call this before creating or updating notes to ensure correct structure."),
	), s.getNoteContract)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource("othala://note-format", "Note Format Contract",
			mcp.WithResourceDescription("Canonical Markdown note format that all notes must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
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

func toolJSON(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// toolEnvelope renders data together with any per-note error records a
// partially failed graph build or scan accumulated, so degraded
// results are visible to the client.
func toolEnvelope(data any, errs []models.OperationError) *mcp.CallToolResult {
	if len(errs) == 0 {
		return toolJSON(data)
	}
	return toolJSON(struct {
		Data   any                     `json:"data"`
		Errors []models.OperationError `json:"errors"`
	}{data, errs})
}

// toolLines renders a path list as plain text when the build was
// clean, falling back to the JSON envelope when error records exist.
func toolLines(paths []string, errs []models.OperationError, emptyMsg string) *mcp.CallToolResult {
	if len(errs) > 0 {
		return toolEnvelope(paths, errs)
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText(emptyMsg)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n"))
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.GetNote(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolJSON(detail), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.CreateNote(ctx, path, []byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", detail.Path)), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ifMatch := req.GetString("if_match", "")
	detail, err := s.svc.UpdateNote(ctx, path, []byte(content), ifMatch)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s (checksum %s)", detail.Path, detail.Checksum)), nil
}

func (s *Server) updateFrontmatter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("fields")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fields must be a JSON object: %v", err)), nil
	}
	detail, err := s.svc.UpdateFrontmatter(ctx, path, fields)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolJSON(detail), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	keepRefs := req.GetBool("keep_refs", false)
	res, err := s.svc.DeleteNote(ctx, path, !keepRefs)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolJSON(res), nil
}

func (s *Server) renameNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	keepRefs := req.GetBool("keep_refs", false)
	res, err := s.svc.RenameNote(ctx, from, to, !keepRefs)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolJSON(res), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := req.GetString("folder", "")
	metas, err := s.svc.ListNotes(ctx, folder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var paths []string
	for _, m := range metas {
		paths = append(paths, m.Path)
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	useRegex := req.GetBool("regex", false)
	res, err := s.svc.SearchText(ctx, query, useRegex)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolJSON(res), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, opErrs, err := s.svc.Graph().Backlinks(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolLines(bl, opErrs, "no backlinks found"), nil
}

func (s *Server) getForwardLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fl, opErrs, err := s.svc.Graph().ForwardLinks(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolLines(fl, opErrs, "no outgoing links"), nil
}

func (s *Server) findOrphans(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orphans, opErrs, err := s.svc.Graph().Orphans(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolLines(orphans, opErrs, "no orphaned notes"), nil
}

func (s *Server) noteConnections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	depth := req.GetInt("depth", 1)
	conns, opErrs, err := s.svc.Graph().Connections(ctx, path, depth)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolEnvelope(conns, opErrs), nil
}

func (s *Server) mostConnected(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 10)
	ranked, opErrs, err := s.svc.Graph().MostConnected(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolEnvelope(ranked, opErrs), nil
}

func (s *Server) shortestPath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, opErrs, err := s.svc.Graph().ShortestPath(ctx, from, to)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(opErrs) > 0 {
		return toolEnvelope(path, opErrs), nil
	}
	if len(path) == 0 {
		return mcp.NewToolResultText("no path found"), nil
	}
	return mcp.NewToolResultText(strings.Join(path, " -> ")), nil
}

func (s *Server) graphStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, opErrs, err := s.svc.Graph().Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolEnvelope(stats, opErrs), nil
}

func (s *Server) compareNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pathA, err := req.RequireString("path_a")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pathB, err := req.RequireString("path_b")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	withTitle := req.GetBool("titles", false)
	match, err := s.svc.Detector().CompareNotes(ctx, pathA, pathB, withTitle)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolJSON(match), nil
}

func (s *Server) findDuplicates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	threshold := req.GetFloat("threshold", 0.8)
	withTitle := req.GetBool("titles", false)
	groups, opErrs, err := s.svc.Detector().FindDuplicates(ctx, threshold, withTitle)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(groups) == 0 && len(opErrs) == 0 {
		return mcp.NewToolResultText("no duplicates found"), nil
	}
	return toolEnvelope(groups, opErrs), nil
}

func (s *Server) cacheStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolJSON(s.svc.CacheStatistics()), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "othala://note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
