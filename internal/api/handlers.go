package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/vault"
)

// Handler holds API route handlers.
type Handler struct {
	svc *vault.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *vault.Service) *Handler {
	return &Handler{svc: svc}
}

// notePath extracts the note path from the URL (everything after the
// route prefix). Supports encoded slashes from OpenAPI clients
// (e.g. topics%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// writeErr maps domain sentinels onto HTTP status codes.
func writeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	case errors.Is(err, apperr.ErrInvalidTarget):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListNotes handles GET /api/notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	folder := r.URL.Query().Get("folder")
	metas, err := h.svc.ListNotes(r.Context(), folder)
	if err != nil {
		writeErr(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: metas, Total: len(metas)})
}

// GetNote handles GET /api/notes/*.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), path)
	if err != nil {
		writeErr(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and content are required"))
		return
	}
	note, err := h.svc.CreateNote(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		writeErr(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/*. The If-Match header carries the
// checksum for optimistic concurrency; empty means last-write-wins.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	note, err := h.svc.UpdateNote(r.Context(), path, []byte(req.Content), ifMatch)
	if err != nil {
		writeErr(w, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// PatchFrontmatter handles PATCH /api/notes/*: merges the given fields
// into the note's frontmatter without touching the body.
func (h *Handler) PatchFrontmatter(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req FrontmatterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if len(req.Fields) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("fields are required"))
		return
	}
	note, err := h.svc.UpdateFrontmatter(r.Context(), path, req.Fields)
	if err != nil {
		writeErr(w, "patch frontmatter", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/*. Referring wikilinks are
// rewritten to plain text unless keep_refs is set.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	keepRefs := r.URL.Query().Get("keep_refs") == "true"
	res, err := h.svc.DeleteNote(r.Context(), path, !keepRefs)
	if err != nil {
		writeErr(w, "delete note", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RenameNote handles POST /api/notes/rename.
func (h *Handler) RenameNote(w http.ResponseWriter, r *http.Request) {
	var req RenameNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.From == "" || req.To == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("from and to are required"))
		return
	}
	res, err := h.svc.RenameNote(r.Context(), req.From, req.To, !req.KeepRefs)
	if err != nil {
		writeErr(w, "rename note", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Search handles GET /api/search: a cached scan of note contents.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	useRegex := r.URL.Query().Get("regex") == "true"
	res, err := h.svc.SearchText(r.Context(), q, useRegex)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// VaultStats handles GET /api/stats.
func (h *Handler) VaultStats(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Stats(r.Context())
	if err != nil {
		writeErr(w, "vault stats", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CacheStats handles GET /api/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.CacheStatistics())
}

// graphEnvelope pairs query data with the per-note error records the
// graph build accumulated.
type graphEnvelope struct {
	Data   any `json:"data"`
	Errors any `json:"errors,omitempty"`
}

// Backlinks handles GET /api/graph/backlinks/*.
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	bl, opErrs, err := h.svc.Graph().Backlinks(r.Context(), path)
	if err != nil {
		writeErr(w, "backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, graphEnvelope{Data: bl, Errors: opErrs})
}

// ForwardLinks handles GET /api/graph/forward/*.
func (h *Handler) ForwardLinks(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	fl, opErrs, err := h.svc.Graph().ForwardLinks(r.Context(), path)
	if err != nil {
		writeErr(w, "forward links", err)
		return
	}
	writeJSON(w, http.StatusOK, graphEnvelope{Data: fl, Errors: opErrs})
}

// Orphans handles GET /api/graph/orphans.
func (h *Handler) Orphans(w http.ResponseWriter, r *http.Request) {
	orphans, opErrs, err := h.svc.Graph().Orphans(r.Context())
	if err != nil {
		writeErr(w, "orphans", err)
		return
	}
	writeJSON(w, http.StatusOK, graphEnvelope{Data: orphans, Errors: opErrs})
}

// Connections handles GET /api/graph/connections/*.
func (h *Handler) Connections(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	depth, _ := strconv.Atoi(r.URL.Query().Get("depth"))
	if depth <= 0 {
		depth = 1
	}
	conns, opErrs, err := h.svc.Graph().Connections(r.Context(), path, depth)
	if err != nil {
		writeErr(w, "connections", err)
		return
	}
	writeJSON(w, http.StatusOK, graphEnvelope{Data: conns, Errors: opErrs})
}

// MostConnected handles GET /api/graph/most-connected.
func (h *Handler) MostConnected(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	ranked, opErrs, err := h.svc.Graph().MostConnected(r.Context(), limit)
	if err != nil {
		writeErr(w, "most connected", err)
		return
	}
	writeJSON(w, http.StatusOK, graphEnvelope{Data: ranked, Errors: opErrs})
}

// ShortestPath handles GET /api/graph/path?from=&to=.
func (h *Handler) ShortestPath(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("from and to are required"))
		return
	}
	path, opErrs, err := h.svc.Graph().ShortestPath(r.Context(), from, to)
	if err != nil {
		writeErr(w, "shortest path", err)
		return
	}
	writeJSON(w, http.StatusOK, graphEnvelope{Data: path, Errors: opErrs})
}

// GraphStats handles GET /api/graph/stats.
func (h *Handler) GraphStats(w http.ResponseWriter, r *http.Request) {
	stats, opErrs, err := h.svc.Graph().Stats(r.Context())
	if err != nil {
		writeErr(w, "graph stats", err)
		return
	}
	writeJSON(w, http.StatusOK, graphEnvelope{Data: stats, Errors: opErrs})
}

// CompareNotes handles GET /api/similar/compare?a=&b=.
func (h *Handler) CompareNotes(w http.ResponseWriter, r *http.Request) {
	a := r.URL.Query().Get("a")
	b := r.URL.Query().Get("b")
	if a == "" || b == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("a and b are required"))
		return
	}
	withTitle := r.URL.Query().Get("titles") == "true"
	match, err := h.svc.Detector().CompareNotes(r.Context(), a, b, withTitle)
	if err != nil {
		writeErr(w, "compare notes", err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// FindDuplicates handles GET /api/similar/duplicates.
func (h *Handler) FindDuplicates(w http.ResponseWriter, r *http.Request) {
	threshold := 0.8
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			writeJSON(w, http.StatusBadRequest, errorBody("threshold must be between 0 and 1"))
			return
		}
		threshold = v
	}
	withTitle := r.URL.Query().Get("titles") == "true"
	groups, opErrs, err := h.svc.Detector().FindDuplicates(r.Context(), threshold, withTitle)
	if err != nil {
		writeErr(w, "find duplicates", err)
		return
	}
	writeJSON(w, http.StatusOK, graphEnvelope{Data: groups, Errors: opErrs})
}
