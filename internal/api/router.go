package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/vault"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *vault.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Post("/notes/rename", h.RenameNote)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.UpdateNote)
	r.Patch("/notes/*", h.PatchFrontmatter)
	r.Delete("/notes/*", h.DeleteNote)

	// Search and vault statistics.
	r.Get("/search", h.Search)
	r.Get("/stats", h.VaultStats)
	r.Get("/cache/stats", h.CacheStats)

	// Link graph.
	r.Get("/graph/orphans", h.Orphans)
	r.Get("/graph/most-connected", h.MostConnected)
	r.Get("/graph/path", h.ShortestPath)
	r.Get("/graph/stats", h.GraphStats)
	r.Get("/graph/backlinks/*", h.Backlinks)
	r.Get("/graph/forward/*", h.ForwardLinks)
	r.Get("/graph/connections/*", h.Connections)

	// Similarity.
	r.Get("/similar/compare", h.CompareNotes)
	r.Get("/similar/duplicates", h.FindDuplicates)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
