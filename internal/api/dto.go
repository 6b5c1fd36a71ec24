package api

import (
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/vault"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content"`
}

// FrontmatterRequest is the request body for a frontmatter merge.
// Null values delete the corresponding field.
type FrontmatterRequest struct {
	Fields map[string]any `json:"fields"`
}

// RenameNoteRequest is the request body for moving a note.
type RenameNoteRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	KeepRefs bool   `json:"keep_refs,omitempty"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = vault.NoteDetail

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.NoteMetadata `json:"notes"`
	Total int                   `json:"total"`
}
