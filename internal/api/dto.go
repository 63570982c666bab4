package api

import (
	"github.com/starford/nbserde/internal/index"
	"github.com/starford/nbserde/internal/models"
	"github.com/starford/nbserde/internal/nbservice"
)

// CreateNotebookRequest is the request body for creating a notebook.
// An empty Content creates a blank notebook.
type CreateNotebookRequest struct {
	Path    string `json:"path" example:"analysis/sales.ipynb" validate:"required"`
	Content string `json:"content,omitempty" example:"{\"cells\": []}"`
}

// SaveNotebookRequest is the request body for replacing a notebook.
type SaveNotebookRequest struct {
	Notebook *models.Notebook `json:"notebook" validate:"required"`
}

// MoveNotebookRequest is the request body for renaming a notebook.
type MoveNotebookRequest struct {
	From string `json:"from" example:"draft.ipynb" validate:"required"`
	To   string `json:"to" example:"analysis/final.ipynb" validate:"required"`
}

// NotebookDetail is the full notebook response type (aliased from the domain layer).
type NotebookDetail = nbservice.NotebookDetail

// NotebookListItem is a lightweight item in a list response (aliased from the domain layer).
type NotebookListItem = nbservice.NotebookListItem

// NotebookListResponse wraps paginated notebook listings.
type NotebookListResponse struct {
	Notebooks []NotebookListItem `json:"notebooks" validate:"required"`
	Total     int                `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search hits.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// LanguagesResponse wraps language usage counters.
type LanguagesResponse struct {
	Languages []index.LanguageStat `json:"languages" validate:"required"`
}
