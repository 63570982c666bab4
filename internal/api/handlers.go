package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/nbserde/internal/checksum"
	"github.com/starford/nbserde/internal/nbservice"
)

const notebookMediaType = "application/x-ipynb+json"

// Handler holds API route handlers.
type Handler struct {
	svc *nbservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *nbservice.Service) *Handler {
	return &Handler{svc: svc}
}

// notebookPath extracts the notebook path from the wildcard URL segment.
// Encoded slashes (analysis%2Fsales.ipynb) are accepted.
func notebookPath(r *http.Request) string {
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

func etag(sum string) string {
	return `"` + sum + `"`
}

// ListNotebooks handles GET /api/notebooks.
//
//	@Summary		List notebooks with optional pagination and filtering
//	@Tags			notebooks
//	@Produce		json
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Param			language	query		string	false	"Filter by default language"
//	@Param			sort		query		string	false	"Sort field"	Enums(path, updated, cells, language)
//	@Success		200			{object}	NotebookListResponse
//	@Security		BearerAuth
//	@Router			/notebooks [get]
func (h *Handler) ListNotebooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	sort := q.Get("sort")
	switch sort {
	case "", "path", "updated", "cells", "language":
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("unknown sort field"))
		return
	}

	items, total, err := h.svc.List(r.Context(), limit, offset, q.Get("language"), sort)
	if err != nil {
		writeError(w, r, "list notebooks", err)
		return
	}
	writeJSON(w, http.StatusOK, NotebookListResponse{Notebooks: items, Total: total})
}

// GetNotebook handles GET /api/notebooks/*.
//
//	@Summary		Open a notebook and return its decoded model
//	@Tags			notebooks
//	@Produce		json
//	@Param			path	path		string	true	"Notebook path"
//	@Success		200		{object}	NotebookDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notebooks/{path} [get]
func (h *Handler) GetNotebook(w http.ResponseWriter, r *http.Request) {
	path := notebookPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	detail, err := h.svc.Open(r.Context(), path)
	if err != nil {
		writeError(w, r, "open notebook", err)
		return
	}
	w.Header().Set("ETag", etag(detail.Checksum))
	writeJSON(w, http.StatusOK, detail)
}

// GetRaw handles GET /api/raw/*.
//
//	@Summary		Download the stored notebook bytes
//	@Tags			notebooks
//	@Produce		application/x-ipynb+json
//	@Param			path			path	string	true	"Notebook path"
//	@Param			If-None-Match	header	string	false	"Checksum of a cached copy"
//	@Success		200
//	@Success		304
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/raw/{path} [get]
func (h *Handler) GetRaw(w http.ResponseWriter, r *http.Request) {
	path := notebookPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	data, err := h.svc.Raw(r.Context(), path)
	if err != nil {
		writeError(w, r, "read raw notebook", err)
		return
	}
	w.Header().Set("ETag", etag(checksum.Sum(data)))
	if inm := r.Header.Get("If-None-Match"); inm != "" && checksum.Matches(data, inm) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", notebookMediaType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// CreateNotebook handles POST /api/notebooks.
//
//	@Summary		Create a notebook
//	@Tags			notebooks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNotebookRequest	true	"Notebook to create"
//	@Success		201		{object}	NotebookDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notebooks [post]
func (h *Handler) CreateNotebook(w http.ResponseWriter, r *http.Request) {
	var req CreateNotebookRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	detail, err := h.svc.Create(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		writeError(w, r, "create notebook", err)
		return
	}
	w.Header().Set("ETag", etag(detail.Checksum))
	writeJSON(w, http.StatusCreated, detail)
}

// SaveNotebook handles PUT /api/notebooks/*.
//
//	@Summary		Save a notebook model with optimistic concurrency
//	@Tags			notebooks
//	@Accept			json
//	@Produce		json
//	@Param			path		path		string				true	"Notebook path"
//	@Param			If-Match	header		string				false	"Checksum of the stored notebook"
//	@Param			body		body		SaveNotebookRequest	true	"Notebook model"
//	@Success		200			{object}	NotebookDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notebooks/{path} [put]
func (h *Handler) SaveNotebook(w http.ResponseWriter, r *http.Request) {
	path := notebookPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req SaveNotebookRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Notebook == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("notebook is required"))
		return
	}

	detail, err := h.svc.Save(r.Context(), path, req.Notebook, r.Header.Get("If-Match"))
	if err != nil {
		writeError(w, r, "save notebook", err)
		return
	}
	w.Header().Set("ETag", etag(detail.Checksum))
	writeJSON(w, http.StatusOK, detail)
}

// DeleteNotebook handles DELETE /api/notebooks/*.
//
//	@Summary		Delete a notebook
//	@Tags			notebooks
//	@Param			path	path	string	true	"Notebook path"
//	@Success		204		"Notebook deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notebooks/{path} [delete]
func (h *Handler) DeleteNotebook(w http.ResponseWriter, r *http.Request) {
	path := notebookPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.Delete(r.Context(), path); err != nil {
		writeError(w, r, "delete notebook", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveNotebook handles POST /api/move.
//
//	@Summary		Rename a notebook
//	@Tags			notebooks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MoveNotebookRequest	true	"Source and target paths"
//	@Success		200		{object}	NotebookDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/move [post]
func (h *Handler) MoveNotebook(w http.ResponseWriter, r *http.Request) {
	var req MoveNotebookRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.From == "" || req.To == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("from and to are required"))
		return
	}
	detail, err := h.svc.Rename(r.Context(), req.From, req.To)
	if err != nil {
		writeError(w, r, "move notebook", err)
		return
	}
	w.Header().Set("ETag", etag(detail.Checksum))
	writeJSON(w, http.StatusOK, detail)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across cell sources
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, r, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Languages handles GET /api/languages.
//
//	@Summary		Language usage of opened notebooks
//	@Tags			languages
//	@Produce		json
//	@Success		200	{object}	LanguagesResponse
//	@Security		BearerAuth
//	@Router			/languages [get]
func (h *Handler) Languages(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Languages(r.Context())
	if err != nil {
		writeError(w, r, "language stats", err)
		return
	}
	writeJSON(w, http.StatusOK, LanguagesResponse{Languages: stats})
}
