package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/nbserde/internal/nbservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *nbservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/notebooks", h.ListNotebooks)
	r.Post("/notebooks", h.CreateNotebook)
	r.Get("/notebooks/*", h.GetNotebook)
	r.Put("/notebooks/*", h.SaveNotebook)
	r.Delete("/notebooks/*", h.DeleteNotebook)
	r.Post("/move", h.MoveNotebook)
	r.Get("/raw/*", h.GetRaw)

	r.Post("/convert/decode", h.ConvertDecode)
	r.Post("/convert/encode", h.ConvertEncode)
	r.Post("/convert/normalize", h.ConvertNormalize)

	r.Get("/search", h.Search)
	r.Get("/languages", h.Languages)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
