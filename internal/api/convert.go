package api

import (
	"net/http"

	"github.com/starford/nbserde/internal/models"
)

// ConvertDecode handles POST /api/convert/decode. The body is raw notebook
// JSON; an empty body yields a new blank notebook.
//
//	@Summary		Decode notebook bytes into the document model
//	@Tags			convert
//	@Accept			application/x-ipynb+json
//	@Produce		json
//	@Success		200	{object}	models.Notebook
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/convert/decode [post]
func (h *Handler) ConvertDecode(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, "read body", err)
		return
	}
	nb, err := h.svc.Codec().Decode(r.Context(), body)
	if err != nil {
		writeError(w, r, "decode", err)
		return
	}
	writeJSON(w, http.StatusOK, nb)
}

// ConvertEncode handles POST /api/convert/encode. The body is a document
// model as returned by ConvertDecode.
//
//	@Summary		Encode a document model into notebook bytes
//	@Tags			convert
//	@Accept			json
//	@Produce		application/x-ipynb+json
//	@Param			body	body	models.Notebook	true	"Document model"
//	@Success		200
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/convert/encode [post]
func (h *Handler) ConvertEncode(w http.ResponseWriter, r *http.Request) {
	var nb models.Notebook
	if err := decodeBody(w, r, &nb); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	data, err := h.svc.Codec().Encode(r.Context(), &nb)
	if err != nil {
		writeError(w, r, "encode", err)
		return
	}
	writeNotebook(w, data)
}

// ConvertNormalize handles POST /api/convert/normalize, returning the body
// in its canonical stored form.
//
//	@Summary		Normalize notebook bytes
//	@Tags			convert
//	@Accept			application/x-ipynb+json
//	@Produce		application/x-ipynb+json
//	@Success		200
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/convert/normalize [post]
func (h *Handler) ConvertNormalize(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, "read body", err)
		return
	}
	data, err := h.svc.Normalize(r.Context(), body)
	if err != nil {
		writeError(w, r, "normalize", err)
		return
	}
	writeNotebook(w, data)
}

func writeNotebook(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", notebookMediaType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
