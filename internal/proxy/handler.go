package proxy

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/swinglab/mediacore/internal/response"
	"github.com/swinglab/mediacore/internal/storage"
)

// Handler exposes the proxy over HTTP.
type Handler struct {
	proxy *Proxy
}

// NewHandler creates a new proxy Handler.
func NewHandler(p *Proxy) *Handler {
	return &Handler{proxy: p}
}

// Routes mounts the proxy endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Fetch)
	r.Get("/*", h.Fetch)
}

// Fetch godoc
//
//	@Summary		Proxy a stored object
//	@Description	Relays a stored video or image through this origin using a freshly issued signed URL. The reference is the URL-encoded canonical object URL, given as the path remainder or as the url query parameter.
//	@Tags			proxy
//	@Produce		octet-stream
//	@Param			url	query		string	false	"Canonical object URL or key"
//	@Success		200	{file}		binary
//	@Failure		400	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/proxy/{ref} [get]
func (h *Handler) Fetch(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("url")
	if ref == "" {
		raw := chi.URLParam(r, "*")
		unescaped, err := url.PathUnescape(raw)
		if err != nil {
			response.BadRequest(w, "invalid media reference")
			return
		}
		ref = unescaped
	}

	res, err := h.proxy.Fetch(r.Context(), ref)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidReference):
			response.BadRequest(w, "invalid media reference")
		case errors.Is(err, storage.ErrObjectNotFound):
			response.NotFound(w, "media not found")
		default:
			response.InternalError(w)
		}
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Cache-Control", res.CacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Body)))
	w.WriteHeader(http.StatusOK)
	w.Write(res.Body)
}
