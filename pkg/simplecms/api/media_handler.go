package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/tendant/simple-cms/pkg/simplecms"
	"github.com/tendant/simple-cms/pkg/simplecms/imagelibrary"
)

// SearchRequest holds the image library search parameters.
type SearchRequest struct {
	Provider string `validate:"required"`
	Keyword  string `validate:"required"`
	Page     int    `validate:"gte=0"`
	PageSize int    `validate:"gte=0,lte=100"`
}

// MediaHandler handles the media library and stock image search.
type MediaHandler struct {
	service  simplecms.Service
	library  *imagelibrary.Registry
	importer *imagelibrary.Importer
	validate *validator.Validate
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(service simplecms.Service, library *imagelibrary.Registry, importer *imagelibrary.Importer) *MediaHandler {
	return &MediaHandler{
		service:  service,
		library:  library,
		importer: importer,
		validate: validator.New(),
	}
}

// Routes returns the routes for reported media
func (h *MediaHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListMedia)
	r.Post("/", h.ReportMedia)

	return r
}

// ImageLibraryRoutes returns the routes for stock image providers
func (h *MediaHandler) ImageLibraryRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/providers", h.Providers)
	r.Get("/search", h.Search)
	r.Post("/import", h.Import)

	return r
}

// Providers lists the enabled stock image providers.
func (h *MediaHandler) Providers(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{"data": h.library.Providers()})
}

// Search queries one provider.
func (h *MediaHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := SearchRequest{
		Provider: q.Get("provider"),
		Keyword:  q.Get("keyword"),
	}
	var err error
	if req.Page, err = atoiParam(q.Get("page")); err != nil {
		writeError(w, r, err)
		return
	}
	if req.PageSize, err = atoiParam(q.Get("pageSize")); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	provider, err := h.library.Get(req.Provider)
	if err != nil {
		writeError(w, r, err)
		return
	}

	images, err := provider.Search(r.Context(), imagelibrary.SearchParams{
		Keyword:  req.Keyword,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		slog.Error("Image library search failed", "provider", req.Provider, "error", err)
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{"data": images})
}

// Import copies a provider image into object storage.
func (h *MediaHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req imagelibrary.ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.importer.Import(r.Context(), req)
	if err != nil {
		slog.Error("Image import failed", "provider", req.Provider, "id", req.ID, "error", err)
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, result)
}

// ReportMedia records an uploaded or imported media item.
func (h *MediaHandler) ReportMedia(w http.ResponseWriter, r *http.Request) {
	var req simplecms.ReportMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	media, err := h.service.ReportMedia(r.Context(), RequesterFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, media)
}

// listMediaParams are the paging parameters of a media listing.
type listMediaParams struct {
	Limit  int `validate:"gte=0,lte=100"`
	Offset int `validate:"gte=0"`
}

// ListMedia lists reported media, newest first.
func (h *MediaHandler) ListMedia(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var params listMediaParams
	var err error
	if params.Limit, err = atoiParam(q.Get("limit")); err != nil {
		writeError(w, r, err)
		return
	}
	if params.Offset, err = atoiParam(q.Get("offset")); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(params); err != nil {
		writeError(w, r, err)
		return
	}

	media, err := h.service.ListMedia(r.Context(), params.Limit, params.Offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{"data": media})
}
