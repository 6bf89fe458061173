// Package api exposes the article service and the media library over HTTP.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tendant/simple-cms/pkg/simplecms"
)

const maxArticlesPerRequest = 50

// ArticlesResponse wraps written articles.
type ArticlesResponse struct {
	Data []*simplecms.Article `json:"data"`
}

// ArticleHandler handles HTTP requests for articles.
type ArticleHandler struct {
	service  simplecms.Service
	validate *validator.Validate
}

// NewArticleHandler creates a new article handler
func NewArticleHandler(service simplecms.Service) *ArticleHandler {
	return &ArticleHandler{
		service:  service,
		validate: validator.New(),
	}
}

// Routes returns the routes for articles
func (h *ArticleHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateArticles)
	r.Get("/", h.ListArticles)
	r.Get("/{id}", h.GetArticle)
	r.Put("/{id}", h.UpdateArticle)
	r.Post("/{id}/unlock", h.UnlockArticle)

	return r
}

// CreateArticles accepts a single article object or an array of them.
func (h *ArticleHandler) CreateArticles(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	var reqs []simplecms.CreateArticleRequest
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &reqs)
	} else {
		var single simplecms.CreateArticleRequest
		err = json.Unmarshal(trimmed, &single)
		reqs = []simplecms.CreateArticleRequest{single}
	}
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if len(reqs) > maxArticlesPerRequest {
		writeError(w, r, fmt.Errorf("%w: at most %d articles per request", errBadRequest, maxArticlesPerRequest))
		return
	}

	articles, err := h.service.CreateArticles(r.Context(), RequesterFromContext(r.Context()), reqs)
	if err != nil {
		slog.Warn("Failed to create articles", "count", len(reqs), "error", err)
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, ArticlesResponse{Data: articles})
}

// UpdateArticle applies a partial update.
func (h *ArticleHandler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.articleID(w, r)
	if !ok {
		return
	}

	var patch simplecms.ArticlePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	article, err := h.service.UpdateArticle(r.Context(), RequesterFromContext(r.Context()), id, patch)
	if err != nil {
		slog.Warn("Failed to update article", "article_id", id, "error", err)
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, article)
}

// GetArticle reads one article through the read pipeline.
func (h *ArticleHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.articleID(w, r)
	if !ok {
		return
	}

	query, err := parseReadQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	query.ArticleID = &id

	result, err := h.service.ReadArticles(r.Context(), RequesterFromContext(r.Context()), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(result.Data) == 0 {
		writeError(w, r, simplecms.ErrArticleNotFound)
		return
	}

	render.JSON(w, r, result.Data[0])
}

// ListArticles reads a page of articles through the read pipeline.
func (h *ArticleHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	query, err := parseReadQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.ReadArticles(r.Context(), RequesterFromContext(r.Context()), query)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, result)
}

// UnlockArticle records that the caller may read the locked part.
func (h *ArticleHandler) UnlockArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.articleID(w, r)
	if !ok {
		return
	}

	record, err := h.service.UnlockArticle(r.Context(), RequesterFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, record)
}

func (h *ArticleHandler) articleID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		slog.Error("Invalid article ID", "article_id", raw, "error", err)
		writeError(w, r, fmt.Errorf("%w: invalid article id", errBadRequest))
		return uuid.Nil, false
	}
	return id, true
}

// readParams are the query-string parameters of a read.
type readParams struct {
	Status string `validate:"omitempty,oneof=draft published"`
	Limit  int    `validate:"gte=0,lte=100"`
	Offset int    `validate:"gte=0"`
}

var readValidator = validator.New()

func parseReadQuery(r *http.Request) (simplecms.ReadQuery, error) {
	q := r.URL.Query()
	var query simplecms.ReadQuery

	if fields := q.Get("fields"); fields != "" {
		for _, f := range strings.Split(fields, ",") {
			if f = strings.TrimSpace(f); f != "" {
				query.Fields = append(query.Fields, f)
			}
		}
	}

	params := readParams{Status: q.Get("status")}
	var err error
	if params.Limit, err = atoiParam(q.Get("limit")); err != nil {
		return query, err
	}
	if params.Offset, err = atoiParam(q.Get("offset")); err != nil {
		return query, err
	}
	if err := readValidator.Struct(params); err != nil {
		return query, err
	}

	if params.Status != "" {
		status := simplecms.ArticleStatus(params.Status)
		query.Status = &status
	}
	query.Limit = params.Limit
	query.Offset = params.Offset
	return query, nil
}

func atoiParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errBadRequest, raw)
	}
	return n, nil
}
