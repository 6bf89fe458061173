package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/tendant/simple-cms/pkg/simplecms"
	"github.com/tendant/simple-cms/pkg/simplecms/imagelibrary"
)

var (
	errBadRequest   = errors.New("bad request")
	errUnauthorized = errors.New("unauthorized")
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Code  int    `json:"code,omitempty"`
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var validationErrs validator.ValidationErrors
	var providerErr *imagelibrary.APIError
	switch {
	case errors.Is(err, simplecms.ErrPolicyRejection):
		return http.StatusUnprocessableEntity
	case errors.Is(err, simplecms.ErrScreeningUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, simplecms.ErrConfigurationMissing):
		return http.StatusInternalServerError
	case errors.Is(err, simplecms.ErrArticleNotFound),
		errors.Is(err, imagelibrary.ErrProviderNotFound):
		return http.StatusNotFound
	case errors.As(err, &providerErr):
		return http.StatusBadGateway
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errBadRequest),
		errors.Is(err, simplecms.ErrInvalidArticle),
		errors.Is(err, simplecms.ErrIdentityRequired),
		errors.Is(err, imagelibrary.ErrInvalidParams),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	var policyErr *simplecms.PolicyError
	var screeningErr *simplecms.ScreeningError
	switch {
	case errors.As(err, &policyErr):
		resp.Field = string(policyErr.Field)
	case errors.As(err, &screeningErr):
		resp.Field = string(screeningErr.Field)
		resp.Code = screeningErr.Code
	}

	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}
