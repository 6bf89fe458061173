package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth"

	"github.com/tendant/simple-cms/pkg/simplecms"
)

// Request headers carrying the caller's identity.
const (
	HeaderClientAppID = "X-Client-App-Id"
	HeaderDeviceID    = "X-Device-Id"
	HeaderUserID      = "X-User-Id"
	HeaderOpenID      = "X-Wechat-Openid"
	HeaderRequestID   = "X-Request-ID"
)

type requesterKey struct{}

// WithRequester stores req in ctx.
func WithRequester(ctx context.Context, req simplecms.Requester) context.Context {
	return context.WithValue(ctx, requesterKey{}, req)
}

// RequesterFromContext returns the requester stored by RequesterMiddleware.
func RequesterFromContext(ctx context.Context) simplecms.Requester {
	req, _ := ctx.Value(requesterKey{}).(simplecms.Requester)
	return req
}

// RequesterMiddleware builds a simplecms.Requester from request headers.
// When tokenAuth is non-nil a bearer token is optional, but a present
// token must verify, its "sub" claim replaces X-User-Id and an "openid"
// claim replaces X-Wechat-Openid.
func RequesterMiddleware(tokenAuth *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			req := simplecms.Requester{
				AppID:     r.Header.Get(HeaderClientAppID),
				DeviceID:  r.Header.Get(HeaderDeviceID),
				UserID:    r.Header.Get(HeaderUserID),
				UserAgent: r.UserAgent(),
				RequestID: r.Header.Get(HeaderRequestID),
				OpenID:    r.Header.Get(HeaderOpenID),
			}
			if req.RequestID == "" {
				req.RequestID = middleware.GetReqID(ctx)
			}

			if tokenAuth != nil {
				_, claims, err := jwtauth.FromContext(ctx)
				switch {
				case errors.Is(err, jwtauth.ErrNoTokenFound):
					req.UserID = ""
				case err != nil:
					slog.Warn("Invalid bearer token", "error", err)
					writeError(w, r, fmt.Errorf("%w: %v", errUnauthorized, err))
					return
				default:
					sub, _ := claims["sub"].(string)
					req.UserID = sub
					if openID, ok := claims["openid"].(string); ok && openID != "" {
						req.OpenID = openID
					}
				}
			}

			next.ServeHTTP(w, r.WithContext(WithRequester(ctx, req)))
		}
		return http.HandlerFunc(fn)
	}
}

// Authenticator returns the middleware stack that verifies bearer tokens
// and populates the requester.
func Authenticator(tokenAuth *jwtauth.JWTAuth) []func(http.Handler) http.Handler {
	if tokenAuth == nil {
		return []func(http.Handler) http.Handler{RequesterMiddleware(nil)}
	}
	return []func(http.Handler) http.Handler{jwtauth.Verifier(tokenAuth), RequesterMiddleware(tokenAuth)}
}

// NewTokenAuth returns an HS256 verifier, or nil when secret is empty.
func NewTokenAuth(secret string) *jwtauth.JWTAuth {
	if secret == "" {
		return nil
	}
	return jwtauth.New("HS256", []byte(secret), nil)
}
