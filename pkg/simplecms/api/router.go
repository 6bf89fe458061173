package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
)

// Mount registers the health check and the /api/v1 routes on r.
func Mount(r chi.Router, articles *ArticleHandler, media *MediaHandler, tokenAuth *jwtauth.JWTAuth) {
	r.Get("/health", Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticator(tokenAuth)...)
		r.Mount("/articles", articles.Routes())
		r.Mount("/image-library", media.ImageLibraryRoutes())
		r.Mount("/media", media.Routes())
	})
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}
