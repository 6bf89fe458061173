package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/tendant/simple-cms/pkg/simplecms/api"
	"github.com/tendant/simple-cms/pkg/simplecms/config"
)

func main() {
	configFile := flag.String("config", "", "Optional YAML/JSON/TOML config file; environment variables take precedence")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment", "err", err)
	}

	opts := []config.Option{config.WithEnv()}
	if *configFile != "" {
		opts = []config.Option{config.WithFile(*configFile)}
	}
	serverConfig, err := config.Load(opts...)
	if err != nil {
		slog.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(serverConfig.Environment)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := serverConfig.Build(ctx, logger)
	if err != nil {
		slog.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer components.Close()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", serverConfig.Port),
		Handler:           routes(serverConfig, components),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("simple-cms server starting",
			"port", serverConfig.Port,
			"env", serverConfig.Environment,
			"postgres", serverConfig.IsPostgres(),
			"storage", serverConfig.Storage.Backend,
			"moderation", serverConfig.Moderation.Provider,
			"client_app_ids", len(serverConfig.Policy.ClientAppIDs))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "err", err)
	}

	slog.Info("Server exiting")
}

func newLogger(environment string) *slog.Logger {
	if strings.EqualFold(environment, "production") {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func routes(cfg *config.ServerConfig, components *config.Components) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			api.HeaderClientAppID, api.HeaderDeviceID, api.HeaderUserID, api.HeaderRequestID,
		},
		MaxAge: 300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if components.MediaHandler != nil {
		r.Mount("/media", http.StripPrefix("/media", components.MediaHandler))
	}

	api.Mount(r,
		api.NewArticleHandler(components.Service),
		api.NewMediaHandler(components.Service, components.ImageLibrary, components.Importer),
		api.NewTokenAuth(cfg.JWTSecret),
	)

	return r
}
