package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-cms/pkg/simplecms"
	counterredis "github.com/tendant/simple-cms/pkg/simplecms/counter/redis"
	"github.com/tendant/simple-cms/pkg/simplecms/imagelibrary"
	"github.com/tendant/simple-cms/pkg/simplecms/moderation"
	"github.com/tendant/simple-cms/pkg/simplecms/repo/memory"
	repopg "github.com/tendant/simple-cms/pkg/simplecms/repo/postgres"
	memorystorage "github.com/tendant/simple-cms/pkg/simplecms/storage/memory"
	s3storage "github.com/tendant/simple-cms/pkg/simplecms/storage/s3"
)

// ObjectStore uploads media and resolves storage references.
type ObjectStore interface {
	simplecms.URLResolver
	imagelibrary.Uploader
}

// Components is everything the HTTP server needs.
type Components struct {
	Service      simplecms.Service
	ImageLibrary *imagelibrary.Registry
	Importer     *imagelibrary.Importer
	Store        ObjectStore
	// MediaHandler serves uploaded objects when storage is in-process.
	MediaHandler http.Handler

	closers []func() error
}

// Close releases pools and clients opened by Build.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildService creates a Service instance from the server configuration.
func (c *ServerConfig) BuildService(ctx context.Context) (simplecms.Service, error) {
	components, err := c.Build(ctx, slog.Default())
	if err != nil {
		return nil, err
	}
	return components.Service, nil
}

// Build wires the repository, view counter, moderator, object store and
// image library, then creates the service.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	components := &Components{}
	fail := func(err error) (*Components, error) {
		_ = components.Close()
		return nil, err
	}

	options := []simplecms.Option{
		simplecms.WithLogger(logger),
		simplecms.WithPolicy(c.SimplecmsPolicy()),
	}

	repo, err := c.buildRepository(ctx, components)
	if err != nil {
		return fail(fmt.Errorf("failed to build repository: %w", err))
	}
	options = append(options, simplecms.WithRepository(repo))

	if c.RedisURL != "" {
		counter, err := counterredis.New(c.RedisURL)
		if err != nil {
			return fail(fmt.Errorf("failed to build view counter: %w", err))
		}
		components.closers = append(components.closers, counter.Close)
		options = append(options, simplecms.WithViewCounter(counter))
	}

	moderator, err := moderation.NewRegistry().Build(c.Moderation.Provider, moderation.Settings{
		Keywords:        c.Moderation.Keywords,
		WeChatAppID:     c.Moderation.WeChatAppID,
		WeChatAppSecret: c.Moderation.WeChatAppSecret,
		WeChatBaseURL:   c.Moderation.WeChatBaseURL,
		RateLimit:       c.Moderation.RateLimit,
		Logger:          logger,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to build moderator: %w", err))
	}
	options = append(options, simplecms.WithModerator(moderator))

	store, err := c.buildStore(components)
	if err != nil {
		return fail(fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Backend, err))
	}
	components.Store = store
	options = append(options, simplecms.WithURLResolver(store))

	components.ImageLibrary = imagelibrary.NewRegistry(imagelibrary.Config{
		Unsplash: imagelibrary.UnsplashConfig{
			AppID:     c.ImageLibrary.UnsplashAppID,
			AccessKey: c.ImageLibrary.UnsplashAccessKey,
			SecretKey: c.ImageLibrary.UnsplashSecretKey,
		},
		GiphyAPIKey:  c.ImageLibrary.GiphyAPIKey,
		PexelsAPIKey: c.ImageLibrary.PexelsAPIKey,
		RateLimit:    c.ImageLibrary.RateLimit,
	}, logger)
	components.Importer = imagelibrary.NewImporter(components.ImageLibrary, store, imagelibrary.WithImportLogger(logger))

	svc, err := simplecms.New(options...)
	if err != nil {
		return fail(err)
	}
	components.Service = svc
	return components, nil
}

// buildRepository creates a Repository based on the configuration.
func (c *ServerConfig) buildRepository(ctx context.Context, components *Components) (simplecms.Repository, error) {
	if !c.IsPostgres() {
		return memory.New(), nil
	}

	pool, err := newPool(ctx, c.DatabaseURL, c.DBSchema)
	if err != nil {
		return nil, err
	}
	components.closers = append(components.closers, func() error {
		pool.Close()
		return nil
	})

	if c.DBSchema != "" {
		if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{c.DBSchema}.Sanitize()); err != nil {
			return nil, fmt.Errorf("failed to create schema %s: %w", c.DBSchema, err)
		}
	}

	repo := repopg.NewWithPool(pool)
	if err := repo.Migrate(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// newPool creates a pgx pool whose sessions use schema as search_path.
func newPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// buildStore creates the object store based on the configuration.
func (c *ServerConfig) buildStore(components *Components) (ObjectStore, error) {
	switch c.Storage.Backend {
	case "s3":
		backend, err := s3storage.New(s3storage.Config{
			Region:                 c.Storage.S3Region,
			Bucket:                 c.Storage.S3Bucket,
			AccessKeyID:            c.Storage.S3AccessKeyID,
			SecretAccessKey:        c.Storage.S3SecretAccessKey,
			Endpoint:               c.Storage.S3Endpoint,
			UsePathStyle:           c.Storage.S3UsePathStyle,
			PresignDuration:        c.Storage.S3PresignSeconds,
			CreateBucketIfNotExist: c.Storage.S3CreateBucket,
		})
		if err != nil {
			return nil, err
		}
		return backend, nil
	case "memory", "":
		backend := memorystorage.New(c.Storage.MediaBaseURL)
		components.MediaHandler = backend
		return backend, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.Storage.Backend)
	}
}
