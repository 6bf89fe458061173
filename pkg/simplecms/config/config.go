// Package config loads server settings and wires the article service and
// its collaborators from them.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/tendant/simple-cms/pkg/simplecms"
	"github.com/tendant/simple-cms/pkg/simplecms/moderation"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:        "8080",
		Environment: "development",
		DatabaseURL: "memory",
		DBSchema:    "cms",
		Policy: PolicyConfig{
			UniqueType: string(simplecms.UniqueTypeDevice),
			Scene:      simplecms.DefaultScene,
			Version:    simplecms.DefaultVersion,
		},
		Moderation: ModerationConfig{
			Provider:  "noop",
			RateLimit: moderation.DefaultRateLimit,
		},
		Storage: StorageConfig{
			Backend:          "memory",
			MediaBaseURL:     "http://localhost:8080/media",
			S3Region:         "us-east-1",
			S3PresignSeconds: 3600,
		},
	}
}

// ServerConfig represents server configuration for the simple-cms service.
type ServerConfig struct {
	Port        string `yaml:"port" json:"port" env:"PORT" env-default:"8080"`
	Environment string `yaml:"environment" json:"environment" env:"ENVIRONMENT" env-default:"development"` // development, production, testing

	// "memory" or a postgres:// connection string
	DatabaseURL string `yaml:"database_url" json:"database_url" env:"DATABASE_URL" env-default:"memory"`
	DBSchema    string `yaml:"db_schema" json:"db_schema" env:"DB_SCHEMA" env-default:"cms"`

	// Optional Redis view counter
	RedisURL string `yaml:"redis_url" json:"redis_url" env:"REDIS_URL"`

	// Bearer tokens signed with this secret carry the user id in "sub"
	JWTSecret string `yaml:"jwt_secret" json:"jwt_secret" env:"JWT_SECRET"`

	Policy       PolicyConfig       `yaml:"policy" json:"policy"`
	Moderation   ModerationConfig   `yaml:"moderation" json:"moderation"`
	Storage      StorageConfig      `yaml:"storage" json:"storage"`
	ImageLibrary ImageLibraryConfig `yaml:"image_library" json:"image_library"`
}

// PolicyConfig drives the article pipeline.
type PolicyConfig struct {
	ClientAppIDs []string `yaml:"client_app_ids" json:"client_app_ids" env:"CLIENT_APP_IDS" env-separator:","`
	UniqueType   string   `yaml:"unique_type" json:"unique_type" env:"WATCH_AD_UNIQUE_TYPE" env-default:"device"`
	CheckTypes   []string `yaml:"check_types" json:"check_types" env:"CONTENT_SECURITY_CHECK_TYPES" env-separator:","`
	Scene        int      `yaml:"scene" json:"scene" env:"CONTENT_SECURITY_SCENE" env-default:"1"`
	Version      int      `yaml:"version" json:"version" env:"CONTENT_SECURITY_VERSION" env-default:"1"`
}

// ModerationConfig selects and configures the moderation provider.
type ModerationConfig struct {
	Provider        string   `yaml:"provider" json:"provider" env:"MODERATION_PROVIDER" env-default:"noop"`
	Keywords        []string `yaml:"keywords" json:"keywords" env:"MODERATION_KEYWORDS" env-separator:","`
	WeChatAppID     string   `yaml:"wechat_app_id" json:"wechat_app_id" env:"WECHAT_APP_ID"`
	WeChatAppSecret string   `yaml:"wechat_app_secret" json:"wechat_app_secret" env:"WECHAT_APP_SECRET"`
	WeChatBaseURL   string   `yaml:"wechat_base_url" json:"wechat_base_url" env:"WECHAT_BASE_URL"`
	RateLimit       int      `yaml:"rate_limit" json:"rate_limit" env:"MODERATION_RATE_LIMIT" env-default:"10"`
}

// StorageConfig selects where media is stored and how references resolve.
type StorageConfig struct {
	Backend      string `yaml:"backend" json:"backend" env:"STORAGE_BACKEND" env-default:"memory"` // memory, s3
	MediaBaseURL string `yaml:"media_base_url" json:"media_base_url" env:"MEDIA_BASE_URL" env-default:"http://localhost:8080/media"`

	S3Bucket          string `yaml:"s3_bucket" json:"s3_bucket" env:"S3_BUCKET"`
	S3Region          string `yaml:"s3_region" json:"s3_region" env:"S3_REGION" env-default:"us-east-1"`
	S3Endpoint        string `yaml:"s3_endpoint" json:"s3_endpoint" env:"S3_ENDPOINT"`
	S3AccessKeyID     string `yaml:"s3_access_key_id" json:"s3_access_key_id" env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key" json:"s3_secret_access_key" env:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle    bool   `yaml:"s3_use_path_style" json:"s3_use_path_style" env:"S3_USE_PATH_STYLE"`
	S3PresignSeconds  int    `yaml:"s3_presign_seconds" json:"s3_presign_seconds" env:"S3_PRESIGN_SECONDS" env-default:"3600"`
	S3CreateBucket    bool   `yaml:"s3_create_bucket" json:"s3_create_bucket" env:"S3_CREATE_BUCKET"`
}

// ImageLibraryConfig holds stock image provider credentials.
type ImageLibraryConfig struct {
	UnsplashAppID     string `yaml:"unsplash_app_id" json:"unsplash_app_id" env:"UNSPLASH_APP_ID"`
	UnsplashAccessKey string `yaml:"unsplash_access_key" json:"unsplash_access_key" env:"UNSPLASH_ACCESS_KEY"`
	UnsplashSecretKey string `yaml:"unsplash_secret_key" json:"unsplash_secret_key" env:"UNSPLASH_SECRET_KEY"`
	GiphyAPIKey       string `yaml:"giphy_api_key" json:"giphy_api_key" env:"GIPHY_API_KEY"`
	PexelsAPIKey      string `yaml:"pexels_api_key" json:"pexels_api_key" env:"PEXELS_API_KEY"`
	RateLimit         int    `yaml:"rate_limit" json:"rate_limit" env:"IMAGE_LIBRARY_RATE_LIMIT"`
}

// WithEnv overlays settings from environment variables.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// WithFile reads a YAML, JSON or TOML file. Environment variables still
// take precedence over file values.
func WithFile(path string) Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadConfig(path, c); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}
}

// IsPostgres reports whether DatabaseURL selects the postgres repository.
func (c *ServerConfig) IsPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseURL != "" && c.DatabaseURL != "memory" && !c.IsPostgres() {
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgres://...')", c.DatabaseURL)
	}

	switch simplecms.UniqueType(c.Policy.UniqueType) {
	case simplecms.UniqueTypeUser, simplecms.UniqueTypeDevice:
	default:
		return fmt.Errorf("WATCH_AD_UNIQUE_TYPE must be 'user' or 'device', got %q", c.Policy.UniqueType)
	}

	for _, t := range c.Policy.CheckTypes {
		switch simplecms.CheckType(strings.TrimSpace(t)) {
		case simplecms.CheckContent, simplecms.CheckImage:
		default:
			return fmt.Errorf("unsupported CONTENT_SECURITY_CHECK_TYPES entry %q", t)
		}
	}

	if c.Moderation.Provider == "" {
		return errors.New("moderation provider is required")
	}
	if c.Moderation.Provider == "wechat" && (c.Moderation.WeChatAppID == "" || c.Moderation.WeChatAppSecret == "") {
		return errors.New("WECHAT_APP_ID and WECHAT_APP_SECRET are required for the wechat moderation provider")
	}

	switch c.Storage.Backend {
	case "memory":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return errors.New("S3_BUCKET is required for the s3 storage backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend type: %s", c.Storage.Backend)
	}

	return nil
}

// SimplecmsPolicy converts the policy settings for the pipeline.
func (c *ServerConfig) SimplecmsPolicy() simplecms.Policy {
	p := simplecms.Policy{
		UniqueType: simplecms.UniqueType(c.Policy.UniqueType),
		Scene:      c.Policy.Scene,
		Version:    c.Policy.Version,
	}
	for _, id := range c.Policy.ClientAppIDs {
		if id = strings.TrimSpace(id); id != "" {
			p.ClientAppIDs = append(p.ClientAppIDs, id)
		}
	}
	for _, t := range c.Policy.CheckTypes {
		if t = strings.TrimSpace(t); t != "" {
			p.CheckTypes = append(p.CheckTypes, simplecms.CheckType(t))
		}
	}
	return p
}
