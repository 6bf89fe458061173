package imagelibrary

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// KeyPrefix is the object key prefix for imported images.
const KeyPrefix = "media-library/"

// Uploader stores an object and returns its storage reference.
type Uploader interface {
	Upload(ctx context.Context, objectKey string, reader io.Reader, mimeType string) (string, error)
}

// ImportRequest names the image to import. ID and Provider are optional;
// when both are set the provider detail is fetched first.
type ImportRequest struct {
	Provider string `json:"provider"`
	ID       string `json:"id"`
	URL      string `json:"url" validate:"required,url"`
}

// ImportResult is the stored reference plus the image detail.
type ImportResult struct {
	Reference string `json:"fileID"`
	Detail    Image  `json:"detail"`
}

// Importer copies provider images into object storage.
type Importer struct {
	registry   *Registry
	uploader   Uploader
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithImportHTTPClient sets the client used to download images.
func WithImportHTTPClient(httpClient *http.Client) ImporterOption {
	return func(i *Importer) {
		i.httpClient = httpClient
	}
}

// WithImportLogger sets a logger.
func WithImportLogger(logger *slog.Logger) ImporterOption {
	return func(i *Importer) {
		i.logger = logger
	}
}

// WithClock sets the time source used for object keys.
func WithClock(now func() time.Time) ImporterOption {
	return func(i *Importer) {
		i.now = now
	}
}

// NewImporter creates an importer.
func NewImporter(registry *Registry, uploader Uploader, opts ...ImporterOption) *Importer {
	i := &Importer{
		registry:   registry,
		uploader:   uploader,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		logger:     slog.Default(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import fetches the image detail when possible, downloads req.URL and
// uploads it under media-library/<millis>-<uuid>.<fileType>.
func (i *Importer) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	detail := Image{FileType: "jpeg"}

	if req.ID != "" && req.Provider != "" {
		if p, err := i.registry.Get(req.Provider); err == nil {
			d, err := p.Detail(ctx, req.ID)
			if err != nil {
				return nil, fmt.Errorf("fetch %s image detail: %w", req.Provider, err)
			}
			mergeDetail(&detail, d)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := i.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Provider: req.Provider, StatusCode: resp.StatusCode, Message: "upload failed", Endpoint: req.URL}
	}

	if detail.Size == 0 && resp.ContentLength > 0 {
		detail.Size = resp.ContentLength
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.TypeByExtension("." + detail.FileType)
	}

	key := fmt.Sprintf("%s%d-%s.%s", KeyPrefix, i.now().UnixMilli(), i.newID(), detail.FileType)
	ref, err := i.uploader.Upload(ctx, key, resp.Body, mimeType)
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	i.logger.InfoContext(ctx, "image imported", "provider", req.Provider, "id", req.ID, "reference", ref, "size", detail.Size)
	return &ImportResult{Reference: ref, Detail: detail}, nil
}

// mergeDetail copies d into dst, keeping the default file type when d has none.
func mergeDetail(dst *Image, d *Image) {
	fileType := dst.FileType
	*dst = *d
	if dst.FileType == "" {
		dst.FileType = fileType
	}
}
