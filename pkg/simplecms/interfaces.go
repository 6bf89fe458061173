package simplecms

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for article persistence
type Repository interface {
	// Article operations
	CreateArticles(ctx context.Context, articles []*Article) error
	GetArticle(ctx context.Context, id uuid.UUID) (*Article, error)
	FindArticles(ctx context.Context, filter ArticleFilter) ([]*Article, error)
	UpdateArticle(ctx context.Context, id uuid.UUID, patch ArticlePatch) (*Article, error)
	IncrementViewCount(ctx context.Context, id uuid.UUID, delta int64) error

	// Unlock record operations
	FindUnlockRecord(ctx context.Context, uniqueID string, articleID uuid.UUID) (*UnlockRecord, error)
	CreateUnlockRecord(ctx context.Context, record *UnlockRecord) error

	// Media library operations
	CreateMedia(ctx context.Context, media *Media) error
	ListMedia(ctx context.Context, limit, offset int) ([]*Media, error)
}

// ViewCounter records article reads.
type ViewCounter interface {
	Increment(ctx context.Context, articleID uuid.UUID, delta int64) error
}

// ViewCountReader is implemented by counters that keep their own totals.
type ViewCountReader interface {
	ViewCount(ctx context.Context, articleID uuid.UUID) (int64, error)
}

// TextCheck is a text screening request.
type TextCheck struct {
	Content   string
	RequestID string
	OpenID    string
	Scene     int
	Version   int
}

// ImageCheck is an image screening request. URL is always fetchable over HTTP.
type ImageCheck struct {
	URL       string
	RequestID string
	Scene     int
	Version   int
}

// Moderator screens text and images. A returned error means the check could
// not be performed; a risky result is reported through the verdict.
type Moderator interface {
	CheckText(ctx context.Context, check TextCheck) (Verdict, error)
	CheckImage(ctx context.Context, check ImageCheck) (Verdict, error)
}

// URLResolver turns an object-storage reference into a temporary HTTP URL.
type URLResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// ArticleHooks is the set of lifecycle interception points of the article
// pipeline. Returning an error from a before-hook vetoes the write.
type ArticleHooks interface {
	BeforeCreate(hctx *HookContext, batch []*Article) error
	BeforeUpdate(hctx *HookContext, id uuid.UUID, patch *ArticlePatch) error
	AfterRead(hctx *HookContext, query *ReadQuery, result *ReadResult) error
}

// repositoryCounter increments views through the repository.
type repositoryCounter struct {
	repo Repository
}

func (c repositoryCounter) Increment(ctx context.Context, articleID uuid.UUID, delta int64) error {
	return c.repo.IncrementViewCount(ctx, articleID, delta)
}
