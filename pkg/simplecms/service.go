package simplecms

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the main interface for the simple-cms library
type Service interface {
	// Article operations
	CreateArticles(ctx context.Context, req Requester, articles []CreateArticleRequest) ([]*Article, error)
	UpdateArticle(ctx context.Context, req Requester, id uuid.UUID, patch ArticlePatch) (*Article, error)
	ReadArticles(ctx context.Context, req Requester, query ReadQuery) (*ReadResult, error)
	GetArticle(ctx context.Context, id uuid.UUID) (*Article, error)

	// Paywall operations
	UnlockArticle(ctx context.Context, req Requester, articleID uuid.UUID) (*UnlockRecord, error)

	// Media library operations
	ReportMedia(ctx context.Context, req Requester, media ReportMediaRequest) (*Media, error)
	ListMedia(ctx context.Context, limit, offset int) ([]*Media, error)
}
