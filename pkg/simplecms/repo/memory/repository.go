package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-cms/pkg/simplecms"
)

// Repository implements simplecms.Repository using in-memory storage
type Repository struct {
	mu       sync.RWMutex
	articles map[uuid.UUID]*simplecms.Article
	unlocks  map[unlockKey]*simplecms.UnlockRecord
	media    []*simplecms.Media
}

type unlockKey struct {
	uniqueID  string
	articleID uuid.UUID
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		articles: make(map[uuid.UUID]*simplecms.Article),
		unlocks:  make(map[unlockKey]*simplecms.UnlockRecord),
	}
}

var _ simplecms.Repository = (*Repository)(nil)

// Article operations

// CreateArticles stores the whole batch or nothing.
func (r *Repository) CreateArticles(ctx context.Context, articles []*simplecms.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range articles {
		if _, exists := r.articles[a.ID]; exists {
			return fmt.Errorf("article %s already exists", a.ID)
		}
	}
	for _, a := range articles {
		r.articles[a.ID] = a.Clone()
	}
	return nil
}

func (r *Repository) GetArticle(ctx context.Context, id uuid.UUID) (*simplecms.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.articles[id]
	if !exists {
		return nil, simplecms.ErrArticleNotFound
	}
	return a.Clone(), nil
}

// FindArticles returns matches newest first.
func (r *Repository) FindArticles(ctx context.Context, filter simplecms.ArticleFilter) ([]*simplecms.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*simplecms.Article
	for _, a := range r.articles {
		if filter.ID != nil && a.ID != *filter.ID {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		result = append(result, a.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*simplecms.Article{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *Repository) UpdateArticle(ctx context.Context, id uuid.UUID, patch simplecms.ArticlePatch) (*simplecms.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, exists := r.articles[id]
	if !exists {
		return nil, simplecms.ErrArticleNotFound
	}
	updated := a.Clone()
	patch.Apply(updated)
	updated.UpdatedAt = time.Now().UTC()
	r.articles[id] = updated
	return updated.Clone(), nil
}

func (r *Repository) IncrementViewCount(ctx context.Context, id uuid.UUID, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, exists := r.articles[id]
	if !exists {
		return simplecms.ErrArticleNotFound
	}
	a.ViewCount += delta
	return nil
}

// Unlock record operations

func (r *Repository) FindUnlockRecord(ctx context.Context, uniqueID string, articleID uuid.UUID) (*simplecms.UnlockRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.unlocks[unlockKey{uniqueID, articleID}]
	if !exists {
		return nil, simplecms.ErrUnlockRecordNotFound
	}
	recCopy := *rec
	return &recCopy, nil
}

func (r *Repository) CreateUnlockRecord(ctx context.Context, record *simplecms.UnlockRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recCopy := *record
	r.unlocks[unlockKey{record.UniqueID, record.ArticleID}] = &recCopy
	return nil
}

// Media library operations

func (r *Repository) CreateMedia(ctx context.Context, media *simplecms.Media) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	mediaCopy := *media
	r.media = append(r.media, &mediaCopy)
	return nil
}

// ListMedia returns records newest first.
func (r *Repository) ListMedia(ctx context.Context, limit, offset int) ([]*simplecms.Media, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*simplecms.Media, 0, len(r.media))
	for i := len(r.media) - 1; i >= 0; i-- {
		m := *r.media[i]
		result = append(result, &m)
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return []*simplecms.Media{}, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}
