package simplecms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// service implements the Service interface
type service struct {
	repository Repository
	counter    ViewCounter
	moderator  Moderator
	resolver   URLResolver
	policy     Policy
	hooks      *Hooks
	logger     *slog.Logger
	now        func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithViewCounter replaces the repository-backed view counter
func WithViewCounter(counter ViewCounter) Option {
	return func(s *service) {
		s.counter = counter
	}
}

// WithModerator sets the moderation provider
func WithModerator(m Moderator) Option {
	return func(s *service) {
		s.moderator = m
	}
}

// WithURLResolver sets the resolver for object-storage references
func WithURLResolver(r URLResolver) Option {
	return func(s *service) {
		s.resolver = r
	}
}

// WithPolicy sets moderation, allow-list and unlock settings
func WithPolicy(p Policy) Option {
	return func(s *service) {
		s.policy = p
	}
}

// WithHooks adds hooks that run after the built-in pipeline hooks
func WithHooks(h *Hooks) Option {
	return func(s *service) {
		s.hooks.Merge(h)
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		hooks:  &Hooks{},
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}

	pipeline, err := NewPipeline(PipelineConfig{
		Repository: s.repository,
		Counter:    s.counter,
		Moderator:  s.moderator,
		Resolver:   s.resolver,
		Policy:     s.policy,
		Logger:     s.logger,
	})
	if err != nil {
		return nil, err
	}

	hooks := &Hooks{}
	hooks.Register(pipeline)
	hooks.Merge(s.hooks)
	s.hooks = hooks

	return s, nil
}

// Article operations

func (s *service) CreateArticles(ctx context.Context, req Requester, reqs []CreateArticleRequest) ([]*Article, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: no articles to create", ErrInvalidArticle)
	}

	now := s.now()
	batch := make([]*Article, 0, len(reqs))
	for _, r := range reqs {
		status := r.Status
		if status == "" {
			status = ArticleStatusDraft
		}
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidArticle, status)
		}
		batch = append(batch, &Article{
			ID:        uuid.New(),
			Status:    status,
			Title:     r.Title,
			Excerpt:   r.Excerpt,
			Thumbnail: r.Thumbnail,
			Content:   r.Content.Clone(),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if err := s.hooks.executeBeforeArticleCreate(ctx, req, batch); err != nil {
		s.hooks.executeOnError(ctx, req, "create", err)
		return nil, err
	}

	if err := s.repository.CreateArticles(ctx, batch); err != nil {
		err = &ArticleError{ArticleID: batch[0].ID, Op: "create", Err: err}
		s.hooks.executeOnError(ctx, req, "create", err)
		return nil, err
	}

	if err := s.hooks.executeAfterArticleCreate(ctx, req, batch); err != nil {
		s.logger.WarnContext(ctx, "after create hook failed", "error", err)
	}

	return batch, nil
}

func (s *service) UpdateArticle(ctx context.Context, req Requester, id uuid.UUID, patch ArticlePatch) (*Article, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidArticle, *patch.Status)
	}

	if err := s.hooks.executeBeforeArticleUpdate(ctx, req, id, &patch); err != nil {
		s.hooks.executeOnError(ctx, req, "update", err)
		return nil, err
	}

	article, err := s.repository.UpdateArticle(ctx, id, patch)
	if err != nil {
		err = &ArticleError{ArticleID: id, Op: "update", Err: err}
		s.hooks.executeOnError(ctx, req, "update", err)
		return nil, err
	}

	if err := s.hooks.executeAfterArticleUpdate(ctx, req, article); err != nil {
		s.logger.WarnContext(ctx, "after update hook failed", "article_id", id, "error", err)
	}

	return article, nil
}

func (s *service) ReadArticles(ctx context.Context, req Requester, query ReadQuery) (*ReadResult, error) {
	var articles []*Article
	if query.ArticleID != nil {
		a, err := s.repository.GetArticle(ctx, *query.ArticleID)
		switch {
		case errors.Is(err, ErrArticleNotFound):
		case err != nil:
			return nil, &ArticleError{ArticleID: *query.ArticleID, Op: "read", Err: err}
		default:
			if query.Status == nil || a.Status == *query.Status {
				articles = append(articles, a)
			}
		}
	} else {
		found, err := s.repository.FindArticles(ctx, query.Filter())
		if err != nil {
			return nil, fmt.Errorf("find articles: %w", err)
		}
		articles = found
	}

	result := &ReadResult{Data: make([]*ArticleView, 0, len(articles))}
	for _, a := range articles {
		result.Data = append(result.Data, newArticleView(a, &query))
	}

	if err := s.hooks.executeAfterArticleRead(ctx, req, &query, result); err != nil {
		s.hooks.executeOnError(ctx, req, "read", err)
		return nil, err
	}
	return result, nil
}

func (s *service) GetArticle(ctx context.Context, id uuid.UUID) (*Article, error) {
	a, err := s.repository.GetArticle(ctx, id)
	if err != nil {
		return nil, &ArticleError{ArticleID: id, Op: "get", Err: err}
	}
	return a, nil
}

// Paywall operations

func (s *service) UnlockArticle(ctx context.Context, req Requester, articleID uuid.UUID) (*UnlockRecord, error) {
	uniqueType := s.policy.UniqueType
	if uniqueType == "" {
		uniqueType = UniqueTypeDevice
	}
	identity := req.Identity(uniqueType)
	if identity == "" {
		return nil, fmt.Errorf("%w: %s id missing", ErrIdentityRequired, uniqueType)
	}

	if _, err := s.repository.GetArticle(ctx, articleID); err != nil {
		return nil, &ArticleError{ArticleID: articleID, Op: "unlock", Err: err}
	}

	existing, err := s.repository.FindUnlockRecord(ctx, identity, articleID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrUnlockRecordNotFound) {
		return nil, &ArticleError{ArticleID: articleID, Op: "unlock", Err: err}
	}

	record := &UnlockRecord{UniqueID: identity, ArticleID: articleID, CreatedAt: s.now()}
	if err := s.repository.CreateUnlockRecord(ctx, record); err != nil {
		return nil, &ArticleError{ArticleID: articleID, Op: "unlock", Err: err}
	}
	s.logger.InfoContext(ctx, "article unlocked", "article_id", articleID, "unique_type", uniqueType)
	return record, nil
}

// Media library operations

func (s *service) ReportMedia(ctx context.Context, req Requester, r ReportMediaRequest) (*Media, error) {
	if r.Src == "" {
		return nil, fmt.Errorf("%w: media src is required", ErrInvalidArticle)
	}
	m := &Media{
		ID:           uuid.New(),
		Src:          r.Src,
		Cover:        r.Cover,
		Type:         r.Type,
		OriginalName: r.OriginalName,
		FileType:     r.FileType,
		Size:         r.Size,
		Width:        r.Width,
		Height:       r.Height,
		Duration:     r.Duration,
		UploadUser:   req.UserID,
		Description:  r.Description,
		Alt:          r.Alt,
		CreatedAt:    s.now(),
	}
	if err := s.repository.CreateMedia(ctx, m); err != nil {
		return nil, fmt.Errorf("create media: %w", err)
	}
	return m, nil
}

func (s *service) ListMedia(ctx context.Context, limit, offset int) ([]*Media, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repository.ListMedia(ctx, limit, offset)
}
