package simplecms

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/tendant/simple-cms/pkg/simplecms/delta"
)

// Policy holds the settings that drive the article pipeline.
type Policy struct {
	// CheckTypes enables moderation per field kind.
	CheckTypes []CheckType
	// ClientAppIDs lists the apps whose reads are rendered and gated.
	ClientAppIDs []string
	// UniqueType selects the identity unlock records are keyed by.
	UniqueType UniqueType
	// Scene and Version are passed to the moderation provider unchanged.
	Scene   int
	Version int
}

// PipelineConfig wires the collaborators of a Pipeline.
type PipelineConfig struct {
	Repository Repository
	Counter    ViewCounter
	Moderator  Moderator
	Resolver   URLResolver
	Policy     Policy
	Logger     *slog.Logger
}

// Pipeline screens writes and renders reads. It implements ArticleHooks.
type Pipeline struct {
	repo        Repository
	counter     ViewCounter
	gate        *ModerationGate
	unlock      *UnlockGate
	transformer *BlockTransformer
	policy      Policy
	logger      *slog.Logger
}

var _ ArticleHooks = (*Pipeline)(nil)

// NewPipeline creates a pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gate, err := NewModerationGate(cfg.Moderator, cfg.Resolver, cfg.Policy.CheckTypes, cfg.Policy.Scene, cfg.Policy.Version)
	if err != nil {
		return nil, err
	}
	counter := cfg.Counter
	if counter == nil {
		counter = repositoryCounter{repo: cfg.Repository}
	}
	return &Pipeline{
		repo:        cfg.Repository,
		counter:     counter,
		gate:        gate,
		unlock:      NewUnlockGate(cfg.Repository, cfg.Policy.UniqueType),
		transformer: NewBlockTransformer(cfg.Resolver, logger),
		policy:      cfg.Policy,
		logger:      logger,
	}, nil
}

// BeforeCreate screens every published article of the batch in order. Any
// rejection vetoes the whole batch.
func (p *Pipeline) BeforeCreate(hctx *HookContext, batch []*Article) error {
	for _, a := range batch {
		if a.Status != ArticleStatusPublished {
			continue
		}
		err := p.gate.Screen(hctx.Context, hctx.Requester, ScreenInput{
			Title:     a.Title,
			Excerpt:   a.Excerpt,
			Content:   a.Content,
			Thumbnail: a.Thumbnail,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// BeforeUpdate screens the patched fields when the resulting article is
// published. A patch without a status inherits the stored one.
func (p *Pipeline) BeforeUpdate(hctx *HookContext, id uuid.UUID, patch *ArticlePatch) error {
	if id == uuid.Nil {
		return fmt.Errorf("%w: update requires an article id", ErrInvalidArticle)
	}

	var status ArticleStatus
	if patch.Status != nil {
		status = *patch.Status
	} else {
		existing, err := p.repo.GetArticle(hctx.Context, id)
		if err != nil {
			return &ArticleError{ArticleID: id, Op: "update", Err: err}
		}
		status = existing.Status
	}
	if status != ArticleStatusPublished {
		return nil
	}

	in := ScreenInput{Content: patch.Content, Thumbnail: patch.Thumbnail}
	if patch.Title != nil {
		in.Title = *patch.Title
	}
	if patch.Excerpt != nil {
		in.Excerpt = *patch.Excerpt
	}
	return p.gate.Screen(hctx.Context, hctx.Requester, in)
}

// AfterRead counts the view, gates paywalled content and renders it for the
// requesting client.
func (p *Pipeline) AfterRead(hctx *HookContext, query *ReadQuery, result *ReadResult) error {
	ctx := hctx.Context
	req := hctx.Requester

	if len(p.policy.ClientAppIDs) == 0 {
		if query.Explicit("is_admin") {
			return nil
		}
		return errClientAppIDsMissing()
	}
	if !slices.Contains(p.policy.ClientAppIDs, req.AppID) {
		return nil
	}

	if query.ArticleID != nil && query.Requests("content") {
		p.countView(ctx, *query.ArticleID)
	}

	for _, view := range result.Data {
		p.overlayViewCount(ctx, view)
		if view.Raw == nil {
			continue
		}
		view.ContentImages = delta.ImageSources(view.Raw.Ops)

		gated, err := p.unlock.Apply(ctx, req, view.ID, view.Raw)
		if err != nil {
			return err
		}
		rendered, err := p.transformer.Render(ctx, req.UserAgent, gated)
		if err != nil {
			return &ArticleError{ArticleID: view.ID, Op: "render", Err: err}
		}
		view.Content = rendered
	}
	return nil
}

func (p *Pipeline) countView(ctx context.Context, id uuid.UUID) {
	if err := p.counter.Increment(ctx, id, 1); err != nil {
		p.logger.WarnContext(ctx, "failed to increment view count", "article_id", id, "error", err)
	}
}

func (p *Pipeline) overlayViewCount(ctx context.Context, view *ArticleView) {
	reader, ok := p.counter.(ViewCountReader)
	if !ok {
		return
	}
	n, err := reader.ViewCount(ctx, view.ID)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to read view count", "article_id", view.ID, "error", err)
		return
	}
	view.ViewCount = n
}
