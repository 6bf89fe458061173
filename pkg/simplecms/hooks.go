package simplecms

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Hook system lets callers extend the article lifecycle without modifying
// the service. The content pipeline itself is registered as the first set
// of hooks.

// Hooks defines all available lifecycle hooks
type Hooks struct {
	BeforeArticleCreate []BeforeArticleCreateHook
	AfterArticleCreate  []AfterArticleCreateHook
	BeforeArticleUpdate []BeforeArticleUpdateHook
	AfterArticleUpdate  []AfterArticleUpdateHook
	AfterArticleRead    []AfterArticleReadHook

	OnError []ErrorHook
}

// HookContext carries information through the hook chain
type HookContext struct {
	Context   context.Context
	Requester Requester
	Metadata  map[string]interface{} // Custom metadata passed between hooks
	StopChain bool                   // Set to true to stop processing remaining hooks
}

// NewHookContext creates a new hook context
func NewHookContext(ctx context.Context, req Requester) *HookContext {
	return &HookContext{
		Context:   ctx,
		Requester: req,
		Metadata:  make(map[string]interface{}),
	}
}

// BeforeArticleCreateHook is called with the whole batch before it is stored
type BeforeArticleCreateHook func(hctx *HookContext, batch []*Article) error

// AfterArticleCreateHook is called after a batch is stored
type AfterArticleCreateHook func(hctx *HookContext, batch []*Article) error

// BeforeArticleUpdateHook is called before a patch is applied
type BeforeArticleUpdateHook func(hctx *HookContext, id uuid.UUID, patch *ArticlePatch) error

// AfterArticleUpdateHook is called after a patch is applied
type AfterArticleUpdateHook func(hctx *HookContext, article *Article) error

// AfterArticleReadHook is called with the read result before it is returned
type AfterArticleReadHook func(hctx *HookContext, query *ReadQuery, result *ReadResult) error

// ErrorHook is called when an operation fails
type ErrorHook func(hctx *HookContext, operation string, err error)

// Register appends the callbacks of an ArticleHooks implementation.
func (h *Hooks) Register(ah ArticleHooks) {
	h.BeforeArticleCreate = append(h.BeforeArticleCreate, ah.BeforeCreate)
	h.BeforeArticleUpdate = append(h.BeforeArticleUpdate, ah.BeforeUpdate)
	h.AfterArticleRead = append(h.AfterArticleRead, ah.AfterRead)
}

// Merge appends every chain of other to h.
func (h *Hooks) Merge(other *Hooks) {
	if other == nil {
		return
	}
	h.BeforeArticleCreate = append(h.BeforeArticleCreate, other.BeforeArticleCreate...)
	h.AfterArticleCreate = append(h.AfterArticleCreate, other.AfterArticleCreate...)
	h.BeforeArticleUpdate = append(h.BeforeArticleUpdate, other.BeforeArticleUpdate...)
	h.AfterArticleUpdate = append(h.AfterArticleUpdate, other.AfterArticleUpdate...)
	h.AfterArticleRead = append(h.AfterArticleRead, other.AfterArticleRead...)
	h.OnError = append(h.OnError, other.OnError...)
}

// Hook execution helpers

func (h *Hooks) executeBeforeArticleCreate(ctx context.Context, req Requester, batch []*Article) error {
	hctx := NewHookContext(ctx, req)
	for _, hook := range h.BeforeArticleCreate {
		if err := hook(hctx, batch); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

func (h *Hooks) executeAfterArticleCreate(ctx context.Context, req Requester, batch []*Article) error {
	hctx := NewHookContext(ctx, req)
	for _, hook := range h.AfterArticleCreate {
		if err := hook(hctx, batch); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

func (h *Hooks) executeBeforeArticleUpdate(ctx context.Context, req Requester, id uuid.UUID, patch *ArticlePatch) error {
	hctx := NewHookContext(ctx, req)
	for _, hook := range h.BeforeArticleUpdate {
		if err := hook(hctx, id, patch); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

func (h *Hooks) executeAfterArticleUpdate(ctx context.Context, req Requester, article *Article) error {
	hctx := NewHookContext(ctx, req)
	for _, hook := range h.AfterArticleUpdate {
		if err := hook(hctx, article); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

func (h *Hooks) executeAfterArticleRead(ctx context.Context, req Requester, query *ReadQuery, result *ReadResult) error {
	hctx := NewHookContext(ctx, req)
	for _, hook := range h.AfterArticleRead {
		if err := hook(hctx, query, result); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

// executeOnError runs all OnError hooks
func (h *Hooks) executeOnError(ctx context.Context, req Requester, operation string, err error) {
	hctx := NewHookContext(ctx, req)
	for _, hook := range h.OnError {
		hook(hctx, operation, err)
		if hctx.StopChain {
			break
		}
	}
}

// LoggingHooks returns hooks that log article lifecycle events.
func LoggingHooks(logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{
		AfterArticleCreate: []AfterArticleCreateHook{
			func(hctx *HookContext, batch []*Article) error {
				for _, a := range batch {
					logger.InfoContext(hctx.Context, "article created", "article_id", a.ID, "status", a.Status)
				}
				return nil
			},
		},
		AfterArticleUpdate: []AfterArticleUpdateHook{
			func(hctx *HookContext, article *Article) error {
				logger.InfoContext(hctx.Context, "article updated", "article_id", article.ID, "status", article.Status)
				return nil
			},
		},
		OnError: []ErrorHook{
			func(hctx *HookContext, operation string, err error) {
				logger.ErrorContext(hctx.Context, "article operation failed",
					"operation", operation,
					"request_id", hctx.Requester.RequestID,
					"error", err)
			},
		},
	}
}
