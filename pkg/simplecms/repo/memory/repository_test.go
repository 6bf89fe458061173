package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-cms/pkg/simplecms"
	"github.com/tendant/simple-cms/pkg/simplecms/delta"
	"github.com/tendant/simple-cms/pkg/simplecms/repo/memory"
)

func newArticle(status simplecms.ArticleStatus, title string) *simplecms.Article {
	now := time.Now().UTC()
	return &simplecms.Article{
		ID:        uuid.New(),
		Status:    status,
		Title:     title,
		Content:   &delta.Delta{Ops: []delta.Op{delta.Text("body\n", nil)}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryRepository_ArticleOperations(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		a := newArticle(simplecms.ArticleStatusDraft, "first")
		require.NoError(t, repo.CreateArticles(ctx, []*simplecms.Article{a}))

		got, err := repo.GetArticle(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "first", got.Title)
		assert.Equal(t, a.Content.Ops, got.Content.Ops)
	})

	t.Run("GetArticle_NotFound", func(t *testing.T) {
		got, err := repo.GetArticle(ctx, uuid.New())
		assert.Nil(t, got)
		assert.Equal(t, simplecms.ErrArticleNotFound, err)
	})

	t.Run("CreateArticles_DuplicateStoresNothing", func(t *testing.T) {
		existing := newArticle(simplecms.ArticleStatusDraft, "existing")
		require.NoError(t, repo.CreateArticles(ctx, []*simplecms.Article{existing}))

		fresh := newArticle(simplecms.ArticleStatusDraft, "fresh")
		err := repo.CreateArticles(ctx, []*simplecms.Article{fresh, existing})
		assert.Error(t, err)

		_, err = repo.GetArticle(ctx, fresh.ID)
		assert.ErrorIs(t, err, simplecms.ErrArticleNotFound)
	})

	t.Run("ReturnedArticleIsACopy", func(t *testing.T) {
		a := newArticle(simplecms.ArticleStatusDraft, "copy")
		require.NoError(t, repo.CreateArticles(ctx, []*simplecms.Article{a}))

		got, err := repo.GetArticle(ctx, a.ID)
		require.NoError(t, err)
		got.Title = "mutated"
		got.Content.Ops[0] = delta.Text("mutated\n", nil)

		again, err := repo.GetArticle(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "copy", again.Title)
		assert.Equal(t, "body\n", again.Content.Ops[0].Insert.Text)
	})

	t.Run("UpdateArticle", func(t *testing.T) {
		a := newArticle(simplecms.ArticleStatusDraft, "before")
		require.NoError(t, repo.CreateArticles(ctx, []*simplecms.Article{a}))

		title := "after"
		status := simplecms.ArticleStatusPublished
		updated, err := repo.UpdateArticle(ctx, a.ID, simplecms.ArticlePatch{Title: &title, Status: &status})
		require.NoError(t, err)
		assert.Equal(t, "after", updated.Title)
		assert.Equal(t, simplecms.ArticleStatusPublished, updated.Status)
		assert.Equal(t, "body\n", updated.Content.Ops[0].Insert.Text)

		_, err = repo.UpdateArticle(ctx, uuid.New(), simplecms.ArticlePatch{Title: &title})
		assert.ErrorIs(t, err, simplecms.ErrArticleNotFound)
	})
}

func TestMemoryRepository_FindArticles(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	base := time.Now().UTC()
	var published []*simplecms.Article
	for i := 0; i < 3; i++ {
		a := newArticle(simplecms.ArticleStatusPublished, "p")
		a.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		published = append(published, a)
	}
	draft := newArticle(simplecms.ArticleStatusDraft, "d")
	require.NoError(t, repo.CreateArticles(ctx, append(published, draft)))

	status := simplecms.ArticleStatusPublished
	found, err := repo.FindArticles(ctx, simplecms.ArticleFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, published[2].ID, found[0].ID)

	page, err := repo.FindArticles(ctx, simplecms.ArticleFilter{Status: &status, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, published[1].ID, page[0].ID)

	byID, err := repo.FindArticles(ctx, simplecms.ArticleFilter{ID: &draft.ID})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, draft.ID, byID[0].ID)
}

func TestMemoryRepository_IncrementViewCountConcurrently(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	a := newArticle(simplecms.ArticleStatusPublished, "views")
	require.NoError(t, repo.CreateArticles(ctx, []*simplecms.Article{a}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.IncrementViewCount(ctx, a.ID, 1))
		}()
	}
	wg.Wait()

	got, err := repo.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.ViewCount)

	assert.ErrorIs(t, repo.IncrementViewCount(ctx, uuid.New(), 1), simplecms.ErrArticleNotFound)
}

func TestMemoryRepository_UnlockRecords(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	articleID := uuid.New()

	_, err := repo.FindUnlockRecord(ctx, "device-1", articleID)
	assert.ErrorIs(t, err, simplecms.ErrUnlockRecordNotFound)

	require.NoError(t, repo.CreateUnlockRecord(ctx, &simplecms.UnlockRecord{UniqueID: "device-1", ArticleID: articleID}))

	rec, err := repo.FindUnlockRecord(ctx, "device-1", articleID)
	require.NoError(t, err)
	assert.Equal(t, "device-1", rec.UniqueID)

	_, err = repo.FindUnlockRecord(ctx, "device-2", articleID)
	assert.ErrorIs(t, err, simplecms.ErrUnlockRecordNotFound)
}

func TestMemoryRepository_Media(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	for _, src := range []string{"a.png", "b.png", "c.png"} {
		require.NoError(t, repo.CreateMedia(ctx, &simplecms.Media{ID: uuid.New(), Src: src, Type: "image"}))
	}

	list, err := repo.ListMedia(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c.png", list[0].Src)
	assert.Equal(t, "b.png", list[1].Src)

	rest, err := repo.ListMedia(ctx, 10, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "a.png", rest[0].Src)

	empty, err := repo.ListMedia(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)

	negative, err := repo.ListMedia(ctx, 10, -1)
	require.NoError(t, err)
	assert.Len(t, negative, 3)
}
