package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-cms/pkg/simplecms"
	"github.com/tendant/simple-cms/pkg/simplecms/counter/redis"
	"github.com/tendant/simple-cms/pkg/simplecms/delta"
	"github.com/tendant/simple-cms/pkg/simplecms/repo/memory"
)

func newCounter(t *testing.T) (*redis.Counter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := redis.New("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestCounter(t *testing.T) {
	c, mr := newCounter(t)
	ctx := context.Background()
	id := uuid.New()

	n, err := c.ViewCount(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, c.Increment(ctx, id, 1))
	require.NoError(t, c.Increment(ctx, id, 2))

	n, err = c.ViewCount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "3", mr.HGet(redis.DefaultKey, id.String()))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := redis.New("not-a-url")
	assert.Error(t, err)
}

func TestServiceUsesRedisCounter(t *testing.T) {
	c, _ := newCounter(t)
	ctx := context.Background()
	repo := memory.New()

	svc, err := simplecms.New(
		simplecms.WithRepository(repo),
		simplecms.WithViewCounter(c),
		simplecms.WithPolicy(simplecms.Policy{ClientAppIDs: []string{"app"}}),
	)
	require.NoError(t, err)

	created, err := svc.CreateArticles(ctx, simplecms.Requester{}, []simplecms.CreateArticleRequest{{
		Status:  simplecms.ArticleStatusPublished,
		Title:   "counted",
		Content: &delta.Delta{Ops: []delta.Op{delta.Text("hi\n", nil)}},
	}})
	require.NoError(t, err)
	id := created[0].ID

	req := simplecms.Requester{AppID: "app"}
	var last *simplecms.ReadResult
	for i := 0; i < 2; i++ {
		last, err = svc.ReadArticles(ctx, req, simplecms.ReadQuery{ArticleID: &id, Fields: []string{"content"}})
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), last.Data[0].ViewCount)

	stored, err := repo.GetArticle(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, stored.ViewCount)
}
