package simplecms

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-cms/pkg/simplecms/delta"
)

type fakeModerator struct {
	mu         sync.Mutex
	texts      []string
	openIDs    []string
	images     []string
	riskyText  string
	riskyImage string
	textErr    error
	verdict    *Verdict
}

func (m *fakeModerator) CheckText(ctx context.Context, check TextCheck) (Verdict, error) {
	m.mu.Lock()
	m.texts = append(m.texts, check.Content)
	m.openIDs = append(m.openIDs, check.OpenID)
	m.mu.Unlock()
	if m.textErr != nil {
		return Verdict{}, m.textErr
	}
	if m.verdict != nil {
		return *m.verdict, nil
	}
	if m.riskyText != "" && strings.Contains(check.Content, m.riskyText) {
		return Verdict{Status: VerdictRisk, Code: 87014}, nil
	}
	return Clean, nil
}

func (m *fakeModerator) CheckImage(ctx context.Context, check ImageCheck) (Verdict, error) {
	m.mu.Lock()
	m.images = append(m.images, check.URL)
	m.mu.Unlock()
	if m.riskyImage != "" && check.URL == m.riskyImage {
		return Verdict{Status: VerdictRisk}, nil
	}
	return Clean, nil
}

func (m *fakeModerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.texts) + len(m.images)
}

type fakeResolver struct {
	err error
}

func (r fakeResolver) Resolve(ctx context.Context, ref string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "https://signed.test/" + strings.TrimPrefix(ref, "s3://"), nil
}

var allChecks = []CheckType{CheckContent, CheckImage}

func TestNewModerationGateRequiresModerator(t *testing.T) {
	_, err := NewModerationGate(nil, nil, allChecks, 0, 0)
	assert.ErrorIs(t, err, ErrConfigurationMissing)

	gate, err := NewModerationGate(nil, nil, nil, 0, 0)
	require.NoError(t, err)
	assert.NoError(t, gate.Screen(context.Background(), Requester{}, ScreenInput{Title: "anything"}))
}

func TestModerationGateScreen(t *testing.T) {
	ctx := context.Background()
	body := &delta.Delta{Ops: []delta.Op{delta.Text("hello world\n", nil)}}

	t.Run("clean input checks every field", func(t *testing.T) {
		m := &fakeModerator{}
		gate, err := NewModerationGate(m, fakeResolver{}, allChecks, 0, 0)
		require.NoError(t, err)

		err = gate.Screen(ctx, Requester{}, ScreenInput{
			Title:     "t",
			Excerpt:   "e",
			Content:   body,
			Thumbnail: ImageRefs{"https://img.test/a.png", "s3://bucket/b.png"},
		})
		require.NoError(t, err)
		assert.Len(t, m.texts, 3)
		assert.Equal(t, []string{"https://img.test/a.png", "https://signed.test/bucket/b.png"}, m.images)
	})

	t.Run("requester openid reaches text checks", func(t *testing.T) {
		m := &fakeModerator{}
		gate, err := NewModerationGate(m, nil, allChecks, 3, 2)
		require.NoError(t, err)

		require.NoError(t, gate.Screen(ctx, Requester{OpenID: "o-1"}, ScreenInput{Title: "t", Excerpt: "e"}))
		assert.Equal(t, []string{"o-1", "o-1"}, m.openIDs)
	})

	t.Run("risky field is a policy error", func(t *testing.T) {
		for _, tc := range []struct {
			field Field
			in    ScreenInput
			msg   string
		}{
			{FieldTitle, ScreenInput{Title: "bad title"}, "title contains sensitive terms"},
			{FieldExcerpt, ScreenInput{Excerpt: "bad excerpt"}, "excerpt contains sensitive terms"},
			{FieldContent, ScreenInput{Content: &delta.Delta{Ops: []delta.Op{delta.Text("bad body\n", nil)}}}, "content contains sensitive terms"},
		} {
			m := &fakeModerator{riskyText: "bad"}
			gate, err := NewModerationGate(m, nil, allChecks, 0, 0)
			require.NoError(t, err)

			err = gate.Screen(ctx, Requester{}, tc.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPolicyRejection)
			assert.NotErrorIs(t, err, ErrScreeningUnavailable)

			var pe *PolicyError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tc.field, pe.Field)
			assert.Equal(t, tc.msg, pe.Error())
		}
	})

	t.Run("risky thumbnail stops the serial image loop", func(t *testing.T) {
		m := &fakeModerator{riskyImage: "https://img.test/bad.png"}
		gate, err := NewModerationGate(m, nil, []CheckType{CheckImage}, 0, 0)
		require.NoError(t, err)

		err = gate.Screen(ctx, Requester{}, ScreenInput{
			Title:     "ignored because content checks are off",
			Thumbnail: ImageRefs{"https://img.test/ok.png", "https://img.test/bad.png", "https://img.test/never.png"},
		})
		var pe *PolicyError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "thumbnail violates content policy", pe.Message)
		assert.Equal(t, []string{"https://img.test/ok.png", "https://img.test/bad.png"}, m.images)
		assert.Empty(t, m.texts)
	})

	t.Run("provider failure is a screening error", func(t *testing.T) {
		m := &fakeModerator{textErr: errors.New("provider down")}
		gate, err := NewModerationGate(m, nil, allChecks, 0, 0)
		require.NoError(t, err)

		err = gate.Screen(ctx, Requester{}, ScreenInput{Title: "t"})
		assert.ErrorIs(t, err, ErrScreeningUnavailable)
		assert.NotErrorIs(t, err, ErrPolicyRejection)
		assert.Contains(t, err.Error(), "provider down")
	})

	t.Run("error verdict carries the provider code", func(t *testing.T) {
		m := &fakeModerator{verdict: &Verdict{Status: VerdictError, Code: 44002, Message: "invalid args"}}
		gate, err := NewModerationGate(m, nil, allChecks, 0, 0)
		require.NoError(t, err)

		err = gate.Screen(ctx, Requester{}, ScreenInput{Title: "t"})
		var se *ScreeningError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, 44002, se.Code)
		assert.Equal(t, FieldTitle, se.Field)
	})

	t.Run("resolver failure is a screening error", func(t *testing.T) {
		m := &fakeModerator{}
		gate, err := NewModerationGate(m, fakeResolver{err: errors.New("no such key")}, allChecks, 0, 0)
		require.NoError(t, err)

		err = gate.Screen(ctx, Requester{}, ScreenInput{Thumbnail: ImageRefs{"s3://bucket/missing.png"}})
		assert.ErrorIs(t, err, ErrScreeningUnavailable)
		assert.Empty(t, m.images)
	})
}

func TestIsStorageReference(t *testing.T) {
	assert.True(t, isStorageReference("s3://bucket/key.png"))
	assert.True(t, isStorageReference("cloud://env/key.png"))
	assert.False(t, isStorageReference("https://img.test/a.png"))
	assert.False(t, isStorageReference("HTTP://img.test/a.png"))
	assert.False(t, isStorageReference("/relative/path.png"))
}
