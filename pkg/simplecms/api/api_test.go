package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-cms/pkg/simplecms"
	"github.com/tendant/simple-cms/pkg/simplecms/imagelibrary"
	"github.com/tendant/simple-cms/pkg/simplecms/moderation"
	"github.com/tendant/simple-cms/pkg/simplecms/repo/memory"
	memorystorage "github.com/tendant/simple-cms/pkg/simplecms/storage/memory"
)

const (
	testAppID     = "__UNI__APP"
	blockClientUA = "Mozilla/5.0 uni-app-x/4.0"
)

type testServer struct {
	*httptest.Server
	repo *memory.Repository
}

func setupTestServer(t *testing.T, clientAppIDs []string, tokenAuth *jwtauth.JWTAuth) *testServer {
	t.Helper()

	repo := memory.New()
	moderator, err := moderation.NewKeyword([]string{"forbidden"})
	require.NoError(t, err)
	store := memorystorage.New("http://media.test")

	svc, err := simplecms.New(
		simplecms.WithRepository(repo),
		simplecms.WithModerator(moderator),
		simplecms.WithURLResolver(store),
		simplecms.WithPolicy(simplecms.Policy{
			CheckTypes:   []simplecms.CheckType{simplecms.CheckContent},
			ClientAppIDs: clientAppIDs,
			UniqueType:   simplecms.UniqueTypeDevice,
		}),
	)
	require.NoError(t, err)

	library := imagelibrary.NewRegistry(imagelibrary.Config{}, nil)
	media := NewMediaHandler(svc, library, imagelibrary.NewImporter(library, store))

	r := chi.NewRouter()
	Mount(r, NewArticleHandler(svc), media, tokenAuth)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, repo: repo}
}

func (s *testServer) do(t *testing.T, method, path string, body string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (s *testServer) createArticle(t *testing.T, body string) *simplecms.Article {
	t.Helper()
	resp, data := s.do(t, http.MethodPost, "/api/v1/articles", body, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var out ArticlesResponse
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out.Data, 1)
	return out.Data[0]
}

const paywalledArticle = `{
	"status": "published",
	"title": "Guide",
	"content": {"ops": [
		{"insert": "free part\n"},
		{"insert": {"unlockContent": true}},
		{"insert": "paid part\n"}
	]}
}`

func TestHealth(t *testing.T) {
	s := setupTestServer(t, nil, nil)
	resp, body := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestCreateArticles(t *testing.T) {
	s := setupTestServer(t, []string{testAppID}, nil)

	t.Run("single object", func(t *testing.T) {
		a := s.createArticle(t, `{"title":"draft","status":0}`)
		assert.Equal(t, simplecms.ArticleStatusDraft, a.Status)
	})

	t.Run("batch", func(t *testing.T) {
		resp, body := s.do(t, http.MethodPost, "/api/v1/articles", `[{"title":"a"},{"title":"b","status":"published"}]`, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var out ArticlesResponse
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Len(t, out.Data, 2)
	})

	t.Run("invalid json", func(t *testing.T) {
		resp, _ := s.do(t, http.MethodPost, "/api/v1/articles", `{`, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejected title", func(t *testing.T) {
		resp, body := s.do(t, http.MethodPost, "/api/v1/articles", `{"title":"forbidden words","status":"published"}`, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		var errResp ErrorResponse
		require.NoError(t, json.Unmarshal(body, &errResp))
		assert.Equal(t, "title", errResp.Field)
		assert.Equal(t, "title contains sensitive terms", errResp.Error)
	})

	t.Run("drafts skip screening", func(t *testing.T) {
		a := s.createArticle(t, `{"title":"forbidden words","status":"draft"}`)
		assert.Equal(t, "forbidden words", a.Title)
	})
}

func TestUpdateArticle(t *testing.T) {
	s := setupTestServer(t, []string{testAppID}, nil)
	a := s.createArticle(t, `{"title":"ok","status":"published"}`)

	resp, body := s.do(t, http.MethodPut, "/api/v1/articles/"+a.ID.String(), `{"title":"renamed"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated simplecms.Article
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, "renamed", updated.Title)

	resp, _ = s.do(t, http.MethodPut, "/api/v1/articles/"+a.ID.String(), `{"excerpt":"forbidden"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPut, "/api/v1/articles/not-a-uuid", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetArticle_Rendering(t *testing.T) {
	s := setupTestServer(t, []string{testAppID}, nil)
	a := s.createArticle(t, paywalledArticle)
	path := "/api/v1/articles/" + a.ID.String() + "?fields=title,content"

	t.Run("classic client gets html teaser", func(t *testing.T) {
		resp, body := s.do(t, http.MethodGet, path, "", map[string]string{HeaderClientAppID: testAppID, HeaderDeviceID: "d1"})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var view struct {
			Content string `json:"content"`
		}
		require.NoError(t, json.Unmarshal(body, &view))
		assert.Contains(t, view.Content, "free part")
		assert.NotContains(t, view.Content, "paid part")
	})

	t.Run("block client gets blocks", func(t *testing.T) {
		resp, body := s.do(t, http.MethodGet, path, "", map[string]string{
			HeaderClientAppID: testAppID,
			HeaderDeviceID:    "d1",
			"User-Agent":      blockClientUA,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var view struct {
			Content []simplecms.RenderBlock `json:"content"`
		}
		require.NoError(t, json.Unmarshal(body, &view))
		require.NotEmpty(t, view.Content)
		assert.Equal(t, simplecms.BlockRichText, view.Content[0].Type)
	})

	t.Run("unlock reveals the rest", func(t *testing.T) {
		resp, _ := s.do(t, http.MethodPost, "/api/v1/articles/"+a.ID.String()+"/unlock", "", map[string]string{HeaderClientAppID: testAppID})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		headers := map[string]string{HeaderClientAppID: testAppID, HeaderDeviceID: "d2"}
		resp, _ = s.do(t, http.MethodPost, "/api/v1/articles/"+a.ID.String()+"/unlock", "", headers)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body := s.do(t, http.MethodGet, path, "", headers)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "paid part")
	})

	t.Run("unlisted app gets stored delta", func(t *testing.T) {
		resp, body := s.do(t, http.MethodGet, path, "", map[string]string{HeaderClientAppID: "other"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var view struct {
			Raw json.RawMessage `json:"content"`
		}
		require.NoError(t, json.Unmarshal(body, &view))
		assert.True(t, strings.HasPrefix(string(view.Raw), `{"ops"`))
	})

	t.Run("view count incremented per content read", func(t *testing.T) {
		stored, err := s.repo.GetArticle(context.Background(), a.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stored.ViewCount)
	})

	t.Run("not found", func(t *testing.T) {
		resp, _ := s.do(t, http.MethodGet, "/api/v1/articles/00000000-0000-0000-0000-000000000001", "", map[string]string{HeaderClientAppID: testAppID})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestListArticles(t *testing.T) {
	s := setupTestServer(t, []string{testAppID}, nil)
	s.createArticle(t, `{"title":"one","status":"published"}`)
	s.createArticle(t, `{"title":"two","status":"draft"}`)

	resp, body := s.do(t, http.MethodGet, "/api/v1/articles?status=published", "", map[string]string{HeaderClientAppID: testAppID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result simplecms.ReadResult
	require.NoError(t, json.Unmarshal(body, &result))
	require.Len(t, result.Data, 1)
	assert.Equal(t, "one", result.Data[0].Title)

	resp, _ = s.do(t, http.MethodGet, "/api/v1/articles?status=archived", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/v1/articles?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReadWithoutClientAppIDs(t *testing.T) {
	s := setupTestServer(t, nil, nil)
	a := s.createArticle(t, `{"title":"x"}`)

	resp, body := s.do(t, http.MethodGet, "/api/v1/articles/"+a.ID.String(), "", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), "CLIENT_APP_IDS")

	resp, _ = s.do(t, http.MethodGet, "/api/v1/articles/"+a.ID.String()+"?fields=title,is_admin", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMedia(t *testing.T) {
	s := setupTestServer(t, []string{testAppID}, nil)

	resp, _ := s.do(t, http.MethodPost, "/api/v1/media", `{"src":"memory://a.png"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := s.do(t, http.MethodPost, "/api/v1/media", `{"src":"memory://a.png","type":"image","width":10}`, map[string]string{HeaderUserID: "u1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var media simplecms.Media
	require.NoError(t, json.Unmarshal(body, &media))
	assert.Equal(t, "u1", media.UploadUser)

	resp, body = s.do(t, http.MethodGet, "/api/v1/media?limit=5", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Data []simplecms.Media `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list.Data, 1)

	for _, query := range []string{"offset=-1", "limit=-5", "limit=500", "offset=abc"} {
		resp, body = s.do(t, http.MethodGet, "/api/v1/media?"+query, "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query+": "+string(body))
	}
}

func TestImageLibrary(t *testing.T) {
	s := setupTestServer(t, []string{testAppID}, nil)

	resp, body := s.do(t, http.MethodGet, "/api/v1/image-library/providers", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"data":[]}`, string(body))

	resp, _ = s.do(t, http.MethodGet, "/api/v1/image-library/search?provider=giphy", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/v1/image-library/search?provider=giphy&keyword=cat", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/v1/image-library/import", `{"url":"not a url"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRequesterMiddleware_JWT(t *testing.T) {
	tokenAuth := NewTokenAuth("secret")
	require.NotNil(t, tokenAuth)
	assert.Nil(t, NewTokenAuth(""))

	var got simplecms.Requester
	r := chi.NewRouter()
	r.Use(Authenticator(tokenAuth)...)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		got = RequesterFromContext(r.Context())
	})

	_, token, err := tokenAuth.Encode(map[string]interface{}{"sub": "user-1", "openid": "o-claim"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(HeaderUserID, "spoofed")
	req.Header.Set(HeaderDeviceID, "dev")
	req.Header.Set(HeaderOpenID, "o-header")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "dev", got.DeviceID)
	assert.Equal(t, "o-claim", got.OpenID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "spoofed")
	req.Header.Set(HeaderOpenID, "o-header")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, got.UserID)
	assert.Equal(t, "o-header", got.OpenID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&simplecms.PolicyError{Field: simplecms.FieldTitle}, http.StatusUnprocessableEntity},
		{&simplecms.ScreeningError{Field: simplecms.FieldContent}, http.StatusServiceUnavailable},
		{simplecms.ErrConfigurationMissing, http.StatusInternalServerError},
		{&simplecms.ArticleError{Op: "get", Err: simplecms.ErrArticleNotFound}, http.StatusNotFound},
		{simplecms.ErrIdentityRequired, http.StatusBadRequest},
		{&imagelibrary.APIError{StatusCode: 500}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
