package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/tendant/simple-cms/pkg/simplecms"
)

const (
	// DefaultWeChatBaseURL is the WeChat open-platform API host.
	DefaultWeChatBaseURL = "https://api.weixin.qq.com"

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 10

	// RiskyContentCode is the errcode WeChat returns for flagged content.
	RiskyContentCode = 87014

	maxImageBytes = 10 << 20
	tokenCacheKey = "access_token"
)

// Error codes meaning the cached access token is no longer valid.
var tokenErrorCodes = map[int]bool{40001: true, 40014: true, 42001: true}

// ErrOpenIDRequired is returned for version 2 text checks without an openid.
var ErrOpenIDRequired = errors.New("msg_sec_check version 2 requires an openid")

// WeChat screens content through the mini-program security API.
type WeChat struct {
	appID      string
	appSecret  string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	tokens     *cache.Cache
	fetches    singleflight.Group
	logger     *slog.Logger
}

// WeChatOption configures the WeChat client.
type WeChatOption func(*WeChat)

// WithWeChatBaseURL sets a custom base URL.
func WithWeChatBaseURL(baseURL string) WeChatOption {
	return func(w *WeChat) {
		w.baseURL = baseURL
	}
}

// WithWeChatHTTPClient sets a custom HTTP client.
func WithWeChatHTTPClient(httpClient *http.Client) WeChatOption {
	return func(w *WeChat) {
		w.httpClient = httpClient
	}
}

// WithWeChatRateLimit sets a custom rate limit.
func WithWeChatRateLimit(requestsPerSecond int) WeChatOption {
	return func(w *WeChat) {
		w.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithWeChatLogger sets a logger.
func WithWeChatLogger(logger *slog.Logger) WeChatOption {
	return func(w *WeChat) {
		w.logger = logger
	}
}

// NewWeChat creates a WeChat moderator.
func NewWeChat(appID, appSecret string, opts ...WeChatOption) (*WeChat, error) {
	if appID == "" || appSecret == "" {
		return nil, errors.New("wechat moderator requires app id and app secret")
	}
	w := &WeChat{
		appID:      appID,
		appSecret:  appSecret,
		baseURL:    DefaultWeChatBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		tokens:     cache.New(time.Hour, 10*time.Minute),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
}

type secCheckResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
	Result  *struct {
		Suggest string `json:"suggest"`
		Label   int    `json:"label"`
	} `json:"result,omitempty"`
}

// accessToken returns the cached token. Concurrent misses share one fetch.
func (w *WeChat) accessToken(ctx context.Context) (string, error) {
	if tok, ok := w.tokens.Get(tokenCacheKey); ok {
		return tok.(string), nil
	}
	tok, err, _ := w.fetches.Do(tokenCacheKey, func() (interface{}, error) {
		if tok, ok := w.tokens.Get(tokenCacheKey); ok {
			return tok, nil
		}
		return w.fetchAccessToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return tok.(string), nil
}

func (w *WeChat) fetchAccessToken(ctx context.Context) (string, error) {
	params := url.Values{}
	params.Set("grant_type", "client_credential")
	params.Set("appid", w.appID)
	params.Set("secret", w.appSecret)

	var resp tokenResponse
	if err := w.do(ctx, http.MethodGet, "/cgi-bin/token?"+params.Encode(), nil, "", &resp); err != nil {
		return "", fmt.Errorf("fetch access token: %w", err)
	}
	if resp.ErrCode != 0 || resp.AccessToken == "" {
		return "", fmt.Errorf("fetch access token: errcode %d: %s", resp.ErrCode, resp.ErrMsg)
	}

	ttl := time.Duration(resp.ExpiresIn-300) * time.Second
	if ttl < time.Minute {
		ttl = time.Minute
	}
	w.tokens.Set(tokenCacheKey, resp.AccessToken, ttl)
	return resp.AccessToken, nil
}

// CheckText screens text with msg_sec_check. Version 2 needs the caller's
// openid.
func (w *WeChat) CheckText(ctx context.Context, check simplecms.TextCheck) (simplecms.Verdict, error) {
	payload := map[string]interface{}{"content": check.Content}
	if check.Version >= 2 {
		if check.OpenID == "" {
			return simplecms.Verdict{}, ErrOpenIDRequired
		}
		payload["version"] = check.Version
		payload["scene"] = check.Scene
		payload["openid"] = check.OpenID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return simplecms.Verdict{}, err
	}
	return w.secCheck(ctx, "/wxa/msg_sec_check", body, "application/json")
}

// CheckImage downloads the image and screens it with img_sec_check.
func (w *WeChat) CheckImage(ctx context.Context, check simplecms.ImageCheck) (simplecms.Verdict, error) {
	data, err := w.download(ctx, check.URL)
	if err != nil {
		return simplecms.Verdict{}, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	name := path.Base(check.URL)
	if u, err := url.Parse(check.URL); err == nil {
		name = path.Base(u.Path)
	}
	part, err := mw.CreateFormFile("media", name)
	if err != nil {
		return simplecms.Verdict{}, err
	}
	if _, err := part.Write(data); err != nil {
		return simplecms.Verdict{}, err
	}
	if err := mw.Close(); err != nil {
		return simplecms.Verdict{}, err
	}

	return w.secCheck(ctx, "/wxa/img_sec_check", buf.Bytes(), mw.FormDataContentType())
}

func (w *WeChat) secCheck(ctx context.Context, endpoint string, body []byte, contentType string) (simplecms.Verdict, error) {
	token, err := w.accessToken(ctx)
	if err != nil {
		return simplecms.Verdict{}, err
	}

	var resp secCheckResponse
	if err := w.do(ctx, http.MethodPost, endpoint+"?access_token="+url.QueryEscape(token), body, contentType, &resp); err != nil {
		return simplecms.Verdict{}, err
	}

	switch {
	case resp.ErrCode == 0:
		if resp.Result != nil && resp.Result.Suggest != "" && resp.Result.Suggest != "pass" {
			return simplecms.Verdict{Status: simplecms.VerdictRisk, Code: resp.Result.Label, Message: resp.Result.Suggest}, nil
		}
		return simplecms.Clean, nil
	case resp.ErrCode == RiskyContentCode:
		return simplecms.Verdict{Status: simplecms.VerdictRisk, Code: resp.ErrCode, Message: resp.ErrMsg}, nil
	case tokenErrorCodes[resp.ErrCode]:
		w.tokens.Delete(tokenCacheKey)
		w.logger.WarnContext(ctx, "wechat access token rejected", "errcode", resp.ErrCode)
	}
	return simplecms.Verdict{Status: simplecms.VerdictError, Code: resp.ErrCode, Message: resp.ErrMsg}, nil
}

func (w *WeChat) download(ctx context.Context, imageURL string) ([]byte, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("download image: larger than %d bytes", maxImageBytes)
	}
	return data, nil
}

func (w *WeChat) do(ctx context.Context, method, endpoint string, body []byte, contentType string, result interface{}) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, w.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("wechat API error: status %d: %s", resp.StatusCode, msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
