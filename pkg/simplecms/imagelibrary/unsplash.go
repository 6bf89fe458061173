package imagelibrary

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// DefaultUnsplashBaseURL is the Unsplash API host.
const DefaultUnsplashBaseURL = "https://api.unsplash.com"

// UnsplashConfig holds Unsplash credentials. All three are required.
type UnsplashConfig struct {
	AppID     string `yaml:"app_id" json:"app_id" env:"UNSPLASH_APP_ID"`
	AccessKey string `yaml:"access_key" json:"access_key" env:"UNSPLASH_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" json:"secret_key" env:"UNSPLASH_SECRET_KEY"`
}

func (c UnsplashConfig) complete() bool {
	return c.AppID != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Unsplash searches photos on unsplash.com.
type Unsplash struct {
	client *client
}

// NewUnsplash creates an Unsplash provider.
func NewUnsplash(cfg UnsplashConfig, opts ...Option) (*Unsplash, error) {
	if !cfg.complete() {
		return nil, errors.New("unsplash provider requires app id, access key and secret key")
	}
	c := newClient("unsplash", DefaultUnsplashBaseURL, opts)
	c.header.Set("Authorization", "Client-ID "+cfg.AccessKey)
	return &Unsplash{client: c}, nil
}

func (u *Unsplash) Info() ProviderInfo {
	return ProviderInfo{Provider: "unsplash", Name: "Unsplash", Website: "https://unsplash.com"}
}

type unsplashPhoto struct {
	ID             string `json:"id"`
	Slug           string `json:"slug"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Description    string `json:"description"`
	AltDescription string `json:"alt_description"`
	URLs           struct {
		Raw   string `json:"raw"`
		Thumb string `json:"thumb"`
	} `json:"urls"`
}

func (p unsplashPhoto) image() Image {
	return Image{
		ID:           p.ID,
		URL:          p.URLs.Raw,
		ThumbURL:     p.URLs.Thumb,
		Width:        p.Width,
		Height:       p.Height,
		Description:  p.Description,
		Alt:          p.AltDescription,
		OriginalName: firstNonEmpty(p.Slug, p.ID),
	}
}

func (u *Unsplash) Search(ctx context.Context, params SearchParams) ([]Image, error) {
	params = params.normalize()
	q := url.Values{}
	q.Set("query", params.Keyword)
	q.Set("page", strconv.Itoa(params.Page))
	q.Set("per_page", strconv.Itoa(params.PageSize))

	var resp struct {
		Results []unsplashPhoto `json:"results"`
	}
	if err := u.client.get(ctx, "/search/photos", q, &resp); err != nil {
		return nil, err
	}

	images := make([]Image, 0, len(resp.Results))
	for _, p := range resp.Results {
		images = append(images, p.image())
	}
	return images, nil
}

func (u *Unsplash) Detail(ctx context.Context, id string) (*Image, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: unsplash id is required", ErrInvalidParams)
	}
	var p unsplashPhoto
	if err := u.client.get(ctx, "/photos/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	img := p.image()
	return &img, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
