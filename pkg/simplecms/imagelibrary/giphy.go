package imagelibrary

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

const (
	// DefaultGiphyBaseURL is the Giphy API host.
	DefaultGiphyBaseURL = "https://api.giphy.com/v1"

	// MaxGiphyPageSize is the largest page Giphy serves.
	MaxGiphyPageSize = 50
)

// Giphy searches animated images on giphy.com. Images are served as webp.
type Giphy struct {
	client *client
	apiKey string
}

// NewGiphy creates a Giphy provider.
func NewGiphy(apiKey string, opts ...Option) (*Giphy, error) {
	if apiKey == "" {
		return nil, errors.New("giphy provider requires an api key")
	}
	return &Giphy{client: newClient("giphy", DefaultGiphyBaseURL, opts), apiKey: apiKey}, nil
}

func (g *Giphy) Info() ProviderInfo {
	return ProviderInfo{Provider: "giphy", Name: "Giphy", Website: "https://giphy.com"}
}

type giphyMeta struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
}

// Giphy encodes image dimensions as strings.
type giphyGIF struct {
	ID      string `json:"id"`
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	AltText string `json:"alt_text"`
	Images  struct {
		Original struct {
			WebP     string `json:"webp"`
			Width    string `json:"width"`
			Height   string `json:"height"`
			WebPSize string `json:"webp_size"`
		} `json:"original"`
		PreviewGIF struct {
			URL string `json:"url"`
		} `json:"preview_gif"`
	} `json:"images"`
}

func (g giphyGIF) image() Image {
	orig := g.Images.Original
	width, _ := strconv.Atoi(orig.Width)
	height, _ := strconv.Atoi(orig.Height)
	size, _ := strconv.ParseInt(orig.WebPSize, 10, 64)
	return Image{
		ID:           g.ID,
		URL:          orig.WebP,
		ThumbURL:     g.Images.PreviewGIF.URL,
		Width:        width,
		Height:       height,
		Size:         size,
		Description:  g.Title,
		Alt:          g.AltText,
		OriginalName: firstNonEmpty(g.Slug, g.ID),
		FileType:     "webp",
	}
}

func checkGiphyMeta(meta *giphyMeta) error {
	if meta != nil && meta.Status != 0 && meta.Status != 200 {
		return &APIError{Provider: "giphy", StatusCode: meta.Status, Message: meta.Msg}
	}
	return nil
}

func (g *Giphy) Search(ctx context.Context, params SearchParams) ([]Image, error) {
	params = params.normalize()
	if params.PageSize > MaxGiphyPageSize {
		return nil, fmt.Errorf("%w: pageSize should not be greater than %d", ErrInvalidParams, MaxGiphyPageSize)
	}
	q := url.Values{}
	q.Set("api_key", g.apiKey)
	q.Set("q", params.Keyword)
	q.Set("offset", strconv.Itoa((params.Page-1)*params.PageSize))
	q.Set("limit", strconv.Itoa(params.PageSize))

	var resp struct {
		Data []giphyGIF `json:"data"`
		Meta *giphyMeta `json:"meta"`
	}
	if err := g.client.get(ctx, "/gifs/search", q, &resp); err != nil {
		return nil, err
	}
	if err := checkGiphyMeta(resp.Meta); err != nil {
		return nil, err
	}

	images := make([]Image, 0, len(resp.Data))
	for _, gif := range resp.Data {
		img := gif.image()
		img.FileType = ""
		images = append(images, img)
	}
	return images, nil
}

func (g *Giphy) Detail(ctx context.Context, id string) (*Image, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: giphy id is required", ErrInvalidParams)
	}
	q := url.Values{}
	q.Set("api_key", g.apiKey)

	var resp struct {
		Data giphyGIF   `json:"data"`
		Meta *giphyMeta `json:"meta"`
	}
	if err := g.client.get(ctx, "/gifs/"+url.PathEscape(id), q, &resp); err != nil {
		return nil, err
	}
	if err := checkGiphyMeta(resp.Meta); err != nil {
		return nil, err
	}
	img := resp.Data.image()
	return &img, nil
}
