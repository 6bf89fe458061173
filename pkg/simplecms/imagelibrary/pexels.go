package imagelibrary

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// DefaultPexelsBaseURL is the Pexels API host.
const DefaultPexelsBaseURL = "https://api.pexels.com/v1"

// Pexels searches photos on pexels.com.
type Pexels struct {
	client *client
}

// NewPexels creates a Pexels provider.
func NewPexels(apiKey string, opts ...Option) (*Pexels, error) {
	if apiKey == "" {
		return nil, errors.New("pexels provider requires an api key")
	}
	c := newClient("pexels", DefaultPexelsBaseURL, opts)
	c.header.Set("Authorization", apiKey)
	return &Pexels{client: c}, nil
}

func (p *Pexels) Info() ProviderInfo {
	return ProviderInfo{Provider: "pexels", Name: "Pexels", Website: "https://www.pexels.com"}
}

type pexelsPhoto struct {
	ID          int64  `json:"id"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Description string `json:"description"`
	Alt         string `json:"alt"`
	Src         struct {
		Original string `json:"original"`
		Tiny     string `json:"tiny"`
	} `json:"src"`
}

func (p pexelsPhoto) image() Image {
	return Image{
		ID:          strconv.FormatInt(p.ID, 10),
		URL:         p.Src.Original,
		ThumbURL:    p.Src.Tiny,
		Width:       p.Width,
		Height:      p.Height,
		Description: p.Description,
		Alt:         p.Alt,
	}
}

func (p *Pexels) Search(ctx context.Context, params SearchParams) ([]Image, error) {
	params = params.normalize()
	q := url.Values{}
	q.Set("query", params.Keyword)
	q.Set("page", strconv.Itoa(params.Page))
	q.Set("per_page", strconv.Itoa(params.PageSize))

	var resp struct {
		Photos []pexelsPhoto `json:"photos"`
	}
	if err := p.client.get(ctx, "/search", q, &resp); err != nil {
		return nil, err
	}

	images := make([]Image, 0, len(resp.Photos))
	for _, photo := range resp.Photos {
		img := photo.image()
		img.OriginalName = img.ID
		images = append(images, img)
	}
	return images, nil
}

// Detail derives the file name and type from the original image URL.
func (p *Pexels) Detail(ctx context.Context, id string) (*Image, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: pexels id is required", ErrInvalidParams)
	}
	var photo pexelsPhoto
	if err := p.client.get(ctx, "/photos/"+url.PathEscape(id), nil, &photo); err != nil {
		return nil, err
	}

	img := photo.image()
	img.OriginalName, img.FileType = pexelsFileName(img.URL)
	return &img, nil
}

func pexelsFileName(rawURL string) (name, fileType string) {
	if u, err := url.Parse(rawURL); err == nil {
		rawURL = u.Path
	}
	name = path.Base(rawURL)
	if name == "." || name == "/" {
		return "", "jpeg"
	}
	fileType = "jpeg"
	if parts := strings.Split(name, "."); len(parts) > 1 && parts[1] != "" {
		fileType = parts[1]
	}
	return name, fileType
}
