package simplecms

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-cms/pkg/simplecms/delta"
)

// CreateArticleRequest contains parameters for creating an article
type CreateArticleRequest struct {
	Status    ArticleStatus `json:"status"`
	Title     string        `json:"title"`
	Excerpt   string        `json:"excerpt,omitempty"`
	Thumbnail ImageRefs     `json:"thumbnail,omitempty"`
	Content   *delta.Delta  `json:"content,omitempty"`
}

// ReadQuery selects articles and the fields the caller wants.
type ReadQuery struct {
	ArticleID *uuid.UUID
	Status    *ArticleStatus
	Fields    []string
	Limit     int
	Offset    int
}

// Requests reports whether field is part of the projection. An empty field
// list selects everything.
func (q *ReadQuery) Requests(field string) bool {
	return len(q.Fields) == 0 || q.Explicit(field)
}

// Explicit reports whether field was named in the projection.
func (q *ReadQuery) Explicit(field string) bool {
	return slices.Contains(q.Fields, field)
}

// Filter converts the query to a repository filter.
func (q *ReadQuery) Filter() ArticleFilter {
	return ArticleFilter{ID: q.ArticleID, Status: q.Status, Limit: q.Limit, Offset: q.Offset}
}

// ReadResult is the outcome of a read.
type ReadResult struct {
	Data []*ArticleView `json:"data"`
}

// ArticleView is an article as returned to readers.
type ArticleView struct {
	ID            uuid.UUID        `json:"id"`
	Status        ArticleStatus    `json:"status"`
	Title         string           `json:"title"`
	Excerpt       string           `json:"excerpt,omitempty"`
	Thumbnail     ImageRefs        `json:"thumbnail,omitempty"`
	ViewCount     int64            `json:"view_count"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	Content       *RenderedContent `json:"content,omitempty"`
	ContentImages []string         `json:"content_images,omitempty"`

	// Raw is the stored document the pipeline renders from.
	Raw *delta.Delta `json:"-"`
}

func newArticleView(a *Article, q *ReadQuery) *ArticleView {
	v := &ArticleView{
		ID:        a.ID,
		Status:    a.Status,
		Title:     a.Title,
		Excerpt:   a.Excerpt,
		Thumbnail: a.Thumbnail,
		ViewCount: a.ViewCount,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if q.Requests("content") && a.Content != nil {
		v.Raw = a.Content.Clone()
		v.Content = &RenderedContent{Format: FormatDelta, Delta: v.Raw}
	}
	return v
}

// ContentFormat says how RenderedContent is serialized.
type ContentFormat string

const (
	FormatDelta  ContentFormat = "delta"
	FormatHTML   ContentFormat = "html"
	FormatBlocks ContentFormat = "blocks"
)

// RenderedContent is article content in the form the client can display.
type RenderedContent struct {
	Format ContentFormat
	Delta  *delta.Delta
	HTML   string
	Blocks []RenderBlock
}

// MarshalJSON writes a delta object, an HTML string or a block array.
func (c RenderedContent) MarshalJSON() ([]byte, error) {
	switch c.Format {
	case FormatHTML:
		return json.Marshal(c.HTML)
	case FormatBlocks:
		if c.Blocks == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.Blocks)
	default:
		return json.Marshal(c.Delta)
	}
}

// BlockRichText is the type of blocks holding converted HTML.
const BlockRichText = "rich-text"

// RenderBlock is one unit of block-structured output. Data is an HTML string
// for rich-text blocks and the original op for embed blocks.
type RenderBlock struct {
	Type   string `json:"type"`
	Data   any    `json:"data"`
	Source string `json:"source,omitempty"`
}

// ReportMediaRequest contains parameters for recording a media-library item
type ReportMediaRequest struct {
	Src          string  `json:"src" validate:"required"`
	Cover        string  `json:"cover,omitempty"`
	Type         string  `json:"type" validate:"required,oneof=image video"`
	OriginalName string  `json:"original_name,omitempty"`
	FileType     string  `json:"file_type,omitempty"`
	Size         int64   `json:"size,omitempty" validate:"gte=0"`
	Width        int     `json:"width,omitempty" validate:"gte=0"`
	Height       int     `json:"height,omitempty" validate:"gte=0"`
	Duration     float64 `json:"duration,omitempty" validate:"gte=0"`
	Description  string  `json:"description,omitempty"`
	Alt          string  `json:"alt,omitempty"`
}
