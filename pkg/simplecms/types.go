package simplecms

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-cms/pkg/simplecms/delta"
)

// ArticleStatus is the publication state of an article.
type ArticleStatus string

// Article status constants (typed).
const (
	ArticleStatusDraft     ArticleStatus = "draft"
	ArticleStatusPublished ArticleStatus = "published"
)

// Valid reports whether s is a known status.
func (s ArticleStatus) Valid() bool {
	return s == ArticleStatusDraft || s == ArticleStatusPublished
}

// UnmarshalJSON accepts the string form and the numeric form stored by
// older clients (0 = draft, 1 = published).
func (s *ArticleStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = ArticleStatus(str)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid article status %s", data)
	}
	switch n {
	case 0:
		*s = ArticleStatusDraft
	case 1:
		*s = ArticleStatusPublished
	default:
		return fmt.Errorf("invalid article status %d", n)
	}
	return nil
}

// ImageRefs is one or more image references. JSON accepts a single string or
// an array of strings.
type ImageRefs []string

// UnmarshalJSON accepts "ref", ["a","b"] and null.
func (r *ImageRefs) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*r = ImageRefs{}
		} else {
			*r = ImageRefs{single}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("thumbnail must be a string or a list of strings")
	}
	*r = list
	return nil
}

// Article is a stored article document.
type Article struct {
	ID        uuid.UUID     `json:"id"`
	Status    ArticleStatus `json:"status"`
	Title     string        `json:"title"`
	Excerpt   string        `json:"excerpt,omitempty"`
	Thumbnail ImageRefs     `json:"thumbnail,omitempty"`
	Content   *delta.Delta  `json:"content,omitempty"`
	ViewCount int64         `json:"view_count"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Clone returns a deep copy of the article.
func (a *Article) Clone() *Article {
	if a == nil {
		return nil
	}
	c := *a
	if a.Thumbnail != nil {
		c.Thumbnail = append(ImageRefs(nil), a.Thumbnail...)
	}
	c.Content = a.Content.Clone()
	return &c
}

// ArticlePatch holds the fields of an update. Nil fields are left unchanged;
// Content replaces the stored document wholesale.
type ArticlePatch struct {
	Status    *ArticleStatus `json:"status,omitempty"`
	Title     *string        `json:"title,omitempty"`
	Excerpt   *string        `json:"excerpt,omitempty"`
	Thumbnail ImageRefs      `json:"thumbnail,omitempty"`
	Content   *delta.Delta   `json:"content,omitempty"`
}

// Apply writes the patch onto a.
func (p ArticlePatch) Apply(a *Article) {
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Excerpt != nil {
		a.Excerpt = *p.Excerpt
	}
	if p.Thumbnail != nil {
		a.Thumbnail = append(ImageRefs(nil), p.Thumbnail...)
	}
	if p.Content != nil {
		a.Content = p.Content.Clone()
	}
}

// ArticleFilter selects articles by equality.
type ArticleFilter struct {
	ID     *uuid.UUID
	Status *ArticleStatus
	Limit  int
	Offset int
}

// UnlockRecord grants an identity access to the locked part of an article.
type UnlockRecord struct {
	UniqueID  string    `json:"unique_id"`
	ArticleID uuid.UUID `json:"article_id"`
	CreatedAt time.Time `json:"created_at"`
}

// UniqueType selects which requester identity unlock records are keyed by.
type UniqueType string

const (
	UniqueTypeUser   UniqueType = "user"
	UniqueTypeDevice UniqueType = "device"
)

// Requester is the opaque identity and client information of a request.
type Requester struct {
	UserID    string
	DeviceID  string
	AppID     string
	UserAgent string
	RequestID string
	// OpenID is the WeChat openid of the caller, required by version 2
	// text screening.
	OpenID string
}

// Identity returns the unlock identity for the given strategy.
func (r Requester) Identity(t UniqueType) string {
	if t == UniqueTypeUser {
		return r.UserID
	}
	return r.DeviceID
}

// VerdictStatus is the outcome of a moderation check.
type VerdictStatus string

const (
	VerdictClean VerdictStatus = "clean"
	VerdictRisk  VerdictStatus = "risk"
	VerdictError VerdictStatus = "error"
)

// Verdict is the result of screening one piece of text or one image.
type Verdict struct {
	Status  VerdictStatus `json:"status"`
	Code    int           `json:"code,omitempty"`
	Message string        `json:"message,omitempty"`
}

// Clean is the verdict for content that passed screening.
var Clean = Verdict{Status: VerdictClean}

// Media is a media-library record.
type Media struct {
	ID           uuid.UUID `json:"id"`
	Src          string    `json:"src"`
	Cover        string    `json:"cover,omitempty"`
	Type         string    `json:"type"`
	OriginalName string    `json:"original_name,omitempty"`
	FileType     string    `json:"file_type,omitempty"`
	Size         int64     `json:"size,omitempty"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	Duration     float64   `json:"duration,omitempty"`
	UploadUser   string    `json:"upload_user,omitempty"`
	Description  string    `json:"description,omitempty"`
	Alt          string    `json:"alt,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
