package simplecms

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrArticleNotFound indicates an article was not found
	ErrArticleNotFound = errors.New("article not found")

	// ErrUnlockRecordNotFound indicates the requester has not unlocked the article
	ErrUnlockRecordNotFound = errors.New("unlock record not found")

	// ErrPolicyRejection indicates the moderation provider flagged a field
	ErrPolicyRejection = errors.New("content rejected by moderation policy")

	// ErrScreeningUnavailable indicates a field could not be screened
	ErrScreeningUnavailable = errors.New("content screening unavailable")

	// ErrConfigurationMissing indicates required settings are absent
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrIdentityRequired indicates the requester carries no unlock identity
	ErrIdentityRequired = errors.New("requester identity required")

	// ErrInvalidArticle indicates a malformed create or update request
	ErrInvalidArticle = errors.New("invalid article")
)

// Field names a screened article field.
type Field string

const (
	FieldTitle     Field = "title"
	FieldExcerpt   Field = "excerpt"
	FieldContent   Field = "content"
	FieldThumbnail Field = "thumbnail"
)

// RejectionMessage is the user-facing message for a flagged field.
func (f Field) RejectionMessage() string {
	if f == FieldThumbnail {
		return "thumbnail violates content policy"
	}
	return string(f) + " contains sensitive terms"
}

// PolicyError is returned when a field was screened and judged risky.
type PolicyError struct {
	Field   Field
	Message string
}

func (e *PolicyError) Error() string {
	return e.Message
}

// Is matches ErrPolicyRejection.
func (e *PolicyError) Is(target error) bool {
	return target == ErrPolicyRejection
}

// ScreeningError is returned when a field could not be screened.
type ScreeningError struct {
	Field Field
	Code  int
	Err   error
}

func (e *ScreeningError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("content security check error: %s: code %d: %v", e.Field, e.Code, e.Err)
	}
	return fmt.Sprintf("content security check error: %s: %v", e.Field, e.Err)
}

func (e *ScreeningError) Unwrap() error {
	return e.Err
}

// Is matches ErrScreeningUnavailable.
func (e *ScreeningError) Is(target error) bool {
	return target == ErrScreeningUnavailable
}

// ArticleError represents an error related to article operations
type ArticleError struct {
	ArticleID uuid.UUID
	Op        string
	Err       error
}

func (e *ArticleError) Error() string {
	return fmt.Sprintf("article operation %s failed for article %s: %v", e.Op, e.ArticleID, e.Err)
}

func (e *ArticleError) Unwrap() error {
	return e.Err
}

func errClientAppIDsMissing() error {
	return fmt.Errorf("%w: set CLIENT_APP_IDS to the app ids allowed to read articles", ErrConfigurationMissing)
}
