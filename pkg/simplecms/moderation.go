package simplecms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-cms/pkg/simplecms/delta"
)

// CheckType enables screening for a kind of field.
type CheckType string

const (
	// CheckContent screens title, excerpt and body text.
	CheckContent CheckType = "content"
	// CheckImage screens thumbnails.
	CheckImage CheckType = "image"
)

// Default provider discriminators.
const (
	DefaultScene   = 1
	DefaultVersion = 1
)

// ScreenInput holds the fields of one write that are subject to screening.
// Empty fields are skipped.
type ScreenInput struct {
	Title     string
	Excerpt   string
	Content   *delta.Delta
	Thumbnail ImageRefs
}

// ModerationGate screens article fields through a Moderator.
type ModerationGate struct {
	moderator Moderator
	resolver  URLResolver
	checks    []CheckType
	scene     int
	version   int
}

// NewModerationGate creates a gate. A nil moderator is only valid when no
// check types are enabled.
func NewModerationGate(moderator Moderator, resolver URLResolver, checks []CheckType, scene, version int) (*ModerationGate, error) {
	if moderator == nil && len(checks) > 0 {
		return nil, fmt.Errorf("%w: moderation provider required when checks %v are enabled", ErrConfigurationMissing, checks)
	}
	if scene == 0 {
		scene = DefaultScene
	}
	if version == 0 {
		version = DefaultVersion
	}
	return &ModerationGate{
		moderator: moderator,
		resolver:  resolver,
		checks:    checks,
		scene:     scene,
		version:   version,
	}, nil
}

func (g *ModerationGate) enabled(t CheckType) bool {
	return slices.Contains(g.checks, t)
}

// Screen checks every non-empty field concurrently. Images in the thumbnail
// list are checked one after another. The first rejection or failure is
// returned once all started checks have finished.
func (g *ModerationGate) Screen(ctx context.Context, req Requester, in ScreenInput) error {
	checkText := g.enabled(CheckContent)
	checkImage := g.enabled(CheckImage)
	if !checkText && !checkImage {
		return nil
	}

	var body []byte
	if checkText && !in.Content.Empty() {
		var err error
		if body, err = json.Marshal(in.Content); err != nil {
			return &ScreeningError{Field: FieldContent, Err: err}
		}
	}

	eg, ctx := errgroup.WithContext(ctx)

	if checkText {
		if in.Title != "" {
			eg.Go(func() error { return g.checkText(ctx, req, FieldTitle, in.Title) })
		}
		if in.Excerpt != "" {
			eg.Go(func() error { return g.checkText(ctx, req, FieldExcerpt, in.Excerpt) })
		}
		if body != nil {
			eg.Go(func() error { return g.checkText(ctx, req, FieldContent, string(body)) })
		}
	}

	if checkImage && len(in.Thumbnail) > 0 {
		refs := append(ImageRefs(nil), in.Thumbnail...)
		eg.Go(func() error { return g.checkImages(ctx, req, FieldThumbnail, refs) })
	}

	return eg.Wait()
}

func (g *ModerationGate) checkText(ctx context.Context, req Requester, field Field, text string) error {
	verdict, err := g.moderator.CheckText(ctx, TextCheck{
		Content:   text,
		RequestID: req.RequestID,
		OpenID:    req.OpenID,
		Scene:     g.scene,
		Version:   g.version,
	})
	if err != nil {
		return &ScreeningError{Field: field, Err: err}
	}
	return verdictError(field, verdict)
}

func (g *ModerationGate) checkImages(ctx context.Context, req Requester, field Field, refs ImageRefs) error {
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return &ScreeningError{Field: field, Err: err}
		}

		url := ref
		if isStorageReference(ref) {
			if g.resolver == nil {
				return &ScreeningError{Field: field, Err: fmt.Errorf("no resolver for %s", ref)}
			}
			resolved, err := g.resolver.Resolve(ctx, ref)
			if err != nil {
				return &ScreeningError{Field: field, Err: fmt.Errorf("resolve %s: %w", ref, err)}
			}
			url = resolved
		}

		verdict, err := g.moderator.CheckImage(ctx, ImageCheck{
			URL:       url,
			RequestID: req.RequestID,
			Scene:     g.scene,
			Version:   g.version,
		})
		if err != nil {
			return &ScreeningError{Field: field, Err: err}
		}
		if err := verdictError(field, verdict); err != nil {
			return err
		}
	}
	return nil
}

func verdictError(field Field, v Verdict) error {
	switch v.Status {
	case VerdictClean:
		return nil
	case VerdictRisk:
		return &PolicyError{Field: field, Message: field.RejectionMessage()}
	default:
		msg := v.Message
		if msg == "" {
			msg = "provider returned an error verdict"
		}
		return &ScreeningError{Field: field, Code: v.Code, Err: errors.New(msg)}
	}
}
