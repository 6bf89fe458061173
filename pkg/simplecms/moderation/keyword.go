package moderation

import (
	"context"
	"errors"
	"strings"

	"github.com/tendant/simple-cms/pkg/simplecms"
)

// Noop passes everything.
type Noop struct{}

func (Noop) CheckText(ctx context.Context, check simplecms.TextCheck) (simplecms.Verdict, error) {
	return simplecms.Clean, nil
}

func (Noop) CheckImage(ctx context.Context, check simplecms.ImageCheck) (simplecms.Verdict, error) {
	return simplecms.Clean, nil
}

// Keyword flags text containing any configured term, case-insensitively.
// Images always pass.
type Keyword struct {
	terms []string
}

// NewKeyword creates a keyword moderator. Blank terms are ignored.
func NewKeyword(terms []string) (*Keyword, error) {
	k := &Keyword{}
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			k.terms = append(k.terms, term)
		}
	}
	if len(k.terms) == 0 {
		return nil, errors.New("keyword moderator requires at least one term")
	}
	return k, nil
}

func (k *Keyword) CheckText(ctx context.Context, check simplecms.TextCheck) (simplecms.Verdict, error) {
	text := strings.ToLower(check.Content)
	for _, term := range k.terms {
		if strings.Contains(text, term) {
			return simplecms.Verdict{Status: simplecms.VerdictRisk, Message: "matched term " + term}, nil
		}
	}
	return simplecms.Clean, nil
}

func (k *Keyword) CheckImage(ctx context.Context, check simplecms.ImageCheck) (simplecms.Verdict, error) {
	return simplecms.Clean, nil
}
