package simplecms

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/tendant/simple-cms/pkg/simplecms/delta"
)

// UnlockRecordFinder looks up unlock records.
type UnlockRecordFinder interface {
	FindUnlockRecord(ctx context.Context, uniqueID string, articleID uuid.UUID) (*UnlockRecord, error)
}

// UnlockGate restricts paywalled content to requesters holding an unlock
// record.
type UnlockGate struct {
	records    UnlockRecordFinder
	uniqueType UniqueType
}

// NewUnlockGate creates an unlock gate keyed by the given identity strategy.
func NewUnlockGate(records UnlockRecordFinder, uniqueType UniqueType) *UnlockGate {
	if uniqueType == "" {
		uniqueType = UniqueTypeDevice
	}
	return &UnlockGate{records: records, uniqueType: uniqueType}
}

// Teaser returns the ops up to and including the first unlock marker, and
// whether a marker was found. Without a marker the ops are returned as-is.
func Teaser(ops []delta.Op) ([]delta.Op, bool) {
	for i, op := range ops {
		if op.IsEmbed(delta.EmbedUnlockContent) {
			prefix := make([]delta.Op, i+1)
			for j := range prefix {
				prefix[j] = ops[j].Clone()
			}
			return prefix, true
		}
	}
	return ops, false
}

// Unlocked returns a copy of ops with every unlock marker replaced by a bare
// line break.
func Unlocked(ops []delta.Op) []delta.Op {
	out := make([]delta.Op, len(ops))
	for i, op := range ops {
		if op.IsEmbed(delta.EmbedUnlockContent) {
			out[i] = delta.Text(delta.Newline, nil)
			continue
		}
		out[i] = op.Clone()
	}
	return out
}

// Apply gates content for req. Lookup failures other than not-found are
// returned.
func (g *UnlockGate) Apply(ctx context.Context, req Requester, articleID uuid.UUID, content *delta.Delta) (*delta.Delta, error) {
	if content.Empty() {
		return content, nil
	}
	prefix, locked := Teaser(content.Ops)
	if !locked {
		return content, nil
	}

	identity := req.Identity(g.uniqueType)
	if identity == "" || articleID == uuid.Nil || g.records == nil {
		return &delta.Delta{Ops: prefix}, nil
	}

	if _, err := g.records.FindUnlockRecord(ctx, identity, articleID); err != nil {
		if errors.Is(err, ErrUnlockRecordNotFound) {
			return &delta.Delta{Ops: prefix}, nil
		}
		return nil, &ArticleError{ArticleID: articleID, Op: "unlock lookup", Err: err}
	}
	return &delta.Delta{Ops: Unlocked(content.Ops)}, nil
}
