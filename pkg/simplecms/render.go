package simplecms

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/tendant/simple-cms/pkg/simplecms/delta"
)

var blockClientPattern = regexp.MustCompile(`(?i)uni-app-x`)

// IsBlockClient reports whether the user agent belongs to a client that
// renders block-structured content natively.
func IsBlockClient(userAgent string) bool {
	return blockClientPattern.MatchString(userAgent)
}

// isStorageReference reports whether ref names an object in storage rather
// than a fetchable URL.
func isStorageReference(ref string) bool {
	scheme, _, ok := strings.Cut(ref, "://")
	if !ok {
		return false
	}
	switch strings.ToLower(scheme) {
	case "http", "https":
		return false
	}
	return scheme != ""
}

// BlockTransformer turns a delta into the representation a client can display.
type BlockTransformer struct {
	resolver URLResolver
	logger   *slog.Logger
}

// NewBlockTransformer creates a transformer. The resolver, when set, turns
// storage references in image sources into temporary URLs.
func NewBlockTransformer(resolver URLResolver, logger *slog.Logger) *BlockTransformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &BlockTransformer{resolver: resolver, logger: logger}
}

// Render converts content for the client identified by userAgent: a block
// list for block clients, one HTML string otherwise.
func (t *BlockTransformer) Render(ctx context.Context, userAgent string, content *delta.Delta) (*RenderedContent, error) {
	var ops []delta.Op
	if content != nil {
		ops = content.Ops
	}
	if IsBlockClient(userAgent) {
		blocks, err := t.Blocks(ctx, ops)
		if err != nil {
			return nil, err
		}
		return &RenderedContent{Format: FormatBlocks, Blocks: blocks}, nil
	}
	html, err := t.converter(ctx).Convert(ops)
	if err != nil {
		return nil, err
	}
	return &RenderedContent{Format: FormatHTML, HTML: html}, nil
}

// Blocks segments ops into rich-text runs and standalone embed blocks.
func (t *BlockTransformer) Blocks(ctx context.Context, ops []delta.Op) ([]RenderBlock, error) {
	conv := t.converter(ctx)
	blocks := []RenderBlock{}
	var run []delta.Op

	flush := func() error {
		if run == nil {
			return nil
		}
		text := run
		run = nil
		if text[len(text)-1].IsNewline() {
			text = text[:len(text)-1]
		}
		html, err := conv.Convert(text)
		if err != nil {
			return err
		}
		blocks = append(blocks, RenderBlock{Type: BlockRichText, Data: html})
		return nil
	}

	for i := 0; i < len(ops); i++ {
		op := ops[i]
		if !op.IsBlockEmbed() {
			run = append(run, op)
			continue
		}

		if err := flush(); err != nil {
			return nil, err
		}
		block := RenderBlock{Type: op.EmbedKind(), Data: op.Clone()}
		if op.IsEmbed(delta.EmbedImage) {
			block.Source = t.imageSource(ctx, op)
		}
		blocks = append(blocks, block)

		if i+1 < len(ops) && ops[i+1].IsNewline() {
			i++
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return blocks, nil
}

func (t *BlockTransformer) converter(ctx context.Context) *delta.HTMLConverter {
	return delta.NewHTMLConverter(delta.WithImageSource(func(op delta.Op) string {
		return t.imageSource(ctx, op)
	}))
}

func (t *BlockTransformer) imageSource(ctx context.Context, op delta.Op) string {
	src := op.ImageSource()
	if t.resolver == nil || !isStorageReference(src) {
		return src
	}
	resolved, err := t.resolver.Resolve(ctx, src)
	if err != nil {
		t.logger.WarnContext(ctx, "failed to resolve image source", "source", src, "error", err)
		return src
	}
	return resolved
}
