package delta

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func convert(t *testing.T, ops ...Op) string {
	t.Helper()
	out, err := NewHTMLConverter().Convert(ops)
	require.NoError(t, err)
	return out
}

func TestConvertParagraphs(t *testing.T) {
	assert.Equal(t, "<p>Hello</p>", convert(t, Text("Hello\n", nil)))
	assert.Equal(t, "<p>a</p><p>b</p>", convert(t, Text("a\nb\n", nil)))
	assert.Equal(t, "<p><br/></p>", convert(t, Text("\n", nil)))
	assert.Equal(t, "<p>tail</p>", convert(t, Text("tail", nil)))
	assert.Equal(t, "", convert(t))
}

func TestConvertEscapesText(t *testing.T) {
	assert.Equal(t, "<p>a &lt; b &amp; c</p>", convert(t, Text("a < b & c\n", nil)))
}

func TestConvertHeaderAndLayout(t *testing.T) {
	out := convert(t,
		Text("Title", nil),
		Text("\n", map[string]any{"header": float64(2)}),
		Text("centered", nil),
		Text("\n", map[string]any{"align": "center", "indent": float64(1)}),
	)
	assert.Equal(t, `<h2>Title</h2><p class="ql-align-center ql-indent-1">centered</p>`, out)
}

func TestConvertInlineFormats(t *testing.T) {
	assert.Equal(t, "<p><strong>Hi</strong></p>",
		convert(t, Text("Hi", map[string]any{"bold": true}), Text("\n", nil)))

	assert.Equal(t, `<p><a href="https://x.test" target="_blank">go</a></p>`,
		convert(t, Text("go", map[string]any{"link": "https://x.test"}), Text("\n", nil)))

	out := convert(t, Text("mix", map[string]any{"bold": true, "italic": true, "color": "red"}), Text("\n", nil))
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	span := doc.Find("p > span")
	assert.Equal(t, "color:red", span.AttrOr("style", ""))
	assert.Equal(t, "mix", span.Find("strong > em").Text())
}

func TestConvertLists(t *testing.T) {
	out := convert(t,
		Text("one", nil), Text("\n", map[string]any{"list": "bullet"}),
		Text("two", nil), Text("\n", map[string]any{"list": "bullet"}),
		Text("first", nil), Text("\n", map[string]any{"list": "ordered"}),
		Text("after\n", nil),
	)
	assert.Equal(t, "<ul><li>one</li><li>two</li></ul><ol><li>first</li></ol><p>after</p>", out)
}

func TestConvertCodeBlock(t *testing.T) {
	out := convert(t,
		Text("x := 1", nil), Text("\n", map[string]any{"code-block": true}),
		Text("y := 2", nil), Text("\n", map[string]any{"code-block": true}),
	)
	assert.Equal(t, "<pre>x := 1\ny := 2</pre>", out)
}

func TestConvertEmbeds(t *testing.T) {
	t.Run("image inline", func(t *testing.T) {
		out := convert(t, NewEmbed(EmbedImage, "https://img.test/1.png", nil), Text("\n", nil))
		assert.Equal(t, `<p><img src="https://img.test/1.png"/></p>`, out)
	})

	t.Run("image source override", func(t *testing.T) {
		op := NewEmbed(EmbedImage, "https://img.test/1.png", map[string]any{AttrDataCustom: "source=https://cdn.test/1.png"})
		out := convert(t, op, Text("\n", nil))
		assert.Equal(t, `<p><img src="https://cdn.test/1.png"/></p>`, out)
	})

	t.Run("divider swallows its newline", func(t *testing.T) {
		out := convert(t, Text("a\n", nil), NewEmbed(EmbedDivider, true, nil), Text("\n", nil), Text("b\n", nil))
		assert.Equal(t, "<p>a</p><hr/><p>b</p>", out)
	})

	t.Run("unlock marker", func(t *testing.T) {
		out := convert(t, Text("free\n", nil), NewEmbed(EmbedUnlockContent, true, nil))
		assert.Equal(t, `<p>free</p><div class="unlock-content"></div>`, out)
	})

	t.Run("unknown embed skipped", func(t *testing.T) {
		out := convert(t, Text("x", nil), NewEmbed("formula", "e=mc^2", nil), Text("\n", nil))
		assert.Equal(t, "<p>x</p>", out)
	})
}

func TestConvertWithImageSource(t *testing.T) {
	c := NewHTMLConverter(WithImageSource(func(op Op) string { return "https://signed.test/img" }))
	out, err := c.Convert([]Op{NewEmbed(EmbedImage, "s3://bucket/key.png", nil), Text("\n", nil)})
	require.NoError(t, err)
	assert.Equal(t, `<p><img src="https://signed.test/img"/></p>`, out)
}
