package delta

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLConverter renders ops as an HTML fragment.
type HTMLConverter struct {
	imageSource func(Op) string
	classPrefix string
}

// ConverterOption configures an HTMLConverter.
type ConverterOption func(*HTMLConverter)

// WithImageSource overrides how image ops are turned into URLs.
func WithImageSource(fn func(Op) string) ConverterOption {
	return func(c *HTMLConverter) {
		c.imageSource = fn
	}
}

// WithClassPrefix sets the prefix of generated layout classes (default "ql").
func WithClassPrefix(prefix string) ConverterOption {
	return func(c *HTMLConverter) {
		c.classPrefix = prefix
	}
}

// NewHTMLConverter creates a converter.
func NewHTMLConverter(opts ...ConverterOption) *HTMLConverter {
	c := &HTMLConverter{
		imageSource: Op.ImageSource,
		classPrefix: "ql",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type line struct {
	inline []Op
	attrs  map[string]any
}

type segment struct {
	line  *line
	block *Op
}

// standalone embeds break the current line instead of flowing inside it.
func standalone(op Op) bool {
	return op.IsEmbed(EmbedDivider) || op.IsEmbed(EmbedMediaVideo) || op.IsEmbed(EmbedUnlockContent)
}

// Convert renders ops. The output is a concatenation of block elements.
func (c *HTMLConverter) Convert(ops []Op) (string, error) {
	var buf bytes.Buffer
	for _, n := range c.nodes(segmentLines(ops)) {
		if err := html.Render(&buf, n); err != nil {
			return "", fmt.Errorf("render html: %w", err)
		}
	}
	return buf.String(), nil
}

func segmentLines(ops []Op) []segment {
	var segs []segment
	cur := &line{}
	afterBlock := false

	for _, op := range ops {
		if standalone(op) {
			if len(cur.inline) > 0 {
				segs = append(segs, segment{line: cur})
				cur = &line{}
			}
			block := op
			segs = append(segs, segment{block: &block})
			afterBlock = true
			continue
		}
		if !op.IsText() {
			cur.inline = append(cur.inline, op)
			afterBlock = false
			continue
		}

		text := op.Insert.Text
		if afterBlock && strings.HasPrefix(text, Newline) {
			text = text[1:]
		}
		afterBlock = false

		parts := strings.Split(text, Newline)
		for i, part := range parts {
			if part != "" {
				cur.inline = append(cur.inline, Text(part, op.Attributes))
			}
			if i < len(parts)-1 {
				cur.attrs = op.Attributes
				segs = append(segs, segment{line: cur})
				cur = &line{}
			}
		}
	}
	if len(cur.inline) > 0 {
		segs = append(segs, segment{line: cur})
	}
	return segs
}

func (c *HTMLConverter) nodes(segs []segment) []*html.Node {
	var out []*html.Node
	for i := 0; i < len(segs); i++ {
		seg := segs[i]
		if seg.block != nil {
			if n := c.blockEmbed(*seg.block); n != nil {
				out = append(out, n)
			}
			continue
		}

		if list := stringAttr(seg.line.attrs, "list"); list != "" {
			tag := "ul"
			if list == "ordered" {
				tag = "ol"
			}
			container := element(tag)
			for ; i < len(segs) && segs[i].line != nil && stringAttr(segs[i].line.attrs, "list") == list; i++ {
				li := element("li", c.layoutAttrs(segs[i].line.attrs)...)
				if list == "checked" || list == "unchecked" {
					li.Attr = append(li.Attr, html.Attribute{Key: "data-checked", Val: strconv.FormatBool(list == "checked")})
				}
				c.appendInline(li, segs[i].line.inline)
				container.AppendChild(li)
			}
			i--
			out = append(out, container)
			continue
		}

		if truthy(seg.line.attrs["code-block"]) {
			var lines []string
			for ; i < len(segs) && segs[i].line != nil && truthy(segs[i].line.attrs["code-block"]); i++ {
				var sb strings.Builder
				for _, op := range segs[i].line.inline {
					if op.IsText() {
						sb.WriteString(op.Insert.Text)
					}
				}
				lines = append(lines, sb.String())
			}
			i--
			pre := element("pre")
			pre.AppendChild(textNode(strings.Join(lines, Newline)))
			out = append(out, pre)
			continue
		}

		tag := "p"
		if level := intAttr(seg.line.attrs, "header"); level >= 1 && level <= 6 {
			tag = "h" + strconv.Itoa(level)
		} else if truthy(seg.line.attrs["blockquote"]) {
			tag = "blockquote"
		}
		n := element(tag, c.layoutAttrs(seg.line.attrs)...)
		c.appendInline(n, seg.line.inline)
		out = append(out, n)
	}
	return out
}

func (c *HTMLConverter) appendInline(parent *html.Node, ops []Op) {
	if len(ops) == 0 {
		parent.AppendChild(element("br"))
		return
	}
	for _, op := range ops {
		if n := c.inline(op); n != nil {
			parent.AppendChild(n)
		}
	}
}

func (c *HTMLConverter) inline(op Op) *html.Node {
	if !op.IsText() {
		if op.IsEmbed(EmbedImage) {
			return c.image(op)
		}
		return nil
	}

	n := textNode(op.Insert.Text)
	attrs := op.Attributes
	if truthy(attrs["code"]) {
		n = wrap(element("code"), n)
	}
	switch stringAttr(attrs, "script") {
	case "sub":
		n = wrap(element("sub"), n)
	case "super":
		n = wrap(element("sup"), n)
	}
	if truthy(attrs["strike"]) {
		n = wrap(element("s"), n)
	}
	if truthy(attrs["underline"]) {
		n = wrap(element("u"), n)
	}
	if truthy(attrs["italic"]) {
		n = wrap(element("em"), n)
	}
	if truthy(attrs["bold"]) {
		n = wrap(element("strong"), n)
	}
	var styles []string
	if color := stringAttr(attrs, "color"); color != "" {
		styles = append(styles, "color:"+color)
	}
	if bg := stringAttr(attrs, "background"); bg != "" {
		styles = append(styles, "background-color:"+bg)
	}
	if len(styles) > 0 {
		n = wrap(element("span", html.Attribute{Key: "style", Val: strings.Join(styles, ";")}), n)
	}
	if link := stringAttr(attrs, "link"); link != "" {
		n = wrap(element("a",
			html.Attribute{Key: "href", Val: link},
			html.Attribute{Key: "target", Val: "_blank"},
		), n)
	}
	return n
}

func (c *HTMLConverter) image(op Op) *html.Node {
	src := c.imageSource(op)
	if src == "" {
		return nil
	}
	attrs := []html.Attribute{{Key: "src", Val: src}}
	custom := op.DataCustom()
	if alt := custom["alt"]; alt != "" {
		attrs = append(attrs, html.Attribute{Key: "alt", Val: alt})
	}
	if width := stringAttr(op.Attributes, "width"); width != "" {
		attrs = append(attrs, html.Attribute{Key: "width", Val: width})
	}
	return element("img", attrs...)
}

func (c *HTMLConverter) blockEmbed(op Op) *html.Node {
	switch op.EmbedKind() {
	case EmbedDivider:
		return element("hr")
	case EmbedUnlockContent:
		return element("div", html.Attribute{Key: "class", Val: "unlock-content"})
	case EmbedMediaVideo:
		src := op.Insert.Embed.String()
		if src == "" {
			return nil
		}
		return element("video",
			html.Attribute{Key: "src", Val: src},
			html.Attribute{Key: "controls", Val: "controls"},
		)
	}
	return nil
}

func (c *HTMLConverter) layoutAttrs(attrs map[string]any) []html.Attribute {
	var classes []string
	if align := stringAttr(attrs, "align"); align != "" {
		classes = append(classes, c.classPrefix+"-align-"+align)
	}
	if indent := intAttr(attrs, "indent"); indent > 0 {
		classes = append(classes, c.classPrefix+"-indent-"+strconv.Itoa(indent))
	}
	if stringAttr(attrs, "direction") == "rtl" {
		classes = append(classes, c.classPrefix+"-direction-rtl")
	}
	if len(classes) == 0 {
		return nil
	}
	sort.Strings(classes)
	return []html.Attribute{{Key: "class", Val: strings.Join(classes, " ")}}
}

func element(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func wrap(parent, child *html.Node) *html.Node {
	parent.AppendChild(child)
	return parent
}

func stringAttr(attrs map[string]any, key string) string {
	if attrs == nil {
		return ""
	}
	s, _ := attrs[key].(string)
	return s
}

func intAttr(attrs map[string]any, key string) int {
	if attrs == nil {
		return 0
	}
	switch v := attrs[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "false"
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	return true
}
