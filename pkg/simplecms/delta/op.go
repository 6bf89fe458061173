// Package delta models Quill Delta documents: an ordered list of insert
// operations where each insert is either a run of text or a single embed
// object such as an image or a divider.
package delta

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Embed kinds the pipeline understands. Any other one-key object is kept as
// an opaque embed.
const (
	EmbedImage         = "image"
	EmbedDivider       = "divider"
	EmbedUnlockContent = "unlockContent"
	EmbedMediaVideo    = "mediaVideo"
)

// AttrDataCustom is the attribute key carrying editor-specific key=value pairs.
const AttrDataCustom = "data-custom"

// Newline is the text of a bare line-break op.
const Newline = "\n"

// BlockEmbeds lists the embed kinds that block-structured clients render as
// standalone blocks.
var BlockEmbeds = []string{EmbedImage, EmbedDivider, EmbedUnlockContent, EmbedMediaVideo}

// Delta is a rich-text document.
type Delta struct {
	Ops []Op `json:"ops"`
}

// Op is a single insert operation.
type Op struct {
	Insert     Insert         `json:"insert"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Insert is either a text run or an embed. Exactly one of Text and Embed is
// meaningful; a nil Embed means text.
type Insert struct {
	Text  string
	Embed *Embed
}

// Embed is a one-key object such as {"image": "https://..."}.
type Embed struct {
	Kind  string
	Value json.RawMessage
}

var errInvalidInsert = errors.New("delta: insert must be a string or an object")

// Text returns a text op.
func Text(s string, attrs map[string]any) Op {
	return Op{Insert: Insert{Text: s}, Attributes: attrs}
}

// NewEmbed returns an embed op whose payload is the JSON encoding of value.
func NewEmbed(kind string, value any, attrs map[string]any) Op {
	raw, err := json.Marshal(value)
	if err != nil {
		raw = []byte("null")
	}
	return Op{Insert: Insert{Embed: &Embed{Kind: kind, Value: raw}}, Attributes: attrs}
}

// IsText reports whether the op inserts text.
func (o Op) IsText() bool { return o.Insert.Embed == nil }

// IsEmbed reports whether the op is an embed of the given kind.
func (o Op) IsEmbed(kind string) bool {
	return o.Insert.Embed != nil && o.Insert.Embed.Kind == kind
}

// EmbedKind returns the embed kind, or "" for text ops.
func (o Op) EmbedKind() string {
	if o.Insert.Embed == nil {
		return ""
	}
	return o.Insert.Embed.Kind
}

// IsBlockEmbed reports whether the op is one of BlockEmbeds.
func (o Op) IsBlockEmbed() bool {
	for _, kind := range BlockEmbeds {
		if o.IsEmbed(kind) {
			return true
		}
	}
	return false
}

// IsNewline reports whether the op is a bare line break. Attributes are not
// considered.
func (o Op) IsNewline() bool {
	return o.IsText() && o.Insert.Text == Newline
}

// Clone returns a copy that shares no maps or byte slices with o.
func (o Op) Clone() Op {
	c := Op{Insert: Insert{Text: o.Insert.Text}}
	if o.Insert.Embed != nil {
		c.Insert.Embed = &Embed{
			Kind:  o.Insert.Embed.Kind,
			Value: append(json.RawMessage(nil), o.Insert.Embed.Value...),
		}
	}
	if o.Attributes != nil {
		c.Attributes = make(map[string]any, len(o.Attributes))
		for k, v := range o.Attributes {
			c.Attributes[k] = v
		}
	}
	return c
}

// StringAttr returns a string-valued attribute, or "" if absent or not a string.
func (o Op) StringAttr(key string) string {
	if o.Attributes == nil {
		return ""
	}
	s, _ := o.Attributes[key].(string)
	return s
}

// DataCustom parses the data-custom attribute ("k1=v1&k2=v2"). Values are
// taken verbatim without percent-decoding. Missing attribute yields an empty map.
func (o Op) DataCustom() map[string]string {
	out := map[string]string{}
	raw := o.StringAttr(AttrDataCustom)
	if raw == "" {
		return out
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		out[key] = value
	}
	return out
}

// ImageSource returns the display URL of an image op: the data-custom source
// when present, else the embedded URL. Non-image ops return "".
func (o Op) ImageSource() string {
	if !o.IsEmbed(EmbedImage) {
		return ""
	}
	if src := o.DataCustom()["source"]; src != "" {
		return src
	}
	return o.Insert.Embed.String()
}

// String returns the payload decoded as a JSON string. Object payloads with a
// "src" or "url" field yield that field.
func (e *Embed) String() string {
	if e == nil || len(e.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Value, &s); err == nil {
		return s
	}
	var obj map[string]any
	if err := json.Unmarshal(e.Value, &obj); err == nil {
		for _, key := range []string{"src", "url"} {
			if v, ok := obj[key].(string); ok {
				return v
			}
		}
	}
	return ""
}

// MarshalJSON writes the insert as a string or a one-key object.
func (i Insert) MarshalJSON() ([]byte, error) {
	if i.Embed == nil {
		return json.Marshal(i.Text)
	}
	key, err := json.Marshal(i.Embed.Kind)
	if err != nil {
		return nil, err
	}
	value := i.Embed.Value
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(value)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts a string or an object. For objects the first key in
// document order is the embed kind.
func (i *Insert) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errInvalidInsert
	}
	switch data[0] {
	case '"':
		i.Embed = nil
		return json.Unmarshal(data, &i.Text)
	case '{':
		dec := json.NewDecoder(bytes.NewReader(data))
		if _, err := dec.Token(); err != nil {
			return err
		}
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		kind, ok := tok.(string)
		if !ok {
			return errInvalidInsert
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("delta: embed %q: %w", kind, err)
		}
		i.Text = ""
		i.Embed = &Embed{Kind: kind, Value: value}
		return nil
	default:
		return errInvalidInsert
	}
}

// Parse decodes a stored document. Both {"ops": [...]} and a bare op array
// are accepted.
func Parse(data []byte) (*Delta, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] == '[' {
		var ops []Op
		if err := json.Unmarshal(data, &ops); err != nil {
			return nil, err
		}
		return &Delta{Ops: ops}, nil
	}
	var d Delta
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Clone deep-copies the document.
func (d *Delta) Clone() *Delta {
	if d == nil {
		return nil
	}
	ops := make([]Op, len(d.Ops))
	for i, op := range d.Ops {
		ops[i] = op.Clone()
	}
	return &Delta{Ops: ops}
}

// Empty reports whether the document has no ops.
func (d *Delta) Empty() bool {
	return d == nil || len(d.Ops) == 0
}

// ImageSources lists the display URL of every image op in reading order.
func ImageSources(ops []Op) []string {
	var out []string
	for _, op := range ops {
		if src := op.ImageSource(); src != "" {
			out = append(out, src)
		}
	}
	return out
}
