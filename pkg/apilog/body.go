package apilog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/getmockd/apidiag/pkg/redact"
)

// BodyKind identifies what a Body holds.
type BodyKind string

// Body kinds.
const (
	BodyNone BodyKind = ""
	BodyJSON BodyKind = "json"
	BodyText BodyKind = "text"
)

// Body is a captured request or response payload: nothing, a JSON value kept
// in its original byte form, or opaque text. The zero value is BodyNone.
//
// Bodies are immutable; accessors return copies.
type Body struct {
	kind BodyKind
	raw  []byte
}

// TextBody returns a text body.
func TextBody(s string) Body {
	return Body{kind: BodyText, raw: []byte(s)}
}

// JSONBody returns a JSON body for raw. Input that is not valid JSON is
// kept as text.
func JSONBody(raw []byte) Body {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return TextBody(string(raw))
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return Body{}
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return TextBody(s)
		}
	}
	return Body{kind: BodyJSON, raw: append([]byte(nil), trimmed...)}
}

// BodyOf converts an arbitrary payload into a Body:
// nil is BodyNone, strings are text, byte slices are JSON when they parse
// and text otherwise, anything else is JSON-encoded.
func BodyOf(v any) Body {
	switch t := v.(type) {
	case nil:
		return Body{}
	case Body:
		return t
	case string:
		return TextBody(t)
	case json.RawMessage:
		return JSONBody(t)
	case []byte:
		if len(t) == 0 {
			return Body{}
		}
		return JSONBody(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return TextBody(fmt.Sprint(t))
		}
		return JSONBody(data)
	}
}

// Kind returns the body kind.
func (b Body) Kind() BodyKind { return b.kind }

// IsNull reports whether the body is absent.
func (b Body) IsNull() bool { return b.kind == BodyNone }

// Len returns the payload size in bytes.
func (b Body) Len() int { return len(b.raw) }

// Bytes returns a copy of the raw JSON or text bytes.
func (b Body) Bytes() []byte {
	if b.raw == nil {
		return nil
	}
	return append([]byte(nil), b.raw...)
}

// String returns the raw JSON or the text; empty for BodyNone.
func (b Body) String() string { return string(b.raw) }

// Decode returns the decoded JSON value. ok is false for non-JSON bodies.
func (b Body) Decode() (v any, ok bool) {
	if b.kind != BodyJSON {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(b.raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// MarshalJSON encodes the body as null, the raw JSON value, or a string.
func (b Body) MarshalJSON() ([]byte, error) {
	switch b.kind {
	case BodyJSON:
		return append([]byte(nil), b.raw...), nil
	case BodyText:
		return json.Marshal(string(b.raw))
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON. A JSON string decodes to a
// text body.
func (b *Body) UnmarshalJSON(data []byte) error {
	*b = JSONBody(data)
	return nil
}

// redactBody applies r to b. Text that parses as JSON is redacted and stays
// text; other text passes through unchanged.
func redactBody(r *redact.Redactor, b Body) Body {
	switch b.kind {
	case BodyJSON:
		res := r.JSON(b.raw)
		return Body{kind: BodyJSON, raw: res.Data}
	case BodyText:
		out, _ := r.Text(string(b.raw))
		return TextBody(out)
	default:
		return b
	}
}

// truncateBody cuts bodies longer than limit bytes into a text body with a
// marker suffix. limit <= 0 disables truncation.
func truncateBody(b Body, limit int) Body {
	if limit <= 0 || len(b.raw) <= limit {
		return b
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(b.raw[cut]) {
		cut--
	}
	return TextBody(fmt.Sprintf("%s…[truncated %d bytes]", b.raw[:cut], len(b.raw)-cut))
}
