package redact

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Marker replaces every redacted value.
const Marker = "[REDACTED]"

// DefaultHeaders are the header names that are always redacted.
// Matching is case-insensitive.
var DefaultHeaders = []string{"authorization", "cookie", "set-cookie", "x-api-key"}

// DefaultFields are the JSON field names that are always redacted.
// Matching is exact.
var DefaultFields = []string{"password", "token", "secret", "apiKey", "api_key", "accessToken", "refreshToken"}

// Config lists names redacted in addition to the defaults.
type Config struct {
	// ExtraHeaders are additional header names, matched case-insensitively.
	ExtraHeaders []string `json:"extraHeaders,omitempty" yaml:"extraHeaders,omitempty" env:"EXTRA_HEADERS" envSeparator:","`

	// ExtraFields are additional JSON field names, matched exactly.
	ExtraFields []string `json:"extraFields,omitempty" yaml:"extraFields,omitempty" env:"EXTRA_FIELDS" envSeparator:","`
}

// Redactor scrubs headers and bodies. The zero value is not usable; use New
// or Default.
type Redactor struct {
	headers map[string]struct{}
	fields  map[string]struct{}
}

var defaultRedactor = New(Config{})

// Default returns the redactor with only the fixed name sets.
func Default() *Redactor {
	return defaultRedactor
}

// New creates a Redactor for the fixed name sets plus cfg's extras.
func New(cfg Config) *Redactor {
	r := &Redactor{
		headers: make(map[string]struct{}, len(DefaultHeaders)+len(cfg.ExtraHeaders)),
		fields:  make(map[string]struct{}, len(DefaultFields)+len(cfg.ExtraFields)),
	}
	for _, h := range append(append([]string{}, DefaultHeaders...), cfg.ExtraHeaders...) {
		if h = strings.TrimSpace(h); h != "" {
			r.headers[strings.ToLower(h)] = struct{}{}
		}
	}
	for _, f := range append(append([]string{}, DefaultFields...), cfg.ExtraFields...) {
		if f != "" {
			r.fields[f] = struct{}{}
		}
	}
	return r
}

// IsSensitiveHeader reports whether values of the named header are redacted.
func (r *Redactor) IsSensitiveHeader(name string) bool {
	_, ok := r.headers[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// IsSensitiveField reports whether string values of the named JSON field are redacted.
func (r *Redactor) IsSensitiveField(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// Headers returns a copy of h with sensitive values replaced by Marker.
// A nil map yields nil.
func (r *Redactor) Headers(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if r.IsSensitiveHeader(k) {
			out[k] = Marker
			continue
		}
		out[k] = v
	}
	return out
}

// Result is the outcome of redacting a payload.
type Result struct {
	// Data is the redacted payload, or the original when Parsed is false.
	Data []byte

	// Parsed reports whether the payload was valid JSON.
	Parsed bool

	// Redacted counts replaced values.
	Redacted int
}

// JSON redacts a raw payload. Payloads that do not parse as JSON are handled
// by the Passthrough policy: Data is the input, Parsed is false.
func (r *Redactor) JSON(data []byte) Result {
	if !ParseJSON(data) {
		return Passthrough(data)
	}

	paths := r.sensitivePaths(gjson.ParseBytes(data), nil, nil)
	if len(paths) == 0 {
		return Result{Data: data, Parsed: true}
	}

	out, ok := r.rewriteInPlace(data, paths)
	if !ok {
		out = r.rewriteDecoded(data)
	}
	return Result{Data: out, Parsed: true, Redacted: len(paths)}
}

// Text redacts a string payload, see JSON.
func (r *Redactor) Text(s string) (string, bool) {
	res := r.JSON([]byte(s))
	if !res.Parsed {
		return s, false
	}
	return string(res.Data), true
}

// ParseJSON reports whether data is a well-formed JSON document.
func ParseJSON(data []byte) bool {
	return len(bytes.TrimSpace(data)) > 0 && gjson.ValidBytes(data)
}

// Passthrough is the policy for payloads that cannot be viewed as JSON:
// they are kept verbatim and marked as unparsed.
func Passthrough(data []byte) Result {
	return Result{Data: data}
}

// sensitivePaths returns the path of every sensitive string value under v.
func (r *Redactor) sensitivePaths(v gjson.Result, prefix []string, acc [][]string) [][]string {
	switch {
	case v.IsObject():
		v.ForEach(func(key, value gjson.Result) bool {
			path := appendPath(prefix, key.String())
			if value.Type == gjson.String && r.IsSensitiveField(key.String()) {
				if value.Str != Marker {
					acc = append(acc, path)
				}
				return true
			}
			acc = r.sensitivePaths(value, path, acc)
			return true
		})
	case v.IsArray():
		i := 0
		v.ForEach(func(_, value gjson.Result) bool {
			acc = r.sensitivePaths(value, appendPath(prefix, strconv.Itoa(i)), acc)
			i++
			return true
		})
	}
	return acc
}

func appendPath(prefix []string, part string) []string {
	out := make([]string, len(prefix), len(prefix)+1)
	copy(out, prefix)
	return append(out, part)
}

// rewriteInPlace sets every path to Marker on the raw bytes. It reports
// false when a path cannot be expressed or the result still leaks a value.
func (r *Redactor) rewriteInPlace(data []byte, paths [][]string) ([]byte, bool) {
	out := append([]byte(nil), data...)
	for _, parts := range paths {
		path, ok := escapePath(parts)
		if !ok {
			return nil, false
		}
		next, err := sjson.SetBytes(out, path, Marker)
		if err != nil {
			return nil, false
		}
		out = next
	}
	if !gjson.ValidBytes(out) || len(r.sensitivePaths(gjson.ParseBytes(out), nil, nil)) > 0 {
		return nil, false
	}
	return out, true
}

// escapePath joins path components in sjson syntax.
func escapePath(parts []string) (string, bool) {
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			return "", false
		}
		if i > 0 {
			b.WriteByte('.')
		}
		for j := 0; j < len(p); j++ {
			switch c := p[j]; c {
			case '\\', '.', '*', '?', '#', '|', '@', ':':
				b.WriteByte('\\')
				b.WriteByte(c)
			default:
				b.WriteByte(c)
			}
		}
	}
	return b.String(), true
}

// rewriteDecoded is the slow path: decode, redact, encode. Field order of
// objects is not preserved.
func (r *Redactor) rewriteDecoded(data []byte) []byte {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return data
	}
	out, err := json.Marshal(r.Value(v))
	if err != nil {
		return data
	}
	return out
}

// Value redacts an already decoded JSON value (maps, slices, scalars) and
// returns a redacted copy.
func (r *Redactor) Value(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if _, ok := val.(string); ok && r.IsSensitiveField(k) {
				out[k] = Marker
				continue
			}
			out[k] = r.Value(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = r.Value(val)
		}
		return out
	default:
		return v
	}
}

// Headers redacts h with the default redactor.
func Headers(h map[string]string) map[string]string {
	return defaultRedactor.Headers(h)
}

// JSON redacts data with the default redactor.
func JSON(data []byte) Result {
	return defaultRedactor.JSON(data)
}

// Text redacts s with the default redactor.
func Text(s string) (string, bool) {
	return defaultRedactor.Text(s)
}
