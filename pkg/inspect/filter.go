package inspect

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/getmockd/apidiag/pkg/apilog"
)

// ErrInvalidFilter is returned by CompileFilter for a bad expression or glob.
var ErrInvalidFilter = errors.New("invalid filter")

// Filter selects entries by an expression over their summary and a glob over
// their URL path. The zero Filter and a nil *Filter match everything.
//
// Expressions use expr-lang syntax and see these variables:
//
//	id, method, url, host, path, state, class, error  string
//	status, retries, attempts, duration               int
//	finished                                          bool
//
// For example: `status >= 500 || (method == "POST" && retries > 0)`.
// Globs use doublestar syntax, e.g. "/v1/users/**".
type Filter struct {
	expression string
	program    *vm.Program
	pathGlob   string
}

// CompileFilter compiles expression and validates pathGlob. Either may be
// empty.
func CompileFilter(expression, pathGlob string) (*Filter, error) {
	f := &Filter{
		expression: strings.TrimSpace(expression),
		pathGlob:   strings.TrimSpace(pathGlob),
	}
	if f.expression != "" {
		program, err := expr.Compile(f.expression, expr.Env(filterEnv(Summary{})), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("%w: compile %q: %v", ErrInvalidFilter, f.expression, err)
		}
		f.program = program
	}
	if f.pathGlob != "" && !doublestar.ValidatePattern(f.pathGlob) {
		return nil, fmt.Errorf("%w: bad glob %q", ErrInvalidFilter, f.pathGlob)
	}
	return f, nil
}

// String returns the filter in a readable form.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	switch {
	case f.expression != "" && f.pathGlob != "":
		return fmt.Sprintf("%s [path %s]", f.expression, f.pathGlob)
	case f.pathGlob != "":
		return "path " + f.pathGlob
	default:
		return f.expression
	}
}

// Match reports whether e passes the filter. Evaluation errors count as no
// match.
func (f *Filter) Match(e apilog.Entry) bool {
	if f == nil {
		return true
	}
	s := Summarize(e)
	if f.pathGlob != "" {
		p := s.Path
		if p == "" {
			p = pathOf(s.URL)
		}
		if p == "" {
			p = "/"
		}
		ok, err := doublestar.Match(f.pathGlob, p)
		if err != nil || !ok {
			return false
		}
	}
	if f.program == nil {
		return true
	}
	out, err := expr.Run(f.program, filterEnv(s))
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// Apply returns the entries that match, keeping order.
func (f *Filter) Apply(entries []apilog.Entry) []apilog.Entry {
	out := make([]apilog.Entry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

func filterEnv(s Summary) map[string]interface{} {
	duration := 0
	if s.DurationMs != nil {
		duration = int(*s.DurationMs)
	}
	return map[string]interface{}{
		"id":       s.ID,
		"method":   s.Method,
		"url":      s.URL,
		"host":     s.Host,
		"path":     s.Path,
		"state":    s.State,
		"class":    string(s.Class),
		"error":    s.Error,
		"status":   s.Status,
		"retries":  s.Retries,
		"attempts": s.Attempts,
		"duration": duration,
		"finished": s.State != StatePending,
	}
}

// pathOf is a lenient path extraction for URLs net/url rejects.
func pathOf(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		return u.Path
	}
	if i := strings.Index(raw, "://"); i >= 0 {
		raw = raw[i+3:]
		if j := strings.IndexByte(raw, '/'); j >= 0 {
			raw = raw[j:]
		} else {
			return "/"
		}
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	return raw
}
