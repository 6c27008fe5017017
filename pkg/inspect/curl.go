package inspect

import (
	"net/url"
	"sort"
	"strings"

	"github.com/getmockd/apidiag/pkg/apilog"
)

// CURL reconstructs a curl command for req. Headers are emitted in name
// order and headers with an empty value are skipped. Non-GET requests with a
// body get a --data-raw flag. Every argument is single-quoted, so the result
// is a well-formed POSIX shell command for any header or body content.
func CURL(req apilog.Request) string {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = "GET"
	}

	var b strings.Builder
	b.WriteString("curl -X ")
	b.WriteString(shellQuote(method))
	b.WriteByte(' ')
	b.WriteString(shellQuote(RequestURL(req)))

	names := make([]string, 0, len(req.Headers))
	for name, value := range req.Headers {
		if name == "" || value == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(" -H ")
		b.WriteString(shellQuote(name + ": " + req.Headers[name]))
	}

	if method != "GET" && !req.Body.IsNull() {
		b.WriteString(" --data-raw ")
		b.WriteString(shellQuote(req.Body.String()))
	}
	return b.String()
}

// RequestURL returns the request URL with Params merged into its query.
// Params never override a key already present in the URL. URLs that do not
// parse are returned unchanged.
func RequestURL(req apilog.Request) string {
	if len(req.Params) == 0 {
		return req.URL
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return req.URL
	}
	q := u.Query()
	for k, v := range req.Params {
		if _, exists := q[k]; !exists {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// shellQuote wraps s in single quotes. An embedded quote closes the string,
// emits an escaped quote and reopens it.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
