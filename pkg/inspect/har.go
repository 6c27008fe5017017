package inspect

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/getmockd/apidiag/pkg/apilog"
)

// HAR (HTTP Archive 1.2) types. Only the fields apidiag can fill are kept.

// HAR represents an HTTP Archive file.
type HAR struct {
	Log HARLog `json:"log"`
}

// HARLog contains the HAR log data.
type HARLog struct {
	Version string     `json:"version"`
	Creator HARCreator `json:"creator"`
	Entries []HAREntry `json:"entries"`
}

// HARCreator contains tool information.
type HARCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HAREntry represents a single request/response pair.
type HAREntry struct {
	StartedDateTime string      `json:"startedDateTime"`
	Time            float64     `json:"time"`
	Request         HARRequest  `json:"request"`
	Response        HARResponse `json:"response"`
	Cache           struct{}    `json:"cache"`
	Timings         HARTimings  `json:"timings"`
	Comment         string      `json:"comment,omitempty"`
}

// HARRequest represents an HTTP request.
type HARRequest struct {
	Method      string       `json:"method"`
	URL         string       `json:"url"`
	HTTPVersion string       `json:"httpVersion"`
	Cookies     []HARCookie  `json:"cookies"`
	Headers     []HARHeader  `json:"headers"`
	QueryString []HARQuery   `json:"queryString"`
	PostData    *HARPostData `json:"postData,omitempty"`
	HeadersSize int          `json:"headersSize"`
	BodySize    int          `json:"bodySize"`
}

// HARResponse represents an HTTP response.
type HARResponse struct {
	Status      int         `json:"status"`
	StatusText  string      `json:"statusText"`
	HTTPVersion string      `json:"httpVersion"`
	Cookies     []HARCookie `json:"cookies"`
	Headers     []HARHeader `json:"headers"`
	Content     HARContent  `json:"content"`
	RedirectURL string      `json:"redirectURL"`
	HeadersSize int         `json:"headersSize"`
	BodySize    int         `json:"bodySize"`
}

// HARCookie is always empty: cookie headers are redacted at capture time.
type HARCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HARHeader represents an HTTP header.
type HARHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HARQuery represents a query parameter.
type HARQuery struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HARPostData represents request body data.
type HARPostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// HARContent represents response content.
type HARContent struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
}

// HARTimings represents timing information. apidiag only knows the total,
// which is reported as wait time.
type HARTimings struct {
	Send    float64 `json:"send"`
	Wait    float64 `json:"wait"`
	Receive float64 `json:"receive"`
}

const (
	harVersion     = "1.2"
	harHTTPVersion = "HTTP/1.1"
	harCreatorName = "apidiag"
)

// ToHAR converts entries to an HTTP Archive, oldest first as HAR viewers
// expect. Entries without a final response (pending, or failed without a
// server response) are exported with status 0.
func ToHAR(entries []apilog.Entry, creatorVersion string) *HAR {
	if creatorVersion == "" {
		creatorVersion = "dev"
	}
	har := &HAR{Log: HARLog{
		Version: harVersion,
		Creator: HARCreator{Name: harCreatorName, Version: creatorVersion},
		Entries: make([]HAREntry, 0, len(entries)),
	}}
	for i := len(entries) - 1; i >= 0; i-- {
		har.Log.Entries = append(har.Log.Entries, toHAREntry(entries[i]))
	}
	return har
}

func toHAREntry(e apilog.Entry) HAREntry {
	var total float64
	if e.DurationMs != nil {
		total = float64(*e.DurationMs)
	}

	entry := HAREntry{
		StartedDateTime: e.Timestamp.UTC().Format(time.RFC3339Nano),
		Time:            total,
		Request:         toHARRequest(e.Request),
		Timings:         HARTimings{Wait: total},
	}

	resp := e.Response
	if resp == nil && e.Error != nil {
		resp = e.Error.Response
	}
	if resp != nil {
		entry.Response = toHARResponse(*resp)
	} else {
		entry.Response = HARResponse{
			HTTPVersion: harHTTPVersion,
			Cookies:     []HARCookie{},
			Headers:     []HARHeader{},
			HeadersSize: -1,
			BodySize:    -1,
		}
	}
	if e.Error != nil {
		entry.Comment = e.Error.Message
	}
	if len(e.Attempts) > 1 {
		if entry.Comment != "" {
			entry.Comment += "; "
		}
		entry.Comment += pluralize(len(e.Attempts)-1, "retry", "retries")
	}
	return entry
}

func toHARRequest(r apilog.Request) HARRequest {
	full := RequestURL(r)
	req := HARRequest{
		Method:      r.Method,
		URL:         full,
		HTTPVersion: harHTTPVersion,
		Cookies:     []HARCookie{},
		Headers:     harHeaders(r.Headers),
		QueryString: []HARQuery{},
		HeadersSize: -1,
		BodySize:    r.Body.Len(),
	}
	if u, err := url.Parse(full); err == nil {
		q := u.Query()
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, v := range q[k] {
				req.QueryString = append(req.QueryString, HARQuery{Name: k, Value: v})
			}
		}
	}
	if !r.Body.IsNull() {
		req.PostData = &HARPostData{
			MimeType: mimeType(r.Headers, r.Body),
			Text:     r.Body.String(),
		}
	}
	return req
}

func toHARResponse(r apilog.Response) HARResponse {
	return HARResponse{
		Status:      r.Status,
		StatusText:  r.StatusText,
		HTTPVersion: harHTTPVersion,
		Cookies:     []HARCookie{},
		Headers:     harHeaders(r.Headers),
		Content: HARContent{
			Size:     r.Data.Len(),
			MimeType: mimeType(r.Headers, r.Data),
			Text:     r.Data.String(),
		},
		HeadersSize: -1,
		BodySize:    r.Data.Len(),
	}
}

func harHeaders(h map[string]string) []HARHeader {
	out := make([]HARHeader, 0, len(h))
	for name, value := range h {
		out = append(out, HARHeader{Name: name, Value: value})
	}
	// Names equal ignoring case are ordered by their raw spelling.
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// mimeType prefers the captured Content-Type header and falls back to the
// body kind.
func mimeType(headers map[string]string, body apilog.Body) string {
	for _, h := range harHeaders(headers) {
		if strings.EqualFold(h.Name, "Content-Type") && h.Value != "" {
			return h.Value
		}
	}
	switch body.Kind() {
	case apilog.BodyJSON:
		return "application/json"
	case apilog.BodyText:
		return "text/plain"
	default:
		return ""
	}
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}
