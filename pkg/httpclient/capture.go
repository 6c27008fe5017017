package httpclient

import (
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/getmockd/apidiag/pkg/apilog"
)

// capture is the handle for one request's entry. All methods are no-ops when
// capture is disabled.
type capture struct {
	rec apilog.Recorder
	id  string
}

func (c *Client) begin(method string, req Request, body []byte, contentType string) capture {
	if c.recorder == nil {
		return capture{}
	}
	headers := make(map[string]string, len(req.Headers)+1)
	for k, v := range req.Headers {
		headers[k] = v
	}
	// A caller's Content-Type wins on the wire, whatever its spelling.
	if contentType != "" && !hasHeader(headers, "Content-Type") {
		headers["Content-Type"] = contentType
	}
	id, ok := c.recorder.Begin(apilog.Request{
		Method:  method,
		URL:     req.URL,
		Headers: headers,
		Params:  req.Params,
		Body:    capturedBody(headerValue(headers, "Content-Type"), body),
	}, c.maxRetries)
	if !ok {
		return capture{}
	}
	return capture{rec: c.recorder, id: id}
}

func (cp capture) attempt(n int, outcome apilog.Outcome, start time.Time) {
	if cp.rec == nil {
		return
	}
	cp.rec.RecordAttempt(cp.id, n, outcome, apilog.WithAttemptStart(start))
}

func (cp capture) finish(outcome apilog.Outcome) {
	if cp.rec == nil {
		return
	}
	cp.rec.Finish(cp.id, outcome)
}

// errorOutcome describes err. A *StatusError carries the server response.
func errorOutcome(err error) apilog.Outcome {
	info := apilog.ErrorInfo{
		Message: err.Error(),
		Code:    errorCode(err),
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		r := toCaptured(statusErr.Response)
		info.Response = &r
	}
	return apilog.ErrorOutcome(info)
}

func toCaptured(r *Response) apilog.Response {
	if r == nil {
		return apilog.Response{}
	}
	return apilog.Response{
		Status:     r.Status,
		StatusText: r.StatusText,
		Headers:    flattenHeader(r.Header),
		Data:       capturedBody(r.Header.Get("Content-Type"), r.Body),
	}
}

// capturedBody keeps JSON payloads structured and everything else as text.
func capturedBody(contentType string, data []byte) apilog.Body {
	if len(data) == 0 {
		return apilog.Body{}
	}
	if isJSON(contentType) || contentType == "" {
		return apilog.JSONBody(data)
	}
	return apilog.TextBody(string(data))
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func flattenHeader(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func hasHeader(h map[string]string, name string) bool {
	for k := range h {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

func headerValue(h map[string]string, name string) string {
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
