package apilog

import "time"

// Request describes the captured outbound request. It doubles as the
// descriptor passed to Begin and is immutable once stored.
type Request struct {
	// Method is the HTTP method.
	Method string `json:"method"`

	// URL is the request URL as the client sent it, without Params.
	URL string `json:"url"`

	// Headers are the request headers, sensitive values redacted.
	Headers map[string]string `json:"headers"`

	// Params are query parameters the client appends to URL (nil when none).
	Params map[string]string `json:"params"`

	// Body is the request payload, redacted when it is JSON.
	Body Body `json:"body"`
}

// Response summarizes an HTTP response.
type Response struct {
	// Status is the HTTP status code.
	Status int `json:"status"`

	// StatusText is the reason phrase (e.g. "OK").
	StatusText string `json:"statusText,omitempty"`

	// Headers are the response headers, sensitive values redacted.
	Headers map[string]string `json:"headers,omitempty"`

	// Data is the response payload, redacted when it is JSON.
	Data Body `json:"data"`
}

// ErrorInfo summarizes a failed call.
type ErrorInfo struct {
	// Message is a human-readable error description.
	Message string `json:"message"`

	// Code is a machine-readable error code, if any (e.g. "ECONNRESET", "timeout").
	Code string `json:"code,omitempty"`

	// Response is the server response when the failure was an HTTP error status.
	Response *Response `json:"response,omitempty"`
}

// Attempt is one try within an Entry.
type Attempt struct {
	// AttemptNumber is 1-based and contiguous within an entry.
	AttemptNumber int `json:"attemptNumber"`

	// Timestamp is when the attempt completed.
	Timestamp time.Time `json:"timestamp"`

	// DurationMs is how long the attempt took in milliseconds.
	DurationMs int64 `json:"duration"`

	// Exactly one of Response and Error is set.
	Response *Response  `json:"response,omitempty"`
	Error    *ErrorInfo `json:"error,omitempty"`
}

// Entry is one captured request lifecycle, from Begin to Finish.
type Entry struct {
	// ID is a unique, opaque identifier.
	ID string `json:"id"`

	// Timestamp is when the entry was created.
	Timestamp time.Time `json:"timestamp"`

	// Request is the captured request.
	Request Request `json:"request"`

	// Attempts are ordered by AttemptNumber.
	Attempts []Attempt `json:"attempts"`

	// Response is the final successful response. Set by Finish.
	Response *Response `json:"response,omitempty"`

	// Error is the final failure. Set by Finish.
	Error *ErrorInfo `json:"error,omitempty"`

	// DurationMs is the total time from creation to Finish in milliseconds.
	// Nil while the request is in flight.
	DurationMs *int64 `json:"duration,omitempty"`

	// Retries is the number of attempts beyond the first.
	Retries int `json:"retries"`
}

// Finished reports whether Finish has been applied to the entry.
func (e *Entry) Finished() bool {
	return e.Response != nil || e.Error != nil
}

// Status returns the final HTTP status, or 0 when unknown (in flight, or a
// failure without a response).
func (e *Entry) Status() int {
	switch {
	case e.Response != nil:
		return e.Response.Status
	case e.Error != nil && e.Error.Response != nil:
		return e.Error.Response.Status
	default:
		return 0
	}
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() Entry {
	out := *e
	out.Request = e.Request.clone()
	if e.Attempts != nil {
		out.Attempts = make([]Attempt, len(e.Attempts))
		for i, a := range e.Attempts {
			out.Attempts[i] = a.clone()
		}
	}
	out.Response = e.Response.clone()
	out.Error = e.Error.clone()
	if e.DurationMs != nil {
		d := *e.DurationMs
		out.DurationMs = &d
	}
	return out
}

func (r Request) clone() Request {
	r.Headers = cloneMap(r.Headers)
	r.Params = cloneMap(r.Params)
	return r
}

func (a Attempt) clone() Attempt {
	a.Response = a.Response.clone()
	a.Error = a.Error.clone()
	return a
}

func (r *Response) clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	out.Headers = cloneMap(r.Headers)
	return &out
}

func (e *ErrorInfo) clone() *ErrorInfo {
	if e == nil {
		return nil
	}
	out := *e
	out.Response = e.Response.clone()
	return &out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
