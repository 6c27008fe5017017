package inspect

import (
	"net/url"
	"time"

	"github.com/getmockd/apidiag/pkg/apilog"
)

// States of a captured request.
const (
	StatePending = "pending"
	StateSuccess = "success"
	StateError   = "error"
)

// Summary is the one-row view of an entry used by lists and filters.
type Summary struct {
	ID         string      `json:"id"`
	Timestamp  time.Time   `json:"timestamp"`
	Method     string      `json:"method"`
	URL        string      `json:"url"`
	Host       string      `json:"host,omitempty"`
	Path       string      `json:"path,omitempty"`
	State      string      `json:"state"`
	Status     int         `json:"status,omitempty"`
	Class      StatusClass `json:"class"`
	DurationMs *int64      `json:"duration,omitempty"`
	Retries    int         `json:"retries"`
	Attempts   int         `json:"attempts"`
	Error      string      `json:"error,omitempty"`
}

// Summarize builds the Summary of e.
func Summarize(e apilog.Entry) Summary {
	s := Summary{
		ID:         e.ID,
		Timestamp:  e.Timestamp,
		Method:     e.Request.Method,
		URL:        e.Request.URL,
		Status:     e.Status(),
		DurationMs: e.DurationMs,
		Retries:    e.Retries,
		Attempts:   len(e.Attempts),
	}
	if u, err := url.Parse(e.Request.URL); err == nil {
		s.Host = u.Host
		s.Path = u.Path
	}
	switch {
	case e.Error != nil:
		s.State = StateError
		s.Error = e.Error.Message
	case e.Response != nil:
		s.State = StateSuccess
	default:
		s.State = StatePending
	}
	s.Class = ClassifyStatus(s.Status)
	return s
}

// Summaries summarizes each entry, keeping order.
func Summaries(entries []apilog.Entry) []Summary {
	out := make([]Summary, len(entries))
	for i, e := range entries {
		out[i] = Summarize(e)
	}
	return out
}
