package inspect

import (
	"time"

	"github.com/getmockd/apidiag/pkg/apilog"
)

// TimelineItem is one attempt, ready for display.
type TimelineItem struct {
	Attempt    int         `json:"attempt"`
	Timestamp  time.Time   `json:"timestamp"`
	OffsetMs   int64       `json:"offset"`
	DurationMs int64       `json:"duration"`
	Status     int         `json:"status,omitempty"`
	Class      StatusClass `json:"class"`
	Outcome    string      `json:"outcome"`
	Message    string      `json:"message,omitempty"`
	Final      bool        `json:"final"`
}

// Timeline converts the attempts of e into display items, in attempt order.
// OffsetMs is the completion time relative to the entry creation. The last
// item is marked Final once the entry is finished.
func Timeline(e apilog.Entry) []TimelineItem {
	items := make([]TimelineItem, 0, len(e.Attempts))
	for i, a := range e.Attempts {
		item := TimelineItem{
			Attempt:    a.AttemptNumber,
			Timestamp:  a.Timestamp,
			DurationMs: a.DurationMs,
		}
		if !e.Timestamp.IsZero() && !a.Timestamp.IsZero() {
			item.OffsetMs = max(a.Timestamp.Sub(e.Timestamp).Milliseconds(), 0)
		}
		switch {
		case a.Response != nil:
			item.Outcome = "response"
			item.Status = a.Response.Status
			item.Message = a.Response.StatusText
		case a.Error != nil:
			item.Outcome = "error"
			item.Message = a.Error.Message
			if a.Error.Response != nil {
				item.Status = a.Error.Response.Status
			}
		default:
			item.Outcome = "unknown"
		}
		item.Class = ClassifyStatus(item.Status)
		item.Final = e.Finished() && i == len(e.Attempts)-1
		items = append(items, item)
	}
	return items
}
