package inspect

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/apidiag/pkg/apilog"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func ms(n int64) *int64 { return &n }

func finishedEntry() apilog.Entry {
	return apilog.Entry{
		ID:        "log-1",
		Timestamp: t0,
		Request: apilog.Request{
			Method:  "POST",
			URL:     "https://api.x/v1/users?active=true",
			Headers: map[string]string{"Content-Type": "application/json", "Authorization": "[REDACTED]"},
			Body:    apilog.JSONBody([]byte(`{"name":"ana"}`)),
		},
		Attempts: []apilog.Attempt{
			{AttemptNumber: 1, Timestamp: t0.Add(100 * time.Millisecond), DurationMs: 100, Error: &apilog.ErrorInfo{Message: "connection reset"}},
			{AttemptNumber: 2, Timestamp: t0.Add(250 * time.Millisecond), DurationMs: 50, Response: &apilog.Response{Status: 503, StatusText: "Service Unavailable"}},
			{AttemptNumber: 3, Timestamp: t0.Add(400 * time.Millisecond), DurationMs: 60, Response: &apilog.Response{Status: 201, StatusText: "Created"}},
		},
		Response: &apilog.Response{
			Status:     201,
			StatusText: "Created",
			Headers:    map[string]string{"Content-Type": "application/json"},
			Data:       apilog.JSONBody([]byte(`{"user":{"id":42,"name":"ana"}}`)),
		},
		DurationMs: ms(400),
		Retries:    2,
	}
}

func failedEntry() apilog.Entry {
	return apilog.Entry{
		ID:        "log-2",
		Timestamp: t0.Add(time.Second),
		Request:   apilog.Request{Method: "GET", URL: "https://api.x/v1/orders/7"},
		Attempts: []apilog.Attempt{
			{AttemptNumber: 1, Timestamp: t0.Add(time.Second), Response: &apilog.Response{Status: 404}},
		},
		Error: &apilog.ErrorInfo{
			Message:  "Request failed with status code 404",
			Response: &apilog.Response{Status: 404, Data: apilog.TextBody("not found")},
		},
		DurationMs: ms(12),
	}
}

func pendingEntry() apilog.Entry {
	return apilog.Entry{
		ID:        "log-3",
		Timestamp: t0.Add(2 * time.Second),
		Request:   apilog.Request{Method: "GET", URL: "https://api.x/health"},
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected StatusClass
	}{
		{0, StatusUnknown},
		{101, StatusUnknown},
		{199, StatusUnknown},
		{200, StatusSuccess},
		{299, StatusSuccess},
		{301, StatusRedirect},
		{404, StatusClientError},
		{499, StatusClientError},
		{500, StatusServerError},
		{599, StatusServerError},
		{600, StatusUnknown},
		{-1, StatusUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ClassifyStatus(tt.status), "status %d", tt.status)
	}
}

func TestTimeline(t *testing.T) {
	items := Timeline(finishedEntry())

	require.Len(t, items, 3)
	assert.Equal(t, "error", items[0].Outcome)
	assert.Equal(t, "connection reset", items[0].Message)
	assert.Equal(t, StatusUnknown, items[0].Class)
	assert.Equal(t, int64(100), items[0].OffsetMs)

	assert.Equal(t, 503, items[1].Status)
	assert.Equal(t, StatusServerError, items[1].Class)
	assert.False(t, items[1].Final)

	assert.Equal(t, StatusSuccess, items[2].Class)
	assert.Equal(t, int64(400), items[2].OffsetMs)
	assert.True(t, items[2].Final)
}

func TestTimeline_DoesNotMutate(t *testing.T) {
	e := finishedEntry()
	before := e.Clone()

	_ = Timeline(e)

	assert.Equal(t, before, e)
}

func TestTimeline_Malformed(t *testing.T) {
	items := Timeline(apilog.Entry{Attempts: []apilog.Attempt{{AttemptNumber: 1}}})

	require.Len(t, items, 1)
	assert.Equal(t, "unknown", items[0].Outcome)
	assert.Equal(t, int64(0), items[0].OffsetMs)
	assert.Empty(t, Timeline(apilog.Entry{}))
}

func TestSummarize(t *testing.T) {
	s := Summarize(finishedEntry())
	assert.Equal(t, StateSuccess, s.State)
	assert.Equal(t, 201, s.Status)
	assert.Equal(t, "api.x", s.Host)
	assert.Equal(t, "/v1/users", s.Path)
	assert.Equal(t, 3, s.Attempts)
	assert.Equal(t, 2, s.Retries)

	s = Summarize(failedEntry())
	assert.Equal(t, StateError, s.State)
	assert.Equal(t, 404, s.Status)
	assert.Equal(t, StatusClientError, s.Class)
	assert.Equal(t, "Request failed with status code 404", s.Error)

	s = Summarize(pendingEntry())
	assert.Equal(t, StatePending, s.State)
	assert.Equal(t, StatusUnknown, s.Class)
	assert.Nil(t, s.DurationMs)
}

func TestFilter(t *testing.T) {
	entries := []apilog.Entry{pendingEntry(), failedEntry(), finishedEntry()}

	tests := []struct {
		name       string
		expression string
		glob       string
		expected   []string
	}{
		{"empty matches all", "", "", []string{"log-3", "log-2", "log-1"}},
		{"client errors", `class == "clientError"`, "", []string{"log-2"}},
		{"retried", "retries > 0", "", []string{"log-1"}},
		{"pending", "!finished", "", []string{"log-3"}},
		{"glob", "", "/v1/**", []string{"log-2", "log-1"}},
		{"glob and expr", `method == "GET"`, "/v1/**", []string{"log-2"}},
		{"duration", "duration >= 100", "", []string{"log-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := CompileFilter(tt.expression, tt.glob)
			require.NoError(t, err)

			var ids []string
			for _, e := range f.Apply(entries) {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestCompileFilter_Invalid(t *testing.T) {
	_, err := CompileFilter("status >=", "")
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = CompileFilter(`"not a bool"`, "")
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = CompileFilter("unknownVar == 1", "")
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = CompileFilter("", "/v1/[")
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestFilter_Nil(t *testing.T) {
	var f *Filter
	assert.True(t, f.Match(pendingEntry()))
	assert.Empty(t, f.String())
}

func TestExtract(t *testing.T) {
	e := finishedEntry()

	got, err := Extract(e, "$.response.data.user.id")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{float64(42)}, got)

	got, err = Extract(e, "$.attempts[*].attemptNumber")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = Extract(e, "$.nothing.here")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Extract(e, "$[")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, []apilog.Entry{finishedEntry()}))

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "log-1", decoded[0]["id"])

	buf.Reset()
	require.NoError(t, ExportJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestToHAR(t *testing.T) {
	har := ToHAR([]apilog.Entry{pendingEntry(), failedEntry(), finishedEntry()}, "1.0.0")

	assert.Equal(t, "1.2", har.Log.Version)
	assert.Equal(t, "apidiag", har.Log.Creator.Name)
	require.Len(t, har.Log.Entries, 3)

	first := har.Log.Entries[0]
	assert.Equal(t, "POST", first.Request.Method)
	assert.Equal(t, []HARQuery{{Name: "active", Value: "true"}}, first.Request.QueryString)
	require.NotNil(t, first.Request.PostData)
	assert.Equal(t, "application/json", first.Request.PostData.MimeType)
	assert.Equal(t, 201, first.Response.Status)
	assert.Equal(t, float64(400), first.Time)
	assert.Equal(t, "2 retries", first.Comment)
	assert.Equal(t, "Authorization", first.Request.Headers[0].Name)

	failed := har.Log.Entries[1]
	assert.Equal(t, 404, failed.Response.Status)
	assert.Equal(t, "not found", failed.Response.Content.Text)
	assert.Equal(t, "text/plain", failed.Response.Content.MimeType)

	pending := har.Log.Entries[2]
	assert.Equal(t, 0, pending.Response.Status)
	assert.Nil(t, pending.Request.PostData)
	assert.NotNil(t, pending.Response.Headers)
}

func TestHARHeaders_DeterministicForCaseVariants(t *testing.T) {
	h := map[string]string{
		"x-trace":      "b",
		"X-Trace":      "a",
		"X-TRACE":      "c",
		"Accept":       "*/*",
		"content-type": "text/plain",
		"Content-Type": "application/json",
	}
	want := []HARHeader{
		{Name: "Accept", Value: "*/*"},
		{Name: "Content-Type", Value: "application/json"},
		{Name: "content-type", Value: "text/plain"},
		{Name: "X-TRACE", Value: "c"},
		{Name: "X-Trace", Value: "a"},
		{Name: "x-trace", Value: "b"},
	}
	for i := 0; i < 20; i++ {
		assert.Equal(t, want, harHeaders(h))
		assert.Equal(t, "application/json", mimeType(h, apilog.Body{}))
	}
}

func TestExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatHAR, []apilog.Entry{finishedEntry()}, "dev"))

	var har HAR
	require.NoError(t, json.Unmarshal(buf.Bytes(), &har))
	assert.Len(t, har.Log.Entries, 1)

	_, err := ParseExportFormat("xml")
	assert.Error(t, err)
	f, err := ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
}
