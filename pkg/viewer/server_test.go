package viewer

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/apidiag/pkg/apilog"
	"github.com/getmockd/apidiag/pkg/inspect"
)

type fixture struct {
	store *apilog.Store
	srv   *Server
	ok    string
	fail  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := apilog.New(nil)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	store.SetEnabled(true)

	ok, _ := store.Begin(apilog.Request{
		Method:  "POST",
		URL:     "https://api.x/v1/users",
		Headers: map[string]string{"Authorization": "Bearer abc"},
		Body:    apilog.JSONBody([]byte(`{"name":"ana"}`)),
	}, 0)
	store.RecordAttempt(ok, 1, apilog.ResponseOutcome(apilog.Response{Status: 201}))
	store.Finish(ok, apilog.ResponseOutcome(apilog.Response{
		Status: 201,
		Data:   apilog.JSONBody([]byte(`{"user":{"id":7}}`)),
	}))

	fail, _ := store.Begin(apilog.Request{Method: "GET", URL: "https://api.x/v2/orders"}, 0)
	store.Finish(fail, apilog.ErrorOutcome(apilog.ErrorInfo{
		Message:  "Request failed with status code 500",
		Response: &apilog.Response{Status: 500},
	}))

	return &fixture{store: store, srv: New(store, WithVersion("1.2.3")), ok: ok, fail: fail}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestStatus(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusResponse{Enabled: true, Count: 2, MaxLogs: 100}, decode[StatusResponse](t, rec))

	rec = f.do(t, http.MethodPut, "/status", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[StatusResponse](t, rec).Enabled)
	assert.False(t, f.store.IsEnabled())
}

func TestPutStatus_Invalid(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{"", "{}", `{"enabled":"yes"}`, `{"enabled":true,"x":1}`} {
		rec := f.do(t, http.MethodPut, "/status", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "bad_request", decode[map[string]string](t, rec)["error"])
	}
	assert.True(t, f.store.IsEnabled())
}

func TestListLogs(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ListResponse](t, rec)
	assert.Equal(t, 2, list.Total)
	require.Len(t, list.Logs, 2)
	assert.Equal(t, f.fail, list.Logs[0].ID, "newest first")
	assert.Equal(t, inspect.StatusServerError, list.Logs[0].Class)

	rec = f.do(t, http.MethodGet, "/logs?filter="+urlEscape(`state == "success"`), "")
	list = decode[ListResponse](t, rec)
	require.Len(t, list.Logs, 1)
	assert.Equal(t, f.ok, list.Logs[0].ID)

	rec = f.do(t, http.MethodGet, "/logs?url=/v2/**", "")
	list = decode[ListResponse](t, rec)
	require.Len(t, list.Logs, 1)
	assert.Equal(t, f.fail, list.Logs[0].ID)

	rec = f.do(t, http.MethodGet, "/logs?limit=1", "")
	list = decode[ListResponse](t, rec)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, 2, list.Total)
}

func urlEscape(s string) string {
	r := strings.NewReplacer(" ", "%20", `"`, "%22", "=", "%3D")
	return r.Replace(s)
}

func TestListLogs_BadQuery(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/logs?filter=status%20%3E%3D", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/logs?limit=x", "").Code)
}

func TestGetLog(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/logs/"+f.ok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var e apilog.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, f.ok, e.ID)
	assert.Equal(t, "[REDACTED]", e.Request.Headers["Authorization"])

	rec = f.do(t, http.MethodGet, "/logs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[map[string]string](t, rec)["error"])
}

func TestCurl(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/logs/"+f.ok+"/curl", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		`curl -X 'POST' 'https://api.x/v1/users' -H 'Authorization: [REDACTED]' --data-raw '{"name":"ana"}'`+"\n",
		rec.Body.String())

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/logs/missing/curl", "").Code)
}

func TestTimeline(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/logs/"+f.ok+"/timeline", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tl := decode[TimelineResponse](t, rec)
	require.Len(t, tl.Items, 1)
	assert.Equal(t, 201, tl.Items[0].Status)
	assert.True(t, tl.Items[0].Final)
}

func TestExtract(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/logs/"+f.ok+"/extract?path=$.response.data.user.id", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{float64(7)}, decode[ExtractResponse](t, rec).Results)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/logs/"+f.ok+"/extract", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/logs/"+f.ok+"/extract?path=$[", "").Code)
}

func TestClearLogs(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodDelete, "/logs", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, f.store.Count())

	rec = f.do(t, http.MethodDelete, "/logs", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestExport(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/export?format=har", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "apidiag-logs.har")
	har := decode[inspect.HAR](t, rec)
	assert.Equal(t, "1.2.3", har.Log.Creator.Version)
	assert.Len(t, har.Log.Entries, 2)

	rec = f.do(t, http.MethodGet, "/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]apilog.Entry](t, rec), 2)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/export?format=xml", "").Code)
}

func TestListenAndServe(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	addrCh := make(chan net.Addr, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- f.srv.ListenAndServe(ctx, "127.0.0.1:0", func(a net.Addr) { addrCh <- a })
	}()

	var addr net.Addr
	select {
	case addr = <-addrCh:
	case err := <-errCh:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr.String() + "/status")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
