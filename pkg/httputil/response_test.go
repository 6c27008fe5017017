package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteJSON(rec, http.StatusOK, map[string]int{"count": 2})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"count":2}`, rec.Body.String())
}

func TestWriteJSON_NilData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusAccepted, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		code   string
	}{
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "nope") }, http.StatusBadRequest, CodeBadRequest},
		{"not found", func(w http.ResponseWriter) { WriteNotFound(w, "nope") }, http.StatusNotFound, CodeNotFound},
		{"internal", func(w http.ResponseWriter) { WriteInternalError(w, "nope") }, http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			assert.Equal(t, tt.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["error"])
			assert.Equal(t, "nope", body["message"])
		})
	}
}

func TestWriteText(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteText(rec, http.StatusOK, "curl -X 'GET' 'https://api.x'")
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "curl -X 'GET' 'https://api.x'", rec.Body.String())
}

func TestWriteNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteNoContent(rec)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Enabled bool `json:"enabled"`
	}

	r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"enabled":true}`))
	require.NoError(t, DecodeJSON(r, &v, 0))
	assert.True(t, v.Enabled)

	r = httptest.NewRequest(http.MethodPut, "/", strings.NewReader(""))
	assert.EqualError(t, DecodeJSON(r, &v, 0), "request body is empty")

	r = httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"other":1}`))
	assert.Error(t, DecodeJSON(r, &v, 0))

	r = httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"enabled":true}`))
	assert.Error(t, DecodeJSON(r, &v, 4), "truncated by limit")
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=5&bad=x&neg=-1", nil)

	n, err := QueryInt(r, "limit", 10)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = QueryInt(r, "missing", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	_, err = QueryInt(r, "bad", 10)
	assert.Error(t, err)
	_, err = QueryInt(r, "neg", 10)
	assert.Error(t, err)
}
