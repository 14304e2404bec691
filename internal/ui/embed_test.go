package ui

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestHandler(t *testing.T) {
	h, err := Handler()
	require.NoError(t, err)

	tests := []struct {
		name   string
		target string
		code   int
		body   string
	}{
		{"index", "/", http.StatusOK, "<title>focus</title>"},
		{"script", "/app.js", http.StatusOK, "/timer/ws"},
		{"client route", "/history", http.StatusOK, "<title>focus</title>"},
		{"missing asset", "/missing.png", http.StatusNotFound, ""},
		{"api path", "/api/v1/nope", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, h, tt.target)
			assert.Equal(t, tt.code, w.Code)
			if tt.body != "" {
				assert.Contains(t, w.Body.String(), tt.body)
			}
		})
	}
}
