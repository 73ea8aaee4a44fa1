package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/LubyRuffy/toolparse/openaihttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/stretchr/testify/require"
)

func TestAddrForLocalClient(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: ":12345", want: "127.0.0.1:12345"},
		{in: "0.0.0.0:12345", want: "127.0.0.1:12345"},
		{in: "[::]:12345", want: "127.0.0.1:12345"},
		{in: "127.0.0.1:12345", want: "127.0.0.1:12345"},
		{in: "[::1]:12345", want: "[::1]:12345"},
		{in: "not-an-addr", want: "not-an-addr"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			if got := addrForLocalClient(tc.in); got != tc.want {
				t.Fatalf("addrForLocalClient(%q)=%q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNewRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	r, err := newRouter(openaihttp.Config{
		UpstreamURL: "http://127.0.0.1:1/v1/chat/completions",
		Models:      []openaihttp.ModelConfig{{ID: "llama"}},
	}, reg)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"llama"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "go_goroutines")

	preflight := httptest.NewRequest(http.MethodOptions, "/v1/chat/completions", nil)
	preflight.Header.Set("Origin", "http://localhost:3000")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	preflight.Header.Set("Access-Control-Request-Headers", "Authorization")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, preflight)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewRouter_InvalidConfig(t *testing.T) {
	_, err := newRouter(openaihttp.Config{}, prometheus.NewRegistry())
	require.Error(t, err)
}
