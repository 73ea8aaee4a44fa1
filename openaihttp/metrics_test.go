package openaihttp_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/LubyRuffy/toolparse/openaihttp"
	"github.com/LubyRuffy/toolparse/tokenizer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountsCompletionsAndToolCalls(t *testing.T) {
	text := `<tool_call>{"name": "a", "arguments": {}}</tool_call><tool_call>{"name": "b", "arguments": {"x": 1}}</tool_call>`
	upstream, _ := newUpstream(t, text)

	reg := prometheus.NewRegistry()
	_, chatHandler, err := openaihttp.Handlers(openaihttp.Config{
		UpstreamURL: upstream.URL,
		Models: []openaihttp.ModelConfig{
			{ID: "qwen", ToolParser: "qwen", Tokenizer: tokenizer.FromTokens(151657, "<tool_call>", "</tool_call>")},
		},
		Metrics: openaihttp.MustNewMetrics(reg),
	})
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, postChat(t, chatHandler, `{"model":"qwen","messages":[{"role":"user","content":"hi"}]}`).Code)
	require.Equal(t, http.StatusOK, postChat(t, chatHandler, `{"model":"qwen","stream":true,"messages":[{"role":"user","content":"hi"}]}`).Code)

	expected := `
# HELP toolparse_chat_requests_total Chat completion requests by model, stream mode and finish reason.
# TYPE toolparse_chat_requests_total counter
toolparse_chat_requests_total{finish_reason="tool_calls",model="qwen",stream="false"} 1
toolparse_chat_requests_total{finish_reason="tool_calls",model="qwen",stream="true"} 1
# HELP toolparse_tool_calls_total Tool calls extracted from model output.
# TYPE toolparse_tool_calls_total counter
toolparse_tool_calls_total{model="qwen",parser="hermes"} 4
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"toolparse_chat_requests_total", "toolparse_tool_calls_total"))
}

func TestMetrics_CountsUpstreamFailures(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "down")
	}))
	t.Cleanup(upstream.Close)

	reg := prometheus.NewRegistry()
	_, chatHandler, err := openaihttp.Handlers(openaihttp.Config{
		UpstreamURL: upstream.URL,
		Models:      []openaihttp.ModelConfig{{ID: "llama"}},
		Metrics:     openaihttp.MustNewMetrics(reg),
	})
	require.NoError(t, err)

	postChat(t, chatHandler, `{"model":"llama","messages":[{"role":"user","content":"hi"}]}`)
	postChat(t, chatHandler, `{"model":"llama","stream":true,"messages":[{"role":"user","content":"hi"}]}`)

	expected := `
# HELP toolparse_chat_failures_total Chat completion requests that failed after model lookup.
# TYPE toolparse_chat_failures_total counter
toolparse_chat_failures_total{model="llama",stage="upstream"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "toolparse_chat_failures_total"))
}

func TestMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() {
		openaihttp.MustNewMetrics(reg)
		openaihttp.MustNewMetrics(reg)
	})
}

func TestMetrics_NilIsNoop(t *testing.T) {
	upstream, _ := newUpstream(t, "ok")
	_, chatHandler := newHandlers(t, upstream.URL)
	require.Equal(t, http.StatusOK, postChat(t, chatHandler, `{"model":"llama","messages":[{"role":"user","content":"hi"}]}`).Code)
}
