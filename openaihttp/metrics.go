package openaihttp

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 记录 chat/completions 请求与工具调用抽取的计数。nil 接收者上的方法都是空操作。
type Metrics struct {
	requests  *prometheus.CounterVec
	toolCalls *prometheus.CounterVec
	failures  *prometheus.CounterVec
}

const (
	failureStageUpstream  = "upstream"
	failureStageReconcile = "reconcile"
)

// MustNewMetrics 在 reg 上注册计数器；已注册时复用已有的 collector。
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		requests: registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolparse",
			Name:      "chat_requests_total",
			Help:      "Chat completion requests by model, stream mode and finish reason.",
		}, []string{"model", "stream", "finish_reason"})),
		toolCalls: registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolparse",
			Name:      "tool_calls_total",
			Help:      "Tool calls extracted from model output.",
		}, []string{"model", "parser"})),
		failures: registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolparse",
			Name:      "chat_failures_total",
			Help:      "Chat completion requests that failed after model lookup.",
		}, []string{"model", "stage"})),
	}
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) observeCompletion(model, parser string, stream bool, finishReason string, toolCalls int) {
	if m == nil {
		return
	}
	mode := "false"
	if stream {
		mode = "true"
	}
	m.requests.WithLabelValues(model, mode, finishReason).Inc()
	if toolCalls > 0 {
		m.toolCalls.WithLabelValues(model, parser).Add(float64(toolCalls))
	}
}

func (m *Metrics) observeFailure(model, stage string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(model, stage).Inc()
}
