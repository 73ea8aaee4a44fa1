// Package openaihttp 提供 OpenAI v1 兼容的 HTTP 处理器，把上游只输出文本的 chat/completions
// 服务包装成带 tool_calls 的接口。
//
// 该包对外只暴露：
// - net/http 形式的 handlers（models/chat.completions）
// - Gin 路由注册方法
// - 可选的 Prometheus 计数器（Config.Metrics）
//
// 每个请求使用一个新的解析器：非流式请求在上游结束后做全量抽取，
// 流式请求把上游增量逐块交给 toolparser.Session，结束时再与全量结果对账。
//
// 使用示例：
//
//	// net/http
//	modelsH, chatH, _ := openaihttp.Handlers(openaihttp.Config{
//		UpstreamURL: "http://127.0.0.1:8000/v1/chat/completions",
//		Models:      []openaihttp.ModelConfig{{ID: "llama-3.1-8b", ToolParser: "llama3_json"}},
//	})
//	mux.HandleFunc("/v1/models", modelsH)
//	mux.HandleFunc("/v1/chat/completions", chatH)
//
//	// gin
//	_ = openaihttp.RegisterGinRoutes(r, openaihttp.Config{
//		BasePath:    "/v1",
//		UpstreamURL: upstreamURL,
//		Models:      models,
//	})
package openaihttp
