// Package openaiapi 提供 OpenAI v1 兼容接口的数据结构与辅助函数。
//
// 除了聊天请求/响应与 SSE chunk 结构，本包还定义工具调用抽取引擎的输出模型：
// 全量模式的 ExtractedToolCallInformation 与流式模式的 DeltaMessage。
// 字段名（tool_calls、function、name、arguments、id、type）与 OpenAI 的工具调用协议一致。
//
// 示例：把一个流式增量包装成 SSE chunk
//
//	name := "get_weather"
//	delta := openaiapi.DeltaMessage{ToolCalls: []openaiapi.DeltaToolCall{{
//		Index: 0, ID: openaiapi.NewToolCallID(), Type: openaiapi.ToolTypeFunction,
//		Function: &openaiapi.DeltaFunctionCall{Name: &name},
//	}}}
//	chunk := openaiapi.ToChatChunk("chatcmpl-xxx", "llama3", delta, nil, "fp_example")
//	_ = json.NewEncoder(w).Encode(chunk)
package openaiapi
