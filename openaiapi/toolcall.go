package openaiapi

import (
	"strings"

	"github.com/google/uuid"
)

// ToolTypeFunction 是目前唯一的工具调用类型。
const ToolTypeFunction = "function"

// FunctionCall 工具调用的函数部分；Arguments 是 JSON 对象的文本而不是解析后的结构。
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall 非流式结果中的一次完整工具调用。
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// ExtractedToolCallInformation 全量抽取的结果。
//
// Content 为 nil 表示整段输出都是工具调用标记；没有识别出调用时 Content 为原文。
type ExtractedToolCallInformation struct {
	ToolsCalled bool       `json:"tools_called"`
	ToolCalls   []ToolCall `json:"tool_calls"`
	Content     *string    `json:"content"`
}

// NoToolCalls 返回"没有工具调用"的结果，content 原样保留。
func NoToolCalls(content string) ExtractedToolCallInformation {
	return ExtractedToolCallInformation{
		ToolCalls: []ToolCall{},
		Content:   &content,
	}
}

// DeltaFunctionCall 流式增量中的函数片段，字段仅在新出现时设置。
type DeltaFunctionCall struct {
	Name      *string `json:"name,omitempty"`
	Arguments *string `json:"arguments,omitempty"`
}

// DeltaToolCall 流式增量中对第 Index 个工具调用槽位的补充。
type DeltaToolCall struct {
	Index    int                `json:"index"`
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function *DeltaFunctionCall `json:"function,omitempty"`
}

// DeltaMessage 一次流式调用产生的增量，同时也是流式 chunk 的 delta。
type DeltaMessage struct {
	Role      string          `json:"role,omitempty"`
	Content   *string         `json:"content,omitempty"`
	ToolCalls []DeltaToolCall `json:"tool_calls,omitempty"`
}

// IsEmpty 判断 delta 是否不携带任何需要转发的信息。
func (m *DeltaMessage) IsEmpty() bool {
	return m == nil || (m.Role == "" && m.Content == nil && len(m.ToolCalls) == 0)
}

// NewToolCallID 生成 OpenAI 风格的工具调用 ID：chatcmpl-tool-<32 位十六进制>。
func NewToolCallID() string {
	return "chatcmpl-tool-" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// NewShortToolCallID 生成 9 位字母数字 ID（Mistral API 的要求）。
func NewShortToolCallID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:9]
}
