package openaiapi

import (
	"time"

	"github.com/google/uuid"
)

// ==================== OpenAI 兼容数据结构 ====================

// OpenAIMessage OpenAI 消息格式。
type OpenAIMessage struct {
	Role       string     `json:"role"`
	Content    any        `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// OpenAITool OpenAI 工具定义。
type OpenAITool struct {
	Type     string             `json:"type"`
	Function OpenAIToolFunction `json:"function"`
}

// OpenAIToolFunction OpenAI 工具函数定义。
type OpenAIToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// OpenAIChatRequest OpenAI 聊天请求格式。
type OpenAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []OpenAIMessage `json:"messages"`
	Stream      bool            `json:"stream"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	Stop        any             `json:"stop,omitempty"`
	Tools       []OpenAITool    `json:"tools,omitempty"`
	// ReasoningEffort 原样透传给上游。
	ReasoningEffort string `json:"reasoning_effort,omitempty"`
}

// OpenAIUsage OpenAI token 使用统计。
type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenAIChoice OpenAI 非流式响应选项。
type OpenAIChoice struct {
	Index        int           `json:"index"`
	Message      OpenAIMessage `json:"message"`
	FinishReason *string       `json:"finish_reason"`
}

// OpenAIChunkChoice OpenAI 流式响应选项。
type OpenAIChunkChoice struct {
	Index        int          `json:"index"`
	Delta        DeltaMessage `json:"delta"`
	FinishReason *string      `json:"finish_reason"`
}

// OpenAIChatCompletion OpenAI 非流式响应。
type OpenAIChatCompletion struct {
	ID                string         `json:"id"`
	Object            string         `json:"object"`
	Created           int64          `json:"created"`
	Model             string         `json:"model"`
	SystemFingerprint string         `json:"system_fingerprint"`
	Choices           []OpenAIChoice `json:"choices"`
	Usage             OpenAIUsage    `json:"usage,omitempty"`
}

// OpenAIChatChunk OpenAI 流式响应块。
type OpenAIChatChunk struct {
	ID                string              `json:"id"`
	Object            string              `json:"object"`
	Created           int64               `json:"created"`
	Model             string              `json:"model"`
	SystemFingerprint string              `json:"system_fingerprint"`
	Choices           []OpenAIChunkChoice `json:"choices"`
	Usage             *OpenAIUsage        `json:"usage,omitempty"`
}

// OpenAIModel OpenAI 模型信息。
type OpenAIModel struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// OpenAIModelList OpenAI 模型列表响应。
type OpenAIModelList struct {
	Object string        `json:"object"`
	Data   []OpenAIModel `json:"data"`
}

// OpenAIError OpenAI 错误响应。
type OpenAIError struct {
	Error struct {
		Message string  `json:"message"`
		Type    string  `json:"type"`
		Param   any     `json:"param"`
		Code    *string `json:"code"`
	} `json:"error"`
}

// ==================== 辅助函数 ====================

const (
	FinishReasonStop      = "stop"
	FinishReasonToolCalls = "tool_calls"
)

// NewChatCompletionID 生成聊天完成 ID。
func NewChatCompletionID() string {
	return "chatcmpl-" + uuid.New().String()[:8]
}

// ToChatChunk 创建流式响应块。
func ToChatChunk(id, model string, delta DeltaMessage, finishReason *string, systemFingerprint string) OpenAIChatChunk {
	return OpenAIChatChunk{
		ID:                id,
		Object:            "chat.completion.chunk",
		Created:           time.Now().Unix(),
		Model:             model,
		SystemFingerprint: systemFingerprint,
		Choices: []OpenAIChunkChoice{
			{
				Index:        0,
				Delta:        delta,
				FinishReason: finishReason,
			},
		},
	}
}

// ToChatCompletion 根据全量抽取结果创建非流式响应。
// 有工具调用时 finish_reason 为 "tool_calls"，content 为 nil 时序列化为 null。
func ToChatCompletion(id, model string, info ExtractedToolCallInformation, promptTokens, completionTokens int, systemFingerprint string) OpenAIChatCompletion {
	finishReason := FinishReasonStop
	msg := OpenAIMessage{Role: "assistant"}
	if info.Content != nil {
		msg.Content = *info.Content
	}
	if info.ToolsCalled && len(info.ToolCalls) > 0 {
		finishReason = FinishReasonToolCalls
		msg.ToolCalls = info.ToolCalls
	}
	return OpenAIChatCompletion{
		ID:                id,
		Object:            "chat.completion",
		Created:           time.Now().Unix(),
		Model:             model,
		SystemFingerprint: systemFingerprint,
		Choices: []OpenAIChoice{
			{
				Index:        0,
				Message:      msg,
				FinishReason: &finishReason,
			},
		},
		Usage: OpenAIUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}
}
