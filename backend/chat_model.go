package backend

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/LubyRuffy/toolparse/internal/jsonx"
	"github.com/LubyRuffy/toolparse/openaiapi"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type ChatModelConfig struct {
	Model string
	// UpstreamURL 是上游 chat/completions 端点的完整地址。
	UpstreamURL string
	// APIKey 可选，非空时以 Authorization: Bearer 发送。
	APIKey      string
	HTTPClient  *http.Client
	Temperature *float32
	TopP        *float32
	MaxTokens   *int
	Stop        []string
	// ReasoningEffort 透传到上游 `reasoning_effort`。
	ReasoningEffort string
}

// ChatModel 是基于上游 OpenAI 兼容 chat/completions SSE 接口的 ToolCallingChatModel 实现。
//
// 上游只返回原始文本，工具调用由 ToolCallingModel 从文本中解析。
type ChatModel struct {
	config ChatModelConfig
	tools  []openaiapi.OpenAITool
}

var _ einoModel.ToolCallingChatModel = (*ChatModel)(nil)

func NewChatModel(config ChatModelConfig) (*ChatModel, error) {
	if strings.TrimSpace(config.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if strings.TrimSpace(config.UpstreamURL) == "" {
		return nil, fmt.Errorf("upstream url is required")
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	return &ChatModel{config: config}, nil
}

// chatOptions 是 ChatModel 特有的调用选项。
type chatOptions struct {
	reasoningEffort string
}

// WithReasoningEffort 覆盖本次调用透传给上游的 reasoning_effort。
func WithReasoningEffort(effort string) einoModel.Option {
	return einoModel.WrapImplSpecificOptFn(func(o *chatOptions) {
		o.reasoningEffort = effort
	})
}

// errStreamClosed 表示调用方已经关闭了输出流，不必再读上游。
var errStreamClosed = errors.New("stream closed by consumer")

func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.Message, error) {
	var meta schema.ResponseMeta
	content, err := m.doStreamRequest(ctx, input, opts, func(upstreamDelta) error { return nil }, &meta)
	if err != nil {
		return nil, err
	}
	msg := schema.AssistantMessage(content, nil)
	msg.ResponseMeta = &meta
	return msg, nil
}

func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	sr, sw := schema.Pipe[*schema.Message](64)
	go func() {
		defer sw.Close()
		_, err := m.doStreamRequest(ctx, input, opts, func(delta upstreamDelta) error {
			if delta.content == "" && delta.finishReason == "" && delta.usage == nil {
				return nil
			}
			msg := &schema.Message{Role: schema.Assistant, Content: delta.content}
			if delta.finishReason != "" || delta.usage != nil {
				msg.ResponseMeta = &schema.ResponseMeta{FinishReason: delta.finishReason, Usage: delta.usage}
			}
			if closed := sw.Send(msg, nil); closed {
				return errStreamClosed
			}
			return nil
		}, nil)
		if err != nil && !errors.Is(err, errStreamClosed) {
			sw.Send(nil, err)
		}
	}()
	return sr, nil
}

// WithTools 把 eino 工具声明转换为 OpenAI tools 透传给上游，由上游的对话模板渲染进提示词。
func (m *ChatModel) WithTools(tools []*schema.ToolInfo) (einoModel.ToolCallingChatModel, error) {
	converted, err := OpenAIToolsFromToolInfos(tools)
	if err != nil {
		return nil, err
	}
	return m.WithOpenAITools(converted), nil
}

// WithOpenAITools 直接使用客户端请求里的 tools。
func (m *ChatModel) WithOpenAITools(tools []openaiapi.OpenAITool) *ChatModel {
	cloned := *m
	cloned.tools = FunctionToolsFromOpenAITools(tools)
	return &cloned
}

func (m *ChatModel) doStreamRequest(ctx context.Context, input []*schema.Message, opts []einoModel.Option, onDelta func(upstreamDelta) error, meta *schema.ResponseMeta) (string, error) {
	payload, err := m.buildRequestPayload(input, opts...)
	if err != nil {
		return "", err
	}

	bodyBytes, err := jsonx.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode upstream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.UpstreamURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to build upstream request: %w", err)
	}

	if strings.TrimSpace(m.config.APIKey) != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", m.config.APIKey))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := m.config.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return readUpstreamSSE(ctx, resp.Body, func(delta upstreamDelta) error {
		if meta != nil {
			if delta.finishReason != "" {
				meta.FinishReason = delta.finishReason
			}
			if delta.usage != nil {
				meta.Usage = delta.usage
			}
		}
		return onDelta(delta)
	})
}

// UpstreamError 是上游返回的非 2xx 响应。
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream request failed with status %d: %s", e.StatusCode, e.Body)
}

type requestMessage struct {
	Role       string               `json:"role"`
	Content    string               `json:"content"`
	Name       string               `json:"name,omitempty"`
	ToolCalls  []openaiapi.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string               `json:"tool_call_id,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type requestPayload struct {
	Model           string                 `json:"model"`
	Messages        []requestMessage       `json:"messages"`
	Tools           []openaiapi.OpenAITool `json:"tools,omitempty"`
	Stream          bool                   `json:"stream"`
	StreamOptions   *streamOptions         `json:"stream_options,omitempty"`
	Temperature     *float32               `json:"temperature,omitempty"`
	TopP            *float32               `json:"top_p,omitempty"`
	MaxTokens       *int                   `json:"max_tokens,omitempty"`
	Stop            []string               `json:"stop,omitempty"`
	ReasoningEffort string                 `json:"reasoning_effort,omitempty"`
}

// buildRequestPayload 组装上游请求；opts 中的通用选项覆盖 ChatModelConfig 里的默认值。
func (m *ChatModel) buildRequestPayload(input []*schema.Message, opts ...einoModel.Option) (*requestPayload, error) {
	common := einoModel.GetCommonOptions(&einoModel.Options{
		Model:       &m.config.Model,
		Temperature: m.config.Temperature,
		TopP:        m.config.TopP,
		MaxTokens:   m.config.MaxTokens,
		Stop:        m.config.Stop,
	}, opts...)
	specific := einoModel.GetImplSpecificOptions(&chatOptions{reasoningEffort: m.config.ReasoningEffort}, opts...)

	messages := make([]requestMessage, 0, len(input))

	for _, msg := range input {
		if msg == nil {
			continue
		}
		if msg.Role == schema.Tool {
			callID := strings.TrimSpace(msg.ToolCallID)
			if callID == "" {
				continue
			}
			messages = append(messages, requestMessage{
				Role:       string(schema.Tool),
				Content:    msg.Content,
				ToolCallID: callID,
			})
			continue
		}

		item := requestMessage{
			Role:      string(msg.Role),
			Content:   resolveMessageContent(msg),
			Name:      msg.Name,
			ToolCalls: OpenAIToolCalls(msg.ToolCalls),
		}
		if item.Content == "" && len(item.ToolCalls) == 0 {
			continue
		}
		messages = append(messages, item)
	}

	if len(messages) == 0 {
		return nil, fmt.Errorf("no valid messages to send")
	}

	model := m.config.Model
	if common.Model != nil && strings.TrimSpace(*common.Model) != "" {
		model = *common.Model
	}
	return &requestPayload{
		Model:           model,
		Messages:        messages,
		Tools:           m.tools,
		Stream:          true,
		StreamOptions:   &streamOptions{IncludeUsage: true},
		Temperature:     common.Temperature,
		TopP:            common.TopP,
		MaxTokens:       common.MaxTokens,
		Stop:            common.Stop,
		ReasoningEffort: normalizeReasoningEffort(specific.reasoningEffort),
	}, nil
}

func normalizeReasoningEffort(s string) string {
	trimmed := strings.TrimSpace(s)
	switch strings.ToLower(trimmed) {
	case "", "undefined", "[undefined]", "null", "[null]":
		return ""
	default:
		return trimmed
	}
}

func resolveMessageContent(msg *schema.Message) string {
	if msg.Content != "" {
		return msg.Content
	}
	if len(msg.UserInputMultiContent) > 0 {
		var builder strings.Builder
		for _, part := range msg.UserInputMultiContent {
			if part.Type == schema.ChatMessagePartTypeText {
				builder.WriteString(part.Text)
			}
		}
		return builder.String()
	}
	return ""
}

// upstreamDelta 是一个 SSE 事件里对调用方有意义的部分。
type upstreamDelta struct {
	content      string
	finishReason string
	usage        *schema.TokenUsage
}

type upstreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *openaiapi.OpenAIUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func readUpstreamSSE(ctx context.Context, body io.Reader, onDelta func(upstreamDelta) error) (string, error) {
	reader := bufio.NewReader(body)
	var dataLines []string
	var fullContent strings.Builder

	for {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(dataLines) > 0 {
					if err := handleUpstreamEvent(strings.Join(dataLines, "\n"), &fullContent, onDelta); err != nil {
						return "", err
					}
				}
				return fullContent.String(), nil
			}
			return "", err
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if len(dataLines) == 0 {
				continue
			}
			if err := handleUpstreamEvent(strings.Join(dataLines, "\n"), &fullContent, onDelta); err != nil {
				return "", err
			}
			dataLines = dataLines[:0]
			continue
		}

		if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				if len(dataLines) > 0 {
					if err := handleUpstreamEvent(strings.Join(dataLines, "\n"), &fullContent, onDelta); err != nil {
						return "", err
					}
				}
				return fullContent.String(), nil
			}
			if data != "" {
				dataLines = append(dataLines, data)
			}
		}
	}
}

func handleUpstreamEvent(payload string, fullContent *strings.Builder, onDelta func(upstreamDelta) error) error {
	var chunk upstreamChunk
	if err := jsonx.Unmarshal([]byte(payload), &chunk); err != nil {
		return nil
	}
	if chunk.Error != nil {
		message := strings.TrimSpace(chunk.Error.Message)
		if message == "" {
			message = "unknown error"
		}
		return fmt.Errorf("upstream response error: %s", message)
	}

	var delta upstreamDelta
	if len(chunk.Choices) > 0 {
		choice := chunk.Choices[0]
		delta.content = choice.Delta.Content
		if choice.FinishReason != nil {
			delta.finishReason = *choice.FinishReason
		}
	}
	if chunk.Usage != nil {
		delta.usage = &schema.TokenUsage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalTokens:      chunk.Usage.TotalTokens,
		}
	}
	fullContent.WriteString(delta.content)
	if onDelta != nil {
		return onDelta(delta)
	}
	return nil
}
