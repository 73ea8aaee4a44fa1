package openaihttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LubyRuffy/toolparse/backend"
	"github.com/LubyRuffy/toolparse/internal/jsonx"
	"github.com/LubyRuffy/toolparse/openaiapi"
	"github.com/LubyRuffy/toolparse/toolparser"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"
)

type httpError struct {
	Status  int
	Message string
	Err     error
}

func (e *httpError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

func (e *httpError) Unwrap() error { return e.Err }

// chatModel 是上游的文本模型，工具调用由 handler 按请求解析。
type chatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.Message, error)
	Stream(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.StreamReader[*schema.Message], error)
}

type compatConfig struct {
	Now               func() time.Time
	NewChatCompletion func() string
	WriteJSON         func(w http.ResponseWriter, data interface{})
	WriteOpenAIError  func(w http.ResponseWriter, statusCode int, message string)
	NewChatModel      func(ctx context.Context, model resolvedModel, tools []openaiapi.OpenAITool) (chatModel, error)
	Models            []resolvedModel
	SystemFingerprint string
	Logger            logrus.FieldLogger
	Metrics           *Metrics
}

type compatHandler struct {
	now               func() time.Time
	newChatCompletion func() string
	writeJSON         func(w http.ResponseWriter, data interface{})
	writeOpenAIError  func(w http.ResponseWriter, statusCode int, message string)
	newChatModel      func(ctx context.Context, model resolvedModel, tools []openaiapi.OpenAITool) (chatModel, error)
	models            []resolvedModel
	systemFingerprint string
	log               logrus.FieldLogger
	metrics           *Metrics
}

func newCompatHandler(cfg compatConfig) (*compatHandler, error) {
	if cfg.WriteJSON == nil {
		return nil, fmt.Errorf("WriteJSON is required")
	}
	if cfg.WriteOpenAIError == nil {
		return nil, fmt.Errorf("WriteOpenAIError is required")
	}
	if cfg.NewChatModel == nil {
		return nil, fmt.Errorf("NewChatModel is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewChatCompletion == nil {
		cfg.NewChatCompletion = openaiapi.NewChatCompletionID
	}
	if strings.TrimSpace(cfg.SystemFingerprint) == "" {
		cfg.SystemFingerprint = defaultSystemFingerprint
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &compatHandler{
		now:               cfg.Now,
		newChatCompletion: cfg.NewChatCompletion,
		writeJSON:         cfg.WriteJSON,
		writeOpenAIError:  cfg.WriteOpenAIError,
		newChatModel:      cfg.NewChatModel,
		models:            cfg.Models,
		systemFingerprint: cfg.SystemFingerprint,
		log:               cfg.Logger,
		metrics:           cfg.Metrics,
	}, nil
}

func (h *compatHandler) lookupModel(id string) (resolvedModel, bool) {
	id = strings.TrimSpace(id)
	for _, m := range h.models {
		if m.ID == id {
			return m, true
		}
	}
	return resolvedModel{}, false
}

func (h *compatHandler) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeOpenAIError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	modelsList := make([]openaiapi.OpenAIModel, 0, len(h.models))
	now := h.now().Unix()
	for _, m := range h.models {
		modelsList = append(modelsList, openaiapi.OpenAIModel{
			ID:      m.ID,
			Object:  "model",
			Created: now,
			OwnedBy: "toolparse",
		})
	}

	h.writeJSON(w, openaiapi.OpenAIModelList{
		Object: "list",
		Data:   modelsList,
	})
}

func (h *compatHandler) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeOpenAIError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req openaiapi.OpenAIChatRequest
	if err := jsonx.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeOpenAIError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Model) == "" {
		h.writeOpenAIError(w, http.StatusBadRequest, "model is required")
		return
	}
	model, ok := h.lookupModel(req.Model)
	if !ok {
		h.writeOpenAIError(w, http.StatusBadRequest, "unsupported model")
		return
	}

	messages, err := convertOpenAIChatMessages(req.Messages, h.log)
	if err != nil {
		h.writeOpenAIError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := generationOptions(req)
	if err != nil {
		h.writeOpenAIError(w, http.StatusBadRequest, err.Error())
		return
	}

	parser, err := model.newParser()
	if err != nil {
		h.writeOpenAIError(w, http.StatusInternalServerError, "failed to create tool parser")
		return
	}

	chatModel, err := h.newChatModel(r.Context(), model, req.Tools)
	if err != nil {
		h.writeOpenAIError(w, httpStatusFromError(err), httpMessageFromError(err))
		return
	}

	chatID := h.newChatCompletion()
	log := h.log.WithFields(logrus.Fields{"chat_id": chatID, "model": model.ID, "parser": parser.Name()})

	if req.Stream {
		h.handleStreamResponse(w, r, chatID, model, chatModel, parser, messages, opts, log)
		return
	}

	respMsg, err := chatModel.Generate(r.Context(), messages, opts...)
	if err != nil {
		log.WithError(err).Error("upstream generate failed")
		h.metrics.observeFailure(model.ID, failureStageUpstream)
		h.writeOpenAIError(w, httpStatusFromError(err), httpMessageFromError(err))
		return
	}

	content := ""
	var usage *schema.TokenUsage
	if respMsg != nil {
		content = respMsg.Content
		if respMsg.ResponseMeta != nil {
			usage = respMsg.ResponseMeta.Usage
		}
	}
	info := parser.ExtractToolCalls(content)
	promptTokens, completionTokens := usageTokens(usage)
	completion := openaiapi.ToChatCompletion(chatID, req.Model, info, promptTokens, completionTokens, h.systemFingerprint)
	completion.Created = h.now().Unix()
	log.WithField("tool_calls", len(info.ToolCalls)).Debug("chat completion done")
	finishReason := openaiapi.FinishReasonStop
	if info.ToolsCalled {
		finishReason = openaiapi.FinishReasonToolCalls
	}
	h.metrics.observeCompletion(model.ID, model.ParserName, false, finishReason, len(info.ToolCalls))

	h.writeJSON(w, completion)
}

func (h *compatHandler) handleStreamResponse(
	w http.ResponseWriter,
	r *http.Request,
	chatID string,
	model resolvedModel,
	chatModel chatModel,
	parser toolparser.ToolParser,
	messages []*schema.Message,
	opts []einoModel.Option,
	log logrus.FieldLogger,
) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeOpenAIError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sr, err := chatModel.Stream(r.Context(), messages, opts...)
	if err != nil {
		log.WithError(err).Error("upstream stream failed")
		h.metrics.observeFailure(model.ID, failureStageUpstream)
		h.writeOpenAIError(w, httpStatusFromError(err), httpMessageFromError(err))
		return
	}
	defer sr.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	writeChunk := func(chunk any) {
		data, _ := jsonx.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
	newChunk := func(delta openaiapi.DeltaMessage, finishReason *string) openaiapi.OpenAIChatChunk {
		chunk := openaiapi.ToChatChunk(chatID, model.ID, delta, finishReason, h.systemFingerprint)
		chunk.Created = h.now().Unix()
		return chunk
	}
	fail := func(status int, err error) {
		writeChunk(openAIError(status, httpMessageFromError(err)))
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}

	writeChunk(newChunk(openaiapi.DeltaMessage{Role: "assistant"}, nil))

	session := toolparser.NewSession(parser)
	var usage *schema.TokenUsage
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.WithError(err).Error("upstream stream interrupted")
			h.metrics.observeFailure(model.ID, failureStageUpstream)
			fail(httpStatusFromError(err), err)
			return
		}
		if msg == nil {
			continue
		}
		if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
			usage = msg.ResponseMeta.Usage
		}
		if msg.Content == "" {
			continue
		}
		delta, err := session.Push(msg.Content)
		if err != nil {
			log.WithError(err).Error("tool call streaming failed")
			h.metrics.observeFailure(model.ID, failureStageReconcile)
			fail(http.StatusInternalServerError, err)
			return
		}
		if delta != nil {
			writeChunk(newChunk(*delta, nil))
		}
	}

	last, info, err := session.Finish()
	if err != nil {
		log.WithError(err).WithField("text", session.Text()).Error("streamed tool calls do not match the final output")
		h.metrics.observeFailure(model.ID, failureStageReconcile)
		fail(http.StatusInternalServerError, err)
		return
	}
	if last != nil {
		writeChunk(newChunk(*last, nil))
	}

	finishReason := openaiapi.FinishReasonStop
	if info.ToolsCalled {
		finishReason = openaiapi.FinishReasonToolCalls
	}
	final := newChunk(openaiapi.DeltaMessage{}, &finishReason)
	if usage != nil {
		promptTokens, completionTokens := usageTokens(usage)
		final.Usage = &openaiapi.OpenAIUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		}
	}
	writeChunk(final)
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
	log.WithField("tool_calls", len(info.ToolCalls)).Debug("chat completion stream done")
	h.metrics.observeCompletion(model.ID, model.ParserName, true, finishReason, len(info.ToolCalls))
}

// generationOptions 把请求里的采样参数转换为 eino 调用选项。
func generationOptions(req openaiapi.OpenAIChatRequest) ([]einoModel.Option, error) {
	var opts []einoModel.Option
	if req.MaxTokens != nil {
		opts = append(opts, einoModel.WithMaxTokens(*req.MaxTokens))
	}
	if req.Temperature != nil {
		opts = append(opts, einoModel.WithTemperature(float32(*req.Temperature)))
	}
	if req.TopP != nil {
		opts = append(opts, einoModel.WithTopP(float32(*req.TopP)))
	}
	switch stop := req.Stop.(type) {
	case nil:
	case string:
		if stop != "" {
			opts = append(opts, einoModel.WithStop([]string{stop}))
		}
	case []interface{}:
		words := make([]string, 0, len(stop))
		for _, item := range stop {
			word, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("stop must be a string or an array of strings")
			}
			words = append(words, word)
		}
		if len(words) > 0 {
			opts = append(opts, einoModel.WithStop(words))
		}
	default:
		return nil, fmt.Errorf("stop must be a string or an array of strings")
	}
	if effort := strings.TrimSpace(req.ReasoningEffort); effort != "" {
		opts = append(opts, backend.WithReasoningEffort(effort))
	}
	return opts, nil
}

func usageTokens(usage *schema.TokenUsage) (int, int) {
	if usage == nil {
		return 0, 0
	}
	return usage.PromptTokens, usage.CompletionTokens
}

func convertOpenAIChatMessages(messages []openaiapi.OpenAIMessage, log logrus.FieldLogger) ([]*schema.Message, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages is required")
	}

	result := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		role := strings.TrimSpace(msg.Role)
		if role == "" {
			return nil, fmt.Errorf("message role is required")
		}

		content, err := openAIContentToText(msg.Content)
		if err != nil {
			return nil, err
		}

		switch role {
		case "system":
			result = append(result, schema.SystemMessage(content))
		case "user":
			result = append(result, schema.UserMessage(content))
		case "assistant":
			toolCalls := backend.SchemaToolCalls(msg.ToolCalls)
			if content == "" && len(toolCalls) == 0 {
				continue
			}
			result = append(result, &schema.Message{
				Role:      schema.Assistant,
				Content:   content,
				ToolCalls: toolCalls,
			})
		case "tool":
			if strings.TrimSpace(msg.ToolCallID) == "" {
				return nil, fmt.Errorf("tool message requires tool_call_id")
			}
			if strings.TrimSpace(content) == "" {
				log.WithField("tool_call_id", msg.ToolCallID).Debug("skip empty tool content")
				continue
			}
			result = append(result, schema.ToolMessage(content, msg.ToolCallID))
		default:
			return nil, fmt.Errorf("unsupported role: %s", role)
		}
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("no valid messages to send")
	}
	return result, nil
}

func openAIContentToText(content any) (string, error) {
	if content == nil {
		return "", nil
	}

	if text, ok := content.(string); ok {
		return text, nil
	}

	parts, ok := content.([]interface{})
	if !ok {
		return "", fmt.Errorf("unsupported message content")
	}

	builder := strings.Builder{}
	for _, part := range parts {
		partMap, ok := part.(map[string]interface{})
		if !ok {
			continue
		}
		partType, _ := partMap["type"].(string)
		if partType != "text" && partType != "input_text" {
			continue
		}
		if textValue, ok := partMap["text"].(string); ok {
			builder.WriteString(textValue)
			continue
		}
		if textObj, ok := partMap["text"].(map[string]interface{}); ok {
			if value, ok := textObj["value"].(string); ok {
				builder.WriteString(value)
			}
		}
	}

	return builder.String(), nil
}

func httpStatusFromError(err error) int {
	var httpErr *httpError
	if errors.As(err, &httpErr) && httpErr != nil && httpErr.Status != 0 {
		return httpErr.Status
	}
	var upstreamErr *backend.UpstreamError
	if errors.As(err, &upstreamErr) {
		switch {
		case upstreamErr.StatusCode == http.StatusTooManyRequests:
			return http.StatusTooManyRequests
		case upstreamErr.StatusCode >= 400 && upstreamErr.StatusCode < 500:
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func httpMessageFromError(err error) string {
	var httpErr *httpError
	if errors.As(err, &httpErr) && httpErr != nil && strings.TrimSpace(httpErr.Message) != "" {
		return httpErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
