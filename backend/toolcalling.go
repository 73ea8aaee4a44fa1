package backend

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/LubyRuffy/toolparse/openaiapi"
	"github.com/LubyRuffy/toolparse/toolparser"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ParserFactory 为每次调用构造一个解析器。
type ParserFactory func() (toolparser.ToolParser, error)

// NewParserFactory 按解析器族名称构造工厂，构造时先校验一次名称与 tokenizer。
func NewParserFactory(name string, tok toolparser.Tokenizer, opts ...toolparser.Option) (ParserFactory, error) {
	if _, err := toolparser.New(name, tok, opts...); err != nil {
		return nil, err
	}
	return func() (toolparser.ToolParser, error) {
		return toolparser.New(name, tok, opts...)
	}, nil
}

// ToolCallingModel 包装一个只输出文本的 eino 模型，从文本中解析出工具调用。
//
// Generate 做全量抽取；Stream 逐块喂给 toolparser.Session，输出的 ToolCall 片段按 Index 拼接。
type ToolCallingModel struct {
	model     einoModel.BaseChatModel
	newParser ParserFactory
}

var _ einoModel.ToolCallingChatModel = (*ToolCallingModel)(nil)

func NewToolCallingModel(model einoModel.BaseChatModel, newParser ParserFactory) (*ToolCallingModel, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if newParser == nil {
		return nil, fmt.Errorf("parser factory is required")
	}
	return &ToolCallingModel{model: model, newParser: newParser}, nil
}

func (m *ToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.Message, error) {
	parser, err := m.newParser()
	if err != nil {
		return nil, err
	}
	msg, err := m.model.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("model returned no message")
	}
	info := parser.ExtractToolCalls(msg.Content)
	out := &schema.Message{
		Role:         schema.Assistant,
		ToolCalls:    SchemaToolCalls(info.ToolCalls),
		ResponseMeta: responseMeta(msg.ResponseMeta, info.ToolsCalled),
	}
	if info.Content != nil {
		out.Content = *info.Content
	}
	return out, nil
}

func (m *ToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	parser, err := m.newParser()
	if err != nil {
		return nil, err
	}
	in, err := m.model.Stream(ctx, input, opts...)
	if err != nil {
		return nil, err
	}

	sr, sw := schema.Pipe[*schema.Message](64)
	go func() {
		defer sw.Close()
		defer in.Close()

		session := toolparser.NewSession(parser)
		var meta *schema.ResponseMeta
		for {
			chunk, err := in.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				sw.Send(nil, err)
				return
			}
			if chunk == nil {
				continue
			}
			if chunk.ResponseMeta != nil {
				meta = chunk.ResponseMeta
			}
			delta, err := session.Push(chunk.Content)
			if err != nil {
				sw.Send(nil, err)
				return
			}
			if out := messageFromDelta(delta); out != nil {
				if closed := sw.Send(out, nil); closed {
					return
				}
			}
		}

		last, info, err := session.Finish()
		if err != nil {
			sw.Send(nil, err)
			return
		}
		out := messageFromDelta(last)
		if out == nil {
			out = &schema.Message{Role: schema.Assistant}
		}
		out.ResponseMeta = responseMeta(meta, info.ToolsCalled)
		sw.Send(out, nil)
	}()
	return sr, nil
}

// WithTools 把工具声明交给被包装的模型，返回新的包装。
func (m *ToolCallingModel) WithTools(tools []*schema.ToolInfo) (einoModel.ToolCallingChatModel, error) {
	tc, ok := m.model.(einoModel.ToolCallingChatModel)
	if !ok {
		return nil, fmt.Errorf("wrapped model %T does not accept tools", m.model)
	}
	inner, err := tc.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &ToolCallingModel{model: inner, newParser: m.newParser}, nil
}

func messageFromDelta(delta *openaiapi.DeltaMessage) *schema.Message {
	if delta.IsEmpty() {
		return nil
	}
	out := &schema.Message{
		Role:      schema.Assistant,
		ToolCalls: deltaToolCalls(delta.ToolCalls),
	}
	if delta.Content != nil {
		out.Content = *delta.Content
	}
	return out
}

func responseMeta(meta *schema.ResponseMeta, toolsCalled bool) *schema.ResponseMeta {
	out := &schema.ResponseMeta{}
	if meta != nil {
		cp := *meta
		out = &cp
	}
	if toolsCalled {
		out.FinishReason = openaiapi.FinishReasonToolCalls
	} else if out.FinishReason == "" {
		out.FinishReason = openaiapi.FinishReasonStop
	}
	return out
}
