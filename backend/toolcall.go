package backend

import (
	"strings"

	"github.com/LubyRuffy/toolparse/openaiapi"
	"github.com/cloudwego/eino/schema"
)

// SchemaToolCalls 把抽取出的工具调用转换为 eino 的 ToolCall，Index 即调用在输出中的位置。
func SchemaToolCalls(calls []openaiapi.ToolCall) []schema.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]schema.ToolCall, 0, len(calls))
	for i, call := range calls {
		index := i
		out = append(out, schema.ToolCall{
			Index: &index,
			ID:    call.ID,
			Type:  call.Type,
			Function: schema.FunctionCall{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}
	return out
}

// OpenAIToolCalls 把历史消息里的 eino ToolCall 转回 OpenAI 形式，跳过没有 ID 的调用。
func OpenAIToolCalls(calls []schema.ToolCall) []openaiapi.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]openaiapi.ToolCall, 0, len(calls))
	for _, call := range calls {
		callID := strings.TrimSpace(call.ID)
		if callID == "" {
			continue
		}
		callType := strings.TrimSpace(call.Type)
		if callType == "" {
			callType = openaiapi.ToolTypeFunction
		}
		out = append(out, openaiapi.ToolCall{
			ID:   callID,
			Type: callType,
			Function: openaiapi.FunctionCall{
				Name:      strings.TrimSpace(call.Function.Name),
				Arguments: call.Function.Arguments,
			},
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// deltaToolCalls 把一次流式增量里的工具调用片段转换为 eino ToolCall 片段，同一 Index 的相邻片段合并。
// 不同消息里同一 Index 的片段经 schema.ConcatMessages 拼接后就是完整调用。
func deltaToolCalls(calls []openaiapi.DeltaToolCall) []schema.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]schema.ToolCall, 0, len(calls))
	for _, call := range calls {
		var name, args string
		if call.Function != nil {
			if call.Function.Name != nil {
				name = *call.Function.Name
			}
			if call.Function.Arguments != nil {
				args = *call.Function.Arguments
			}
		}
		if n := len(out); n > 0 && *out[n-1].Index == call.Index {
			last := &out[n-1]
			if last.ID == "" {
				last.ID = call.ID
			}
			if last.Type == "" {
				last.Type = call.Type
			}
			if last.Function.Name == "" {
				last.Function.Name = name
			}
			last.Function.Arguments += args
			continue
		}
		index := call.Index
		out = append(out, schema.ToolCall{
			Index:    &index,
			ID:       call.ID,
			Type:     call.Type,
			Function: schema.FunctionCall{Name: name, Arguments: args},
		})
	}
	return out
}
