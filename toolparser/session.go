package toolparser

import (
	"fmt"

	"github.com/LubyRuffy/toolparse/openaiapi"
)

// Session 持有一个请求的解析器与流式状态，按顺序喂入增量文本。
//
// Session 只属于单个请求，不能并发使用，也不能跨请求复用。
// 解析器不支持流式时 Push 只累积文本，全部结果在 Finish 时一次性给出。
type Session struct {
	parser   ToolParser
	state    StreamState
	text     string
	tokenIDs []int
	finished bool
}

// NewSession 为一个新请求创建 Session。
func NewSession(p ToolParser) *Session {
	return &Session{parser: p, state: NewStreamState()}
}

// Push 追加一段增量文本（以及对应的 token id），返回需要转发给客户端的增量；nil 表示这一步没有。
func (s *Session) Push(deltaText string, tokenIDs ...int) (*openaiapi.DeltaMessage, error) {
	if s.finished {
		return nil, fmt.Errorf("toolparser: push after finish")
	}
	delta := StreamDelta{
		PreviousText:     s.text,
		CurrentText:      s.text + deltaText,
		DeltaText:        deltaText,
		PreviousTokenIDs: s.tokenIDs,
		CurrentTokenIDs:  append(append([]int(nil), s.tokenIDs...), tokenIDs...),
		DeltaTokenIDs:    tokenIDs,
	}
	s.text = delta.CurrentText
	s.tokenIDs = delta.CurrentTokenIDs
	if !s.parser.SupportsStreaming() {
		return nil, nil
	}
	state, msg, err := s.parser.ExtractToolCallsStreaming(s.state, delta)
	if err != nil {
		return nil, err
	}
	s.state = state
	return msg, nil
}

// Text 返回目前累积的全部文本。
func (s *Session) Text() string { return s.text }

// State 返回当前流式状态的快照。
func (s *Session) State() StreamState { return s.state.clone() }

// Finish 在生成结束时与全量抽取对账，返回最后需要转发的增量与全量结果。
//
// 纯文本输出时释放之前为等待标记而扣住的正文；已经发送过名称的调用补齐缺少的 arguments 后缀，
// 并在返回的全量结果中沿用流式阶段发出的 ID；尚未发送的调用整体补发。流式阶段已经发出调用而最终文本抽取失败时返回 ErrMalformedToolCall。
func (s *Session) Finish() (*openaiapi.DeltaMessage, openaiapi.ExtractedToolCallInformation, error) {
	s.finished = true
	info := s.parser.ExtractToolCalls(s.text)
	st := s.state
	named := st.NamesSent()

	sent := min(st.ContentSent, len(s.text))
	if !info.ToolsCalled {
		if named > 0 {
			return nil, info, fmt.Errorf("%w: %d tool calls were streamed but the final text has none", ErrMalformedToolCall, named)
		}
		if rest := s.text[sent:]; rest != "" {
			return &openaiapi.DeltaMessage{Content: &rest}, info, nil
		}
		return nil, info, nil
	}
	if named > len(info.ToolCalls) {
		return nil, info, fmt.Errorf("%w: %d tool calls were streamed but the final text has %d", ErrMalformedToolCall, named, len(info.ToolCalls))
	}

	for i := 0; i < named && i < len(st.ToolCallIDs); i++ {
		info.ToolCalls[i].ID = st.ToolCallIDs[i]
	}

	msg := &openaiapi.DeltaMessage{}
	if info.Content != nil && sent < len(*info.Content) {
		rest := (*info.Content)[sent:]
		msg.Content = &rest
	}
	for i, call := range info.ToolCalls {
		if i >= named {
			name := call.Function.Name
			msg.ToolCalls = append(msg.ToolCalls, openaiapi.DeltaToolCall{
				Index:    i,
				ID:       call.ID,
				Type:     call.Type,
				Function: &openaiapi.DeltaFunctionCall{Name: &name},
			})
			if args := call.Function.Arguments; args != "" {
				msg.ToolCalls = append(msg.ToolCalls, openaiapi.DeltaToolCall{
					Index:    i,
					Function: &openaiapi.DeltaFunctionCall{Arguments: &args},
				})
			}
			continue
		}
		if st.PrevToolCalls[i].Name != call.Function.Name {
			return nil, info, fmt.Errorf("%w: tool call %d was streamed as %q but is %q", ErrDiffInvariant, i, st.PrevToolCalls[i].Name, call.Function.Name)
		}
		var streamed string
		if i < len(st.StreamedArgsForTool) {
			streamed = st.StreamedArgsForTool[i]
		}
		suffix, err := Diff(streamed, call.Function.Arguments)
		if err != nil {
			return nil, info, fmt.Errorf("tool call %d: %w", i, err)
		}
		if suffix != "" {
			msg.ToolCalls = append(msg.ToolCalls, openaiapi.DeltaToolCall{
				Index:    i,
				Function: &openaiapi.DeltaFunctionCall{Arguments: &suffix},
			})
		}
	}
	if msg.IsEmpty() {
		return nil, info, nil
	}
	return msg, info, nil
}
