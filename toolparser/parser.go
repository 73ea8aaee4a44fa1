package toolparser

import (
	"fmt"

	"github.com/LubyRuffy/toolparse"
	"github.com/LubyRuffy/toolparse/openaiapi"
	"github.com/LubyRuffy/toolparse/partialjson"
	"github.com/sirupsen/logrus"
)

// ToolParser 是所有格式实现共享的契约。
//
// 解析器在构造后不可变；流式抽取的全部可变信息都在 StreamState 中，由调用方逐次传入传出。
type ToolParser interface {
	Name() string
	SupportsStreaming() bool
	// ExtractToolCalls 从完整输出中抽取工具调用。任何解码失败都会退化为"没有工具调用"，
	// content 为原文，失败只写入日志。
	ExtractToolCalls(modelOutput string) openaiapi.ExtractedToolCallInformation
	// ExtractToolCallsStreaming 根据累积文本计算本次需要转发的增量。
	// 返回 nil delta 表示这一步没有需要转发的内容。
	ExtractToolCallsStreaming(state StreamState, delta StreamDelta) (StreamState, *openaiapi.DeltaMessage, error)
}

// Tokenizer 是解析器需要的 tokenizer 能力：特殊 token 词表。
type Tokenizer interface {
	Vocab() map[string]int
}

// StreamDelta 是一次流式调用的输入。
type StreamDelta struct {
	PreviousText     string
	CurrentText      string
	DeltaText        string
	PreviousTokenIDs []int
	CurrentTokenIDs  []int
	DeltaTokenIDs    []int
}

// StreamState 是单个请求的流式状态。零值等价于 NewStreamState()。
type StreamState struct {
	// CurrentToolID 是正在构建的工具调用槽位，-1 表示还没有。
	CurrentToolID       int
	CurrentToolNameSent bool
	// StreamedArgsForTool 记录每个槽位已经发送的 arguments 文本。
	StreamedArgsForTool []string
	// PrevToolCalls 是每个已发送名称的槽位最近一次的稳定快照。
	PrevToolCalls []openaiapi.FunctionCall
	// ToolCallIDs 是每个已发送名称的槽位使用的 ID。
	ToolCallIDs []string
	// ContentSent 是 CurrentText 中已经作为普通内容转发的字节数。
	ContentSent int
}

// NewStreamState 返回一个请求开始时的状态。
func NewStreamState() StreamState {
	return StreamState{CurrentToolID: -1}
}

func (s StreamState) clone() StreamState {
	out := s
	out.StreamedArgsForTool = append([]string(nil), s.StreamedArgsForTool...)
	out.PrevToolCalls = append([]openaiapi.FunctionCall(nil), s.PrevToolCalls...)
	out.ToolCallIDs = append([]string(nil), s.ToolCallIDs...)
	if out.CurrentToolID >= len(out.StreamedArgsForTool) {
		out.CurrentToolID = len(out.StreamedArgsForTool) - 1
	}
	return out
}

// NamesSent 返回已经发送过名称的槽位数量。
func (s StreamState) NamesSent() int {
	return len(s.PrevToolCalls)
}

// region 是文本中识别出的一个工具调用区域。
type region struct {
	// start 是区域（包括标记）在文本中的起始位置。
	start int
	value partialjson.Value
	// err 非空表示区域内容不是合法的调用 JSON。
	err error
	// closed 表示 JSON 已闭合，后续输入不会再改变它。
	closed bool
}

type scanResult struct {
	regions []region
	// contentEnd 之前的文本确定是普通内容。
	contentEnd int
	// truncated 表示外层结构（例如调用数组）尚未闭合。
	truncated bool
}

// format 描述一个模型族的工具调用文本约定。
type format interface {
	scan(text string) scanResult
	// argsKeys 按优先级返回参数所在的键。
	argsKeys() []string
}

// Parser 是 ToolParser 的实现，所有模型族共用，差异只在 format。
type Parser struct {
	name      string
	format    format
	log       logrus.FieldLogger
	newID     func() string
	streaming bool
}

var _ ToolParser = (*Parser)(nil)

type options struct {
	logger   logrus.FieldLogger
	newID    func() string
	fullOnly bool
}

// Option 配置解析器。
type Option func(*options)

// WithLogger 指定解码失败等事件的日志出口，默认 logrus.StandardLogger()。
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) { o.logger = logger }
}

// WithIDGenerator 替换工具调用 ID 生成器。
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// FullModeOnly 构造只支持全量抽取的解析器。
func FullModeOnly() Option {
	return func(o *options) { o.fullOnly = true }
}

// New 按解析器族名称（支持别名）构造解析器。
func New(name string, tok Tokenizer, opts ...Option) (*Parser, error) {
	switch toolparse.NormalizeParserName(name) {
	case toolparse.ParserHermes:
		return NewHermes(tok, opts...)
	case toolparse.ParserMistral:
		return NewMistral(tok, opts...)
	case toolparse.ParserLlama3JSON:
		return NewLlama3JSON(tok, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownParser, name)
	}
}

func newParser(name string, f format, defaultID func() string, opts []Option) *Parser {
	o := options{newID: defaultID}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	logger := o.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if o.newID == nil {
		o.newID = openaiapi.NewToolCallID
	}
	return &Parser{
		name:      name,
		format:    f,
		log:       logger.WithFields(logrus.Fields{"component": "toolparser", "parser": name}),
		newID:     o.newID,
		streaming: !o.fullOnly,
	}
}

func (p *Parser) Name() string { return p.name }

func (p *Parser) SupportsStreaming() bool { return p.streaming }

// scan 在 format 的扫描结果上把含重复键的调用标记为非法。
// 重复键在流式阶段无法判断哪个值最终生效，两种模式都按格式错误处理。
func (p *Parser) scan(text string) scanResult {
	sc := p.format.scan(text)
	for i := range sc.regions {
		r := &sc.regions[i]
		if r.err != nil {
			continue
		}
		if key, ok := r.value.DuplicateKey(); ok {
			r.err = fmt.Errorf("%w: %q", errDuplicateKey, key)
		}
	}
	return sc
}

func (p *Parser) ExtractToolCalls(modelOutput string) openaiapi.ExtractedToolCallInformation {
	sc := p.scan(modelOutput)
	if len(sc.regions) == 0 {
		return openaiapi.NoToolCalls(modelOutput)
	}
	calls, err := p.finalCalls(sc)
	if err != nil {
		p.log.WithError(err).WithField("text", modelOutput).Error("failed to extract tool calls, returning plain content")
		return openaiapi.NoToolCalls(modelOutput)
	}
	info := openaiapi.ExtractedToolCallInformation{ToolsCalled: true, ToolCalls: calls}
	if content := modelOutput[:sc.regions[0].start]; content != "" {
		info.Content = &content
	}
	return info
}

func (p *Parser) finalCalls(sc scanResult) ([]openaiapi.ToolCall, error) {
	if sc.truncated {
		return nil, fmt.Errorf("%w: tool call list is not closed", ErrMalformedToolCall)
	}
	calls := make([]openaiapi.ToolCall, 0, len(sc.regions))
	for i, r := range sc.regions {
		if r.err != nil {
			return nil, fmt.Errorf("%w: tool call %d: %w", ErrMalformedToolCall, i, r.err)
		}
		if !r.closed {
			return nil, fmt.Errorf("%w: tool call %d is not closed", ErrMalformedToolCall, i)
		}
		name, ok := callName(r.value)
		if !ok {
			return nil, fmt.Errorf("%w: tool call %d has no string name", ErrMalformedToolCall, i)
		}
		args, err := p.finalArguments(r.value)
		if err != nil {
			return nil, fmt.Errorf("%w: tool call %d: %w", ErrMalformedToolCall, i, err)
		}
		calls = append(calls, openaiapi.ToolCall{
			ID:       p.newID(),
			Type:     openaiapi.ToolTypeFunction,
			Function: openaiapi.FunctionCall{Name: name, Arguments: args},
		})
	}
	return calls, nil
}

func callName(v partialjson.Value) (string, bool) {
	name, ok := v.Get("name")
	if !ok || !name.IsCompleteString() || name.Text == "" {
		return "", false
	}
	return name.Text, true
}

func (p *Parser) argsValue(v partialjson.Value) (partialjson.Value, bool) {
	for _, key := range p.format.argsKeys() {
		if args, ok := v.Get(key); ok {
			return args, true
		}
	}
	return partialjson.Value{}, false
}

// finalArguments 把参数值序列化为 arguments 文本。
// 字符串形式的参数如果本身是 JSON 对象则展开。
func (p *Parser) finalArguments(v partialjson.Value) (string, error) {
	args, ok := p.argsValue(v)
	if !ok {
		return "", fmt.Errorf("missing %q", p.format.argsKeys()[0])
	}
	switch args.Kind {
	case partialjson.Object:
		return partialjson.Encode(args), nil
	case partialjson.String:
		inner, err := partialjson.Decode(args.Text)
		if err != nil {
			return "", fmt.Errorf("string arguments: %w", err)
		}
		if inner.Kind != partialjson.Object {
			return "", fmt.Errorf("string arguments decode to %s, want object", inner.Kind)
		}
		if key, dup := inner.DuplicateKey(); dup {
			return "", fmt.Errorf("string arguments: %w: %q", errDuplicateKey, key)
		}
		return partialjson.Encode(inner), nil
	default:
		return "", fmt.Errorf("arguments is %s, want object", args.Kind)
	}
}

// stableArguments 返回参数中之后不会再变化的文本。
func (p *Parser) stableArguments(v partialjson.Value) string {
	args, ok := p.argsValue(v)
	if !ok {
		return ""
	}
	switch args.Kind {
	case partialjson.Object:
		return partialjson.EncodeStable(args)
	case partialjson.String:
		if !args.Complete {
			return ""
		}
		inner, err := partialjson.Decode(args.Text)
		if err != nil || inner.Kind != partialjson.Object {
			return ""
		}
		if _, dup := inner.DuplicateKey(); dup {
			return ""
		}
		return partialjson.Encode(inner)
	default:
		return ""
	}
}

func (p *Parser) ExtractToolCallsStreaming(state StreamState, delta StreamDelta) (StreamState, *openaiapi.DeltaMessage, error) {
	if !p.streaming {
		return state, nil, fmt.Errorf("%w: %s", ErrUnsupportedStreaming, p.name)
	}
	st := state.clone()
	text := delta.CurrentText
	sc := p.scan(text)

	msg := &openaiapi.DeltaMessage{}
	if st.CurrentToolID < 0 && sc.contentEnd > st.ContentSent {
		content := text[st.ContentSent:sc.contentEnd]
		msg.Content = &content
		st.ContentSent = sc.contentEnd
	}

	for {
		if st.CurrentToolID < 0 {
			if len(sc.regions) == 0 {
				break
			}
			st.openSlot()
		}
		i := st.CurrentToolID
		if i >= len(sc.regions) {
			break
		}
		r := sc.regions[i]
		if r.err != nil {
			p.log.WithField("index", i).WithError(r.err).Debug("tool call region is not stable yet")
			break
		}
		if !st.CurrentToolNameSent {
			name, ok := callName(r.value)
			if !ok {
				break
			}
			id := p.newID()
			msg.ToolCalls = append(msg.ToolCalls, openaiapi.DeltaToolCall{
				Index:    i,
				ID:       id,
				Type:     openaiapi.ToolTypeFunction,
				Function: &openaiapi.DeltaFunctionCall{Name: &name},
			})
			st.CurrentToolNameSent = true
			st.PrevToolCalls = append(st.PrevToolCalls, openaiapi.FunctionCall{Name: name})
			st.ToolCallIDs = append(st.ToolCallIDs, id)
			break
		}

		args := p.stableArguments(r.value)
		suffix, err := Diff(st.StreamedArgsForTool[i], args)
		if err != nil {
			p.log.WithField("index", i).WithError(err).Error("streamed arguments diverged")
			return state, nil, err
		}
		if suffix != "" {
			msg.ToolCalls = append(msg.ToolCalls, openaiapi.DeltaToolCall{
				Index:    i,
				Function: &openaiapi.DeltaFunctionCall{Arguments: &suffix},
			})
			st.StreamedArgsForTool[i] = args
			st.PrevToolCalls[i].Arguments = args
		}
		if !r.closed || i+1 >= len(sc.regions) {
			break
		}
		st.openSlot()
	}

	if msg.IsEmpty() {
		return st, nil, nil
	}
	return st, msg, nil
}

func (s *StreamState) openSlot() {
	s.CurrentToolID++
	s.CurrentToolNameSent = false
	s.StreamedArgsForTool = append(s.StreamedArgsForTool, "")
}
