package toolparser

import "errors"

var (
	// ErrUnknownParser 表示配置的解析器族名称不受支持。
	ErrUnknownParser = errors.New("toolparser: unknown tool parser")
	// ErrMissingTokenizer 表示构造时缺少 tokenizer，或其词表缺少格式所需的特殊 token。
	ErrMissingTokenizer = errors.New("toolparser: tokenizer is required")
	// ErrUnsupportedStreaming 表示对只支持全量模式的解析器调用了流式抽取。
	ErrUnsupportedStreaming = errors.New("toolparser: streaming tool call extraction is not supported")
	// ErrDiffInvariant 表示已发送的文本不是新计算文本的前缀，属于内部一致性错误。
	ErrDiffInvariant = errors.New("toolparser: streamed text is not a prefix of the current text")
	// ErrMalformedToolCall 表示工具调用区域无法解码为合法的调用。
	ErrMalformedToolCall = errors.New("toolparser: malformed tool call")
)
