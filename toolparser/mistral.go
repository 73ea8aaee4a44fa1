package toolparser

import (
	"fmt"
	"strings"

	"github.com/LubyRuffy/toolparse"
	"github.com/LubyRuffy/toolparse/openaiapi"
	"github.com/LubyRuffy/toolparse/partialjson"
)

const mistralBotToken = "[TOOL_CALLS]"

// NewMistral 构造 [TOOL_CALLS][{...}, ...] 格式的解析器。
// 工具调用 ID 默认是 Mistral API 要求的 9 位字母数字。[TOOL_CALLS] 必须是 tokenizer 词表中的特殊 token。
func NewMistral(tok Tokenizer, opts ...Option) (*Parser, error) {
	if tok == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingTokenizer, toolparse.ParserMistral)
	}
	if _, ok := tok.Vocab()[mistralBotToken]; !ok {
		return nil, fmt.Errorf("%w: %s vocabulary lacks %q", ErrMissingTokenizer, toolparse.ParserMistral, mistralBotToken)
	}
	return newParser(toolparse.ParserMistral, mistralFormat{}, openaiapi.NewShortToolCallID, opts), nil
}

type mistralFormat struct{}

func (mistralFormat) argsKeys() []string { return []string{"arguments"} }

// scan 只识别第一个 [TOOL_CALLS]，其后是一个 JSON 数组，数组元素即调用；数组闭合后的内容忽略。
// 单个对象按只含一个元素的数组处理。
func (mistralFormat) scan(text string) scanResult {
	idx := strings.Index(text, mistralBotToken)
	if idx < 0 {
		return scanResult{contentEnd: partialMarkerStart(text, mistralBotToken)}
	}
	res := scanResult{contentEnd: idx}
	b := skipSpace(text, idx+len(mistralBotToken))
	if b == len(text) {
		return res
	}
	v, _, err := partialjson.DecodePartialPrefix(text[b:])
	if err != nil {
		res.regions = []region{{start: idx, err: err}}
		return res
	}
	switch v.Kind {
	case partialjson.Array:
		for _, item := range v.Items {
			r := region{start: idx, value: item, closed: item.Complete}
			if item.Kind != partialjson.Object {
				r.err = errNotObject
			}
			res.regions = append(res.regions, r)
		}
		res.truncated = !v.Complete
	case partialjson.Object:
		res.regions = []region{{start: idx, value: v, closed: v.Complete}}
	default:
		res.regions = []region{{start: idx, err: fmt.Errorf("tool calls are %s, want array", v.Kind)}}
	}
	return res
}
