package toolparser

import (
	"fmt"
	"strings"

	"github.com/LubyRuffy/toolparse"
	"github.com/LubyRuffy/toolparse/openaiapi"
	"github.com/LubyRuffy/toolparse/partialjson"
)

// NewLlama3JSON 构造 Llama 3.1 JSON 格式的解析器。
//
// 模型输出 {"name": ..., "parameters": {...}}，前后可能带有 <|python_tag|>、<|eom_id|>、
// <|eot_id|> 等哨兵 token，也可能没有。多个调用之间的文本被丢弃，content 只保留第一个调用之前的部分。
func NewLlama3JSON(tok Tokenizer, opts ...Option) (*Parser, error) {
	if tok == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingTokenizer, toolparse.ParserLlama3JSON)
	}
	return newParser(toolparse.ParserLlama3JSON, llamaFormat{}, openaiapi.NewToolCallID, opts), nil
}

type llamaFormat struct{}

func (llamaFormat) argsKeys() []string { return []string{"parameters", "arguments"} }

// scan 只考虑顶层的 JSON 对象：闭合但不是调用形状的对象整体跳过，
// 非法的对象从出错位置继续扫描，延伸到文本末尾的对象在形状确定之前先扣住正文。
// 出错之前已经呈现调用形状的对象记为非法区域。
func (f llamaFormat) scan(text string) scanResult {
	var res scanResult
	hold := -1
	pos := 0
	for pos < len(text) {
		i := strings.IndexByte(text[pos:], '{')
		if i < 0 {
			break
		}
		b := pos + i
		start := b
		if s := sentinelBefore(text, b); s >= 0 && s >= pos {
			start = s
		}
		v, n, err := partialjson.DecodePartialPrefix(text[b:])
		if err != nil {
			if prefix, _, perr := partialjson.DecodePartialPrefix(text[b : b+n]); perr == nil && f.isCall(prefix) {
				res.regions = append(res.regions, region{start: start, err: err})
			}
			pos = b + max(n, 1)
			continue
		}
		if f.isCall(v) {
			res.regions = append(res.regions, region{start: start, value: v, closed: v.Complete})
		} else if !v.Complete && len(res.regions) == 0 {
			hold = start
		}
		if !v.Complete {
			break
		}
		pos = b + n
	}

	switch {
	case len(res.regions) > 0:
		res.contentEnd = res.regions[0].start
	case hold >= 0:
		res.contentEnd = hold
	default:
		res.contentEnd = trailingSentinelStart(text)
	}
	return res
}

// isCall 判断对象是否已经呈现调用形状：字符串 name 已闭合，且出现了参数键。
func (f llamaFormat) isCall(v partialjson.Value) bool {
	if v.Kind != partialjson.Object {
		return false
	}
	if _, ok := callName(v); !ok {
		return false
	}
	for _, key := range f.argsKeys() {
		if _, ok := v.Get(key); ok {
			return true
		}
	}
	return false
}
