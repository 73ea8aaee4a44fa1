package toolparser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/LubyRuffy/toolparse"
	"github.com/LubyRuffy/toolparse/openaiapi"
	"github.com/LubyRuffy/toolparse/partialjson"
)

const (
	hermesStartTag = "<tool_call>"
	hermesEndTag   = "</tool_call>"
)

var (
	errEmptyRegion  = errors.New("no tool call json after start marker")
	errNotObject    = errors.New("tool call is not a json object")
	errDuplicateKey = errors.New("duplicate object key in tool call")
)

// NewHermes 构造 <tool_call>{...}</tool_call> 格式的解析器（Hermes 2 Pro、Qwen）。
// 两个标签必须是 tokenizer 词表中的特殊 token。
func NewHermes(tok Tokenizer, opts ...Option) (*Parser, error) {
	if tok == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingTokenizer, toolparse.ParserHermes)
	}
	vocab := tok.Vocab()
	for _, tag := range []string{hermesStartTag, hermesEndTag} {
		if _, ok := vocab[tag]; !ok {
			return nil, fmt.Errorf("%w: %s vocabulary lacks %q", ErrMissingTokenizer, toolparse.ParserHermes, tag)
		}
	}
	return newParser(toolparse.ParserHermes, hermesFormat{}, openaiapi.NewToolCallID, opts), nil
}

type hermesFormat struct{}

func (hermesFormat) argsKeys() []string { return []string{"arguments"} }

// scan 依次定位每个 <tool_call>，其后的 JSON 对象即为一次调用；缺少结束标签时容忍。
func (hermesFormat) scan(text string) scanResult {
	var res scanResult
	pos := 0
	for {
		i := strings.Index(text[pos:], hermesStartTag)
		if i < 0 {
			break
		}
		start := pos + i
		b := skipSpace(text, start+len(hermesStartTag))
		if b == len(text) {
			res.regions = append(res.regions, region{start: start, err: errEmptyRegion})
			break
		}
		if text[b] != '{' {
			res.regions = append(res.regions, region{start: start, err: errNotObject})
			next, ok := afterEndTag(text, b)
			if !ok {
				break
			}
			pos = next
			continue
		}
		v, n, err := partialjson.DecodePartialPrefix(text[b:])
		if err != nil {
			res.regions = append(res.regions, region{start: start, err: err})
			next, ok := afterEndTag(text, b)
			if !ok {
				break
			}
			pos = next
			continue
		}
		res.regions = append(res.regions, region{start: start, value: v, closed: v.Complete})
		if !v.Complete {
			break
		}
		pos = skipSpace(text, b+n)
		if strings.HasPrefix(text[pos:], hermesEndTag) {
			pos += len(hermesEndTag)
		}
	}
	if len(res.regions) > 0 {
		res.contentEnd = res.regions[0].start
	} else {
		res.contentEnd = partialMarkerStart(text, hermesStartTag)
	}
	return res
}

func afterEndTag(text string, from int) (int, bool) {
	i := strings.Index(text[from:], hermesEndTag)
	if i < 0 {
		return 0, false
	}
	return from + i + len(hermesEndTag), true
}
