package toolparse

import (
	"sort"
	"strings"
)

const (
	// ParserHermes 标签包裹的工具调用：<tool_call>{...}</tool_call>。
	ParserHermes = "hermes"
	// ParserMistral 控制 token 引出的 JSON 数组：[TOOL_CALLS][{...}, ...]。
	ParserMistral = "mistral"
	// ParserLlama3JSON 裸 JSON 对象，可选 <|python_tag|> 等哨兵 token，参数键为 parameters。
	ParserLlama3JSON = "llama3_json"

	// DefaultParser 是未配置时使用的解析器族。
	DefaultParser = ParserLlama3JSON
)

var presetParsers = map[string]string{
	ParserHermes:     "Hermes 2 Pro / Qwen tool call tags",
	ParserMistral:    "Mistral [TOOL_CALLS] array",
	ParserLlama3JSON: "Llama 3.1 JSON tool calls",
}

var parserAliases = map[string]string{
	"hermes2pro":   ParserHermes,
	"hermes_2_pro": ParserHermes,
	"qwen":         ParserHermes,
	"llama31":      ParserLlama3JSON,
	"llama3.1":     ParserLlama3JSON,
	"llama3":       ParserLlama3JSON,
	"llama":        ParserLlama3JSON,
}

type PresetParser struct {
	Name        string
	Description string
}

// PresetParsers 返回内置的解析器族，按名称排序，DefaultParser 排在第一位。
func PresetParsers() []PresetParser {
	out := make([]PresetParser, 0, len(presetParsers))
	for name, desc := range presetParsers {
		out = append(out, PresetParser{Name: name, Description: desc})
	}
	sort.Slice(out, func(i, j int) bool {
		if (out[i].Name == DefaultParser) != (out[j].Name == DefaultParser) {
			return out[i].Name == DefaultParser
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// NormalizeParserName 将大小写、空白与别名统一为规范的解析器族名称。
// 未知名称原样（去空白、小写）返回。
func NormalizeParserName(name string) string {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	trimmed = strings.ReplaceAll(trimmed, "-", "_")
	if canonical, ok := parserAliases[trimmed]; ok {
		return canonical
	}
	return trimmed
}

// IsSupportedParser 判断是否为受支持的解析器族名称（支持别名）。
func IsSupportedParser(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, ok := presetParsers[NormalizeParserName(name)]
	return ok
}
