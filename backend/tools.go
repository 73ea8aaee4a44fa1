package backend

import (
	"fmt"
	"strings"

	"github.com/LubyRuffy/toolparse/internal/jsonx"
	"github.com/LubyRuffy/toolparse/openaiapi"
	"github.com/cloudwego/eino/schema"
)

// FunctionToolsFromOpenAITools 只保留 function 类型的工具，按名称（不区分大小写）去重，保持原顺序。
func FunctionToolsFromOpenAITools(tools []openaiapi.OpenAITool) []openaiapi.OpenAITool {
	if len(tools) == 0 {
		return nil
	}

	result := make([]openaiapi.OpenAITool, 0, len(tools))
	nameSet := make(map[string]struct{})

	for _, tool := range tools {
		if !strings.EqualFold(strings.TrimSpace(tool.Type), openaiapi.ToolTypeFunction) {
			continue
		}
		name := strings.TrimSpace(tool.Function.Name)
		if name == "" {
			continue
		}
		normalized := strings.ToLower(name)
		if _, exists := nameSet[normalized]; exists {
			continue
		}
		nameSet[normalized] = struct{}{}

		result = append(result, openaiapi.OpenAITool{
			Type: openaiapi.ToolTypeFunction,
			Function: openaiapi.OpenAIToolFunction{
				Name:        name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		})
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// OpenAIToolsFromToolInfos 把 eino 工具声明转换为 OpenAI tools，参数转为 JSON Schema 对象。
func OpenAIToolsFromToolInfos(tools []*schema.ToolInfo) ([]openaiapi.OpenAITool, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]openaiapi.OpenAITool, 0, len(tools))
	for _, info := range tools {
		if info == nil {
			continue
		}
		fn := openaiapi.OpenAIToolFunction{
			Name:        info.Name,
			Description: info.Desc,
		}
		if info.ParamsOneOf != nil {
			js, err := info.ParamsOneOf.ToJSONSchema()
			if err != nil {
				return nil, fmt.Errorf("tool %s: convert parameters: %w", info.Name, err)
			}
			if js != nil {
				raw, err := jsonx.Marshal(js)
				if err != nil {
					return nil, fmt.Errorf("tool %s: encode parameters: %w", info.Name, err)
				}
				if err := jsonx.Unmarshal(raw, &fn.Parameters); err != nil {
					return nil, fmt.Errorf("tool %s: decode parameters: %w", info.Name, err)
				}
			}
		}
		out = append(out, openaiapi.OpenAITool{Type: openaiapi.ToolTypeFunction, Function: fn})
	}
	return out, nil
}
