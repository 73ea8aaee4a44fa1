package backend

import (
	"testing"

	"github.com/LubyRuffy/toolparse/openaiapi"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"
)

func TestFunctionToolsFromOpenAITools_FiltersAndDedupes(t *testing.T) {
	tools := []openaiapi.OpenAITool{
		{Type: "code_interpreter"},
		{Type: "function", Function: openaiapi.OpenAIToolFunction{Name: " search ", Description: "first"}},
		{Type: "FUNCTION", Function: openaiapi.OpenAIToolFunction{Name: "Search", Description: "dup"}},
		{Type: "function", Function: openaiapi.OpenAIToolFunction{Name: ""}},
		{Type: "function", Function: openaiapi.OpenAIToolFunction{Name: "fetch", Parameters: map[string]any{"type": "object"}}},
	}

	got := FunctionToolsFromOpenAITools(tools)
	require.Len(t, got, 2)
	require.Equal(t, "search", got[0].Function.Name)
	require.Equal(t, "first", got[0].Function.Description)
	require.Equal(t, "fetch", got[1].Function.Name)
	require.Equal(t, map[string]any{"type": "object"}, got[1].Function.Parameters)
}

func TestFunctionToolsFromOpenAITools_Empty(t *testing.T) {
	require.Nil(t, FunctionToolsFromOpenAITools(nil))
	require.Nil(t, FunctionToolsFromOpenAITools([]openaiapi.OpenAITool{{Type: "web_search"}}))
}

func TestOpenAIToolsFromToolInfos(t *testing.T) {
	infos := []*schema.ToolInfo{
		{
			Name: "get_weather",
			Desc: "look up weather",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"city": {Type: schema.String, Desc: "city name", Required: true},
			}),
		},
		nil,
		{Name: "ping"},
	}

	got, err := OpenAIToolsFromToolInfos(infos)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "function", got[0].Type)
	require.Equal(t, "get_weather", got[0].Function.Name)
	require.Equal(t, "look up weather", got[0].Function.Description)
	require.Equal(t, "object", got[0].Function.Parameters["type"])
	props, ok := got[0].Function.Parameters["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "city")
	require.Nil(t, got[1].Function.Parameters)
}

func TestToolCallConversions(t *testing.T) {
	calls := []openaiapi.ToolCall{
		{ID: "a", Type: "function", Function: openaiapi.FunctionCall{Name: "f", Arguments: "{}"}},
		{ID: "b", Type: "function", Function: openaiapi.FunctionCall{Name: "g", Arguments: `{"x": 1}`}},
	}
	sc := SchemaToolCalls(calls)
	require.Len(t, sc, 2)
	require.Equal(t, 0, *sc[0].Index)
	require.Equal(t, 1, *sc[1].Index)
	require.Equal(t, calls, OpenAIToolCalls(sc))
	require.Nil(t, SchemaToolCalls(nil))
}
