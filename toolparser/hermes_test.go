package toolparser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHermes_MultipleCallsWithContent(t *testing.T) {
	in := "Let me check.\n<tool_call>\n{\"name\": \"get_weather\", \"arguments\": {\"city\": \"Paris\"}}\n</tool_call>\nand\n<tool_call>{\"name\":\"get_time\",\"arguments\":{}}</tool_call>"
	info := newTestParser(t, "hermes").ExtractToolCalls(in)
	require.True(t, info.ToolsCalled)
	require.Equal(t, "Let me check.\n", *info.Content)
	require.Len(t, info.ToolCalls, 2)
	require.Equal(t, "get_weather", info.ToolCalls[0].Function.Name)
	require.Equal(t, `{"city": "Paris"}`, info.ToolCalls[0].Function.Arguments)
	require.Equal(t, "get_time", info.ToolCalls[1].Function.Name)
	require.Equal(t, "{}", info.ToolCalls[1].Function.Arguments)
}

func TestHermes_MissingEndTagTolerated(t *testing.T) {
	cases := []string{
		`<tool_call>{"name": "a", "arguments": {"x": 1}}`,
		`<tool_call>{"name": "a", "arguments": {"x": 1}}</tool_`,
		"<tool_call>{\"name\": \"a\", \"arguments\": {\"x\": 1}}\n",
	}
	for _, in := range cases {
		info := newTestParser(t, "hermes").ExtractToolCalls(in)
		require.True(t, info.ToolsCalled, in)
		require.Nil(t, info.Content)
		require.Equal(t, `{"x": 1}`, info.ToolCalls[0].Function.Arguments)
	}
}

func TestHermes_EndTagInsideArguments(t *testing.T) {
	in := `<tool_call>{"name": "echo", "arguments": {"text": "</tool_call><tool_call>"}}</tool_call>`
	info := newTestParser(t, "hermes").ExtractToolCalls(in)
	require.Len(t, info.ToolCalls, 1)
	require.Equal(t, `{"text": "</tool_call><tool_call>"}`, info.ToolCalls[0].Function.Arguments)
}

func TestHermes_StreamingContentStopsAtTag(t *testing.T) {
	p := newTestParser(t, "hermes")
	s := NewSession(p)

	msg, err := s.Push("Checking <tool")
	require.NoError(t, err)
	require.Equal(t, "Checking ", *msg.Content)

	msg, err = s.Push(`_call>{"name": "lookup", `)
	require.NoError(t, err)
	require.Nil(t, msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	require.Equal(t, "lookup", *msg.ToolCalls[0].Function.Name)

	msg, err = s.Push(`"arguments": {"id": 7`)
	require.NoError(t, err)
	require.Equal(t, `{"id": `, *msg.ToolCalls[0].Function.Arguments, "the number may still grow")

	msg, err = s.Push(`}}</tool_call> trailing`)
	require.NoError(t, err)
	require.Equal(t, `7}`, *msg.ToolCalls[0].Function.Arguments)

	last, info, err := s.Finish()
	require.NoError(t, err)
	require.Nil(t, last)
	require.Equal(t, "Checking ", *info.Content)
}

func TestHermes_StreamingMalformedSurfacesAtFinish(t *testing.T) {
	p := newTestParser(t, "hermes")
	s := NewSession(p)
	for _, c := range chunksOf(`<tool_call>{"name": "a", "arguments": {"x": 1}}</tool_call><tool_call>{"name": "b", "arguments": 7}</tool_call>`, 4) {
		_, err := s.Push(c)
		require.NoError(t, err)
	}
	_, info, err := s.Finish()
	require.ErrorIs(t, err, ErrMalformedToolCall)
	require.False(t, info.ToolsCalled)
}

func TestHermes_DuplicateArgumentKeysAreMalformed(t *testing.T) {
	p := newTestParser(t, "hermes")
	requireMalformedBothModes(t, p, `<tool_call>{"name": "a", "arguments": {"x": 1, "x": 2}}</tool_call>`)
	requireMalformedBothModes(t, p, `<tool_call>{"name": "a", "arguments": "{\"x\": 1, \"x\": 2}"}</tool_call>`)
	requireMalformedBothModes(t, p, `<tool_call>{"name": "a", "arguments": {"o": [{"k": 1, "k": 1}]}}</tool_call>`)
}
