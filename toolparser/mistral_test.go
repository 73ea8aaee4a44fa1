package toolparser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMistral_ArrayOfCalls(t *testing.T) {
	in := `Sure. [TOOL_CALLS] [{"name": "add", "arguments": {"a": 1, "b": 2.5}}, {"name": "neg", "arguments": "{\"x\": -3}"}] trailing garbage`
	info := newTestParser(t, "mistral").ExtractToolCalls(in)
	require.True(t, info.ToolsCalled)
	require.Equal(t, "Sure. ", *info.Content)
	require.Len(t, info.ToolCalls, 2)
	require.Equal(t, "add", info.ToolCalls[0].Function.Name)
	require.Equal(t, `{"a": 1, "b": 2.5}`, info.ToolCalls[0].Function.Arguments)
	require.Equal(t, "neg", info.ToolCalls[1].Function.Name)
	require.Equal(t, `{"x": -3}`, info.ToolCalls[1].Function.Arguments)
}

func TestMistral_SingleObject(t *testing.T) {
	info := newTestParser(t, "mistral").ExtractToolCalls(`[TOOL_CALLS]{"name": "a", "arguments": {"k": "v"}}`)
	require.True(t, info.ToolsCalled)
	require.Nil(t, info.Content)
	require.Equal(t, `{"k": "v"}`, info.ToolCalls[0].Function.Arguments)
}

func TestMistral_EmptyArrayIsPlainText(t *testing.T) {
	for _, in := range []string{"[TOOL_CALLS]", "[TOOL_CALLS] []"} {
		info := newTestParser(t, "mistral").ExtractToolCalls(in)
		require.False(t, info.ToolsCalled, in)
		require.Equal(t, in, *info.Content)
	}
}

func TestMistral_StreamingOpensNextSlotInSameStep(t *testing.T) {
	p := newTestParser(t, "mistral", WithIDGenerator(sequentialIDs()))
	s := NewSession(p)

	msg, err := s.Push(`[TOOL_CALLS] [{"name": "a", "arguments": {"x": 1`)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	require.Equal(t, "call_1", msg.ToolCalls[0].ID)

	msg, err = s.Push(`}}, {"name": "b", "arguments": {`)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 2)
	require.Equal(t, 0, msg.ToolCalls[0].Index)
	require.Equal(t, `{"x": 1}`, *msg.ToolCalls[0].Function.Arguments)
	require.Equal(t, 1, msg.ToolCalls[1].Index)
	require.Equal(t, "call_2", msg.ToolCalls[1].ID)
	require.Equal(t, "b", *msg.ToolCalls[1].Function.Name)
	require.Nil(t, msg.ToolCalls[1].Function.Arguments)

	msg, err = s.Push(`}}]`)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	require.Equal(t, "{}", *msg.ToolCalls[0].Function.Arguments)

	last, info, err := s.Finish()
	require.NoError(t, err)
	require.Nil(t, last)
	require.Len(t, info.ToolCalls, 2)
}
