package toolparser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSession_FlushesWhatOneBigDeltaLeftBehind(t *testing.T) {
	p := newTestParser(t, "hermes", WithIDGenerator(sequentialIDs()))
	s := NewSession(p)
	text := `Hi<tool_call>{"name": "a", "arguments": {"x": 1}}</tool_call><tool_call>{"name": "b", "arguments": {}}</tool_call>`

	msg, err := s.Push(text)
	require.NoError(t, err)
	require.Equal(t, "Hi", *msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	require.Equal(t, "a", *msg.ToolCalls[0].Function.Name)

	last, info, err := s.Finish()
	require.NoError(t, err)
	require.Nil(t, last.Content)
	require.Len(t, last.ToolCalls, 3)

	require.Equal(t, 0, last.ToolCalls[0].Index)
	require.Equal(t, `{"x": 1}`, *last.ToolCalls[0].Function.Arguments)

	require.Equal(t, 1, last.ToolCalls[1].Index)
	require.Equal(t, "b", *last.ToolCalls[1].Function.Name)
	require.Equal(t, info.ToolCalls[1].ID, last.ToolCalls[1].ID)

	require.Equal(t, 1, last.ToolCalls[2].Index)
	require.Equal(t, "{}", *last.ToolCalls[2].Function.Arguments)
}

func TestSession_BuffersWhenStreamingIsUnsupported(t *testing.T) {
	p := newTestParser(t, "llama3_json", FullModeOnly())
	s := NewSession(p)
	for _, c := range chunksOf(`Sure: `+weatherCall, 3) {
		msg, err := s.Push(c)
		require.NoError(t, err)
		require.Nil(t, msg)
	}

	out := newStreamed()
	last, info, err := s.Finish()
	require.NoError(t, err)
	out.add(t, last)
	require.Equal(t, "Sure: ", out.content)
	out.requireMatches(t, info)
}

func TestSession_TracksTextAndTokens(t *testing.T) {
	s := NewSession(newTestParser(t, "llama3_json"))
	_, err := s.Push("ab", 1, 2)
	require.NoError(t, err)
	_, err = s.Push("c", 3)
	require.NoError(t, err)
	require.Equal(t, "abc", s.Text())
	require.Equal(t, []int{1, 2, 3}, s.tokenIDs)
	require.Equal(t, -1, s.State().CurrentToolID)
	require.Equal(t, 3, s.State().ContentSent)

	_, _, err = s.Finish()
	require.NoError(t, err)
	_, err = s.Push("d")
	require.Error(t, err)
}

func TestSession_StreamedCallsMustSurviveFinalExtraction(t *testing.T) {
	s := NewSession(newTestParser(t, "llama3_json"))
	_, err := s.Push(`{"name": "a", "parameters": {"x": 1}`)
	require.NoError(t, err)
	require.Equal(t, 1, s.State().NamesSent())

	_, info, err := s.Finish()
	require.ErrorIs(t, err, ErrMalformedToolCall)
	require.False(t, info.ToolsCalled)
}

func TestSession_FinishReusesStreamedIDs(t *testing.T) {
	p := newTestParser(t, "hermes", WithIDGenerator(sequentialIDs()))
	text := `<tool_call>{"name": "a", "arguments": {"x": 1}}</tool_call><tool_call>{"name": "b", "arguments": {}}</tool_call>`
	out, info := runStream(t, p, chunksOf(text, 2))
	out.requireMatches(t, info)
	require.Len(t, info.ToolCalls, 2)
	for i, call := range info.ToolCalls {
		require.Equal(t, out.ids[i], call.ID, "index %d", i)
	}

	s := NewSession(newTestParser(t, "hermes", WithIDGenerator(sequentialIDs())))
	msg, err := s.Push(text)
	require.NoError(t, err)
	require.Equal(t, "call_1", msg.ToolCalls[0].ID)
	last, info, err := s.Finish()
	require.NoError(t, err)
	require.Equal(t, "call_1", info.ToolCalls[0].ID)
	require.Equal(t, last.ToolCalls[1].ID, info.ToolCalls[1].ID)
	require.Equal(t, []string{"call_1"}, s.State().ToolCallIDs)
}
