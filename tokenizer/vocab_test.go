package tokenizer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const qwenTokenizerJSON = `{
  "version": "1.0",
  "added_tokens": [
    {"id": 151643, "content": "<|endoftext|>", "special": true},
    {"id": 151657, "content": "<tool_call>", "special": false},
    {"id": 151658, "content": "</tool_call>", "special": false}
  ],
  "model": {"type": "BPE", "vocab": {"a": 0}}
}`

func TestLoad_AddedTokens(t *testing.T) {
	v, err := Load(strings.NewReader(qwenTokenizerJSON))
	require.NoError(t, err)
	id, ok := v.TokenID("<tool_call>")
	require.True(t, ok)
	require.Equal(t, 151657, id)
	require.Len(t, v.Vocab(), 3)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(strings.NewReader(`{"added_tokens": []}`))
	require.Error(t, err)

	_, err = Load(strings.NewReader(`not json`))
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokenizer.json")
	require.NoError(t, os.WriteFile(path, []byte(qwenTokenizerJSON), 0o600))
	v, err := LoadFile(path)
	require.NoError(t, err)
	_, ok := v.TokenID("</tool_call>")
	require.True(t, ok)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestFromTokensAndMerge(t *testing.T) {
	v := FromTokens(100, "<|python_tag|>", "<|eom_id|>")
	id, ok := v.TokenID("<|eom_id|>")
	require.True(t, ok)
	require.Equal(t, 101, id)

	merged := v.Merge(NewVocab(map[string]int{"<|eom_id|>": 7, "[TOOL_CALLS]": 5}))
	id, _ = merged.TokenID("<|eom_id|>")
	require.Equal(t, 7, id)
	require.Len(t, merged.Vocab(), 3)
	require.Len(t, v.Vocab(), 2, "merge must not modify the receiver")

	var nilVocab *Vocab
	require.Nil(t, nilVocab.Vocab())
	_, ok = nilVocab.TokenID("x")
	require.False(t, ok)
}
