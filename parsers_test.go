package toolparse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresetParsers_DefaultFirst(t *testing.T) {
	parsers := PresetParsers()
	require.Len(t, parsers, 3)
	require.Equal(t, DefaultParser, parsers[0].Name)
	require.Equal(t, ParserHermes, parsers[1].Name)
	require.Equal(t, ParserMistral, parsers[2].Name)
}

func TestNormalizeParserName(t *testing.T) {
	cases := map[string]string{
		"hermes":       ParserHermes,
		" Hermes2Pro ": ParserHermes,
		"qwen":         ParserHermes,
		"hermes-2-pro": ParserHermes,
		"MISTRAL":      ParserMistral,
		"llama3.1":     ParserLlama3JSON,
		"llama3-json":  ParserLlama3JSON,
		"llama":        ParserLlama3JSON,
		"granite":      "granite",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeParserName(in), in)
	}
}

func TestIsSupportedParser(t *testing.T) {
	require.True(t, IsSupportedParser(DefaultParser))
	require.True(t, IsSupportedParser("llama31"))
	require.False(t, IsSupportedParser(""))
	require.False(t, IsSupportedParser("  "))
	require.False(t, IsSupportedParser("granite"))
}
