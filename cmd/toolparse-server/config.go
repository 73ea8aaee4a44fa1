package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/LubyRuffy/toolparse"
	"github.com/LubyRuffy/toolparse/openaihttp"
	"github.com/LubyRuffy/toolparse/tokenizer"
	"gopkg.in/yaml.v3"
)

// fileConfig 是 -config 指向的 YAML 文件。命令行参数非空时覆盖同名字段。
type fileConfig struct {
	Listen            string        `yaml:"listen"`
	BasePath          string        `yaml:"base_path"`
	UpstreamURL       string        `yaml:"upstream_url"`
	SystemFingerprint string        `yaml:"system_fingerprint"`
	LogLevel          string        `yaml:"log_level"`
	Models            []modelConfig `yaml:"models"`
}

type modelConfig struct {
	ID            string `yaml:"id"`
	UpstreamModel string `yaml:"upstream_model"`
	ToolParser    string `yaml:"tool_parser"`
	// Tokenizer 是 tokenizer.json 的路径，相对路径按配置文件所在目录解析。
	Tokenizer string `yaml:"tokenizer"`
	// SpecialTokens 手写的特殊 token，与 Tokenizer 同时给出时以 tokenizer.json 的 id 为准。
	SpecialTokens []string `yaml:"special_tokens"`
	// Streaming 缺省为 true。
	Streaming *bool `yaml:"streaming"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	baseDir := filepath.Dir(path)
	for i := range cfg.Models {
		tok := strings.TrimSpace(cfg.Models[i].Tokenizer)
		if tok != "" && !filepath.IsAbs(tok) {
			cfg.Models[i].Tokenizer = filepath.Join(baseDir, tok)
		}
	}
	return cfg, nil
}

// specialTokenBase 是手写特殊 token 的起始 id。
const specialTokenBase = 1 << 20

func (m modelConfig) toModelConfig() (openaihttp.ModelConfig, error) {
	id := strings.TrimSpace(m.ID)
	if id == "" {
		return openaihttp.ModelConfig{}, fmt.Errorf("model id is required")
	}
	parser := toolparse.NormalizeParserName(m.ToolParser)
	if parser != "" && !toolparse.IsSupportedParser(parser) {
		return openaihttp.ModelConfig{}, fmt.Errorf("model %q: unsupported tool_parser %q", id, m.ToolParser)
	}

	var vocab *tokenizer.Vocab
	if path := strings.TrimSpace(m.Tokenizer); path != "" {
		loaded, err := tokenizer.LoadFile(path)
		if err != nil {
			return openaihttp.ModelConfig{}, fmt.Errorf("model %q: %w", id, err)
		}
		vocab = loaded
	}
	if len(m.SpecialTokens) > 0 {
		vocab = tokenizer.FromTokens(specialTokenBase, m.SpecialTokens...).Merge(vocab)
	}

	out := openaihttp.ModelConfig{
		ID:               id,
		UpstreamModel:    strings.TrimSpace(m.UpstreamModel),
		ToolParser:       parser,
		DisableStreaming: m.Streaming != nil && !*m.Streaming,
	}
	if vocab != nil {
		out.Tokenizer = vocab
	}
	return out, nil
}

func (c fileConfig) modelConfigs() ([]openaihttp.ModelConfig, error) {
	out := make([]openaihttp.ModelConfig, 0, len(c.Models))
	for _, m := range c.Models {
		mc, err := m.toModelConfig()
		if err != nil {
			return nil, err
		}
		out = append(out, mc)
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
