// Package tokenizer 提供工具调用解析器需要的 tokenizer 能力：特殊 token 词表。
//
// 解析器只用到特殊 token（例如 <tool_call>、[TOOL_CALLS]、<|python_tag|>）的字符串与 id，
// 因此这里不实现 BPE 编解码，只从 Hugging Face tokenizer.json 的 added_tokens 中读取词表。
package tokenizer

import (
	"fmt"
	"io"
	"os"

	"github.com/LubyRuffy/toolparse/internal/jsonx"
)

// Vocab 是特殊 token 到 id 的映射，构造后只读。
type Vocab struct {
	tokens map[string]int
}

// NewVocab 用给定的映射构造词表，映射会被复制。
func NewVocab(tokens map[string]int) *Vocab {
	cp := make(map[string]int, len(tokens))
	for k, v := range tokens {
		cp[k] = v
	}
	return &Vocab{tokens: cp}
}

// FromTokens 按顺序为 token 分配 id（从 start 开始），用于配置文件里手写的特殊 token。
func FromTokens(start int, tokens ...string) *Vocab {
	m := make(map[string]int, len(tokens))
	for i, tok := range tokens {
		m[tok] = start + i
	}
	return &Vocab{tokens: m}
}

type addedToken struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
	Special bool   `json:"special"`
}

type tokenizerFile struct {
	AddedTokens []addedToken `json:"added_tokens"`
}

// Load 从 tokenizer.json 读取 added_tokens。
func Load(r io.Reader) (*Vocab, error) {
	var f tokenizerFile
	if err := jsonx.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode tokenizer.json: %w", err)
	}
	if len(f.AddedTokens) == 0 {
		return nil, fmt.Errorf("tokenizer.json has no added_tokens")
	}
	m := make(map[string]int, len(f.AddedTokens))
	for _, tok := range f.AddedTokens {
		if tok.Content == "" {
			continue
		}
		m[tok.Content] = tok.ID
	}
	return &Vocab{tokens: m}, nil
}

// LoadFile 从文件读取 tokenizer.json。
func LoadFile(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tokenizer file: %w", err)
	}
	defer f.Close()
	v, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// Vocab 返回词表映射。调用方不应修改返回值。
func (v *Vocab) Vocab() map[string]int {
	if v == nil {
		return nil
	}
	return v.tokens
}

// TokenID 返回特殊 token 的 id。
func (v *Vocab) TokenID(token string) (int, bool) {
	id, ok := v.Vocab()[token]
	return id, ok
}

// Merge 返回包含 v 与 other 全部 token 的新词表，冲突时 other 优先。
func (v *Vocab) Merge(other *Vocab) *Vocab {
	out := NewVocab(v.Vocab())
	for k, id := range other.Vocab() {
		out.tokens[k] = id
	}
	return out
}
