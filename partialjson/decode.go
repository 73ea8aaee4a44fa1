package partialjson

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

var (
	// ErrSyntax 表示输入不是任何合法 JSON 的前缀。
	ErrSyntax = errors.New("partialjson: invalid json")
	// ErrIncomplete 表示输入在 JSON 值结束之前就结束了。
	ErrIncomplete = errors.New("partialjson: unexpected end of json input")
)

// errTruncated 仅在容错模式内部使用：输入在任何值成形之前结束。
var errTruncated = errors.New("partialjson: truncated before value")

const maxDepth = 1000

// SyntaxError 携带出错位置，errors.Is(err, ErrSyntax) 成立。
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("partialjson: %s at offset %d", e.Msg, e.Offset)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// Decode 严格解码完整的 JSON 文本，允许首尾空白。
func Decode(s string) (Value, error) {
	d := &decoder{s: s}
	v, err := d.value()
	if err != nil {
		return Value{}, err
	}
	d.skipSpace()
	if !d.eof() {
		return Value{}, d.syntaxError("trailing data")
	}
	return v, nil
}

// DecodePrefix 严格解码 s 开头的一个完整值，返回消耗的字节数，其后的内容不做检查。
func DecodePrefix(s string) (Value, int, error) {
	d := &decoder{s: s}
	v, err := d.value()
	if err != nil {
		return Value{}, 0, err
	}
	return v, d.pos, nil
}

// DecodePartial 容错解码一个可能不完整的 JSON 文本。
//
// 未闭合的对象/数组在输入末尾隐式闭合，未闭合的字符串截断到最后一个完整的转义序列，
// 键不完整或缺少值的成员被丢弃。返回值及其子节点的 Complete 标记区分
// "已闭合/最终" 与 "被截断/仍可增长"。输入为空或只有空白时返回 ErrIncomplete。
func DecodePartial(s string) (Value, error) {
	v, n, err := DecodePartialPrefix(s)
	if err != nil {
		return Value{}, err
	}
	if v.Complete {
		d := &decoder{s: s, pos: n}
		d.skipSpace()
		if !d.eof() {
			return Value{}, d.syntaxError("trailing data")
		}
	}
	return v, nil
}

// DecodePartialPrefix 容错解码 s 开头的一个值，返回值与消耗的字节数。
// 值未闭合时消耗的字节数为 len(s)；出错时返回出错位置。
func DecodePartialPrefix(s string) (Value, int, error) {
	d := &decoder{s: s, partial: true}
	v, err := d.value()
	if errors.Is(err, errTruncated) {
		return Value{}, len(s), ErrIncomplete
	}
	if err != nil {
		return Value{}, d.pos, err
	}
	return v, d.pos, nil
}

type decoder struct {
	s       string
	pos     int
	depth   int
	partial bool
}

func (d *decoder) eof() bool { return d.pos >= len(d.s) }

func (d *decoder) skipSpace() {
	for d.pos < len(d.s) {
		switch d.s[d.pos] {
		case ' ', '\t', '\n', '\r':
			d.pos++
		default:
			return
		}
	}
}

func (d *decoder) syntaxError(msg string) error {
	return &SyntaxError{Offset: d.pos, Msg: msg}
}

func (d *decoder) truncated() error {
	if d.partial {
		return errTruncated
	}
	return ErrIncomplete
}

// cut 在输入截断处隐式闭合容器。
func (d *decoder) cut(v Value) (Value, error) {
	if !d.partial {
		return Value{}, ErrIncomplete
	}
	v.Complete = false
	return v, nil
}

func (d *decoder) enter() error {
	d.depth++
	if d.depth > maxDepth {
		return d.syntaxError("exceeded max depth")
	}
	return nil
}

func (d *decoder) leave() { d.depth-- }

func (d *decoder) value() (Value, error) {
	d.skipSpace()
	if d.eof() {
		return Value{}, d.truncated()
	}
	c := d.s[d.pos]
	switch {
	case c == '{':
		return d.object()
	case c == '[':
		return d.array()
	case c == '"':
		return d.str()
	case c == 't':
		return d.literal("true", Value{Kind: Bool, Bool: true, Complete: true})
	case c == 'f':
		return d.literal("false", Value{Kind: Bool, Complete: true})
	case c == 'n':
		return d.literal("null", Value{Kind: Null, Complete: true})
	case c == '-' || isDigit(c):
		return d.number()
	}
	return Value{}, d.syntaxError(fmt.Sprintf("unexpected character %q", c))
}

func (d *decoder) object() (Value, error) {
	if err := d.enter(); err != nil {
		return Value{}, err
	}
	defer d.leave()

	d.pos++
	v := Value{Kind: Object}
	d.skipSpace()
	if d.eof() {
		return d.cut(v)
	}
	if d.s[d.pos] == '}' {
		d.pos++
		v.Complete = true
		return v, nil
	}
	for {
		d.skipSpace()
		if d.eof() {
			return d.cut(v)
		}
		if d.s[d.pos] != '"' {
			return Value{}, d.syntaxError("expected object key")
		}
		key, err := d.str()
		if err != nil {
			return Value{}, err
		}
		if !key.Complete {
			return d.cut(v)
		}
		d.skipSpace()
		if d.eof() {
			return d.cut(v)
		}
		if d.s[d.pos] != ':' {
			return Value{}, d.syntaxError("expected ':' after object key")
		}
		d.pos++
		item, err := d.value()
		if errors.Is(err, errTruncated) {
			return d.cut(v)
		}
		if err != nil {
			return Value{}, err
		}
		v.Members = append(v.Members, Member{Key: key.Text, Value: item})
		if !item.Complete {
			return d.cut(v)
		}
		d.skipSpace()
		if d.eof() {
			return d.cut(v)
		}
		switch d.s[d.pos] {
		case ',':
			d.pos++
		case '}':
			d.pos++
			v.Complete = true
			return v, nil
		default:
			return Value{}, d.syntaxError("expected ',' or '}' in object")
		}
	}
}

func (d *decoder) array() (Value, error) {
	if err := d.enter(); err != nil {
		return Value{}, err
	}
	defer d.leave()

	d.pos++
	v := Value{Kind: Array}
	d.skipSpace()
	if d.eof() {
		return d.cut(v)
	}
	if d.s[d.pos] == ']' {
		d.pos++
		v.Complete = true
		return v, nil
	}
	for {
		item, err := d.value()
		if errors.Is(err, errTruncated) {
			return d.cut(v)
		}
		if err != nil {
			return Value{}, err
		}
		v.Items = append(v.Items, item)
		if !item.Complete {
			return d.cut(v)
		}
		d.skipSpace()
		if d.eof() {
			return d.cut(v)
		}
		switch d.s[d.pos] {
		case ',':
			d.pos++
		case ']':
			d.pos++
			v.Complete = true
			return v, nil
		default:
			return Value{}, d.syntaxError("expected ',' or ']' in array")
		}
	}
}

func (d *decoder) str() (Value, error) {
	d.pos++
	var b strings.Builder
	for {
		if d.eof() {
			return d.cutString(b.String())
		}
		c := d.s[d.pos]
		switch {
		case c == '"':
			d.pos++
			return Value{Kind: String, Text: b.String(), Complete: true}, nil
		case c == '\\':
			r, n, err := d.escape()
			if errors.Is(err, errTruncated) {
				return d.cutString(b.String())
			}
			if err != nil {
				return Value{}, err
			}
			b.WriteRune(r)
			d.pos += n
		case c < 0x20:
			return Value{}, d.syntaxError("invalid control character in string")
		default:
			b.WriteByte(c)
			d.pos++
		}
	}
}

// cutString 截断未闭合的字符串；截断点总在最后一个完整转义序列之后。
func (d *decoder) cutString(text string) (Value, error) {
	if !d.partial {
		return Value{}, ErrIncomplete
	}
	d.pos = len(d.s)
	return Value{Kind: String, Text: text}, nil
}

// escape 解析 d.pos 处的转义序列，返回字符与长度；序列被输入截断时返回 errTruncated。
func (d *decoder) escape() (rune, int, error) {
	rest := d.s[d.pos:]
	if len(rest) < 2 {
		return 0, 0, errTruncated
	}
	switch rest[1] {
	case '"':
		return '"', 2, nil
	case '\\':
		return '\\', 2, nil
	case '/':
		return '/', 2, nil
	case 'b':
		return '\b', 2, nil
	case 'f':
		return '\f', 2, nil
	case 'n':
		return '\n', 2, nil
	case 'r':
		return '\r', 2, nil
	case 't':
		return '\t', 2, nil
	case 'u':
		r, err := d.hex4(rest[2:])
		if err != nil {
			return 0, 0, err
		}
		if !utf16.IsSurrogate(r) {
			return r, 6, nil
		}
		if r >= 0xDC00 {
			return utf8.RuneError, 6, nil
		}
		next := rest[6:]
		if len(next) < 6 {
			if isEscapePrefix(next) {
				return 0, 0, errTruncated
			}
			return utf8.RuneError, 6, nil
		}
		if next[0] != '\\' || next[1] != 'u' {
			return utf8.RuneError, 6, nil
		}
		low, err := d.hex4(next[2:])
		if err != nil {
			return 0, 0, err
		}
		if low < 0xDC00 || low > 0xDFFF {
			return utf8.RuneError, 6, nil
		}
		return utf16.DecodeRune(r, low), 12, nil
	}
	return 0, 0, d.syntaxError("invalid escape sequence")
}

func (d *decoder) hex4(s string) (rune, error) {
	n := min(len(s), 4)
	for i := 0; i < n; i++ {
		if !isHex(s[i]) {
			return 0, d.syntaxError("invalid unicode escape")
		}
	}
	if n < 4 {
		return 0, errTruncated
	}
	v, err := strconv.ParseUint(s[:4], 16, 32)
	if err != nil {
		return 0, d.syntaxError("invalid unicode escape")
	}
	return rune(v), nil
}

// isEscapePrefix 判断 s 是否可能是 `\uXXXX` 的前缀。
func isEscapePrefix(s string) bool {
	for i := 0; i < len(s); i++ {
		switch {
		case i == 0 && s[i] == '\\':
		case i == 1 && s[i] == 'u':
		case i >= 2 && isHex(s[i]):
		default:
			return false
		}
	}
	return true
}

func (d *decoder) number() (Value, error) {
	start := d.pos
	if d.s[d.pos] == '-' {
		d.pos++
		if d.eof() {
			return d.cutNumber(start, false)
		}
	}
	switch c := d.s[d.pos]; {
	case c == '0':
		d.pos++
	case c >= '1' && c <= '9':
		d.digits()
	default:
		return Value{}, d.syntaxError("invalid number")
	}
	if !d.eof() && d.s[d.pos] == '.' {
		d.pos++
		if d.eof() {
			return d.cutNumber(start, false)
		}
		if !isDigit(d.s[d.pos]) {
			return Value{}, d.syntaxError("invalid number")
		}
		d.digits()
	}
	if !d.eof() && (d.s[d.pos] == 'e' || d.s[d.pos] == 'E') {
		d.pos++
		if !d.eof() && (d.s[d.pos] == '+' || d.s[d.pos] == '-') {
			d.pos++
		}
		if d.eof() {
			return d.cutNumber(start, false)
		}
		if !isDigit(d.s[d.pos]) {
			return Value{}, d.syntaxError("invalid number")
		}
		d.digits()
	}
	if d.eof() {
		return d.cutNumber(start, true)
	}
	return Value{Kind: Number, Text: d.s[start:d.pos], Complete: true}, nil
}

// cutNumber 处理触及输入末尾的数字：容错模式下它仍可能增长，严格模式下只要字面量合法即完整。
func (d *decoder) cutNumber(start int, valid bool) (Value, error) {
	text := d.s[start:]
	d.pos = len(d.s)
	if d.partial {
		return Value{Kind: Number, Text: text}, nil
	}
	if !valid {
		return Value{}, ErrIncomplete
	}
	return Value{Kind: Number, Text: text, Complete: true}, nil
}

func (d *decoder) digits() {
	for d.pos < len(d.s) && isDigit(d.s[d.pos]) {
		d.pos++
	}
}

func (d *decoder) literal(word string, v Value) (Value, error) {
	rest := d.s[d.pos:]
	if strings.HasPrefix(rest, word) {
		d.pos += len(word)
		return v, nil
	}
	if len(rest) < len(word) && strings.HasPrefix(word, rest) {
		d.pos = len(d.s)
		return Value{}, d.truncated()
	}
	return Value{}, d.syntaxError("invalid literal")
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
