package partialjson

import (
	"strings"
	"unicode/utf8"
)

const hexDigits = "0123456789abcdef"

// Encode 序列化 v，格式与 Python json.dumps 默认参数一致：
// 分隔符为 ", " 与 ": "，保留键顺序，非 ASCII 字符转义为 \uXXXX，数字保持原始字面量。
// 未完成的值按当前已知内容闭合输出。
func Encode(v Value) string {
	var b strings.Builder
	writeValue(&b, v, false)
	return b.String()
}

// EncodeStable 返回 Encode 输出中不会再变化的前缀。
//
// 不完整的字符串、数字与字面量一个字节都不输出；不完整的对象/数组只输出到最后一个
// 完整子结构为止，末尾的开括号保留、闭括号与引号不输出。v 随输入增长时，
// EncodeStable 的结果只会追加，不会改写已经输出的内容。
func EncodeStable(v Value) string {
	var b strings.Builder
	writeValue(&b, v, true)
	return b.String()
}

// writeValue 写出 v；stable 模式下遇到不稳定位置时停止并返回 false。
func writeValue(b *strings.Builder, v Value, stable bool) bool {
	if stable && !v.Complete && v.Kind != Object && v.Kind != Array {
		return false
	}
	switch v.Kind {
	case Null:
		b.WriteString("null")
	case Bool:
		if v.Bool {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case Number:
		b.WriteString(v.Text)
	case String:
		writeString(b, v.Text)
	case Array:
		b.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				b.WriteString(", ")
			}
			if !writeValue(b, item, stable) {
				return false
			}
		}
		if stable && !v.Complete {
			return false
		}
		b.WriteByte(']')
	case Object:
		b.WriteByte('{')
		for i, m := range v.Members {
			if i > 0 {
				b.WriteString(", ")
			}
			writeString(b, m.Key)
			b.WriteString(": ")
			if !writeValue(b, m.Value, stable) {
				return false
			}
		}
		if stable && !v.Complete {
			return false
		}
		b.WriteByte('}')
	}
	return true
}

func writeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch c {
			case '"':
				b.WriteString(`\"`)
			case '\\':
				b.WriteString(`\\`)
			case '\n':
				b.WriteString(`\n`)
			case '\r':
				b.WriteString(`\r`)
			case '\t':
				b.WriteString(`\t`)
			case '\b':
				b.WriteString(`\b`)
			case '\f':
				b.WriteString(`\f`)
			default:
				if c < 0x20 || c == 0x7f {
					writeUnicodeEscape(b, rune(c))
				} else {
					b.WriteByte(c)
				}
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r > 0xFFFF {
			r -= 0x10000
			writeUnicodeEscape(b, 0xD800+(r>>10)&0x3FF)
			writeUnicodeEscape(b, 0xDC00+r&0x3FF)
		} else {
			writeUnicodeEscape(b, r)
		}
		i += size
	}
	b.WriteByte('"')
}

func writeUnicodeEscape(b *strings.Builder, r rune) {
	b.WriteString(`\u`)
	b.WriteByte(hexDigits[(r>>12)&0xF])
	b.WriteByte(hexDigits[(r>>8)&0xF])
	b.WriteByte(hexDigits[(r>>4)&0xF])
	b.WriteByte(hexDigits[r&0xF])
}
