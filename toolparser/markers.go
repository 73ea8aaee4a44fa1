package toolparser

import "strings"

// partialMarkerStart 返回 text 末尾可能是 marker 前缀的部分的起始位置，没有时返回 len(text)。
func partialMarkerStart(text, marker string) int {
	for n := min(len(marker)-1, len(text)); n > 0; n-- {
		if strings.HasSuffix(text, marker[:n]) {
			return len(text) - n
		}
	}
	return len(text)
}

func skipSpace(s string, pos int) int {
	for pos < len(s) {
		switch s[pos] {
		case ' ', '\t', '\n', '\r':
			pos++
		default:
			return pos
		}
	}
	return pos
}

func trimSpaceRight(s string, end int) int {
	for end > 0 {
		switch s[end-1] {
		case ' ', '\t', '\n', '\r':
			end--
		default:
			return end
		}
	}
	return end
}

// sentinelBefore 返回紧贴在 end 之前（允许空白）的 <|...|> 哨兵 token 的起始位置，没有时返回 -1。
func sentinelBefore(text string, end int) int {
	end = trimSpaceRight(text, end)
	if !strings.HasSuffix(text[:end], "|>") {
		return -1
	}
	open := strings.LastIndex(text[:end-2], "<|")
	if open < 0 {
		return -1
	}
	name := text[open+2 : end-2]
	if name == "" || strings.ContainsRune(name, '|') {
		return -1
	}
	return open
}

// trailingSentinelStart 返回 text 末尾可能属于哨兵 token 的部分的起始位置：
// 完整的哨兵（之后只有空白）或尚未结束的 "<"、"<|name"、"<|name|"。没有时返回 len(text)。
func trailingSentinelStart(text string) int {
	if start := sentinelBefore(text, len(text)); start >= 0 {
		return start
	}
	open := strings.LastIndexByte(text, '<')
	if open < 0 {
		return len(text)
	}
	tail := text[open+1:]
	if tail == "" {
		return open
	}
	if tail[0] != '|' {
		return len(text)
	}
	name := strings.TrimSuffix(tail[1:], "|")
	if strings.ContainsAny(name, "|>") {
		return len(text)
	}
	if strings.HasSuffix(tail[1:], "|") && name == "" {
		return len(text)
	}
	return open
}
