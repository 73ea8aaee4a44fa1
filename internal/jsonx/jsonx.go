// Package jsonx 是线路边界（HTTP 请求/响应、SSE chunk、tokenizer.json）使用的 JSON 编解码入口。
package jsonx

import "github.com/goccy/go-json"

// 与 encoding/json 同名同签名。
var (
	Marshal    = json.Marshal
	Unmarshal  = json.Unmarshal
	NewDecoder = json.NewDecoder
	NewEncoder = json.NewEncoder
)

type RawMessage = json.RawMessage
