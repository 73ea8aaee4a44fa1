package openaihttp

import (
	"net/http"

	"github.com/LubyRuffy/toolparse/toolparser"
	"github.com/sirupsen/logrus"
)

// ModelConfig 描述一个对外暴露的模型及其工具调用解析方式。
type ModelConfig struct {
	// ID 是客户端请求里的 model。
	ID string
	// UpstreamModel 是发给上游的 model，默认与 ID 相同。
	UpstreamModel string
	// ToolParser 是解析器族名称（支持别名），默认 toolparse.DefaultParser。
	ToolParser string
	// Tokenizer 提供特殊 token 词表；hermes、mistral 必填。
	Tokenizer toolparser.Tokenizer
	// DisableStreaming 为 true 时流式请求也只在结束时做一次全量抽取。
	DisableStreaming bool
}

type Config struct {
	// BasePath 仅用于 Gin 注册路由时拼接路径，默认 "/v1"。
	BasePath string
	// UpstreamURL 上游 OpenAI 兼容服务的 chat/completions 端点地址，必填。
	UpstreamURL string
	// APIKey 可选，转发给上游。
	APIKey string
	// HTTPClient 可选，nil 时内部使用 &http.Client{}。
	HTTPClient *http.Client
	// Models 至少一个。
	Models []ModelConfig
	// SystemFingerprint chat.completions 用；默认 "fp_toolparse"。
	SystemFingerprint string
	// Logger 可选，默认 logrus.StandardLogger()。
	Logger logrus.FieldLogger
	// Metrics 可选，nil 时不记录指标。
	Metrics *Metrics
}
