package openaihttp

import (
	"net/http"
	"path"
	"strings"

	"github.com/LubyRuffy/toolparse/internal/jsonx"
	"github.com/LubyRuffy/toolparse/openaiapi"
)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = jsonx.NewEncoder(w).Encode(data)
}

func openAIError(statusCode int, message string) openaiapi.OpenAIError {
	var errType string
	switch statusCode {
	case http.StatusBadRequest:
		errType = "invalid_request_error"
	case http.StatusNotFound:
		errType = "not_found_error"
	case http.StatusTooManyRequests:
		errType = "rate_limit_error"
	case http.StatusServiceUnavailable:
		errType = "service_unavailable_error"
	default:
		errType = "api_error"
	}

	errResp := openaiapi.OpenAIError{}
	errResp.Error.Message = message
	errResp.Error.Type = errType
	return errResp
}

func writeOpenAIError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = jsonx.NewEncoder(w).Encode(openAIError(statusCode, message))
}

func normalizeBasePath(basePath string) string {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimRight(basePath, "/")
	if basePath == "" {
		return "/"
	}
	return basePath
}

func joinPath(basePath, suffix string) string {
	basePath = normalizeBasePath(basePath)
	if suffix == "" {
		return basePath
	}
	if !strings.HasPrefix(suffix, "/") {
		suffix = "/" + suffix
	}
	// path.Join 会清理重复的 /，并保证结果以 / 开头
	return path.Join(basePath, suffix)
}
