package openaihttp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/LubyRuffy/toolparse"
	"github.com/LubyRuffy/toolparse/backend"
	"github.com/LubyRuffy/toolparse/openaiapi"
	"github.com/LubyRuffy/toolparse/toolparser"
	"github.com/sirupsen/logrus"
)

const defaultSystemFingerprint = "fp_toolparse"

func Handlers(cfg Config) (modelsHandler http.HandlerFunc, chatHandler http.HandlerFunc, err error) {
	resolved, err := resolveConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	compat, err := newCompatHandler(compatConfig{
		Now:               time.Now,
		NewChatCompletion: openaiapi.NewChatCompletionID,
		WriteJSON:         writeJSON,
		WriteOpenAIError:  writeOpenAIError,
		SystemFingerprint: resolved.SystemFingerprint,
		Models:            resolved.Models,
		NewChatModel:      newChatModelFactory(resolved),
		Logger:            resolved.Logger,
		Metrics:           cfg.Metrics,
	})
	if err != nil {
		return nil, nil, err
	}

	return compat.handleModels, compat.handleChatCompletions, nil
}

func newChatModelFactory(resolved resolvedConfig) func(ctx context.Context, model resolvedModel, tools []openaiapi.OpenAITool) (chatModel, error) {
	return func(ctx context.Context, model resolvedModel, tools []openaiapi.OpenAITool) (chatModel, error) {
		m, err := backend.NewChatModel(backend.ChatModelConfig{
			Model:       model.UpstreamModel,
			UpstreamURL: resolved.UpstreamURL,
			APIKey:      resolved.APIKey,
			HTTPClient:  resolved.HTTPClient,
		})
		if err != nil {
			return nil, &httpError{
				Status:  http.StatusInternalServerError,
				Message: "failed to create upstream model",
				Err:     err,
			}
		}
		if len(tools) > 0 {
			m = m.WithOpenAITools(tools)
		}
		return m, nil
	}
}

// resolvedModel 是校验过的 ModelConfig，newParser 为每个请求构造新的解析器。
type resolvedModel struct {
	ID            string
	UpstreamModel string
	ParserName    string
	newParser     backend.ParserFactory
}

type resolvedConfig struct {
	BasePath          string
	UpstreamURL       string
	APIKey            string
	HTTPClient        *http.Client
	Models            []resolvedModel
	SystemFingerprint string
	Logger            logrus.FieldLogger
}

func resolveConfig(cfg Config) (resolvedConfig, error) {
	upstreamURL := strings.TrimSpace(cfg.UpstreamURL)
	if upstreamURL == "" {
		return resolvedConfig{}, fmt.Errorf("UpstreamURL is required")
	}
	if len(cfg.Models) == 0 {
		return resolvedConfig{}, fmt.Errorf("at least one model is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	fp := strings.TrimSpace(cfg.SystemFingerprint)
	if fp == "" {
		fp = defaultSystemFingerprint
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithField("component", "openaihttp")

	models := make([]resolvedModel, 0, len(cfg.Models))
	seen := make(map[string]struct{}, len(cfg.Models))
	for _, mc := range cfg.Models {
		id := strings.TrimSpace(mc.ID)
		if id == "" {
			return resolvedConfig{}, fmt.Errorf("model id is required")
		}
		if _, ok := seen[id]; ok {
			return resolvedConfig{}, fmt.Errorf("duplicate model id %q", id)
		}
		seen[id] = struct{}{}

		upstream := strings.TrimSpace(mc.UpstreamModel)
		if upstream == "" {
			upstream = id
		}
		parserName := toolparse.NormalizeParserName(mc.ToolParser)
		if parserName == "" {
			parserName = toolparse.DefaultParser
		}
		opts := []toolparser.Option{toolparser.WithLogger(logger.WithField("model", id))}
		if mc.DisableStreaming {
			opts = append(opts, toolparser.FullModeOnly())
		}
		factory, err := backend.NewParserFactory(parserName, mc.Tokenizer, opts...)
		if err != nil {
			return resolvedConfig{}, fmt.Errorf("model %q: %w", id, err)
		}
		models = append(models, resolvedModel{
			ID:            id,
			UpstreamModel: upstream,
			ParserName:    parserName,
			newParser:     factory,
		})
	}

	return resolvedConfig{
		BasePath:          normalizeBasePath(cfg.BasePath),
		UpstreamURL:       upstreamURL,
		APIKey:            strings.TrimSpace(cfg.APIKey),
		HTTPClient:        client,
		Models:            models,
		SystemFingerprint: fp,
		Logger:            logger,
	}, nil
}
