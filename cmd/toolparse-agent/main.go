package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/LubyRuffy/toolparse"
	"github.com/LubyRuffy/toolparse/backend"
	"github.com/LubyRuffy/toolparse/internal/jsonx"
	"github.com/LubyRuffy/toolparse/tokenizer"
	"github.com/LubyRuffy/toolparse/toolparser"
	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"
)

const defaultAgentName = "toolparse-agent"

func main() {
	var (
		model         = flag.String("model", "", "upstream model name")
		input         = flag.String("input", "What's the weather like in Paris today?", "user input")
		upstreamURL   = flag.String("upstream-url", "http://127.0.0.1:8000/v1/chat/completions", "upstream OpenAI-compatible chat/completions url")
		parserName    = flag.String("tool-parser", toolparse.DefaultParser, "tool parser family: hermes|mistral|llama3_json")
		tokenizerPath = flag.String("tokenizer", "", "tokenizer.json providing special tokens (required by hermes and mistral)")
		stream        = flag.Bool("stream", false, "stream the model output")
	)
	flag.Parse()

	var tok toolparser.Tokenizer
	if *tokenizerPath != "" {
		vocab, err := tokenizer.LoadFile(*tokenizerPath)
		if err != nil {
			logrus.Fatalf("load tokenizer failed: %v", err)
		}
		tok = vocab
	}
	factory, err := backend.NewParserFactory(*parserName, tok)
	if err != nil {
		logrus.Fatalf("create tool parser failed: %v", err)
	}

	upstream, err := backend.NewChatModel(backend.ChatModelConfig{
		Model:       *model,
		UpstreamURL: *upstreamURL,
		APIKey:      os.Getenv("TOOLPARSE_API_KEY"),
	})
	if err != nil {
		logrus.Fatalf("create model failed: %v", err)
	}
	m, err := backend.NewToolCallingModel(upstream, factory)
	if err != nil {
		logrus.Fatalf("create model failed: %v", err)
	}

	agent, err := adk.NewChatModelAgent(context.Background(), &adk.ChatModelAgentConfig{
		Name:        defaultAgentName,
		Description: "prints the tool calls parsed from the model output",
		Model:       m,
	})
	if err != nil {
		logrus.Fatalf("create agent failed: %v", err)
	}

	runner := adk.NewRunner(context.Background(), adk.RunnerConfig{
		Agent:           agent,
		EnableStreaming: *stream,
	})

	iter := runner.Run(context.Background(), []adk.Message{schema.UserMessage(*input)})
	for {
		ev, ok := iter.Next()
		if !ok {
			break
		}
		if ev.Err != nil {
			logrus.Fatalf("run failed: %v", ev.Err)
		}
		if ev.Output == nil || ev.Output.MessageOutput == nil {
			continue
		}
		msg, err := ev.Output.MessageOutput.GetMessage()
		if err != nil {
			logrus.Fatalf("read message failed: %v", err)
		}
		printMessage(msg)
	}
}

func printMessage(msg *schema.Message) {
	if msg == nil {
		return
	}
	if msg.Content != "" {
		fmt.Println(msg.Content)
	}
	for _, call := range msg.ToolCalls {
		line, _ := jsonx.Marshal(map[string]string{
			"id":        call.ID,
			"name":      call.Function.Name,
			"arguments": call.Function.Arguments,
		})
		fmt.Println(string(line))
	}
}
