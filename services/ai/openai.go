// Package aisvc implements ai.Completer on top of the OpenAI chat completion API.
package aisvc

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/ai"
	"github.com/aaronlou/innergrow.ai/services/metrics"
)

const systemMessage = "You are a helpful assistant."

var errEmptyResponse = errors.New("empty response from AI provider")

type openAICompleter struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

var _ ai.Completer = (*openAICompleter)(nil)

// NewCompleter returns nil when no API key is configured, which disables AI features.
func NewCompleter(conf core.AIConfig) ai.Completer {
	if strings.TrimSpace(conf.APIKey) == "" {
		return nil
	}
	cfg := openai.DefaultConfig(conf.APIKey)
	if conf.BaseURL != "" {
		cfg.BaseURL = conf.BaseURL
	}
	return &openAICompleter{
		client:      openai.NewClientWithConfig(cfg),
		model:       conf.Model,
		maxTokens:   conf.MaxTokens,
		temperature: conf.Temperature,
	}
}

func (c *openAICompleter) Complete(ctx context.Context, prompt, model string) (string, error) {
	if model == "" {
		model = c.model
	}
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err == nil && len(resp.Choices) == 0 {
		err = errEmptyResponse
	}
	metrics.ObserveCompletion(model, time.Since(start), err)
	if err != nil {
		return "", errors.Wrap(err, "creating chat completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
