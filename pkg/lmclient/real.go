// Package lmclient provides the mock and real language-model clients
// used by every agent, grounded on original_source/core/ai/gemini_wrapper.py's
// LLMClient/MockGemini/GeminiClient split and construction pattern, and
// on pkg/openrouter/openrouter.go's envconfig-to-eino wiring.
package lmclient

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/cyberforge26/firmware-forge/agent/contract"
)

// RealConfig configures the production language-model client. Field
// names follow spec.md §6's environment variables rather than
// OpenRouter's provider-specific ones.
type RealConfig struct {
	APIKey             string        `envconfig:"LM_API_KEY" split_words:"true"`
	Model              string        `envconfig:"LM_MODEL" split_words:"true" default:"gpt-4o-mini"`
	BaseURL            string        `envconfig:"LM_BASE_URL" split_words:"true"`
	MaxCompletionToken *int          `envconfig:"LM_MAX_TOKENS" split_words:"true" default:"4000"`
	Temperature        float32       `envconfig:"LM_TEMPERATURE" split_words:"true" default:"0.2"`
	Timeout            time.Duration `envconfig:"LM_TIMEOUT" split_words:"true" default:"60s"`
	MaxConcurrency     int           `envconfig:"LM_MAX_CONCURRENCY" split_words:"true" default:"4"`
}

const (
	maxRetries        = 3
	baseBackoff       = 500 * time.Millisecond
	backoffJitterFrac = 0.20
)

// RealClient wraps an eino chat model with the retry and concurrency
// discipline spec.md §4.4/§5 requires: 3 attempts, exponential backoff
// starting at 500ms with ±20% jitter, and a bounded number of in-flight
// completions shared across every caller.
type RealClient struct {
	chatModel model.ToolCallingChatModel
	sem       chan struct{}
	sleep     func(time.Duration)
	rand      func() float64
}

var _ contractx.LMClient = (*RealClient)(nil)

// NewReal builds a RealClient from a RealConfig. It fails fast if no
// API key is configured, matching create_llm_client()'s refusal to
// silently fall back to a mock when USE_REAL_LM is set.
func NewReal(ctx context.Context, cfg RealConfig) (*RealClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: LM_API_KEY is required when USE_REAL_LM=true", contractx.ErrInvalidInput)
	}

	conf := &openaimodel.ChatModelConfig{
		APIKey:      strings.TrimSpace(cfg.APIKey),
		Model:       strings.TrimSpace(cfg.Model),
		MaxTokens:   cfg.MaxCompletionToken,
		Temperature: &cfg.Temperature,
		Timeout:     cfg.Timeout,
	}
	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		conf.BaseURL = trimmed
	}

	m, err := openaimodel.NewChatModel(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("%w: create chat model: %v", contractx.ErrUpstreamUnavailable, err)
	}

	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	return &RealClient{
		chatModel: m,
		sem:       make(chan struct{}, concurrency),
		sleep:     time.Sleep,
		rand:      rand.Float64,
	}, nil
}

// Complete sends prompt as a single user message and returns the
// model's text response, retrying transient upstream failures.
func (c *RealClient) Complete(ctx context.Context, prompt string) (string, error) {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	messages := []*schema.Message{schema.UserMessage(prompt)}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.wait(ctx, attempt); err != nil {
				return "", err
			}
		}

		out, err := c.chatModel.Generate(ctx, messages)
		if err == nil {
			return out.Content, nil
		}
		lastErr = err
	}

	return "", fmt.Errorf("%w: language model call failed after %d attempts: %v", contractx.ErrUpstreamUnavailable, maxRetries, lastErr)
}

func (c *RealClient) wait(ctx context.Context, attempt int) error {
	delay := baseBackoff << uint(attempt-1)
	jitter := 1 + (c.rand()*2-1)*backoffJitterFrac
	delay = time.Duration(float64(delay) * jitter)

	done := make(chan struct{})
	go func() {
		c.sleep(delay)
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
