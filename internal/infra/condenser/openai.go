package condenser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"natrail-bot/internal/observability/metrics"
	"natrail-bot/internal/resilience"
	"natrail-bot/internal/resilience/circuitbreaker"
	"natrail-bot/internal/resilience/retry"
)

// OpenAI condenses text with the chat completions API.
type OpenAI struct {
	client         *openai.Client
	model          string
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	timeout        time.Duration
	logger         *slog.Logger
}

// OpenAIOption configures OpenAI.
type OpenAIOption func(*openAISettings)

type openAISettings struct {
	baseURL     string
	model       string
	retryConfig retry.Config
}

// WithOpenAIBaseURL points the client at another API host.
func WithOpenAIBaseURL(u string) OpenAIOption {
	return func(s *openAISettings) { s.baseURL = u }
}

// WithOpenAIModel overrides the model.
func WithOpenAIModel(m string) OpenAIOption {
	return func(s *openAISettings) {
		if m != "" {
			s.model = m
		}
	}
}

// WithOpenAIRetryConfig overrides the retry policy.
func WithOpenAIRetryConfig(cfg retry.Config) OpenAIOption {
	return func(s *openAISettings) { s.retryConfig = cfg }
}

// NewOpenAI creates an OpenAI condenser.
func NewOpenAI(apiKey string, logger *slog.Logger, opts ...OpenAIOption) *OpenAI {
	s := openAISettings{model: openai.GPT4oMini, retryConfig: retry.AIAPIConfig()}
	for _, opt := range opts {
		opt(&s)
	}

	cfg := openai.DefaultConfig(apiKey)
	if s.baseURL != "" {
		cfg.BaseURL = s.baseURL
	}

	logger.Info("initialized OpenAI condenser", slog.String("model", s.model))
	return &OpenAI{
		client:         openai.NewClientWithConfig(cfg),
		model:          s.model,
		circuitBreaker: circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		retryConfig:    s.retryConfig,
		timeout:        60 * time.Second,
		logger:         logger,
	}
}

// Condense implements compose.Condenser.
func (o *OpenAI) Condense(ctx context.Context, s string, limit int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	out, err := resilience.Call(ctx, o.circuitBreaker, o.retryConfig, func() (string, error) {
		return o.doCondense(ctx, s, limit)
	})
	if err != nil {
		return "", fmt.Errorf("openai condense failed: %w", err)
	}
	metrics.RecordCondensed(MethodOpenAI)
	return out, nil
}

func (o *OpenAI) doCondense(ctx context.Context, s string, limit int) (string, error) {
	requestID := uuid.New().String()
	start := time.Now()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: buildPrompt(clip(s), limit),
		}},
	})
	if err != nil {
		o.logger.ErrorContext(ctx, "openai condense request failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err))
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai api returned empty response")
	}

	out, err := check(resp.Choices[0].Message.Content, limit)
	if err != nil {
		return "", fmt.Errorf("openai api: %w", err)
	}
	o.logger.DebugContext(ctx, "condensed with openai",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)))
	return out, nil
}
