package condenser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"natrail-bot/internal/observability/metrics"
	"natrail-bot/internal/resilience"
	"natrail-bot/internal/resilience/circuitbreaker"
	"natrail-bot/internal/resilience/retry"
)

// Claude condenses text with the Anthropic Messages API.
type Claude struct {
	client         anthropic.Client
	model          string
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	timeout        time.Duration
	logger         *slog.Logger
}

// ClaudeOption configures Claude.
type ClaudeOption func(*claudeSettings)

type claudeSettings struct {
	baseURL     string
	model       string
	retryConfig retry.Config
}

// WithClaudeBaseURL points the client at another API host.
func WithClaudeBaseURL(u string) ClaudeOption {
	return func(s *claudeSettings) { s.baseURL = u }
}

// WithClaudeModel overrides the model.
func WithClaudeModel(m string) ClaudeOption {
	return func(s *claudeSettings) {
		if m != "" {
			s.model = m
		}
	}
}

// WithClaudeRetryConfig overrides the retry policy.
func WithClaudeRetryConfig(cfg retry.Config) ClaudeOption {
	return func(s *claudeSettings) { s.retryConfig = cfg }
}

// NewClaude creates a Claude condenser.
func NewClaude(apiKey string, logger *slog.Logger, opts ...ClaudeOption) *Claude {
	s := claudeSettings{
		model:       string(anthropic.ModelClaudeSonnet4_5_20250929),
		retryConfig: retry.AIAPIConfig(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if s.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(s.baseURL))
	}

	logger.Info("initialized Claude condenser", slog.String("model", s.model))
	return &Claude{
		client:         anthropic.NewClient(reqOpts...),
		model:          s.model,
		circuitBreaker: circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:    s.retryConfig,
		timeout:        60 * time.Second,
		logger:         logger,
	}
}

// Condense implements compose.Condenser.
func (c *Claude) Condense(ctx context.Context, s string, limit int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := resilience.Call(ctx, c.circuitBreaker, c.retryConfig, func() (string, error) {
		return c.doCondense(ctx, s, limit)
	})
	if err != nil {
		return "", fmt.Errorf("claude condense failed: %w", err)
	}
	metrics.RecordCondensed(MethodClaude)
	return out, nil
}

func (c *Claude) doCondense(ctx context.Context, s string, limit int) (string, error) {
	requestID := uuid.New().String()
	start := time.Now()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(clip(s), limit))),
		},
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "claude condense request failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err))
		return "", fmt.Errorf("claude api error: %w", err)
	}
	if len(message.Content) == 0 {
		return "", fmt.Errorf("claude api returned empty response")
	}
	block, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return "", fmt.Errorf("claude api returned unexpected response type")
	}

	out, err := check(block.Text, limit)
	if err != nil {
		return "", fmt.Errorf("claude api: %w", err)
	}
	c.logger.DebugContext(ctx, "condensed with claude",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)))
	return out, nil
}
