package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/metrics"
)

// DefaultGroqBaseURL is the OpenAI-compatible Groq endpoint.
const DefaultGroqBaseURL = "https://api.groq.com/openai/v1"

// ChatConfig holds the chat completion provider settings.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	// MaxTokens <= 0 leaves the output length to the provider.
	MaxTokens int
	// Timeout bounds a single attempt.
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	// RateLimit is requests per second across all callers; 0 disables it.
	RateLimit float64
	Logger    *zap.Logger
}

// ChatModel calls an OpenAI-compatible chat completion endpoint with
// per-attempt timeouts, bounded retries and optional client-side rate limiting.
type ChatModel struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	attempts    uint
	retryDelay  time.Duration
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewChatModel creates a chat completion client.
func NewChatModel(cfg *ChatConfig) *ChatModel {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	if clientCfg.BaseURL == "" {
		clientCfg.BaseURL = DefaultGroqBaseURL
	}
	if cfg.Temperature == 0 {
		clientCfg.HTTPClient = &http.Client{Transport: zeroTemperatureTransport{base: http.DefaultTransport}}
	}

	m := &ChatModel{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		attempts:    uint(max(cfg.MaxRetries, 0)) + 1, //nolint:gosec // clamped to non-negative
		retryDelay:  cfg.RetryDelay,
		logger:      cfg.Logger,
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if cfg.RateLimit > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(math.Ceil(cfg.RateLimit))))
	}
	return m
}

// Model returns the configured model name.
func (m *ChatModel) Model() string { return m.model }

// Complete implements domain.ChatModel.
func (m *ChatModel) Complete(ctx context.Context, stage string, messages []domain.ChatMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: m.temperature,
	}
	if m.maxTokens > 0 {
		req.MaxCompletionTokens = m.maxTokens
	}

	start := time.Now()
	resp, err := retry.DoWithData(
		func() (openai.ChatCompletionResponse, error) { return m.attempt(ctx, req) },
		retry.Context(ctx),
		retry.Attempts(m.attempts),
		retry.Delay(m.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			metrics.LLMRetriesTotal.WithLabelValues(m.model).Inc()
			m.logger.Warn("chat completion failed, retrying",
				zap.String("stage", stage),
				zap.Uint("attempt", n+1),
				zap.Uint("max_attempts", m.attempts),
				zap.Error(err),
			)
		}),
	)
	metrics.LLMRequestDuration.WithLabelValues(m.model, stage).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(m.model, stage, "error").Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("chat completion: %w: %w", domain.ErrLLMProviderError, ctxErr)
		}
		return "", parseAPIError(err, "chat completion", domain.ErrLLMProviderError)
	}
	metrics.LLMRequestsTotal.WithLabelValues(m.model, stage, "success").Inc()
	metrics.LLMTokensTotal.WithLabelValues(m.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(m.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (m *ChatModel) attempt(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return openai.ChatCompletionResponse{}, retry.Unrecoverable(fmt.Errorf("rate limiter: %w", err))
		}
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionResponse{}, err //nolint:wrapcheck // classified by retryable and parseAPIError
	}
	return resp, nil
}

// zeroTemperatureTransport writes "temperature": 0 into chat completion
// bodies. go-openai drops a zero temperature (omitempty) and providers then
// sample at their own default.
type zeroTemperatureTransport struct {
	base http.RoundTripper
}

func (t zeroTemperatureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPost || req.Body == nil || !strings.HasSuffix(req.URL.Path, "/chat/completions") {
		return t.base.RoundTrip(req) //nolint:wrapcheck // transport passthrough
	}
	raw, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode request body: %w", err)
	}
	if _, ok := fields["temperature"]; !ok {
		fields["temperature"] = json.RawMessage("0")
		if raw, err = json.Marshal(fields); err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(raw))
	out.ContentLength = int64(len(raw))
	out.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(raw)), nil }
	return t.base.RoundTrip(out) //nolint:wrapcheck // transport passthrough
}

// HealthCheck verifies API availability via ListModels.
func (m *ChatModel) HealthCheck(ctx context.Context) error {
	if _, err := m.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func toOpenAIMessages(messages []domain.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		out[i] = openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
	}
	return out
}
