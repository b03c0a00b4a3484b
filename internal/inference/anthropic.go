package inference

import (
	"context"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roundtable-cli/internal/config"
	"github.com/sells-group/roundtable-cli/internal/resilience"
	"github.com/sells-group/roundtable-cli/pkg/anthropic"
)

// AnthropicService implements Service on the Anthropic Messages API.
type AnthropicService struct {
	client      anthropic.Client
	model       string
	temperature float64
	retry       resilience.RetryConfig
	breaker     *resilience.CircuitBreaker
}

// NewAnthropicService wires a client with the configured model and the shared
// retry and circuit breaker settings.
func NewAnthropicService(client anthropic.Client, ac config.AnthropicConfig, rc config.ResilienceConfig) *AnthropicService {
	retry := resilience.RetryFromConfig(rc, 0, "anthropic", "create_message")
	retry.ShouldRetry = isRetryable
	return &AnthropicService{
		client:      client,
		model:       ac.Model,
		temperature: ac.Temperature,
		retry:       retry,
		breaker:     resilience.NewCircuitBreaker(breakerConfig(rc)),
	}
}

func breakerConfig(rc config.ResilienceConfig) resilience.CircuitBreakerConfig {
	cfg := resilience.BreakerFromConfig(rc, "anthropic")
	cfg.ShouldTrip = tripsBreaker
	return cfg
}

// Wait blocks while the circuit is open. It implements Waiter.
func (s *AnthropicService) Wait(ctx context.Context) error {
	return s.breaker.Wait(ctx)
}

// Infer sends one request and decodes the answer. Transient API failures are
// retried. While the circuit is open Infer waits for the reset timeout, within
// ctx, and then probes; it never fails a request without sending it.
func (s *AnthropicService) Infer(ctx context.Context, req Request) (Response, error) {
	temp := s.temperature
	msg := anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   req.MaxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	}
	if req.System != "" {
		msg.System = []anthropic.SystemBlock{{Text: req.System}}
	}

	var resp *anthropic.MessageResponse
	var err error
	for {
		resp, err = resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
				return s.client.CreateMessage(ctx, msg)
			})
		})
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			break
		}
		if werr := s.breaker.Wait(ctx); werr != nil {
			err = werr
			break
		}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "inference: %s", req.Phase)
	}
	resp.Usage.LogCost(s.model, req.Phase)

	out, err := Decode(resp.Text(), req.Keys)
	if err != nil {
		zap.L().Debug("inference: undecodable output",
			zap.String("phase", req.Phase),
			zap.String("stop_reason", resp.StopReason),
			zap.Error(err),
		)
		return nil, err
	}
	return out, nil
}

// isRetryable treats rate limits and server errors reported by the API as
// transient, on top of the network-level checks.
func isRetryable(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return resilience.IsTransientHTTPStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}

// tripsBreaker counts only failures that say the API itself is unhealthy.
// Client errors, invalid output and the caller's own deadline do not.
func tripsBreaker(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return isRetryable(err)
}
