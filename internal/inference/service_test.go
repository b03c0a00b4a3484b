package inference

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roundtable-cli/internal/config"
	"github.com/sells-group/roundtable-cli/internal/resilience"
	"github.com/sells-group/roundtable-cli/pkg/anthropic"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 20},
	}
}

// apiError builds an SDK error with the request and response its Error method
// reads.
func apiError(code int) *sdk.Error {
	return &sdk.Error{
		StatusCode: code,
		Request:    httptest.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil),
		Response:   &http.Response{StatusCode: code},
	}
}

func testService(c anthropic.Client) *AnthropicService {
	return NewAnthropicService(c,
		config.AnthropicConfig{Model: "claude-haiku-4-5-20251001", Temperature: 0.2},
		config.ResilienceConfig{MaxAttempts: 2, InitialBackoffMs: 1, MaxBackoffMs: 2, FailureThreshold: 2, ResetTimeoutSecs: 60},
	)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		keys    []string
		wantErr bool
	}{
		{"plain", `{"a": 1, "b": "x"}`, []string{"a", "b"}, false},
		{"fenced", "```json\n{\"a\": 1}\n```", []string{"a"}, false},
		{"bare fence", "```\n{\"a\": 1}\n```", []string{"a"}, false},
		{"prose", `Here is the JSON: {"a": [1, 2]} Hope that helps.`, []string{"a"}, false},
		{"missing key", `{"a": 1}`, []string{"a", "b"}, true},
		{"array", `[1, 2]`, nil, true},
		{"null", `null`, nil, true},
		{"empty", `   `, nil, true},
		{"garbage", `not json at all`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := Decode(tt.text, tt.keys)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidResponse)
				return
			}
			require.NoError(t, err)
			for _, k := range tt.keys {
				assert.Contains(t, resp, k)
			}
		})
	}
}

func TestInfer_BuildsRequest(t *testing.T) {
	c := &mockClient{}
	c.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			req.MaxTokens == 500 &&
			req.Temperature != nil && *req.Temperature == 0.2 &&
			len(req.System) == 1 && req.System[0].Text == "sys" &&
			len(req.Messages) == 1 && req.Messages[0].Role == "user" && req.Messages[0].Content == "prompt"
	})).Return(textResponse(`{"keywords": ["ethics"]}`), nil).Once()

	resp, err := testService(c).Infer(context.Background(), Request{
		Phase: "enrich", System: "sys", Prompt: "prompt", MaxTokens: 500, Keys: []string{"keywords"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `["ethics"]`, string(resp["keywords"]))
	c.AssertExpectations(t)
}

func TestInfer_InvalidOutput(t *testing.T) {
	c := &mockClient{}
	c.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("I cannot help with that."), nil).Once()

	_, err := testService(c).Infer(context.Background(), Request{Phase: "enrich", Prompt: "p", Keys: []string{"keywords"}})
	assert.ErrorIs(t, err, ErrInvalidResponse)
	c.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestInfer_RetriesTransientAPIError(t *testing.T) {
	c := &mockClient{}
	c.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, apiError(http.StatusTooManyRequests)).Once()
	c.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"x": 1}`), nil).Once()

	resp, err := testService(c).Infer(context.Background(), Request{Phase: "normalize", Prompt: "p"})
	require.NoError(t, err)
	assert.JSONEq(t, `1`, string(resp["x"]))
	c.AssertNumberOfCalls(t, "CreateMessage", 2)
}

func TestInfer_DoesNotRetryClientError(t *testing.T) {
	c := &mockClient{}
	c.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, apiError(http.StatusBadRequest)).Once()

	_, err := testService(c).Infer(context.Background(), Request{Phase: "normalize", Prompt: "p"})
	require.Error(t, err)
	c.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestInfer_OpenCircuitWaitsInsteadOfFailing(t *testing.T) {
	c := &mockClient{}
	c.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, apiError(http.StatusServiceUnavailable))

	svc := testService(c)
	for range 2 {
		_, err := svc.Infer(context.Background(), Request{Phase: "enrich", Prompt: "p"})
		require.Error(t, err)
	}
	c.AssertNumberOfCalls(t, "CreateMessage", 4)
	require.Equal(t, resilience.CircuitOpen, svc.breaker.State())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.Infer(ctx, Request{Phase: "enrich", Prompt: "p"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, resilience.ErrCircuitOpen)
	c.AssertNumberOfCalls(t, "CreateMessage", 4)
}

func TestInfer_ProbesAfterResetAndRecovers(t *testing.T) {
	c := &mockClient{}
	c.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, apiError(http.StatusServiceUnavailable)).Times(2)
	c.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"x": 1}`), nil)

	svc := testService(c)
	cfg := breakerConfig(config.ResilienceConfig{FailureThreshold: 1})
	cfg.ResetTimeout = 20 * time.Millisecond
	svc.breaker = resilience.NewCircuitBreaker(cfg)

	_, err := svc.Infer(context.Background(), Request{Phase: "normalize", Prompt: "p"})
	require.Error(t, err)
	require.Equal(t, resilience.CircuitOpen, svc.breaker.State())

	resp, err := svc.Infer(context.Background(), Request{Phase: "normalize", Prompt: "p"})
	require.NoError(t, err)
	assert.JSONEq(t, `1`, string(resp["x"]))
	c.AssertNumberOfCalls(t, "CreateMessage", 3)
	assert.Equal(t, resilience.CircuitClosed, svc.breaker.State())
}

func TestInfer_ClientErrorsDoNotOpenCircuit(t *testing.T) {
	c := &mockClient{}
	c.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, apiError(http.StatusBadRequest))

	svc := testService(c)
	for range 4 {
		_, err := svc.Infer(context.Background(), Request{Phase: "enrich", Prompt: "p"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, resilience.ErrCircuitOpen)
	}
	c.AssertNumberOfCalls(t, "CreateMessage", 4)
	assert.Equal(t, resilience.CircuitClosed, svc.breaker.State())
}

func TestTripsBreaker(t *testing.T) {
	assert.True(t, tripsBreaker(apiError(http.StatusTooManyRequests)))
	assert.True(t, tripsBreaker(resilience.NewTransientError(errors.New("reset"), 0)))
	assert.False(t, tripsBreaker(apiError(http.StatusBadRequest)))
	assert.False(t, tripsBreaker(context.DeadlineExceeded))
	assert.False(t, tripsBreaker(context.Canceled))
	assert.False(t, tripsBreaker(ErrInvalidResponse))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(apiError(http.StatusServiceUnavailable)))
	assert.False(t, isRetryable(apiError(http.StatusUnauthorized)))
	assert.True(t, isRetryable(resilience.NewTransientError(errors.New("x"), 0)))
	assert.False(t, isRetryable(errors.New("plain")))
}
