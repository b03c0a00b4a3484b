package inference

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcService func(ctx context.Context, req Request) (Response, error)

func (f funcService) Infer(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

type waitingService struct {
	funcService
	waited  bool
	waitErr error
}

func (w *waitingService) Wait(context.Context) error {
	w.waited = true
	return w.waitErr
}

func TestCall_ReturnsServiceAnswer(t *testing.T) {
	svc := funcService(func(_ context.Context, req Request) (Response, error) {
		return Response{"phase": []byte(`"` + req.Phase + `"`)}, nil
	})
	resp, err := Call(context.Background(), svc, time.Second, Request{Phase: "enrich"})
	require.NoError(t, err)
	assert.JSONEq(t, `"enrich"`, string(resp["phase"]))
}

func TestCall_TimeoutAbandonsBlockedService(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	svc := funcService(func(context.Context, Request) (Response, error) {
		<-release
		return Response{}, nil
	})

	start := time.Now()
	_, err := Call(context.Background(), svc, 10*time.Millisecond, Request{Phase: "enrich"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCall_WaitsBeforeCalling(t *testing.T) {
	calls := 0
	svc := &waitingService{funcService: func(context.Context, Request) (Response, error) {
		calls++
		return Response{}, nil
	}}
	_, err := Call(context.Background(), svc, time.Second, Request{})
	require.NoError(t, err)
	assert.True(t, svc.waited)
	assert.Equal(t, 1, calls)

	svc.waitErr = context.Canceled
	_, err = Call(context.Background(), svc, time.Second, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
