package inference

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// Waiter is implemented by services that hold callers back while their
// backend is unavailable.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Call waits until svc accepts requests, then runs req under a hard timeout.
// The wait is bounded by ctx only. Once the timeout fires the call is
// abandoned, whether or not svc honors its context.
func Call(ctx context.Context, svc Service, timeout time.Duration, req Request) (Response, error) {
	if w, ok := svc.(Waiter); ok {
		if err := w.Wait(ctx); err != nil {
			return nil, eris.Wrapf(err, "inference: %s: wait for service", req.Phase)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		resp Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := svc.Infer(callCtx, req)
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-callCtx.Done():
		return nil, eris.Wrapf(callCtx.Err(), "inference: %s", req.Phase)
	}
}
