package navigate

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var errNotReady = errors.New("not ready")

// WaitUntil polls cond with exponential backoff until it holds or limit
// elapses. cond is always evaluated at least once.
func WaitUntil(ctx context.Context, limit time.Duration, cond func() bool) bool {
	if cond() {
		return true
	}
	if limit <= 0 || ctx.Err() != nil {
		return false
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = limit

	err := backoff.Retry(func() error {
		if cond() {
			return nil
		}
		return errNotReady
	}, backoff.WithContext(b, ctx))
	return err == nil
}

// pause sleeps for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
