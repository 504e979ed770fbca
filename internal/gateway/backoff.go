package gateway

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Backoff is the retry policy for spreadsheet calls: after a transient
// failure the Nth retry waits Initial*2^(N-1) plus a random jitter below
// MaxJitter.
type Backoff struct {
	Initial   time.Duration
	Retries   int
	MaxJitter time.Duration

	// Sleep and Rand are swapped in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func() float64
}

// DefaultBackoff waits 1s, 2s, 4s, 8s, 16s (plus up to 500ms) between tries.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:   time.Second,
		Retries:   5,
		MaxJitter: 500 * time.Millisecond,
	}
}

// Delay returns the wait before retry number attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Initial << (attempt - 1)
	return d + b.jitter(b.MaxJitter)
}

func (b Backoff) jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	r := rand.Float64
	if b.Rand != nil {
		r = b.Rand
	}
	return time.Duration(r() * float64(max))
}

func (b Backoff) sleep(ctx context.Context, d time.Duration) error {
	if b.Sleep != nil {
		return b.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// transient marks an error worth retrying.
type transient struct{ err error }

func (t transient) Error() string { return t.err.Error() }
func (t transient) Unwrap() error { return t.err }

// Retryable wraps err so Do retries it.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return transient{err: err}
}

// IsRetryable reports whether err was marked transient.
func IsRetryable(err error) bool {
	var t transient
	return errors.As(err, &t)
}

// Do runs fn until it succeeds, returns a permanent error, the retries are
// used up or ctx ends. onRetry, when set, is called before each wait.
func (b Backoff) Do(ctx context.Context, fn func(context.Context) error, onRetry func(attempt int, delay time.Duration, err error)) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt >= b.Retries {
			return err
		}
		delay := b.Delay(attempt + 1)
		if onRetry != nil {
			onRetry(attempt+1, delay, err)
		}
		if serr := b.sleep(ctx, delay); serr != nil {
			return errors.Join(err, serr)
		}
	}
}
