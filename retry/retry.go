// Package retry re-runs failing operations with backoff. The feed uses it to re-dial the relay.
package retry

import (
	"context"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// RetryableFunc is a retryable function.
type RetryableFunc func(context.Context) error

// IsRetryable checks whether a new attempt can be started based on the error passed.
type IsRetryable func(error) bool

// OnRetryableErrorFunc is called if a retryable error occurs, before waiting for the next attempt.
type OnRetryableErrorFunc func(elapsed time.Duration, attempt uint64, err, lastErr error)

// OnSuccessFunc is called once the operation succeeds.
type OnSuccessFunc func(elapsed time.Duration, attempt uint64, lastErr error)

// Settings aggregates optional settings for WithBackoff.
type Settings struct {
	// Timeout, if > 0, stops retrying once elapsed. An attempt is never interrupted by it, and if the timeout
	// expires while waiting between attempts, one final attempt is made.
	Timeout time.Duration

	OnRetryableError OnRetryableErrorFunc
	OnSuccess        OnSuccessFunc
}

// WithBackoff calls f until it succeeds, returns an error retryable rejects, the timeout expires or ctx is done.
// The delay between attempts is given by b. f receives ctx and must honor it.
func WithBackoff(ctx context.Context, f RetryableFunc, retryable IsRetryable, b Backoff, settings Settings) (err error) {
	var timeout <-chan time.Time
	if settings.Timeout > 0 {
		t := time.NewTimer(settings.Timeout)
		defer t.Stop()
		timeout = t.C
	}

	start := time.Now()
	timedOut := false

	for attempt := uint64(1); ; attempt++ {
		prevErr := err

		if err = f(ctx); err == nil {
			if settings.OnSuccess != nil {
				settings.OnSuccess(time.Since(start), attempt, prevErr)
			}

			return nil
		}

		// f may have failed because of ctx without returning ctx.Err() itself.
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), err.Error())
		}

		if !retryable(err) {
			return errors.Wrap(err, "can't retry")
		}

		select {
		case <-timeout:
			timedOut = true
		default:
		}

		if timedOut {
			return errors.Wrap(err, "retry deadline exceeded")
		}

		if settings.OnRetryableError != nil {
			settings.OnRetryableError(time.Since(start), attempt, err, prevErr)
		}

		wait := time.NewTimer(b(attempt))

		select {
		case <-wait.C:
		case <-timeout:
			wait.Stop()
			timedOut = true
		case <-ctx.Done():
			wait.Stop()
			return errors.Wrap(ctx.Err(), err.Error())
		}
	}
}

// Retryable reports whether err is a transport failure worth re-dialing for:
// temporary and timeout errors, DNS failures, refused, reset or unreachable connections, broken pipes,
// unexpected EOF, failed websocket handshakes and websocket close frames.
// Context errors and anything else, e.g. a malformed URL, are not retryable.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) || errors.Is(err, websocket.ErrBadHandshake) {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}

	var dnsError *net.DNSError
	if errors.As(err, &dnsError) {
		return true
	}

	var opError *net.OpError
	if errors.As(err, &opError) {
		// Dial and read failures reach us as OpError, which only reports Temporary() and Timeout().
		err = opError.Err
	}

	for _, errno := range []syscall.Errno{
		syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED,
		syscall.EHOSTDOWN, syscall.EHOSTUNREACH, syscall.ENETDOWN, syscall.ENETUNREACH, syscall.EPIPE,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}

	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
