package transcribe

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"
)

// retryWait is the backoff before the single retry of a transient failure.
const retryWait = 2 * time.Second

// httpStatusError marks an engine HTTP response that failed with a status
// code; transient codes make the call retryable.
type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	if e.Body != "" {
		return http.StatusText(e.StatusCode) + ": " + e.Body
	}
	return http.StatusText(e.StatusCode)
}

// withRetry runs fn and, if it fails with a transient error, retries exactly
// once after a short backoff. Permanent errors return immediately.
func withRetry(ctx context.Context, engine string, fn func() (*Result, error)) (*Result, error) {
	result, err := fn()
	if err == nil || !isTransient(err) {
		return result, err
	}

	log.Printf("[transcribe] %s transient failure, retrying once: %v", engine, err)
	select {
	case <-time.After(retryWait):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return fn()
}

// isTransient reports whether an engine error is worth one retry.
func isTransient(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
