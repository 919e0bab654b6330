package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// StatusError preserves a non-success HTTP response from a generation
// endpoint. The body is kept verbatim so the server's own message reaches
// the visitor-facing error unchanged.
type StatusError struct {
	Stage      string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s: http %d", e.Stage, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Stage, e.StatusCode, body)
}

func (e *StatusError) Unwrap() error {
	return ErrRejected
}

// IsRateLimited reports whether the response signalled throttling.
func (e *StatusError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsModerated reports whether the endpoint refused the content itself.
func (e *StatusError) IsModerated() bool {
	return e.StatusCode == http.StatusForbidden
}

// WrapTransportError classifies a client-side HTTP failure as a timeout or a
// network error. Timeouts get their own marker so interrupted generations can
// tell the visitor to retry rather than blaming the capture.
func WrapTransportError(stage, operation string, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}

	marker := ErrNetwork
	message := "request failed"
	if isTimeout(err) {
		marker = ErrTimeout
		message = fmt.Sprintf("no response within %s", timeout)
	}
	return Wrap(marker, stage, operation, message, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return false
}
