package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers classify stage and client failures. Wrap tags errors with
// one of these so callers can route a session to the right recovery step
// without parsing message text.
var (
	// ErrValidation marks a locally detected precondition failure (missing
	// capture, empty text, unknown style). The user must fix input.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks a deployment problem (missing endpoint or key).
	ErrConfiguration = errors.New("configuration error")
	// ErrTimeout marks a generation call that exceeded its bounded wait.
	ErrTimeout = errors.New("timeout")
	// ErrNetwork marks a transport-level failure reaching an endpoint.
	ErrNetwork = errors.New("network failure")
	// ErrRejected marks a non-success response from a generation endpoint.
	// The server-provided message is preserved verbatim where available.
	ErrRejected = errors.New("generation rejected")
	// ErrNotFound marks a missing session or artifact.
	ErrNotFound = errors.New("not found")
)

// Kind is the classified failure category surfaced to logs and the API.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindTimeout       Kind = "timeout"
	KindNetwork       Kind = "network"
	KindRejected      Kind = "rejected"
	KindNotFound      Kind = "not_found"
	KindUnknown       Kind = "unknown"
)

// Wrap builds an error that includes stage context while tagging it with the
// provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrNetwork
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// Classify maps an error to its failure kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrRejected):
		return KindRejected
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	default:
		return KindUnknown
	}
}

// ErrorDetails carries the classified pieces of a failure for structured
// logging and user-facing messages.
type ErrorDetails struct {
	Kind    Kind
	Message string
	Hint    string
}

// Details extracts classification, a user-presentable message, and an
// operator hint from an error. Moderation and rate-limit rejections get
// their own visitor-facing messages instead of the raw response body.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindUnknown}
	}
	kind := Classify(err)
	details := ErrorDetails{
		Kind:    kind,
		Message: strings.TrimSpace(err.Error()),
		Hint:    hintFor(kind),
	}

	var status *StatusError
	if errors.As(err, &status) {
		switch {
		case status.IsModerated():
			details.Message = "Content flagged by moderation system"
			details.Hint = "the capture or prompt tripped the endpoint's content filter; redo the capture"
		case status.IsRateLimited():
			details.Message = "Rate limit exceeded. Please try again later."
			if status.RetryAfter > 0 {
				details.Hint = fmt.Sprintf("the endpoint asked to wait %s before retrying", status.RetryAfter)
			} else {
				details.Hint = "the endpoint is throttling requests; retry after a pause"
			}
		}
	}
	return details
}

func hintFor(kind Kind) string {
	switch kind {
	case KindValidation:
		return "ask the visitor to redo the capture or selection"
	case KindConfiguration:
		return "check endpoint URLs and API keys in the config file"
	case KindTimeout:
		return "the generation service is slow; the visitor can retry"
	case KindNetwork:
		return "check connectivity to the generation service"
	case KindRejected:
		return "inspect the generation service response"
	case KindNotFound:
		return "the session may have been cleared; start a new memento"
	default:
		return "check logs for details"
	}
}
