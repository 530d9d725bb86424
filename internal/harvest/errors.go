package harvest

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies extraction and cache failures.
type ErrorKind string

// Error kinds shared by all extractors. BackendUnavailable is only ever used
// inside the cache layer.
const (
	KindRateLimited        ErrorKind = "rate_limited"
	KindAuthFailed         ErrorKind = "auth_failed"
	KindNotFound           ErrorKind = "not_found"
	KindTimeout            ErrorKind = "timeout"
	KindParseError         ErrorKind = "parse_error"
	KindBackendUnavailable ErrorKind = "backend_unavailable"
	KindUnknown            ErrorKind = "unknown"
)

// ExtractError is returned by extractors to report a classified failure.
type ExtractError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewExtractError builds an ExtractError with a formatted message.
func NewExtractError(kind ErrorKind, err error, format string, args ...any) *ExtractError {
	return &ExtractError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *ExtractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

// KindOf maps any error to an ErrorKind. Classified errors keep their kind,
// deadline and network timeouts become KindTimeout, everything else is
// KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var extractErr *ExtractError
	if errors.As(err, &extractErr) {
		return extractErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindUnknown
}
