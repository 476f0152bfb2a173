package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a fetch failure for structured logging and for the
// engine's retry/mirror decisions.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindHTTP4xx   ErrorKind = "http-4xx"
	KindHTTP5xx   ErrorKind = "http-5xx"
	KindParse     ErrorKind = "parse"
	KindChallenge ErrorKind = "challenge"
	KindCancelled ErrorKind = "cancelled"
	KindTimeout   ErrorKind = "timeout"
)

// FetchError is a classified fetch failure. Expected non-success responses
// cross the plugin boundary as values of this type, never as panics.
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether the engine may retry this failure on the same
// domain. 4xx and parse failures are terminal.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindTransport, KindHTTP5xx, KindTimeout:
		return true
	}
	return false
}

// ClassifyError maps a transport-level error to a FetchError.
func ClassifyError(url string, err error) *FetchError {
	kind := KindTransport
	switch {
	case errors.Is(err, context.Canceled):
		kind = KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			kind = KindTimeout
		}
	}
	return &FetchError{Kind: kind, URL: url, Err: err}
}

// ClassifyStatus maps a non-2xx response to a FetchError, or nil for
// success statuses.
func ClassifyStatus(url string, statusCode int) *FetchError {
	switch {
	case statusCode >= 200 && statusCode < 400:
		return nil
	case statusCode >= 400 && statusCode < 500:
		return &FetchError{Kind: KindHTTP4xx, URL: url, StatusCode: statusCode}
	default:
		return &FetchError{Kind: KindHTTP5xx, URL: url, StatusCode: statusCode}
	}
}

// KindOf extracts the error kind for logging; unknown errors report as
// transport.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindTransport
}
