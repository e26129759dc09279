package storypager

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a FetchError.
type ErrorKind int

const (
	// KindUnauthenticated - no token was available; nothing was sent.
	KindUnauthenticated ErrorKind = iota + 1
	// KindTransport - the request did not produce an HTTP response.
	KindTransport
	// KindServerRejected - non-2xx status or an "error": true envelope.
	KindServerRejected
	// KindMalformed - the body could not be decoded into the expected shape.
	KindMalformed
)

// Sentinels matched by FetchError.Is, one per kind.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrTransport       = errors.New("transport failure")
	ErrServerRejected  = errors.New("rejected by server")
	ErrMalformed       = errors.New("malformed response")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindUnauthenticated:
		return ErrUnauthenticated
	case KindTransport:
		return ErrTransport
	case KindServerRejected:
		return ErrServerRejected
	case KindMalformed:
		return ErrMalformed
	default:
		return nil
	}
}

func (k ErrorKind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}

	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// FetchError carries the classified failure of one endpoint call.
type FetchError struct {
	Kind ErrorKind
	// Op names the call, e.g. "fetch page" or "login".
	Op string
	// Key is the page key for page fetches, 0 otherwise.
	Key int
	// StatusCode is the HTTP status, 0 when no response was received.
	StatusCode int
	// Message is the server supplied message when one could be decoded.
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	msg := e.Op
	if e.Key != 0 {
		msg = fmt.Sprintf("%s %d", msg, e.Key)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *FetchError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Retryable reports whether re-issuing the same request may succeed:
// transport failures, 5xx and 429 responses.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindTransport:
		return true
	case KindServerRejected:
		return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}

// IsRetryable reports whether err is a FetchError worth retrying.
func IsRetryable(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr) && fetchErr.Retryable()
}
