package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/and161185/feedwall/internal/errs"
)

// Kind classifies a failed request.
type Kind string

const (
	KindNetwork        Kind = "network"
	KindHTTP           Kind = "http"
	KindBadRequest     Kind = "bad_request"
	KindUnauthorized   Kind = "unauthorized"
	KindNotImplemented Kind = "not_implemented"
	KindServer         Kind = "server"
	KindParse          Kind = "parse"
)

// KindOf maps a failing HTTP status to its kind.
func KindOf(status int) Kind {
	switch {
	case status == http.StatusBadRequest:
		return KindBadRequest
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusNotFound, status == http.StatusNotImplemented:
		return KindNotImplemented
	case status >= 500:
		return KindServer
	default:
		return KindHTTP
	}
}

// Error is returned for every transport failure, non-2xx response and
// undecodable body. Status, StatusText and Body are set for HTTP kinds.
type Error struct {
	Kind       Kind
	Method     string
	Path       string
	Status     int
	StatusText string
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNetwork, KindParse:
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Path, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s %s: HTTP %d %s", e.Method, e.Path, e.Status, e.StatusText)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the errs sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case errs.ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case errs.ErrNotImplemented:
		return e.Kind == KindNotImplemented
	case errs.ErrBadRequest:
		return e.Kind == KindBadRequest
	case errs.ErrServer:
		return e.Kind == KindServer
	case errs.ErrNetwork:
		return e.Kind == KindNetwork
	case errs.ErrParse:
		return e.Kind == KindParse
	}
	return false
}

// UserMessage is the fixed, human-readable text for the error's kind.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindNetwork:
		return "Network error. Please check your connection and try again."
	case KindUnauthorized:
		return "Invalid credentials."
	case KindBadRequest:
		return "Bad request."
	case KindNotImplemented:
		return "Not available yet."
	case KindServer:
		return "Server error. Please try again later."
	case KindParse:
		return "Unexpected response from server."
	default:
		return "Unexpected error."
	}
}

// UserMessage returns the fixed message of an *Error anywhere in err's chain,
// or err's own text otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.UserMessage()
	}
	return err.Error()
}
