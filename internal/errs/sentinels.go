// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across api/service/store layers.
var (
	// ErrUnauthorized indicates a rejected or missing credential (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotImplemented indicates the backend does not serve the endpoint yet (HTTP 404/501).
	ErrNotImplemented = errors.New("not implemented")

	// ErrBadRequest indicates the backend rejected the request payload (HTTP 400).
	ErrBadRequest = errors.New("bad request")

	// ErrServer indicates a backend failure (HTTP 5xx).
	ErrServer = errors.New("server error")

	// ErrNetwork indicates the request never produced a response.
	ErrNetwork = errors.New("network error")

	// ErrParse indicates a successful response with an undecodable body.
	ErrParse = errors.New("parse error")

	// ErrNotFound indicates a missing local record (e.g. no stored credential).
	ErrNotFound = errors.New("not found")
)
