package affluence

import "errors"

var (
	// ErrRequestFailed is returned when the upstream request could not be
	// executed (network unreachable, timeout).
	ErrRequestFailed = errors.New("affluence request failed")

	// ErrBadStatus is returned for non-2xx upstream responses.
	ErrBadStatus = errors.New("affluence returned non-success status")

	// ErrBadPayload is returned when a response body cannot be decoded.
	ErrBadPayload = errors.New("affluence payload could not be decoded")
)
