package remote

import (
	"errors"
	"fmt"
)

// NetworkError reports a failed round trip: the connection failed, the
// body could not be read, or a read request came back with a non-success
// status (Status is then non-zero).
type NetworkError struct {
	Method string
	URL    string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("network error on %s %s: status %d: %v", e.Method, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("network error on %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError reports a response whose JSON shape was not what the
// resource requires.
type ParseError struct {
	Resource string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s: %v", e.Resource, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UploadError reports an unexpected status on a create, update or delete.
// It carries the resource, the remote id (nil for a create) and the
// payload that was sent so the failing entity can be identified.
type UploadError struct {
	Resource  string
	Operation string
	ID        *int
	Status    int
	Payload   string
	Body      string
}

func (e *UploadError) Error() string {
	target := e.Resource
	if e.ID != nil {
		target = fmt.Sprintf("%s/%d", e.Resource, *e.ID)
	}
	return fmt.Sprintf("upload error: %s %s returned status %d (payload %s): %s",
		e.Operation, target, e.Status, e.Payload, e.Body)
}

// IsNetworkError reports whether err (or any error in its chain) is a NetworkError.
func IsNetworkError(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// IsParseError reports whether err (or any error in its chain) is a ParseError.
func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

// IsUploadError reports whether err (or any error in its chain) is an UploadError.
func IsUploadError(err error) bool {
	var target *UploadError
	return errors.As(err, &target)
}
