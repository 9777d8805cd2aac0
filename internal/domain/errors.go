package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for classification with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
)

// NotFoundError reports a missing definition, stack or remote resource.
type NotFoundError struct {
	Resource string
	Name     string
	Message  string
	Err      error
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("%s not found: %s", e.Resource, e.Name)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// Is makes every NotFoundError match ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TransportError is a failed exchange with the remote API: either a
// non-2xx status or a network fault.
type TransportError struct {
	Method string
	URL    string
	Status int
	Body   string
	Err    error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("HTTP status %d (%s %s): %s", e.Status, e.Method, e.URL, e.Body)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports a 404 as ErrNotFound.
func (e *TransportError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// DeploymentError is the single user-facing error returned by the reconciler.
type DeploymentError struct {
	StackName  string
	EndpointID int
	Err        error
}

// Error implements the error interface.
func (e *DeploymentError) Error() string {
	return fmt.Sprintf("failed to deploy stack %s on endpoint %d: %v", e.StackName, e.EndpointID, e.Err)
}

func (e *DeploymentError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is, or wraps, a not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StatusCode returns the HTTP status carried by a TransportError in err's
// chain, or 0.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}
