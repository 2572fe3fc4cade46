package api

import (
	"errors"
	"fmt"
	"net/http"

	"spacegun/internal/pipeline"
	"spacegun/internal/scheduler"
)

var (
	// ErrNotFound matches every "does not exist" error of the dispatch layer.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest is returned when parameters cannot be decoded.
	ErrBadRequest = errors.New("bad request")
)

// Error codes carried by RemoteError.
const (
	CodeNotFound   = "not_found"
	CodeConflict   = "conflict"
	CodeBadRequest = "bad_request"
	CodeInternal   = "internal"
)

// NotFoundError represents a resource not found error with contextual information.
type NotFoundError struct {
	// ResourceType categorizes the resource, e.g. "procedure" or "pipeline".
	ResourceType string
	// ResourceName is the identifier that was looked up.
	ResourceName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// Is makes every NotFoundError match ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError with the specified resource type and name.
func NewNotFoundError(resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{ResourceType: resourceType, ResourceName: resourceName}
}

// IsNotFound reports whether err means that something does not exist, locally
// or on a remote server.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, pipeline.ErrUnknownPipeline) ||
		errors.Is(err, scheduler.ErrUnknownCron)
}

// RemoteError is an error returned by a server.
type RemoteError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Unwrap maps the error code back onto the local sentinel.
func (e *RemoteError) Unwrap() error {
	switch e.Code {
	case CodeNotFound:
		return ErrNotFound
	case CodeConflict:
		return scheduler.ErrAlreadyRunning
	case CodeBadRequest:
		return ErrBadRequest
	}
	return nil
}

// ToRemoteError classifies err for transport.
func ToRemoteError(err error) *RemoteError {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote
	}
	switch {
	case IsNotFound(err):
		return &RemoteError{StatusCode: http.StatusNotFound, Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		return &RemoteError{StatusCode: http.StatusConflict, Code: CodeConflict, Message: err.Error()}
	case errors.Is(err, ErrBadRequest):
		return &RemoteError{StatusCode: http.StatusBadRequest, Code: CodeBadRequest, Message: err.Error()}
	}
	return &RemoteError{StatusCode: http.StatusInternalServerError, Code: CodeInternal, Message: err.Error()}
}
