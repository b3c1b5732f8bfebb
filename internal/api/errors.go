package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/go-supportchat/internal/server"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func newApiError(statusCode int) *ApiError {
	return &ApiError{
		StatusCode: statusCode,
		Message:    lower(http.StatusText(statusCode)),
	}
}

func NewBadRequestError() *ApiError {
	return newApiError(http.StatusBadRequest)
}

func NewNotFoundError() *ApiError {
	return newApiError(http.StatusNotFound)
}

func NewInternalServerError(err error) *ApiError {
	e := newApiError(http.StatusInternalServerError)
	e.Err = err
	return e
}

func NewUnauthorizedError() *ApiError {
	return newApiError(http.StatusUnauthorized)
}

func NewForbiddenError() *ApiError {
	return newApiError(http.StatusForbidden)
}

func NewConflictError() *ApiError {
	return newApiError(http.StatusConflict)
}

func NewServiceUnavailableError() *ApiError {
	return newApiError(http.StatusServiceUnavailable)
}

// fromServerError maps a chat operation failure to its HTTP response.
func fromServerError(err error) *ApiError {
	switch {
	case errors.Is(err, server.ErrNotFound):
		return NewNotFoundError()
	case errors.Is(err, server.ErrUnauthorized):
		return NewForbiddenError()
	case errors.Is(err, server.ErrInvalidParticipant),
		errors.Is(err, server.ErrRoomMismatch),
		errors.Is(err, server.ErrInvalidMessage):
		return NewBadRequestError()
	case errors.Is(err, server.ErrReadLocked),
		errors.Is(err, server.ErrConflict),
		errors.Is(err, server.ErrMessageDeleted):
		return NewConflictError()
	case errors.Is(err, server.ErrServiceUnavailable):
		return NewServiceUnavailableError()
	default:
		return NewInternalServerError(err)
	}
}
