package http

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a client-facing failure carrying the status it is served with.
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// BadRequestErrorf reports a malformed parameter.
func BadRequestErrorf(field, format string, a ...interface{}) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: "ERR_BAD_REQUEST", Field: field, Message: fmt.Sprintf(format, a...)}
}

func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: "ERR_NOT_FOUND", Message: fmt.Sprintf(format, a...)}
}

func asAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
