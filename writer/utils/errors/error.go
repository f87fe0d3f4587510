package custom_errors

import (
	"errors"
	"net/http"
)

// Define base error values for comparison
var (
	ErrNotImplemented = &QrynError{http.StatusNotImplemented, "not implemented"}
	ErrNotFound       = &QrynError{http.StatusNotFound, "not found"}
	ErrBodyTooLarge   = &QrynError{http.StatusRequestEntityTooLarge, "request body too large"}
)

// IQrynError interface
type IQrynError interface {
	error
	IsQrynError() bool
	GetCode() int
}

type UnMarshalError struct {
	Message string
	Code    int
}

func (u *UnMarshalError) GetCode() int {
	return u.Code
}

func (u *UnMarshalError) IsQrynError() bool {
	return true
}

func (u *UnMarshalError) Error() string {
	return u.Message
}

// QrynError struct implementing IQrynError
type QrynError struct {
	Code    int
	Message string
}

func (e *QrynError) Error() string {
	return e.Message
}

func (e *QrynError) IsQrynError() bool {
	return true
}

func (e *QrynError) GetCode() int {
	return e.Code
}

func New400Error(msg string) IQrynError {
	return &QrynError{Code: http.StatusBadRequest, Message: msg}
}

func New413Error(msg string) IQrynError {
	return &QrynError{Code: http.StatusRequestEntityTooLarge, Message: msg}
}

// NewUnmarshalError creates a new instance of UnmarshalError.
func NewUnmarshalError(err error) IQrynError {
	var target IQrynError
	if errors.As(err, &target) {
		return target
	}
	return &UnMarshalError{
		err.Error(),
		http.StatusBadRequest,
	}
}

func Unwrap[T IQrynError](err error) (T, bool) {
	var target T
	if errors.As(err, &target) {
		return target, true
	}
	return target, false
}
