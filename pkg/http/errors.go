package http

import (
	"fmt"
	"net/http"
)

// AppError is an error that carries its HTTP status and a stable code.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

func newAppError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func BadRequestError(message string) *AppError {
	return newAppError(http.StatusBadRequest, "ERR_BAD_REQUEST", message)
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

func NotFoundError(message string) *AppError {
	return newAppError(http.StatusNotFound, "ERR_NOT_FOUND", message)
}

func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return NotFoundError(fmt.Sprintf(format, a...))
}

// UnprocessableError reports input that is well formed but cannot be scanned,
// such as a series that is too short.
func UnprocessableError(message string) *AppError {
	return newAppError(http.StatusUnprocessableEntity, "ERR_UNPROCESSABLE", message)
}

// BadGatewayError reports an upstream market data failure.
func BadGatewayError(message string) *AppError {
	return newAppError(http.StatusBadGateway, "ERR_UPSTREAM", message)
}

func ServiceUnavailableError(message string) *AppError {
	return newAppError(http.StatusServiceUnavailable, "ERR_UNAVAILABLE", message)
}
