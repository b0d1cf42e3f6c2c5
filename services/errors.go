package services

import (
	"errors"
	"net/http"
)

// ServiceError is a typed error with an HTTP status code. Err keeps the
// underlying cause for logs; it is never sent to clients.
type ServiceError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Retryable reports whether the provider should redeliver. Data errors
// never become valid on retry.
func (e *ServiceError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusNotFound:
		return false
	}
	return true
}

func badRequest(msg string, err error) *ServiceError {
	return &ServiceError{StatusCode: http.StatusBadRequest, Message: msg, Err: err}
}

func invalidData(msg string, err error) *ServiceError {
	return &ServiceError{StatusCode: http.StatusUnprocessableEntity, Message: msg, Err: err}
}

func notFound(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusNotFound, Message: msg}
}

func storeFailure(msg string, err error) *ServiceError {
	return &ServiceError{StatusCode: http.StatusInternalServerError, Message: msg, Err: err}
}

func identifiersExhausted(err error) *ServiceError {
	return &ServiceError{StatusCode: http.StatusServiceUnavailable, Message: "Could not allocate unique order identifiers", Err: err}
}

// gatewayFailure maps provider errors; deadline overruns become 504.
func gatewayFailure(msg string, err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, ErrGatewayTimeout) {
		return &ServiceError{StatusCode: http.StatusGatewayTimeout, Message: msg, Err: err}
	}
	return &ServiceError{StatusCode: http.StatusBadGateway, Message: msg, Err: err}
}
