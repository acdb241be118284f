package response

import (
	"errors"
	"net/http"

	"entrypay/entity"
	"entrypay/lib/clock"
)

type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Success       bool        `json:"success" validate:"required"`
	StatusMessage string      `json:"status_message"`
	Error         string      `json:"error,omitempty"`
	Retryable     bool        `json:"retryable,omitempty"`
	Timestamp     string      `json:"timestamp"`
}

func Ok(data interface{}) Response {
	return Response{
		Data:          data,
		Success:       true,
		StatusMessage: "Success",
		Timestamp:     clock.Now(),
	}
}

func Error(message string) Response {
	return Response{
		Success:       false,
		StatusMessage: message,
		Error:         message,
		Timestamp:     clock.Now(),
	}
}

// Failure builds the error body for a service error.
func Failure(err error) Response {
	r := Error(err.Error())
	r.Retryable = entity.IsRetryable(err)
	return r
}

// StatusCode maps the service error taxonomy to HTTP status codes.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, entity.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, entity.ErrAlreadySettled):
		return http.StatusConflict
	case errors.Is(err, entity.ErrRegistrationClosed),
		errors.Is(err, entity.ErrInvalidFee),
		errors.Is(err, entity.ErrInvalidSignature),
		errors.Is(err, entity.ErrMalformedEvent):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrInvalidReference):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrExternalProcessor):
		return http.StatusBadGateway
	case errors.Is(err, entity.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, entity.ErrNotConfigured):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
