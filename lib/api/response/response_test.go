package response

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"entrypay/entity"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{entity.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("entry x: %w", entity.ErrNotFound), http.StatusNotFound},
		{entity.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("payment status paid: %w", entity.ErrAlreadySettled), http.StatusConflict},
		{entity.ErrRegistrationClosed, http.StatusBadRequest},
		{entity.ErrInvalidFee, http.StatusBadRequest},
		{entity.ErrInvalidSignature, http.StatusBadRequest},
		{entity.ErrMalformedEvent, http.StatusBadRequest},
		{entity.ErrInvalidReference, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: timeout", entity.ErrExternalProcessor), http.StatusBadGateway},
		{fmt.Errorf("%w: down", entity.ErrStorageUnavailable), http.StatusServiceUnavailable},
		{entity.ErrNotConfigured, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestFailure(t *testing.T) {
	r := Failure(fmt.Errorf("%w: down", entity.ErrStorageUnavailable))
	if r.Success || !r.Retryable || r.Error == "" {
		t.Errorf("unexpected response %+v", r)
	}
	if Failure(entity.ErrForbidden).Retryable {
		t.Error("forbidden must not be retryable")
	}
}
