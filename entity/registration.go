package entity

import (
	"net/http"

	"entrypay/lib/validate"
)

// RegistrationRequest is the body of the entry admission endpoint.
type RegistrationRequest struct {
	CategoryId string `json:"category_id" validate:"required,max=64"`
}

func (r *RegistrationRequest) Bind(_ *http.Request) error {
	return validate.Struct(r)
}
