package entity

import (
	"net/http"

	"entrypay/lib/validate"
)

// User is an API principal resolved from a bearer token. Id is the
// participant/organizer identity entries and tournaments refer to.
type User struct {
	Id       string `json:"id" bson:"_id" validate:"required"`
	Username string `json:"username" bson:"username" validate:"required"`
	Name     string `json:"name" bson:"name" validate:"omitempty"`
	Email    string `json:"email" bson:"email" validate:"omitempty,email"`
	Token    string `json:"token" bson:"token" validate:"required,min=1"`
}

func (u *User) Bind(_ *http.Request) error {
	return validate.Struct(u)
}
