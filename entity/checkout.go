package entity

import (
	"net/http"

	"entrypay/lib/validate"
)

// CheckoutRequest is the body of the checkout creation endpoint.
// CallerId is filled from the authenticated user, never from the body.
type CheckoutRequest struct {
	EntryId    string `json:"entry_id" validate:"required"`
	SuccessUrl string `json:"success_url,omitempty" validate:"omitempty,url"`
	CancelUrl  string `json:"cancel_url,omitempty" validate:"omitempty,url"`
	CallerId   string `json:"-"`
}

func (c *CheckoutRequest) Bind(_ *http.Request) error {
	return validate.Struct(c)
}

type Checkout struct {
	Url       string `json:"url"`
	SessionId string `json:"session_id"`
}

// SessionParams describes a hosted checkout session to open at the processor.
// Amount is in minor currency units.
type SessionParams struct {
	Name       string
	Amount     int64
	Currency   string
	SuccessUrl string
	CancelUrl  string
	Metadata   map[string]string
}

// CheckoutSession is the processor's view of a session.
type CheckoutSession struct {
	Id            string
	Url           string
	Status        string
	PaymentStatus string
	Metadata      map[string]string
}

const (
	MetaEntryId      = "entry_id"
	MetaCategoryId   = "category_id"
	MetaTournamentId = "tournament_id"
	MetaUserId       = "user_id"
)

const SessionPaymentPaid = "paid"
