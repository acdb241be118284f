package entity

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusAccepted  EntryStatus = "accepted"
	StatusWithdrawn EntryStatus = "withdrawn"
)

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentWaived   PaymentStatus = "waived"
	PaymentRefunded PaymentStatus = "refunded"
)

const DefaultCurrency = "usd"

// Entry is one participant's registration claim on a tournament category.
// Id, CategoryId and CreatedBy never change after creation.
type Entry struct {
	Id               string        `json:"id" bson:"_id"`
	CategoryId       string        `json:"category_id" bson:"category_id"`
	CreatedBy        string        `json:"created_by" bson:"created_by"`
	Status           EntryStatus   `json:"status" bson:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status" bson:"payment_status"`
	PaymentReference string        `json:"payment_reference,omitempty" bson:"payment_reference,omitempty"`
	PaymentAmount    string        `json:"payment_amount,omitempty" bson:"payment_amount,omitempty"`
	PaymentCurrency  string        `json:"payment_currency" bson:"payment_currency"`
	PaidAt           *time.Time    `json:"paid_at,omitempty" bson:"paid_at,omitempty"`
	CheckoutAt       *time.Time    `json:"checkout_at,omitempty" bson:"checkout_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at" bson:"created_at"`
}

func NewEntry(categoryId, participantId string) *Entry {
	return &Entry{
		Id:              uuid.NewString(),
		CategoryId:      categoryId,
		CreatedBy:       participantId,
		Status:          StatusPending,
		PaymentStatus:   PaymentUnpaid,
		PaymentCurrency: DefaultCurrency,
		CreatedAt:       time.Now().UTC(),
	}
}

// ManagedBy reports whether the caller may act on the entry: its creator or
// the organizer of the tournament the entry's category belongs to.
func (e *Entry) ManagedBy(callerId string, tournament *Tournament) bool {
	if callerId == "" {
		return false
	}
	if e.CreatedBy == callerId {
		return true
	}
	return tournament != nil && tournament.OrganizerId == callerId
}

func (e *Entry) IsPaid() bool {
	return e.PaymentStatus == PaymentPaid
}

// Member links an entry to a participant; the first member is written
// together with the entry itself.
type Member struct {
	EntryId   string    `json:"entry_id" bson:"entry_id"`
	ProfileId string    `json:"profile_id" bson:"profile_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

func NewMember(entry *Entry) *Member {
	return &Member{
		EntryId:   entry.Id,
		ProfileId: entry.CreatedBy,
		CreatedAt: entry.CreatedAt,
	}
}

// EntryCondition is the precondition of a conditional update.
// An empty list matches any current value.
type EntryCondition struct {
	Status        []EntryStatus
	PaymentStatus []PaymentStatus
}

func (c EntryCondition) Match(e *Entry) bool {
	if len(c.Status) > 0 && !slices.Contains(c.Status, e.Status) {
		return false
	}
	if len(c.PaymentStatus) > 0 && !slices.Contains(c.PaymentStatus, e.PaymentStatus) {
		return false
	}
	return true
}

// EntryUpdate holds the fields a conditional update sets; zero values are left untouched.
type EntryUpdate struct {
	Status           EntryStatus
	PaymentStatus    PaymentStatus
	PaymentReference string
	PaymentAmount    string
	PaymentCurrency  string
	PaidAt           *time.Time
	CheckoutAt       *time.Time
}

func (u EntryUpdate) Apply(e *Entry) {
	if u.Status != "" {
		e.Status = u.Status
	}
	if u.PaymentStatus != "" {
		e.PaymentStatus = u.PaymentStatus
	}
	if u.PaymentReference != "" {
		e.PaymentReference = u.PaymentReference
	}
	if u.PaymentAmount != "" {
		e.PaymentAmount = u.PaymentAmount
	}
	if u.PaymentCurrency != "" {
		e.PaymentCurrency = u.PaymentCurrency
	}
	if u.PaidAt != nil {
		t := *u.PaidAt
		e.PaidAt = &t
	}
	if u.CheckoutAt != nil {
		t := *u.CheckoutAt
		e.CheckoutAt = &t
	}
}

func (u EntryUpdate) IsEmpty() bool {
	return u == EntryUpdate{}
}
