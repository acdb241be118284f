package entity

import "time"

const TournamentRegistrationOpen = "registration_open"

// Category and Tournament are owned by the catalog side of the platform;
// the payment core only reads them for eligibility checks.
type Category struct {
	Id              string `json:"id" bson:"_id"`
	TournamentId    string `json:"tournament_id" bson:"tournament_id"`
	Name            string `json:"name" bson:"name"`
	RegistrationFee string `json:"registration_fee" bson:"registration_fee"`
}

type Tournament struct {
	Id                string    `json:"id" bson:"_id"`
	Title             string    `json:"title" bson:"title"`
	OrganizerId       string    `json:"organizer_id" bson:"organizer_id"`
	Status            string    `json:"status" bson:"status"`
	RegistrationStart time.Time `json:"registration_start" bson:"registration_start"`
	RegistrationEnd   time.Time `json:"registration_end" bson:"registration_end"`
}

// RegistrationOpenAt reports whether the tournament accepts registrations at t;
// both window bounds are inclusive.
func (t *Tournament) RegistrationOpenAt(at time.Time) bool {
	if t.Status != TournamentRegistrationOpen {
		return false
	}
	return !at.Before(t.RegistrationStart) && !at.After(t.RegistrationEnd)
}
