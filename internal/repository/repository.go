package repository

import (
	"fmt"

	"blinddate-backend/internal/docstore"
)

// Collection names
const (
	StudentsCollection      = "students"
	OTPCollection           = "otps"
	EventsCollection        = "events"
	PartnersCollection      = "partners"
	AnnouncementsCollection = "announcements"
	IdentitiesCollection    = "identities"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = docstore.ErrNotFound

type validator[T any] interface {
	*T
	Validate() error
}

// decode turns a stored document into a validated model. A document that
// does not match the model is an error, never a zero value.
func decode[T any, PT validator[T]](d *docstore.Document) (*T, error) {
	var v T
	if err := d.DataTo(&v); err != nil {
		return nil, fmt.Errorf("malformed %s/%s: %w", d.Collection, d.Key, err)
	}
	if err := PT(&v).Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s/%s: %w", d.Collection, d.Key, err)
	}
	return &v, nil
}
