package domain

import (
	"time"

	"github.com/google/uuid"
)

// Contact is a person known to a customer. It is versioned independently of
// the owning Person.
type Contact struct {
	ID               uuid.UUID        `json:"id"`
	Version          int              `json:"version"`
	LastName         string           `json:"lastName"`
	FirstName        string           `json:"firstName"`
	Relationship     RelationshipType `json:"relationship"`
	WithdrawalLimit  int              `json:"withdrawalLimit"`
	EmergencyContact bool             `json:"emergencyContact"`
	StartDate        *Date            `json:"startDate,omitempty"`
	EndDate          *Date            `json:"endDate,omitempty"`
	Created          time.Time        `json:"created"`
	Updated          time.Time        `json:"updated"`
}

// SameName reports whether both contacts carry the same (lastName, firstName).
func (c *Contact) SameName(other *Contact) bool {
	return c.LastName == other.LastName && c.FirstName == other.FirstName
}

// Merge copies the present fields of in onto c. The emergency flag can only
// be raised, and a zero withdrawal limit keeps the stored one.
func (c *Contact) Merge(in *Contact) {
	if in.LastName != "" {
		c.LastName = in.LastName
	}
	if in.FirstName != "" {
		c.FirstName = in.FirstName
	}
	if in.Relationship != "" {
		c.Relationship = in.Relationship
	}
	if in.WithdrawalLimit != 0 {
		c.WithdrawalLimit = in.WithdrawalLimit
	}
	c.EmergencyContact = c.EmergencyContact || in.EmergencyContact
	if in.StartDate != nil {
		c.StartDate = in.StartDate
	}
	if in.EndDate != nil {
		c.EndDate = in.EndDate
	}
}
