/**
 * @description
 * This file defines the repository interfaces for persons, contacts and the
 * event outbox. The write path depends only on these contracts; Postgres,
 * MongoDB and in-memory implementations live next to it.
 *
 * Updates are compare-and-set on (id, version): the caller passes the entity
 * with the version it read, the store persists it only if that version is
 * still current and bumps the version by exactly one.
 *
 * @dependencies
 * - github.com/google/uuid: identifiers.
 * - internal/domain: the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/omnixys/omnixys-person-service/internal/domain"
)

var (
	ErrPersonNotFound  = errors.New("person not found")
	ErrContactNotFound = errors.New("contact not found")
	// ErrVersionConflict is returned when a compare-and-set update lost the race.
	ErrVersionConflict = errors.New("version conflict")
	ErrEmailTaken      = errors.New("email already taken")
	ErrUsernameTaken   = errors.New("username already taken")
)

// SortDirection of a person query.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// PersonQuery is an equality filter over a fixed set of person fields.
// Zero values are ignored.
type PersonQuery struct {
	PersonType    domain.PersonType
	LastName      string
	FirstName     string
	Email         string
	Username      string
	Gender        domain.GenderType
	CustomerState domain.StatusType
	TierLevel     int
	Subscribed    *bool

	Offset  int
	Limit   int
	SortBy  string
	SortDir SortDirection
}

// SortableFields lists the person attributes a query may sort by.
var SortableFields = map[string]bool{
	"lastName":  true,
	"firstName": true,
	"email":     true,
	"username":  true,
	"birthdate": true,
	"created":   true,
	"updated":   true,
}

// PersonRepository defines persistence for the Person aggregate.
type PersonRepository interface {
	FindPersonByID(ctx context.Context, id uuid.UUID) (*domain.Person, error)
	FindPersonByEmail(ctx context.Context, email string) (*domain.Person, error)
	FindPersonByUsername(ctx context.Context, username string) (*domain.Person, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	FindPersons(ctx context.Context, query PersonQuery) ([]domain.Person, error)
	// CreatePerson inserts p with version 0 and sets its timestamps.
	CreatePerson(ctx context.Context, p *domain.Person) error
	// UpdatePerson is a compare-and-set on p.Version. On success p.Version is
	// incremented and p.Updated refreshed.
	UpdatePerson(ctx context.Context, p *domain.Person) error
	DeletePerson(ctx context.Context, id uuid.UUID) error
}

// ContactRepository defines persistence for contacts.
type ContactRepository interface {
	FindContactByID(ctx context.Context, id uuid.UUID) (*domain.Contact, error)
	// FindContactsByIDs returns the contacts that exist, in the order of ids.
	FindContactsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Contact, error)
	CreateContact(ctx context.Context, c *domain.Contact) error
	UpdateContact(ctx context.Context, c *domain.Contact) error
	DeleteContact(ctx context.Context, id uuid.UUID) error
}

// OutboxMessage is a claimed, not yet published event.
type OutboxMessage struct {
	ID         int64
	Exchange   string
	RoutingKey string
	Payload    []byte
	Attempts   int
}

// OutboxRepository stores events for asynchronous delivery to the broker.
type OutboxRepository interface {
	EnqueueEvent(ctx context.Context, exchange, routingKey string, payload interface{}) error
	ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, id int64) error
	MarkOutboxFailed(ctx context.Context, id int64, retryAfterSeconds int, reason string) error
	PurgePublishedOutbox(ctx context.Context, olderThan time.Duration) (int64, error)
	CountPendingOutbox(ctx context.Context) (int64, error)
}
