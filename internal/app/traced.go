package app

import (
	"context"

	"github.com/google/uuid"

	"github.com/omnixys/omnixys-person-service/internal/domain"
	"github.com/omnixys/omnixys-person-service/internal/store"
	"github.com/omnixys/omnixys-person-service/internal/tracing"
)

// The traced* decorators put every collaborator call in its own span.

type tracedPersonRepository struct {
	next store.PersonRepository
}

func (r tracedPersonRepository) FindPersonByID(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	return tracing.Do(ctx, "person-repository.find-by-id", func(ctx context.Context) (*domain.Person, error) {
		return r.next.FindPersonByID(ctx, id)
	})
}

func (r tracedPersonRepository) FindPersonByEmail(ctx context.Context, email string) (*domain.Person, error) {
	return tracing.Do(ctx, "person-repository.find-by-email", func(ctx context.Context) (*domain.Person, error) {
		return r.next.FindPersonByEmail(ctx, email)
	})
}

func (r tracedPersonRepository) FindPersonByUsername(ctx context.Context, username string) (*domain.Person, error) {
	return tracing.Do(ctx, "person-repository.find-by-username", func(ctx context.Context) (*domain.Person, error) {
		return r.next.FindPersonByUsername(ctx, username)
	})
}

func (r tracedPersonRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return tracing.Do(ctx, "person-repository.exists-by-email", func(ctx context.Context) (bool, error) {
		return r.next.ExistsByEmail(ctx, email)
	})
}

func (r tracedPersonRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return tracing.Do(ctx, "person-repository.exists-by-username", func(ctx context.Context) (bool, error) {
		return r.next.ExistsByUsername(ctx, username)
	})
}

func (r tracedPersonRepository) FindPersons(ctx context.Context, q store.PersonQuery) ([]domain.Person, error) {
	return tracing.Do(ctx, "person-repository.find", func(ctx context.Context) ([]domain.Person, error) {
		return r.next.FindPersons(ctx, q)
	})
}

func (r tracedPersonRepository) CreatePerson(ctx context.Context, p *domain.Person) error {
	return tracing.Run(ctx, "person-repository.create", func(ctx context.Context) error {
		return r.next.CreatePerson(ctx, p)
	})
}

func (r tracedPersonRepository) UpdatePerson(ctx context.Context, p *domain.Person) error {
	return tracing.Run(ctx, "person-repository.save", func(ctx context.Context) error {
		return r.next.UpdatePerson(ctx, p)
	})
}

func (r tracedPersonRepository) DeletePerson(ctx context.Context, id uuid.UUID) error {
	return tracing.Run(ctx, "person-repository.delete", func(ctx context.Context) error {
		return r.next.DeletePerson(ctx, id)
	})
}

type tracedContactRepository struct {
	next store.ContactRepository
}

func (r tracedContactRepository) FindContactByID(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	return tracing.Do(ctx, "contact-repository.find-by-id", func(ctx context.Context) (*domain.Contact, error) {
		return r.next.FindContactByID(ctx, id)
	})
}

func (r tracedContactRepository) FindContactsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Contact, error) {
	return tracing.Do(ctx, "contact-repository.find-by-ids", func(ctx context.Context) ([]domain.Contact, error) {
		return r.next.FindContactsByIDs(ctx, ids)
	})
}

func (r tracedContactRepository) CreateContact(ctx context.Context, c *domain.Contact) error {
	return tracing.Run(ctx, "contact-repository.create", func(ctx context.Context) error {
		return r.next.CreateContact(ctx, c)
	})
}

func (r tracedContactRepository) UpdateContact(ctx context.Context, c *domain.Contact) error {
	return tracing.Run(ctx, "contact-repository.save", func(ctx context.Context) error {
		return r.next.UpdateContact(ctx, c)
	})
}

func (r tracedContactRepository) DeleteContact(ctx context.Context, id uuid.UUID) error {
	return tracing.Run(ctx, "contact-repository.delete", func(ctx context.Context) error {
		return r.next.DeleteContact(ctx, id)
	})
}

type tracedIdentity struct {
	next IdentityProvider
}

func (i tracedIdentity) RegisterIdentity(ctx context.Context, person *domain.Person, password, role string) error {
	return tracing.Run(ctx, "keycloak.sign-in", func(ctx context.Context) error {
		return i.next.RegisterIdentity(ctx, person, password, role)
	})
}

func (i tracedIdentity) UpdateIdentity(ctx context.Context, person *domain.Person, caller domain.Caller, previousUsername string) error {
	return tracing.Run(ctx, "keycloak.update", func(ctx context.Context) error {
		return i.next.UpdateIdentity(ctx, person, caller, previousUsername)
	})
}

func (i tracedIdentity) UpdateCredentialSecret(ctx context.Context, newSecret string, caller domain.Caller) error {
	return tracing.Run(ctx, "keycloak.update-password", func(ctx context.Context) error {
		return i.next.UpdateCredentialSecret(ctx, newSecret, caller)
	})
}

func (i tracedIdentity) DeregisterIdentity(ctx context.Context, adminToken, username string) error {
	return tracing.Run(ctx, "keycloak.delete", func(ctx context.Context) error {
		return i.next.DeregisterIdentity(ctx, adminToken, username)
	})
}

type tracedPublisher struct {
	next EventPublisher
}

func (p tracedPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	return tracing.Run(ctx, "events.publish "+topic, func(ctx context.Context) error {
		return p.next.Publish(ctx, topic, payload)
	})
}
