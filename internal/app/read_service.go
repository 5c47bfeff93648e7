package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/omnixys/omnixys-person-service/internal/domain"
	"github.com/omnixys/omnixys-person-service/internal/logging"
	"github.com/omnixys/omnixys-person-service/internal/store"
	"github.com/omnixys/omnixys-person-service/internal/tracing"
)

// ReadService answers person and contact queries.
type ReadService struct {
	persons  store.PersonRepository
	contacts store.ContactRepository
	log      logrus.FieldLogger
	metrics  *metrics
}

func NewReadService(persons store.PersonRepository, contacts store.ContactRepository, logger logrus.FieldLogger) *ReadService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ReadService{
		persons:  tracedPersonRepository{next: persons},
		contacts: tracedContactRepository{next: contacts},
		log:      logger.WithField("component", "read-service"),
		metrics:  getMetrics(),
	}
}

// FindByID returns the person with id. An empty kind matches both customers
// and employees. Owners always see their own record; anyone else needs the
// ADMIN or USER role.
func (s *ReadService) FindByID(ctx context.Context, id uuid.UUID, kind domain.PersonType, caller domain.Caller) (person *domain.Person, err error) {
	defer s.metrics.observe("find-by-id", time.Now(), &err)
	return tracing.Do(ctx, "person-service.read.find-by-id", func(ctx context.Context) (*domain.Person, error) {
		person, err := s.findPerson(ctx, id, kind)
		if err != nil {
			return nil, err
		}
		if err := checkReadAccess(caller, person.Username); err != nil {
			return nil, err
		}
		logging.FromContext(ctx, s.log).WithFields(logrus.Fields{"id": id, "user": caller.Username}).Debug("person found")
		return person, nil
	})
}

// Find lists persons matching query. The result may be empty.
func (s *ReadService) Find(ctx context.Context, query store.PersonQuery, caller domain.Caller) (persons []domain.Person, err error) {
	defer s.metrics.observe("find", time.Now(), &err)
	return tracing.Do(ctx, "person-service.read.find", func(ctx context.Context) ([]domain.Person, error) {
		if !caller.HasAnyRole(domain.RoleAdmin, domain.RoleUser) {
			return nil, forbidden(caller)
		}
		found, err := s.persons.FindPersons(ctx, query)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "find persons")
		}
		if found == nil {
			found = []domain.Person{}
		}
		return found, nil
	})
}

// FindContacts returns the contacts referenced by a customer, in reference
// order. Dangling references are skipped.
func (s *ReadService) FindContacts(ctx context.Context, customerID uuid.UUID, caller domain.Caller) (contacts []domain.Contact, err error) {
	defer s.metrics.observe("find-contacts", time.Now(), &err)
	return tracing.Do(ctx, "person-service.read.find-contacts", func(ctx context.Context) ([]domain.Contact, error) {
		customer, err := s.findPerson(ctx, customerID, domain.PersonTypeCustomer)
		if err != nil {
			return nil, err
		}
		if err := checkReadAccess(caller, customer.Username); err != nil {
			return nil, err
		}
		if customer.Customer == nil || len(customer.Customer.ContactIDs) == 0 {
			return []domain.Contact{}, nil
		}
		found, err := s.contacts.FindContactsByIDs(ctx, customer.Customer.ContactIDs)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "load contacts")
		}
		return found, nil
	})
}

func (s *ReadService) findPerson(ctx context.Context, id uuid.UUID, kind domain.PersonType) (*domain.Person, error) {
	person, err := s.persons.FindPersonByID(ctx, id)
	if errors.Is(err, store.ErrPersonNotFound) {
		return nil, domain.NewNotFound(id)
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "load person %s", id)
	}
	if kind != "" && person.PersonType != kind {
		return nil, domain.NewNotFound(id)
	}
	return person, nil
}

func checkReadAccess(caller domain.Caller, ownerUsername string) error {
	if caller.Username != "" && caller.Username == ownerUsername {
		return nil
	}
	if caller.HasAnyRole(domain.RoleAdmin, domain.RoleUser) {
		return nil
	}
	return forbidden(caller)
}
