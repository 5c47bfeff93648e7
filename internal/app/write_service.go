/**
 * @description
 * This file contains the write orchestrator of the person service. The
 * WriteService runs every mutation as a fixed pipeline: load, version guard,
 * access guard, uniqueness checks, merge, identity provider propagation,
 * persistence and finally event publishing.
 *
 * Steps are not atomic across collaborators. A registration that fails to
 * persist leaves the identity behind, and a delete removes contacts before the
 * identity is deregistered.
 *
 * @dependencies
 * - github.com/pkg/errors: context on collaborator failures.
 * - github.com/sirupsen/logrus: structured logs.
 * - internal/store, internal/tracing: persistence and spans.
 */

package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/omnixys/omnixys-person-service/internal/domain"
	"github.com/omnixys/omnixys-person-service/internal/logging"
	"github.com/omnixys/omnixys-person-service/internal/store"
	"github.com/omnixys/omnixys-person-service/internal/tracing"
)

const defaultEmployeeEmailDomain = "gentlecorp-systems.com"

// WriteDependencies are the collaborators of a WriteService.
type WriteDependencies struct {
	Persons   store.PersonRepository
	Contacts  store.ContactRepository
	Identity  IdentityProvider
	Publisher EventPublisher
	Validator *Validator
	Logger    logrus.FieldLogger

	EmployeeEmailDomain string
}

// WriteService provides the mutations on persons and their contacts.
type WriteService struct {
	persons     store.PersonRepository
	contacts    store.ContactRepository
	identity    IdentityProvider
	publisher   EventPublisher
	validator   *Validator
	log         logrus.FieldLogger
	metrics     *metrics
	emailDomain string
	now         func() time.Time
}

// NewWriteService wires the collaborators, each wrapped in a tracing decorator.
func NewWriteService(deps WriteDependencies) *WriteService {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	validator := deps.Validator
	if validator == nil {
		validator = NewValidator()
	}
	emailDomain := strings.TrimSpace(deps.EmployeeEmailDomain)
	if emailDomain == "" {
		emailDomain = defaultEmployeeEmailDomain
	}
	return &WriteService{
		persons:     tracedPersonRepository{next: deps.Persons},
		contacts:    tracedContactRepository{next: deps.Contacts},
		identity:    tracedIdentity{next: deps.Identity},
		publisher:   tracedPublisher{next: deps.Publisher},
		validator:   validator,
		log:         logger.WithField("component", "write-service"),
		metrics:     getMetrics(),
		emailDomain: emailDomain,
		now:         time.Now,
	}
}

// CreateCustomer registers a new customer with the identity provider, stores
// it and announces it to the notification, account and shopping-cart
// services.
func (s *WriteService) CreateCustomer(ctx context.Context, in CreateCustomerInput) (created *domain.Person, err error) {
	defer s.metrics.observe("create-customer", time.Now(), &err)
	return tracing.Do(ctx, "person-service.write.create-customer", func(ctx context.Context) (*domain.Person, error) {
		// 1. The tier decides the identity role; reject bad tiers before any I/O.
		role, err := RoleForTier(in.Customer.TierLevel)
		if err != nil {
			return nil, err
		}
		if err := s.validator.Struct(in); err != nil {
			return nil, err
		}

		// 2. Uniqueness and password policy.
		username := normalizeUsername(in.User.Username)
		email := strings.TrimSpace(in.Person.Email)
		if err := s.checkNewIdentity(ctx, email, username, in.User.Password); err != nil {
			return nil, err
		}

		// 3. Build the aggregate.
		person := newPerson(in.Person, username, domain.PersonTypeCustomer)
		person.Email = email
		person.Customer = in.Customer.toDomain()
		person.Customer.CustomerState = domain.StatusActive
		person.Customer.ContactIDs = []uuid.UUID{}

		// 4. Identity first, then storage.
		if err := s.register(ctx, person, in.User.Password, role); err != nil {
			return nil, err
		}

		// 5. Announce.
		if err := s.publishAll(ctx, customerCreatedEvents(person, role)); err != nil {
			return nil, pkgerrors.Wrap(err, "announce created customer")
		}

		logging.FromContext(ctx, s.log).WithFields(logrus.Fields{
			"id": person.ID, "username": person.Username, "role": role,
		}).Info("customer created")
		return person, nil
	})
}

// CreateEmployee registers a new employee. The email address is derived from
// the name and no events are published.
func (s *WriteService) CreateEmployee(ctx context.Context, in CreateEmployeeInput) (created *domain.Person, err error) {
	defer s.metrics.observe("create-employee", time.Now(), &err)
	return tracing.Do(ctx, "person-service.write.create-employee", func(ctx context.Context) (*domain.Person, error) {
		if err := s.validator.Struct(in); err != nil {
			return nil, err
		}

		username := normalizeUsername(in.User.Username)
		email := s.employeeEmail(in.Person.FirstName, in.Person.LastName)
		if err := s.checkNewIdentity(ctx, email, username, in.User.Password); err != nil {
			return nil, err
		}

		person := newPerson(in.Person, username, domain.PersonTypeEmployee)
		person.Email = email
		person.Employee = in.Employee.toDomain()

		if err := s.register(ctx, person, in.User.Password, string(person.Employee.Role)); err != nil {
			return nil, err
		}

		logging.FromContext(ctx, s.log).WithFields(logrus.Fields{
			"id": person.ID, "username": person.Username, "email": person.Email,
		}).Info("employee created")
		return person, nil
	})
}

// UpdateCustomer merges in onto the stored customer. Only present fields
// change; the customer state is reset to ACTIVE.
func (s *WriteService) UpdateCustomer(ctx context.Context, id uuid.UUID, version int, in UpdateCustomerInput, caller domain.Caller) (updated *domain.Person, err error) {
	defer s.metrics.observe("update-customer", time.Now(), &err)
	return tracing.Do(ctx, "person-service.write.update-customer", func(ctx context.Context) (*domain.Person, error) {
		if err := s.validator.Struct(in); err != nil {
			return nil, err
		}
		patch := in.Person.patch()
		if in.Customer != nil {
			patch.Customer = in.Customer.toDomain()
		}
		return s.update(ctx, id, version, domain.PersonTypeCustomer, patch, caller)
	})
}

// UpdateEmployee merges in onto the stored employee.
func (s *WriteService) UpdateEmployee(ctx context.Context, id uuid.UUID, version int, in UpdateEmployeeInput, caller domain.Caller) (updated *domain.Person, err error) {
	defer s.metrics.observe("update-employee", time.Now(), &err)
	return tracing.Do(ctx, "person-service.write.update-employee", func(ctx context.Context) (*domain.Person, error) {
		if err := s.validator.Struct(in); err != nil {
			return nil, err
		}
		patch := in.Person.patch()
		if in.Employee != nil {
			patch.Employee = in.Employee.toDomain()
		}
		return s.update(ctx, id, version, domain.PersonTypeEmployee, patch, caller)
	})
}

// DeleteCustomer removes a customer, its contacts and its identity, then
// tells the shopping-cart, account and notification services.
func (s *WriteService) DeleteCustomer(ctx context.Context, id uuid.UUID, version int, caller domain.Caller) (err error) {
	defer s.metrics.observe("delete-customer", time.Now(), &err)
	return tracing.Run(ctx, "person-service.write.delete-customer", func(ctx context.Context) error {
		person, err := s.delete(ctx, id, version, domain.PersonTypeCustomer, caller)
		if err != nil {
			return err
		}
		if err := s.publishAll(ctx, customerDeletedEvents(person, s.now())); err != nil {
			return pkgerrors.Wrap(err, "announce deleted customer")
		}
		return nil
	})
}

// DeleteEmployee removes an employee and its identity. No events are sent.
func (s *WriteService) DeleteEmployee(ctx context.Context, id uuid.UUID, version int, caller domain.Caller) (err error) {
	defer s.metrics.observe("delete-employee", time.Now(), &err)
	return tracing.Run(ctx, "person-service.write.delete-employee", func(ctx context.Context) error {
		_, err := s.delete(ctx, id, version, domain.PersonTypeEmployee, caller)
		return err
	})
}

// UpdatePassword sets a new password for the caller at the identity provider.
// Nothing is stored locally.
func (s *WriteService) UpdatePassword(ctx context.Context, newPassword string, caller domain.Caller) (err error) {
	defer s.metrics.observe("update-password", time.Now(), &err)
	return tracing.Run(ctx, "person-service.write.update-password", func(ctx context.Context) error {
		if !ValidPassword(newPassword) {
			return &domain.PasswordInvalidError{}
		}
		if err := s.identity.UpdateCredentialSecret(ctx, newPassword, caller); err != nil {
			return pkgerrors.Wrap(err, "update password at identity provider")
		}
		logging.FromContext(ctx, s.log).WithField("user", caller.Username).Info("password updated")
		return nil
	})
}

func (s *WriteService) checkNewIdentity(ctx context.Context, email, username, password string) error {
	emailTaken, err := s.persons.ExistsByEmail(ctx, email)
	if err != nil {
		return pkgerrors.Wrap(err, "check email")
	}
	if emailTaken {
		return &domain.EmailExistsError{Email: email}
	}

	usernameTaken, err := s.persons.ExistsByUsername(ctx, username)
	if err != nil {
		return pkgerrors.Wrap(err, "check username")
	}
	if usernameTaken {
		return &domain.UsernameExistsError{Username: username}
	}

	if !ValidPassword(password) {
		return &domain.PasswordInvalidError{}
	}
	return nil
}

// register signs the person up at the identity provider and stores it. A
// storage failure after a successful sign-up leaves the identity in place.
func (s *WriteService) register(ctx context.Context, person *domain.Person, password, role string) error {
	if err := s.identity.RegisterIdentity(ctx, person, password, role); err != nil {
		var signUp *domain.SignUpFailedError
		if errors.As(err, &signUp) {
			return err
		}
		return &domain.SignUpFailedError{Reason: "register identity", Err: err}
	}
	if err := s.persons.CreatePerson(ctx, person); err != nil {
		s.log.WithFields(logrus.Fields{"username": person.Username, "err": err}).
			Error("person not stored after identity registration")
		return personStoreError(err, person, 0)
	}
	return nil
}

func (s *WriteService) update(ctx context.Context, id uuid.UUID, version int, kind domain.PersonType, patch domain.PersonPatch, caller domain.Caller) (*domain.Person, error) {
	// 1. Load.
	stored, err := s.persons.FindPersonByID(ctx, id)
	if errors.Is(err, store.ErrPersonNotFound) {
		return nil, domain.NewNotFound(id)
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "load person %s", id)
	}
	if stored.PersonType != kind {
		return nil, domain.NewNotFound(id)
	}

	// 2. Guards.
	if err := CheckVersion(version, stored.Version); err != nil {
		return nil, err
	}
	if err := CheckAccess(caller, stored.Username); err != nil {
		return nil, err
	}

	// 3. Changed email or username must stay unique.
	if patch.Email != nil && *patch.Email != stored.Email {
		taken, err := s.persons.ExistsByEmail(ctx, *patch.Email)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "check email")
		}
		if taken {
			return nil, &domain.EmailExistsError{Email: *patch.Email}
		}
	}
	if patch.Username != nil && !strings.EqualFold(*patch.Username, stored.Username) {
		taken, err := s.persons.ExistsByUsername(ctx, *patch.Username)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "check username")
		}
		if taken {
			return nil, &domain.UsernameExistsError{Username: *patch.Username}
		}
	}

	// 4. Merge.
	previousUsername := stored.Username
	stored.Apply(patch)
	if stored.Customer != nil {
		stored.Customer.CustomerState = domain.StatusActive
	}

	// 5. Identity provider, then storage.
	if err := s.identity.UpdateIdentity(ctx, stored, caller, previousUsername); err != nil {
		return nil, pkgerrors.Wrap(err, "update identity")
	}
	if err := s.persons.UpdatePerson(ctx, stored); err != nil {
		return nil, personStoreError(err, stored, version)
	}

	logging.FromContext(ctx, s.log).WithFields(logrus.Fields{
		"id": id, "version": stored.Version, "user": caller.Username,
	}).Info("person updated")
	return stored, nil
}

func (s *WriteService) delete(ctx context.Context, id uuid.UUID, version int, kind domain.PersonType, caller domain.Caller) (*domain.Person, error) {
	stored, err := s.persons.FindPersonByID(ctx, id)
	if errors.Is(err, store.ErrPersonNotFound) {
		return nil, &domain.NotFoundError{}
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "load person %s", id)
	}
	if stored.PersonType != kind {
		return nil, &domain.NotFoundError{}
	}
	if err := CheckVersion(version, stored.Version); err != nil {
		return nil, err
	}
	if err := RequireAdmin(caller); err != nil {
		return nil, err
	}

	if err := s.deleteContacts(ctx, stored); err != nil {
		return nil, err
	}
	if err := s.identity.DeregisterIdentity(ctx, caller.Token, stored.Username); err != nil {
		return nil, pkgerrors.Wrap(err, "deregister identity")
	}
	if err := s.persons.DeletePerson(ctx, id); err != nil && !errors.Is(err, store.ErrPersonNotFound) {
		return nil, pkgerrors.Wrapf(err, "delete person %s", id)
	}

	logging.FromContext(ctx, s.log).WithFields(logrus.Fields{
		"id": id, "type": kind, "user": caller.Username,
	}).Info("person deleted")
	return stored, nil
}

func (s *WriteService) deleteContacts(ctx context.Context, person *domain.Person) error {
	if person.Customer == nil {
		return nil
	}
	for _, contactID := range person.Customer.ContactIDs {
		err := s.contacts.DeleteContact(ctx, contactID)
		if err != nil && !errors.Is(err, store.ErrContactNotFound) {
			return pkgerrors.Wrapf(err, "delete contact %s", contactID)
		}
	}
	return nil
}

func (s *WriteService) employeeEmail(firstName, lastName string) string {
	local := strings.Join(strings.Fields(firstName), "") + "." + strings.Join(strings.Fields(lastName), "")
	return strings.ToLower(local + "@" + s.emailDomain)
}

// personStoreError maps store sentinels onto domain errors. version is the
// version the client supplied.
func personStoreError(err error, person *domain.Person, version int) error {
	switch {
	case errors.Is(err, store.ErrPersonNotFound):
		return domain.NewNotFound(person.ID)
	case errors.Is(err, store.ErrVersionConflict):
		return &domain.VersionOutdatedError{Version: version}
	case errors.Is(err, store.ErrEmailTaken):
		return &domain.EmailExistsError{Email: person.Email}
	case errors.Is(err, store.ErrUsernameTaken):
		return &domain.UsernameExistsError{Username: person.Username}
	default:
		return pkgerrors.Wrapf(err, "store person %s", person.ID)
	}
}
