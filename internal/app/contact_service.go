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

// AddContact links a new contact to a customer and returns its id. A contact
// with the same last and first name must not already be linked.
func (s *WriteService) AddContact(ctx context.Context, customerID uuid.UUID, in ContactInput, caller domain.Caller) (contactID uuid.UUID, err error) {
	defer s.metrics.observe("add-contact", time.Now(), &err)
	return tracing.Do(ctx, "person-service.write.add-contact", func(ctx context.Context) (uuid.UUID, error) {
		if err := s.validator.Struct(in); err != nil {
			return uuid.Nil, err
		}

		customer, err := s.loadCustomer(ctx, customerID, caller)
		if err != nil {
			return uuid.Nil, err
		}
		if err := CheckAccess(caller, customer.Username); err != nil {
			return uuid.Nil, err
		}
		if customer.Customer.ContactIDs == nil {
			customer.Customer.ContactIDs = []uuid.UUID{}
		}

		contact := in.toDomain()
		linked, err := s.contacts.FindContactsByIDs(ctx, customer.Customer.ContactIDs)
		if err != nil {
			return uuid.Nil, pkgerrors.Wrap(err, "load linked contacts")
		}
		for i := range linked {
			if linked[i].SameName(contact) {
				return uuid.Nil, &domain.ContactExistsError{LastName: contact.LastName, FirstName: contact.FirstName}
			}
		}

		contact.ID = uuid.New()
		if err := s.contacts.CreateContact(ctx, contact); err != nil {
			return uuid.Nil, pkgerrors.Wrap(err, "store contact")
		}

		version := customer.Version
		customer.Customer.ContactIDs = append(customer.Customer.ContactIDs, contact.ID)
		if err := s.persons.UpdatePerson(ctx, customer); err != nil {
			return uuid.Nil, personStoreError(err, customer, version)
		}

		logging.FromContext(ctx, s.log).WithFields(logrus.Fields{
			"customerId": customerID, "contactId": contact.ID, "user": caller.Username,
		}).Info("contact added")
		return contact.ID, nil
	})
}

// UpdateContact merges in onto a linked contact. Present fields override the
// stored ones, except that the emergency flag is never cleared and a zero
// withdrawal limit keeps the stored limit.
func (s *WriteService) UpdateContact(ctx context.Context, customerID, contactID uuid.UUID, version int, in ContactUpdateInput, caller domain.Caller) (updated *domain.Contact, err error) {
	defer s.metrics.observe("update-contact", time.Now(), &err)
	return tracing.Do(ctx, "person-service.write.update-contact", func(ctx context.Context) (*domain.Contact, error) {
		if err := s.validator.Struct(in); err != nil {
			return nil, err
		}

		customer, stored, err := s.loadLinkedContact(ctx, customerID, contactID, caller)
		if err != nil {
			return nil, err
		}

		patch := in.toDomain()
		// Only the contact being edited is compared, and it always matches
		// itself by id.
		if stored.ID != contactID && stored.SameName(patch) {
			return nil, &domain.ContactExistsError{LastName: patch.LastName, FirstName: patch.FirstName}
		}
		if err := CheckVersion(version, stored.Version); err != nil {
			return nil, err
		}

		stored.Merge(patch)
		if err := checkContactPeriod(stored); err != nil {
			return nil, err
		}
		if err := s.contacts.UpdateContact(ctx, stored); err != nil {
			return nil, contactStoreError(err, contactID, version)
		}

		customerVersion := customer.Version
		if err := s.persons.UpdatePerson(ctx, customer); err != nil {
			return nil, personStoreError(err, customer, customerVersion)
		}

		logging.FromContext(ctx, s.log).WithFields(logrus.Fields{
			"customerId": customerID, "contactId": contactID, "version": stored.Version,
		}).Info("contact updated")
		return stored, nil
	})
}

// RemoveContact deletes a linked contact and drops the reference. Both the
// contact and the customer version must match.
func (s *WriteService) RemoveContact(ctx context.Context, customerID, contactID uuid.UUID, contactVersion, customerVersion int, caller domain.Caller) (removed bool, err error) {
	defer s.metrics.observe("remove-contact", time.Now(), &err)
	return tracing.Do(ctx, "person-service.write.remove-contact", func(ctx context.Context) (bool, error) {
		customer, stored, err := s.loadLinkedContact(ctx, customerID, contactID, caller)
		if err != nil {
			return false, err
		}
		if err := CheckVersion(contactVersion, stored.Version); err != nil {
			return false, err
		}
		if err := CheckVersion(customerVersion, customer.Version); err != nil {
			return false, err
		}

		if err := s.contacts.DeleteContact(ctx, contactID); err != nil && !errors.Is(err, store.ErrContactNotFound) {
			return false, pkgerrors.Wrapf(err, "delete contact %s", contactID)
		}
		customer.Customer.RemoveContact(contactID)
		if err := s.persons.UpdatePerson(ctx, customer); err != nil {
			return false, personStoreError(err, customer, customerVersion)
		}

		logging.FromContext(ctx, s.log).WithFields(logrus.Fields{
			"customerId": customerID, "contactId": contactID, "user": caller.Username,
		}).Info("contact removed")
		return true, nil
	})
}

// loadCustomer reads the owning customer the way the read path does: owners,
// ADMIN and USER callers may see it.
func (s *WriteService) loadCustomer(ctx context.Context, id uuid.UUID, caller domain.Caller) (*domain.Person, error) {
	customer, err := s.persons.FindPersonByID(ctx, id)
	if errors.Is(err, store.ErrPersonNotFound) {
		return nil, domain.NewNotFound(id)
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "load customer %s", id)
	}
	if customer.PersonType != domain.PersonTypeCustomer || customer.Customer == nil {
		return nil, domain.NewNotFound(id)
	}
	if err := checkReadAccess(caller, customer.Username); err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *WriteService) loadLinkedContact(ctx context.Context, customerID, contactID uuid.UUID, caller domain.Caller) (*domain.Person, *domain.Contact, error) {
	customer, err := s.loadCustomer(ctx, customerID, caller)
	if err != nil {
		return nil, nil, err
	}
	if err := CheckAccess(caller, customer.Username); err != nil {
		return nil, nil, err
	}
	if !customer.Customer.HasContact(contactID) {
		return nil, nil, domain.NewNotFound(contactID)
	}
	contact, err := s.contacts.FindContactByID(ctx, contactID)
	if errors.Is(err, store.ErrContactNotFound) {
		return nil, nil, domain.NewNotFound(contactID)
	}
	if err != nil {
		return nil, nil, pkgerrors.Wrapf(err, "load contact %s", contactID)
	}
	return customer, contact, nil
}

func contactStoreError(err error, id uuid.UUID, version int) error {
	switch {
	case errors.Is(err, store.ErrContactNotFound):
		return domain.NewNotFound(id)
	case errors.Is(err, store.ErrVersionConflict):
		return &domain.VersionOutdatedError{Version: version}
	default:
		return pkgerrors.Wrapf(err, "store contact %s", id)
	}
}
