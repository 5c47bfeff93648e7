package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/omnixys/omnixys-person-service/internal/domain"
)

func annaSchmidt() ContactInput {
	return ContactInput{
		LastName:         "Schmidt",
		FirstName:        "Anna",
		Relationship:     domain.RelationshipSibling,
		WithdrawalLimit:  500,
		EmergencyContact: true,
	}
}

func TestAddContactLinksNewContact(t *testing.T) {
	f := newFixture(t)
	customer := f.seedCustomer(t, "erika", 0)
	f.resetRecording()

	id, err := f.svc.AddContact(context.Background(), customer.ID, annaSchmidt(), customerCaller("erika"))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	stored := f.stored(t, customer.ID)
	require.Equal(t, []uuid.UUID{id}, stored.Customer.ContactIDs)
	require.Equal(t, 1, stored.Version)
	require.Equal(t, []string{"contacts.create", "persons.update"}, f.fx.log)

	contacts, err := f.reader.FindContacts(context.Background(), customer.ID, customerCaller("erika"))
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	require.Equal(t, 0, contacts[0].Version)
	require.Equal(t, "Schmidt", contacts[0].LastName)
}

func TestAddContactRejectsDuplicateName(t *testing.T) {
	f := newFixture(t)
	customer := f.seedCustomer(t, "erika", 0)
	first, err := f.svc.AddContact(context.Background(), customer.ID, annaSchmidt(), customerCaller("erika"))
	require.NoError(t, err)
	f.resetRecording()

	dup := annaSchmidt()
	dup.Relationship = domain.RelationshipColleague
	_, err = f.svc.AddContact(context.Background(), customer.ID, dup, customerCaller("erika"))

	var exists *domain.ContactExistsError
	require.True(t, errors.As(err, &exists), "got %v", err)
	require.Equal(t, "Schmidt", exists.LastName)
	require.Equal(t, "Anna", exists.FirstName)
	require.Empty(t, f.fx.log)

	stored := f.stored(t, customer.ID)
	require.Equal(t, []uuid.UUID{first}, stored.Customer.ContactIDs)
	contact, err := f.mem.FindContactByID(context.Background(), first)
	require.NoError(t, err)
	require.Equal(t, domain.RelationshipSibling, contact.Relationship)
	require.Equal(t, 0, contact.Version)
}

func TestAddContactForbiddenForOtherCustomer(t *testing.T) {
	f := newFixture(t)
	customer := f.seedCustomer(t, "erika", 0)

	_, err := f.svc.AddContact(context.Background(), customer.ID, annaSchmidt(), customerCaller("max"))
	require.Equal(t, domain.KindAccessForbidden, domain.KindOf(err))
}

func TestAddContactUserRoleCanReadButNotWrite(t *testing.T) {
	f := newFixture(t)
	customer := f.seedCustomer(t, "erika", 0)
	clerk := domain.Caller{Username: "clerk", Roles: []string{domain.RoleUser}}

	_, err := f.reader.FindByID(context.Background(), customer.ID, domain.PersonTypeCustomer, clerk)
	require.NoError(t, err)

	_, err = f.svc.AddContact(context.Background(), customer.ID, annaSchmidt(), clerk)
	require.Equal(t, domain.KindAccessForbidden, domain.KindOf(err))
}

func TestUpdateContactMergeRules(t *testing.T) {
	f := newFixture(t)
	customer := f.seedCustomer(t, "erika", 0)
	contactID, err := f.svc.AddContact(context.Background(), customer.ID, annaSchmidt(), customerCaller("erika"))
	require.NoError(t, err)
	f.resetRecording()

	in := ContactUpdateInput{LastName: "Schneider"}
	updated, err := f.svc.UpdateContact(context.Background(), customer.ID, contactID, 0, in, customerCaller("erika"))
	require.NoError(t, err)

	require.Equal(t, "Schneider", updated.LastName)
	require.Equal(t, "Anna", updated.FirstName)
	require.Equal(t, domain.RelationshipSibling, updated.Relationship)
	require.Equal(t, 500, updated.WithdrawalLimit)
	require.True(t, updated.EmergencyContact)
	require.Equal(t, 1, updated.Version)
	require.Equal(t, []string{"contacts.update", "persons.update"}, f.fx.log)
	require.Equal(t, 2, f.stored(t, customer.ID).Version)
}

func TestUpdateContactWithdrawalLimitAndEmergencyFlag(t *testing.T) {
	f := newFixture(t)
	customer := f.seedCustomer(t, "erika", 0)
	in := annaSchmidt()
	in.EmergencyContact = false
	contactID, err := f.svc.AddContact(context.Background(), customer.ID, in, customerCaller("erika"))
	require.NoError(t, err)

	updated, err := f.svc.UpdateContact(context.Background(), customer.ID, contactID, 0,
		ContactUpdateInput{WithdrawalLimit: 750, EmergencyContact: true}, customerCaller("erika"))
	require.NoError(t, err)
	require.Equal(t, 750, updated.WithdrawalLimit)
	require.True(t, updated.EmergencyContact)

	updated, err = f.svc.UpdateContact(context.Background(), customer.ID, contactID, 1,
		ContactUpdateInput{WithdrawalLimit: 0, EmergencyContact: false}, customerCaller("erika"))
	require.NoError(t, err)
	require.Equal(t, 750, updated.WithdrawalLimit)
	require.True(t, updated.EmergencyContact)
}

func TestUpdateContactEndDateMustFollowStoredStart(t *testing.T) {
	f := newFixture(t)
	customer := f.seedCustomer(t, "erika", 0)
	start := domain.NewDate(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	end := domain.NewDate(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))
	in := annaSchmidt()
	in.StartDate, in.EndDate = &start, &end
	contactID, err := f.svc.AddContact(context.Background(), customer.ID, in, customerCaller("erika"))
	require.NoError(t, err)
	f.resetRecording()

	early := domain.NewDate(time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err = f.svc.UpdateContact(context.Background(), customer.ID, contactID, 0,
		ContactUpdateInput{EndDate: &early}, customerCaller("erika"))
	require.Equal(t, "must not be before the start date", violationsOf(t, err)["endDate"])
	require.Empty(t, f.fx.log)

	contact, err := f.mem.FindContactByID(context.Background(), contactID)
	require.NoError(t, err)
	require.Equal(t, end, *contact.EndDate)
	require.Equal(t, 0, contact.Version)
}

func TestUpdateContactChecksContactVersion(t *testing.T) {
	f := newFixture(t)
	customer := f.seedCustomer(t, "erika", 0)
	contactID, err := f.svc.AddContact(context.Background(), customer.ID, annaSchmidt(), customerCaller("erika"))
	require.NoError(t, err)

	_, err = f.svc.UpdateContact(context.Background(), customer.ID, contactID, 1,
		ContactUpdateInput{FirstName: "Lena"}, customerCaller("erika"))
	require.Equal(t, domain.KindVersionAhead, domain.KindOf(err))

	contact, err := f.mem.FindContactByID(context.Background(), contactID)
	require.NoError(t, err)
	require.Equal(t, "Anna", contact.FirstName)
}

func TestUpdateContactUnlinkedIsNotFound(t *testing.T) {
	f := newFixture(t)
	customer := f.seedCustomer(t, "erika", 0)
	other := uuid.New()

	_, err := f.svc.UpdateContact(context.Background(), customer.ID, other, 0,
		ContactUpdateInput{FirstName: "Lena"}, customerCaller("erika"))
	var notFound *domain.NotFoundError
	require.True(t, errors.As(err, &notFound))
	require.Equal(t, other, *notFound.ID)
}

func TestRemoveContactThenNotFound(t *testing.T) {
	f := newFixture(t)
	customer := f.seedCustomer(t, "erika", 0)
	contactID, err := f.svc.AddContact(context.Background(), customer.ID, annaSchmidt(), customerCaller("erika"))
	require.NoError(t, err)
	f.resetRecording()

	removed, err := f.svc.RemoveContact(context.Background(), customer.ID, contactID, 0, 1, customerCaller("erika"))
	require.NoError(t, err)
	require.True(t, removed)
	require.Equal(t, []string{"contacts.delete", "persons.update"}, f.fx.log)

	stored := f.stored(t, customer.ID)
	require.NotContains(t, stored.Customer.ContactIDs, contactID)

	_, err = f.svc.RemoveContact(context.Background(), customer.ID, contactID, 0, stored.Version, customerCaller("erika"))
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestRemoveContactChecksBothVersions(t *testing.T) {
	f := newFixture(t)
	customer := f.seedCustomer(t, "erika", 0)
	contactID, err := f.svc.AddContact(context.Background(), customer.ID, annaSchmidt(), customerCaller("erika"))
	require.NoError(t, err)
	f.resetRecording()

	_, err = f.svc.RemoveContact(context.Background(), customer.ID, contactID, 0, 0, customerCaller("erika"))
	require.Equal(t, domain.KindVersionOutdated, domain.KindOf(err))

	_, err = f.svc.RemoveContact(context.Background(), customer.ID, contactID, 2, 1, customerCaller("erika"))
	require.Equal(t, domain.KindVersionAhead, domain.KindOf(err))

	require.Empty(t, f.fx.log)
}
