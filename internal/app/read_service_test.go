package app

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/omnixys/omnixys-person-service/internal/domain"
	"github.com/omnixys/omnixys-person-service/internal/store"
)

func TestFindByIDAccess(t *testing.T) {
	f := newFixture(t)
	customer := f.seedCustomer(t, "erika", 0)

	tests := []struct {
		name     string
		caller   domain.Caller
		kind     domain.PersonType
		wantKind domain.ErrorKind
	}{
		{name: "owner", caller: customerCaller("erika")},
		{name: "admin", caller: adminCaller()},
		{name: "user role", caller: domain.Caller{Username: "clerk", Roles: []string{domain.RoleUser}}},
		{name: "other customer", caller: customerCaller("max"), wantKind: domain.KindAccessForbidden},
		{name: "wrong kind", caller: adminCaller(), kind: domain.PersonTypeEmployee, wantKind: domain.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := f.reader.FindByID(context.Background(), customer.ID, tt.kind, tt.caller)
			if tt.wantKind != "" {
				require.Equal(t, tt.wantKind, domain.KindOf(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, customer.ID, found.ID)
		})
	}
}

func TestFindByIDUnknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.reader.FindByID(context.Background(), uuid.New(), "", adminCaller())
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestFindRequiresAdminOrUser(t *testing.T) {
	f := newFixture(t)
	f.seedCustomer(t, "erika", 0)
	f.seedCustomer(t, "max", 0)

	_, err := f.reader.Find(context.Background(), store.PersonQuery{}, customerCaller("erika"))
	require.Equal(t, domain.KindAccessForbidden, domain.KindOf(err))

	found, err := f.reader.Find(context.Background(), store.PersonQuery{
		PersonType: domain.PersonTypeCustomer,
		Username:   "MAX",
	}, adminCaller())
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "max", found[0].Username)

	none, err := f.reader.Find(context.Background(), store.PersonQuery{PersonType: domain.PersonTypeEmployee}, adminCaller())
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)
}
