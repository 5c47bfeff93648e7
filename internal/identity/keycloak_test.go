package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omnixys/omnixys-person-service/internal/domain"
	"github.com/omnixys/omnixys-person-service/internal/logging"
	"github.com/omnixys/omnixys-person-service/pkg/keycloakclient"
)

type fakeKeycloak struct {
	calls      []string
	createErr  error
	roles      []keycloakclient.Role
	users      map[string]string
	listed     map[string][]keycloakclient.User
	updated    map[string]keycloakclient.User
	tokensUsed []string
}

func newFakeKeycloak() *fakeKeycloak {
	return &fakeKeycloak{
		roles:   []keycloakclient.Role{{ID: "r-basic", Name: "Basic"}, {ID: "r-elite", Name: "Elite"}},
		users:   map[string]string{"erika": "u-erika"},
		updated: map[string]keycloakclient.User{},
	}
}

func (f *fakeKeycloak) Login(_ context.Context, username, _ string) (*keycloakclient.Token, error) {
	f.calls = append(f.calls, "login "+username)
	return &keycloakclient.Token{AccessToken: username + "-token"}, nil
}

func (f *fakeKeycloak) UserInfo(_ context.Context, accessToken string) (*keycloakclient.UserInfo, error) {
	f.calls = append(f.calls, "userinfo")
	return &keycloakclient.UserInfo{Sub: "sub-of-" + accessToken}, nil
}

func (f *fakeKeycloak) CreateUser(_ context.Context, _ string, user keycloakclient.User) error {
	f.calls = append(f.calls, "create "+user.Username)
	return f.createErr
}

func (f *fakeKeycloak) UpdateUser(_ context.Context, adminToken, userID string, user keycloakclient.User) error {
	f.calls = append(f.calls, "update "+userID)
	f.tokensUsed = append(f.tokensUsed, adminToken)
	f.updated[userID] = user
	return nil
}

func (f *fakeKeycloak) ResetPassword(_ context.Context, _ string, userID string, _ keycloakclient.Credential) error {
	f.calls = append(f.calls, "reset "+userID)
	return nil
}

func (f *fakeKeycloak) DeleteUser(_ context.Context, adminToken, userID string) error {
	f.calls = append(f.calls, "delete "+userID)
	f.tokensUsed = append(f.tokensUsed, adminToken)
	return nil
}

func (f *fakeKeycloak) FindUsersByUsername(_ context.Context, _ string, username string) ([]keycloakclient.User, error) {
	f.calls = append(f.calls, "find "+username)
	if listed, ok := f.listed[username]; ok {
		return listed, nil
	}
	if id, ok := f.users[username]; ok {
		return []keycloakclient.User{{ID: id, Username: username}}, nil
	}
	return nil, nil
}

func (f *fakeKeycloak) RealmRoles(context.Context, string) ([]keycloakclient.Role, error) {
	f.calls = append(f.calls, "roles")
	return f.roles, nil
}

func (f *fakeKeycloak) AssignRealmRoles(_ context.Context, _ string, userID string, roles []keycloakclient.Role) error {
	f.calls = append(f.calls, "assign "+userID+" "+roles[0].ID)
	return nil
}

func TestRegisterIdentitySequence(t *testing.T) {
	kc := newFakeKeycloak()
	provider := NewKeycloakProvider(kc, "admin", "p", logging.Nop())

	person := &domain.Person{Username: "max", FirstName: "Max", LastName: "Muster", Email: "max@example.com"}
	require.NoError(t, provider.RegisterIdentity(context.Background(), person, "Abcdef1!", "Elite"))

	require.Equal(t, []string{
		"login admin",
		"create max",
		"login max",
		"userinfo",
		"roles",
		"assign sub-of-max-token r-elite",
	}, kc.calls)
}

func TestRegisterIdentityFailuresAreSignUpFailed(t *testing.T) {
	kc := newFakeKeycloak()
	kc.createErr = errors.New("409 conflict")
	provider := NewKeycloakProvider(kc, "admin", "p", logging.Nop())

	err := provider.RegisterIdentity(context.Background(), &domain.Person{Username: "max"}, "Abcdef1!", "Basic")
	require.Equal(t, domain.KindSignUpFailed, domain.KindOf(err))

	kc = newFakeKeycloak()
	provider = NewKeycloakProvider(kc, "admin", "p", logging.Nop())
	err = provider.RegisterIdentity(context.Background(), &domain.Person{Username: "max"}, "Abcdef1!", "Supreme")
	require.Equal(t, domain.KindSignUpFailed, domain.KindOf(err))
	require.NotContains(t, kc.calls, "assign")
}

func TestUpdateIdentityAdminUsesPreviousUsername(t *testing.T) {
	kc := newFakeKeycloak()
	provider := NewKeycloakProvider(kc, "admin", "p", logging.Nop())
	admin := domain.Caller{Username: "admin", Roles: []string{domain.RoleAdmin}, Token: "caller-admin-token"}

	person := &domain.Person{Username: "erika.s", FirstName: "Erika", LastName: "Schmidt", Email: "erika@example.com"}
	require.NoError(t, provider.UpdateIdentity(context.Background(), person, admin, "erika"))

	require.Equal(t, []string{"find erika", "update u-erika"}, kc.calls)
	require.Equal(t, []string{"caller-admin-token"}, kc.tokensUsed)
	require.Equal(t, "erika.s", kc.updated["u-erika"].Username)
	require.True(t, kc.updated["u-erika"].Enabled)
}

func TestUpdateIdentitySelfUsesSubject(t *testing.T) {
	kc := newFakeKeycloak()
	provider := NewKeycloakProvider(kc, "admin", "p", logging.Nop())
	self := domain.Caller{Subject: "u-erika", Username: "erika", Roles: []string{domain.RoleBasic}, Token: "erika-jwt"}

	require.NoError(t, provider.UpdateIdentity(context.Background(), &domain.Person{Username: "erika"}, self, "erika"))
	require.Equal(t, []string{"login admin", "update u-erika"}, kc.calls)
	require.Equal(t, []string{"admin-token"}, kc.tokensUsed)
}

func TestUpdateCredentialSecretAndDeregister(t *testing.T) {
	kc := newFakeKeycloak()
	provider := NewKeycloakProvider(kc, "admin", "p", logging.Nop())

	require.NoError(t, provider.UpdateCredentialSecret(context.Background(), "Abcdef1!", domain.Caller{Subject: "u-erika"}))
	require.NoError(t, provider.DeregisterIdentity(context.Background(), "caller-admin-token", "erika"))
	require.Equal(t, []string{"login admin", "reset u-erika", "find erika", "delete u-erika"}, kc.calls)

	err := provider.DeregisterIdentity(context.Background(), "caller-admin-token", "ghost")
	require.Error(t, err)
}

func TestDeregisterIdentityPicksMatchingUser(t *testing.T) {
	tests := []struct {
		name   string
		listed []keycloakclient.User
		want   string
	}{
		{
			name:   "exact match ignores case and skips blank usernames",
			listed: []keycloakclient.User{{ID: "u-blank"}, {ID: "u-other", Username: "maxi"}, {ID: "u-max", Username: "Max"}},
			want:   "delete u-max",
		},
		{
			name:   "first result without an exact match",
			listed: []keycloakclient.User{{ID: "u-first", Username: "maxi"}, {ID: "u-second", Username: "maxim"}},
			want:   "delete u-first",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kc := newFakeKeycloak()
			kc.listed = map[string][]keycloakclient.User{"max": tt.listed}
			provider := NewKeycloakProvider(kc, "admin", "p", logging.Nop())

			require.NoError(t, provider.DeregisterIdentity(context.Background(), "caller-admin-token", "max"))
			require.Equal(t, []string{"find max", tt.want}, kc.calls)
		})
	}
}
