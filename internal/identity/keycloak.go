/**
 * @description
 * Keycloak-backed identity provider. It mirrors person records into the realm:
 * sign-up with role assignment, profile updates, password resets and
 * deregistration.
 *
 * @dependencies
 * - pkg/keycloakclient: Keycloak REST calls.
 * - github.com/pkg/errors: step context on failures.
 */
package identity

import (
	"context"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/omnixys/omnixys-person-service/internal/domain"
	"github.com/omnixys/omnixys-person-service/pkg/keycloakclient"
)

// Keycloak is the subset of keycloakclient.Client the provider uses.
type Keycloak interface {
	Login(ctx context.Context, username, password string) (*keycloakclient.Token, error)
	UserInfo(ctx context.Context, accessToken string) (*keycloakclient.UserInfo, error)
	CreateUser(ctx context.Context, adminToken string, user keycloakclient.User) error
	UpdateUser(ctx context.Context, adminToken, userID string, user keycloakclient.User) error
	ResetPassword(ctx context.Context, adminToken, userID string, credential keycloakclient.Credential) error
	DeleteUser(ctx context.Context, adminToken, userID string) error
	FindUsersByUsername(ctx context.Context, adminToken, username string) ([]keycloakclient.User, error)
	RealmRoles(ctx context.Context, adminToken string) ([]keycloakclient.Role, error)
	AssignRealmRoles(ctx context.Context, adminToken, userID string, roles []keycloakclient.Role) error
}

// KeycloakProvider implements the service's identity provider port.
type KeycloakProvider struct {
	client        Keycloak
	adminUsername string
	adminPassword string
	log           logrus.FieldLogger
}

func NewKeycloakProvider(client Keycloak, adminUsername, adminPassword string, logger logrus.FieldLogger) *KeycloakProvider {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &KeycloakProvider{
		client:        client,
		adminUsername: adminUsername,
		adminPassword: adminPassword,
		log:           logger.WithField("component", "identity"),
	}
}

// RegisterIdentity creates the user, logs in as that user to learn its
// subject and assigns role. Nothing is rolled back when a later step fails.
func (p *KeycloakProvider) RegisterIdentity(ctx context.Context, person *domain.Person, password, role string) error {
	adminToken, err := p.adminToken(ctx)
	if err != nil {
		return signUpFailed("admin login", err)
	}

	user := keycloakclient.User{
		Username:  person.Username,
		Enabled:   true,
		FirstName: person.FirstName,
		LastName:  person.LastName,
		Email:     person.Email,
		Credentials: []keycloakclient.Credential{
			{Type: "password", Value: password, Temporary: false},
		},
	}
	if err := p.client.CreateUser(ctx, adminToken, user); err != nil {
		return signUpFailed("create user", err)
	}
	p.log.WithField("username", person.Username).Info("user registered in keycloak")

	token, err := p.client.Login(ctx, person.Username, password)
	if err != nil {
		return signUpFailed("user login", err)
	}
	info, err := p.client.UserInfo(ctx, token.AccessToken)
	if err != nil {
		return signUpFailed("resolve subject", err)
	}

	roles, err := p.client.RealmRoles(ctx, adminToken)
	if err != nil {
		return signUpFailed("list roles", err)
	}
	var match *keycloakclient.Role
	for i := range roles {
		if roles[i].Name == role {
			match = &roles[i]
			break
		}
	}
	if match == nil {
		return &domain.SignUpFailedError{Reason: "role " + role + " not found"}
	}
	if err := p.client.AssignRealmRoles(ctx, adminToken, info.Sub, []keycloakclient.Role{*match}); err != nil {
		return signUpFailed("assign role", err)
	}

	p.log.WithFields(logrus.Fields{"username": person.Username, "role": role}).Debug("role assigned")
	return nil
}

// UpdateIdentity pushes names, email and username. Admins act with their own
// token on the user found under previousUsername; everyone else updates their
// own subject with the service's admin token.
func (p *KeycloakProvider) UpdateIdentity(ctx context.Context, person *domain.Person, caller domain.Caller, previousUsername string) error {
	var userID, token string
	if caller.IsAdmin() {
		token = caller.Token
		id, err := p.userIDByUsername(ctx, token, previousUsername)
		if err != nil {
			return err
		}
		userID = id
	} else {
		if caller.Subject == "" {
			return pkgerrors.New("caller token carries no subject")
		}
		userID = caller.Subject
		adminToken, err := p.adminToken(ctx)
		if err != nil {
			return err
		}
		token = adminToken
	}

	update := keycloakclient.User{
		Username:  person.Username,
		Enabled:   true,
		FirstName: person.FirstName,
		LastName:  person.LastName,
		Email:     person.Email,
	}
	if err := p.client.UpdateUser(ctx, token, userID, update); err != nil {
		return pkgerrors.Wrap(err, "update keycloak user")
	}
	return nil
}

// UpdateCredentialSecret resets the caller's password.
func (p *KeycloakProvider) UpdateCredentialSecret(ctx context.Context, newSecret string, caller domain.Caller) error {
	if caller.Subject == "" {
		return &domain.NotFoundError{}
	}
	adminToken, err := p.adminToken(ctx)
	if err != nil {
		return err
	}
	credential := keycloakclient.Credential{Type: "password", Value: newSecret, Temporary: false}
	if err := p.client.ResetPassword(ctx, adminToken, caller.Subject, credential); err != nil {
		return pkgerrors.Wrap(err, "reset keycloak password")
	}
	return nil
}

// DeregisterIdentity deletes the user named username.
func (p *KeycloakProvider) DeregisterIdentity(ctx context.Context, adminToken, username string) error {
	userID, err := p.userIDByUsername(ctx, adminToken, username)
	if err != nil {
		return err
	}
	if err := p.client.DeleteUser(ctx, adminToken, userID); err != nil {
		return pkgerrors.Wrap(err, "delete keycloak user")
	}
	p.log.WithField("username", username).Info("user removed from keycloak")
	return nil
}

func (p *KeycloakProvider) adminToken(ctx context.Context) (string, error) {
	token, err := p.client.Login(ctx, p.adminUsername, p.adminPassword)
	if err != nil {
		return "", pkgerrors.Wrap(err, "keycloak admin login")
	}
	return token.AccessToken, nil
}

func (p *KeycloakProvider) userIDByUsername(ctx context.Context, token, username string) (string, error) {
	users, err := p.client.FindUsersByUsername(ctx, token, username)
	if err != nil {
		return "", pkgerrors.Wrapf(err, "look up keycloak user %s", username)
	}
	for _, u := range users {
		if strings.EqualFold(u.Username, username) {
			return u.ID, nil
		}
	}
	if len(users) > 0 {
		return users[0].ID, nil
	}
	return "", pkgerrors.Errorf("keycloak user %s not found", username)
}

func signUpFailed(step string, err error) error {
	return &domain.SignUpFailedError{Reason: step, Err: err}
}
