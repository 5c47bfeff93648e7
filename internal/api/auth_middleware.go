package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/omnixys/omnixys-person-service/internal/domain"
)

type contextKey string

const callerContextKey contextKey = "caller"

// AuthConfig controls how caller tokens are verified.
type AuthConfig struct {
	JWKSURL          string
	ExpectedIssuer   string
	ExpectedAudience string
}

// KeycloakAuthMiddleware verifies realm-signed bearer tokens and stores the
// resulting domain.Caller in the request context. Requests without a valid
// token are rejected with 401.
func KeycloakAuthMiddleware(cfg AuthConfig, logger logrus.FieldLogger) func(http.Handler) http.Handler {
	keys := newRealmKeys(cfg.JWKSURL)
	log := logger.WithField("component", "auth")

	options := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256"}), jwt.WithLeeway(30 * time.Second)}
	if issuer := strings.TrimSpace(cfg.ExpectedIssuer); issuer != "" {
		options = append(options, jwt.WithIssuer(issuer))
	}
	if audience := strings.TrimSpace(cfg.ExpectedAudience); audience != "" {
		options = append(options, jwt.WithAudience(audience))
	}
	parser := jwt.NewParser(options...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, log, &domain.UnauthorizedError{Reason: "bearer token required"})
				return
			}

			claims := &keycloakClaims{}
			_, err := parser.ParseWithClaims(raw, claims, keys.keyfunc(r.Context()))
			var caller domain.Caller
			if err == nil {
				caller, err = claims.caller(raw)
			}
			if err != nil {
				log.WithError(err).Debug("token rejected")
				writeError(w, log, &domain.UnauthorizedError{Reason: "invalid token"})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// WithCaller stores caller in ctx.
func WithCaller(ctx context.Context, caller domain.Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// CallerFrom returns the authenticated caller of the request.
func CallerFrom(ctx context.Context) (domain.Caller, bool) {
	caller, ok := ctx.Value(callerContextKey).(domain.Caller)
	return caller, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// keycloakClaims is the part of a realm access token the service reads.
type keycloakClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string `json:"preferred_username"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

func (c *keycloakClaims) caller(rawToken string) (domain.Caller, error) {
	username := strings.TrimSpace(c.PreferredUsername)
	if username == "" {
		return domain.Caller{}, errors.New("token has no preferred_username")
	}
	roles := make([]string, 0, len(c.RealmAccess.Roles))
	for _, role := range c.RealmAccess.Roles {
		if role != "" {
			roles = append(roles, strings.ToUpper(role))
		}
	}
	return domain.Caller{
		Subject:  c.Subject,
		Username: username,
		Roles:    roles,
		Token:    rawToken,
	}, nil
}
