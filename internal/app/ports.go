/**
 * @description
 * Collaborator contracts of the write path. Concrete implementations live in
 * internal/identity, internal/store and this package's publishers; the
 * services receive them through their constructors.
 */
package app

import (
	"context"
	"time"

	"github.com/omnixys/omnixys-person-service/internal/domain"
)

// IdentityProvider mirrors person records into the external identity directory.
type IdentityProvider interface {
	// RegisterIdentity creates the directory user, logs in with password to
	// resolve its subject id and assigns role. Failures are SignUpFailedError.
	RegisterIdentity(ctx context.Context, person *domain.Person, password, role string) error
	// UpdateIdentity pushes names, email and username. Admin callers address
	// the user by previousUsername; everyone else updates their own subject.
	UpdateIdentity(ctx context.Context, person *domain.Person, caller domain.Caller, previousUsername string) error
	UpdateCredentialSecret(ctx context.Context, newSecret string, caller domain.Caller) error
	DeregisterIdentity(ctx context.Context, adminToken, username string) error
}

// EventPublisher is the fire-and-forget outbound event channel.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// RateLimiter counts mutations per caller.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}
