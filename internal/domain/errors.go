/**
 * @description
 * Error taxonomy of the person service. Each kind is its own type so callers
 * can match with errors.As; KindOf collapses them to a stable classification
 * for the API boundary.
 */

package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrorKind is the stable classification exposed to clients.
type ErrorKind string

const (
	KindNotFound             ErrorKind = "notFound"
	KindEmailExists          ErrorKind = "emailExists"
	KindUsernameExists       ErrorKind = "usernameExists"
	KindVersionOutdated      ErrorKind = "versionOutdated"
	KindVersionAhead         ErrorKind = "versionAhead"
	KindAccessForbidden      ErrorKind = "forbidden"
	KindContactExists        ErrorKind = "contactExists"
	KindPasswordInvalid      ErrorKind = "passwordInvalid"
	KindSignUpFailed         ErrorKind = "signUpFailed"
	KindInvalidArgument      ErrorKind = "badRequest"
	KindConstraintViolations ErrorKind = "constraints"
	KindUnauthorized         ErrorKind = "unauthorized"
	KindRateLimited          ErrorKind = "rateLimited"
	KindInternal             ErrorKind = "internal"
)

type kinded interface {
	Kind() ErrorKind
}

// KindOf returns the kind of the first classified error in err's chain, or
// KindInternal.
func KindOf(err error) ErrorKind {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// NotFoundError carries the missing id when one is known.
type NotFoundError struct {
	ID *uuid.UUID
}

func NewNotFound(id uuid.UUID) *NotFoundError { return &NotFoundError{ID: &id} }

func (e *NotFoundError) Error() string {
	if e.ID == nil {
		return "not found"
	}
	return fmt.Sprintf("no record found with id %s", e.ID)
}

func (e *NotFoundError) Kind() ErrorKind { return KindNotFound }

type EmailExistsError struct {
	Email string
}

func (e *EmailExistsError) Error() string {
	return fmt.Sprintf("email address %s already exists", e.Email)
}

func (e *EmailExistsError) Kind() ErrorKind { return KindEmailExists }

type UsernameExistsError struct {
	Username string
}

func (e *UsernameExistsError) Error() string {
	return fmt.Sprintf("username %s already exists", e.Username)
}

func (e *UsernameExistsError) Kind() ErrorKind { return KindUsernameExists }

// VersionOutdatedError: the supplied version is older than the stored one.
type VersionOutdatedError struct {
	Version int
}

func (e *VersionOutdatedError) Error() string {
	return fmt.Sprintf("version %d is outdated", e.Version)
}

func (e *VersionOutdatedError) Kind() ErrorKind { return KindVersionOutdated }

// VersionAheadError: the supplied version is newer than the stored one.
type VersionAheadError struct {
	Version int
}

func (e *VersionAheadError) Error() string {
	return fmt.Sprintf("version %d is ahead of the stored version", e.Version)
}

func (e *VersionAheadError) Kind() ErrorKind { return KindVersionAhead }

type AccessForbiddenError struct {
	Username string
	Roles    []string
}

func (e *AccessForbiddenError) Error() string {
	return fmt.Sprintf("access forbidden for user %s with roles [%s]", e.Username, strings.Join(e.Roles, ", "))
}

func (e *AccessForbiddenError) Kind() ErrorKind { return KindAccessForbidden }

type ContactExistsError struct {
	LastName  string
	FirstName string
}

func (e *ContactExistsError) Error() string {
	return fmt.Sprintf("contact %s, %s already exists", e.LastName, e.FirstName)
}

func (e *ContactExistsError) Kind() ErrorKind { return KindContactExists }

type PasswordInvalidError struct{}

func (e *PasswordInvalidError) Error() string {
	return "password does not meet the security policy"
}

func (e *PasswordInvalidError) Kind() ErrorKind { return KindPasswordInvalid }

// SignUpFailedError wraps the failing step of identity registration.
type SignUpFailedError struct {
	Reason string
	Err    error
}

func (e *SignUpFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sign up failed: %s: %v", e.Reason, e.Err)
	}
	return "sign up failed: " + e.Reason
}

func (e *SignUpFailedError) Unwrap() error { return e.Err }

func (e *SignUpFailedError) Kind() ErrorKind { return KindSignUpFailed }

type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string { return e.Message }

func (e *InvalidArgumentError) Kind() ErrorKind { return KindInvalidArgument }

// FieldViolation is one failed input constraint.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ConstraintViolationsError struct {
	Violations []FieldViolation
}

func (e *ConstraintViolationsError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "constraint violations: " + strings.Join(parts, "; ")
}

func (e *ConstraintViolationsError) Kind() ErrorKind { return KindConstraintViolations }

type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string { return "unauthorized: " + e.Reason }

func (e *UnauthorizedError) Kind() ErrorKind { return KindUnauthorized }

// RateLimitedError is returned when the caller exhausted its mutation quota.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %ds", e.RetryAfterSeconds)
}

func (e *RateLimitedError) Kind() ErrorKind { return KindRateLimited }
