package app

import "github.com/omnixys/omnixys-person-service/internal/domain"

// CheckVersion compares the version a client read with the stored one.
func CheckVersion(supplied, stored int) error {
	switch {
	case supplied < stored:
		return &domain.VersionOutdatedError{Version: supplied}
	case supplied > stored:
		return &domain.VersionAheadError{Version: supplied}
	default:
		return nil
	}
}

// CheckAccess lets admins and the record owner through.
func CheckAccess(caller domain.Caller, ownerUsername string) error {
	if caller.IsAdmin() || caller.Username == ownerUsername {
		return nil
	}
	return forbidden(caller)
}

// RequireAdmin ignores ownership.
func RequireAdmin(caller domain.Caller) error {
	if caller.IsAdmin() {
		return nil
	}
	return forbidden(caller)
}

func forbidden(caller domain.Caller) error {
	roles := append([]string(nil), caller.Roles...)
	return &domain.AccessForbiddenError{Username: caller.Username, Roles: roles}
}
