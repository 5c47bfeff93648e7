package app

import (
	"errors"
	"testing"

	"github.com/omnixys/omnixys-person-service/internal/domain"
)

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		name     string
		supplied int
		stored   int
		wantKind domain.ErrorKind
	}{
		{name: "equal versions pass", supplied: 3, stored: 3},
		{name: "older version is outdated", supplied: 2, stored: 3, wantKind: domain.KindVersionOutdated},
		{name: "newer version is ahead", supplied: 4, stored: 3, wantKind: domain.KindVersionAhead},
		{name: "negative version is outdated", supplied: -1, stored: 0, wantKind: domain.KindVersionOutdated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckVersion(tt.supplied, tt.stored)
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if got := domain.KindOf(err); got != tt.wantKind {
				t.Fatalf("expected kind %q, got %q (%v)", tt.wantKind, got, err)
			}
		})
	}
}

func TestCheckVersionCarriesSuppliedVersion(t *testing.T) {
	var outdated *domain.VersionOutdatedError
	if err := CheckVersion(1, 5); !errors.As(err, &outdated) || outdated.Version != 1 {
		t.Fatalf("expected VersionOutdatedError{1}, got %v", err)
	}
	var ahead *domain.VersionAheadError
	if err := CheckVersion(9, 5); !errors.As(err, &ahead) || ahead.Version != 9 {
		t.Fatalf("expected VersionAheadError{9}, got %v", err)
	}
}

func TestCheckAccess(t *testing.T) {
	tests := []struct {
		name    string
		caller  domain.Caller
		owner   string
		allowed bool
	}{
		{name: "owner", caller: customerCaller("erika"), owner: "erika", allowed: true},
		{name: "admin on foreign record", caller: adminCaller(), owner: "erika", allowed: true},
		{name: "admin role is case-insensitive", caller: domain.Caller{Username: "root", Roles: []string{"admin"}}, owner: "erika", allowed: true},
		{name: "other customer", caller: customerCaller("max"), owner: "erika"},
		{name: "user role is not enough", caller: domain.Caller{Username: "clerk", Roles: []string{domain.RoleUser}}, owner: "erika"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAccess(tt.caller, tt.owner)
			if tt.allowed && err != nil {
				t.Fatalf("expected access, got %v", err)
			}
			if !tt.allowed {
				var forbidden *domain.AccessForbiddenError
				if !errors.As(err, &forbidden) {
					t.Fatalf("expected AccessForbiddenError, got %v", err)
				}
				if forbidden.Username != tt.caller.Username {
					t.Fatalf("expected username %q in error, got %q", tt.caller.Username, forbidden.Username)
				}
			}
		})
	}
}

func TestRequireAdminIgnoresOwnership(t *testing.T) {
	if err := RequireAdmin(adminCaller()); err != nil {
		t.Fatalf("admin rejected: %v", err)
	}
	if err := RequireAdmin(customerCaller("erika")); domain.KindOf(err) != domain.KindAccessForbidden {
		t.Fatalf("expected forbidden for owner, got %v", err)
	}
}

func TestValidPassword(t *testing.T) {
	tests := []struct {
		password string
		want     bool
	}{
		{"abcdefgh", false},
		{"Abcdef1!", true},
		{"Abcdefg1", false},
		{"ABCDEF1!", false},
		{"Abcdefg!", false},
		{"Ab1!", false},
		{"Äbcdef1!", false},
		{"Xyzxyz9~", true},
		{"Pass word1", false},
		{"Pass word1?", true},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			if got := ValidPassword(tt.password); got != tt.want {
				t.Fatalf("ValidPassword(%q) = %v, want %v", tt.password, got, tt.want)
			}
		})
	}
}

func TestRoleForTier(t *testing.T) {
	for tier, want := range map[int]string{1: "Basic", 2: "Elite", 3: "Supreme"} {
		got, err := RoleForTier(tier)
		if err != nil || got != want {
			t.Fatalf("RoleForTier(%d) = %q, %v; want %q", tier, got, err, want)
		}
	}
	for _, tier := range []int{0, 4, -1} {
		if _, err := RoleForTier(tier); domain.KindOf(err) != domain.KindInvalidArgument {
			t.Fatalf("RoleForTier(%d): expected invalid argument, got %v", tier, err)
		}
	}
}
