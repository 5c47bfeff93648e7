package domain

import "strings"

const (
	RoleAdmin   = "ADMIN"
	RoleUser    = "USER"
	RoleBasic   = "BASIC"
	RoleElite   = "ELITE"
	RoleSupreme = "SUPREME"
)

// Caller is the authenticated principal of a request.
type Caller struct {
	Subject  string
	Username string
	Roles    []string
	// Token is the raw bearer token, forwarded to the identity provider.
	Token string
}

// HasRole compares case-insensitively.
func (c Caller) HasRole(role string) bool {
	for _, r := range c.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

func (c Caller) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if c.HasRole(role) {
			return true
		}
	}
	return false
}

func (c Caller) IsAdmin() bool {
	return c.HasRole(RoleAdmin)
}
