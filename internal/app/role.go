package app

import (
	"fmt"

	"github.com/omnixys/omnixys-person-service/internal/domain"
)

var tierRoles = map[int]string{
	1: "Basic",
	2: "Elite",
	3: "Supreme",
}

// RoleForTier maps a customer tier to the identity-provider role it is
// registered with.
func RoleForTier(tier int) (string, error) {
	role, ok := tierRoles[tier]
	if !ok {
		return "", &domain.InvalidArgumentError{Message: fmt.Sprintf("invalid tier level %d", tier)}
	}
	return role, nil
}
