package auth

import (
	"context"

	"github.com/erazemk/galerija/internal/model"
)

// RoleAuthorizer permits mutations to callers holding at least Minimum.
type RoleAuthorizer struct {
	Minimum string
}

// CanMutate reports whether the caller may change painting records. A nil
// caller is never permitted.
func (a RoleAuthorizer) CanMutate(_ context.Context, caller *Claims) bool {
	if caller == nil {
		return false
	}
	return model.RoleAtLeast(caller.Role, a.Minimum)
}
