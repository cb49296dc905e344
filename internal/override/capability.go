package override

import (
	"github.com/giftar/giftpin/internal/models"
	"github.com/giftar/giftpin/internal/permissions"
)

// Capability is the operator authority passed into every override call.
// The zero value grants nothing.
type Capability struct {
	OperatorID  uint64
	Username    string
	Super       bool
	Permissions map[string]struct{}
}

// NewCapability derives a capability from an active operator record.
func NewCapability(op models.Operator) Capability {
	if op.ID == 0 || !op.Active {
		return Capability{}
	}
	granted := make(map[string]struct{})
	for _, name := range permissions.ParsePermissions(op.Permissions) {
		granted[name] = struct{}{}
	}
	return Capability{
		OperatorID:  op.ID,
		Username:    op.Username,
		Super:       op.IsSuperOperator,
		Permissions: granted,
	}
}

// Allows reports whether the capability carries the permission.
func (c Capability) Allows(permission string) bool {
	if c.OperatorID == 0 {
		return false
	}
	if c.Super {
		return true
	}
	_, ok := c.Permissions[permission]
	return ok
}
