package users

import (
	"time"

	"github.com/automation-global/platform/internal/tenant"
)

// Member is a user seen through the lens of one organization: profile fields
// joined with the membership that scopes them to the tenant.
type Member struct {
	UserID    string
	Email     string
	Username  string
	FirstName string
	LastName  string
	Role      tenant.Role
	JoinedAt  time.Time
	IsActive  bool
}
