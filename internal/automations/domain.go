package automations

import "time"

// Status is the lifecycle state of an automation.
type Status string

// Automation lifecycle states.
const (
	StatusDraft    Status = "draft"
	StatusEnabled  Status = "enabled"
	StatusDisabled Status = "disabled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusEnabled, StatusDisabled:
		return true
	}
	return false
}

// Automation is a tenant-owned workflow definition. Ownership and visibility
// drive per-record authorization: members edit their own automations, and
// viewers only see the ones marked public.
type Automation struct {
	ID             string
	OrganizationID string
	OwnerID        string
	Name           string
	Description    string
	Trigger        string
	Status         Status
	Config         map[string]any
	IsPublic       bool
	RunCount       int64
	LastRunAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
