package auth

import "time"

// User is an authenticated account. Users exist independently of
// organizations; memberships bind them to tenants.
type User struct {
	ID           string
	Email        string
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName joins first and last name for display.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
