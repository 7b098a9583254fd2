package domain

import "time"

// UserRole is the coarse role of an account.
type UserRole string

const (
	UserRoleRequester UserRole = "requester"
	UserRoleAgent     UserRole = "agent"
	UserRoleAdmin     UserRole = "admin"
)

// User is an account known to the helpdesk. Accounts are managed elsewhere.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      UserRole
	CreatedAt time.Time
}

// IsStaff reports whether the user works tickets rather than only filing them.
func (u User) IsStaff() bool {
	return u.Role == UserRoleAgent || u.Role == UserRoleAdmin
}
