package auth

import "time"

// Account is the credential view of an admin user.
type Account struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	RoleID       int64
	Status       bool
	DeletedAt    *time.Time
}

// Active reports whether the account may log in.
func (a Account) Active() bool {
	return a.Status && a.DeletedAt == nil
}
