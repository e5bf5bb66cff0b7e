package models

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User is keyed by the nickname supplied by the remote identity provider.
// Accounts are created on first successful login and never hard-deleted by
// any user-facing flow; admin deletion cleans up children explicitly.
type User struct {
	ID             int        `json:"id"`
	Nickname       string     `json:"nickname"`
	Email          *string    `json:"email,omitempty"`
	EmailConfirmed bool       `json:"email_confirmed"`
	Role           UserRole   `json:"role"`
	AccessToken    *string    `json:"-"`
	RefreshToken   *string    `json:"-"`
	RefreshAfter   *time.Time `json:"-"`
	EmailReminders bool       `json:"email_reminders"`
	PMReminders    bool       `json:"pm_reminders"`
	// ApplicationFlag marks the user in the moderation workflow for
	// pending voter applications.
	ApplicationFlag bool      `json:"application_flag"`
	CreatedAt       time.Time `json:"created_at"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
