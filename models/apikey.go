package models

import "time"

// APIKey authenticates the results bot. The secret half is stored as a
// bcrypt hash; the raw key is shown once at issue time.
type APIKey struct {
	ID         string    `json:"id"`
	UserID     int       `json:"user_id"`
	Label      string    `json:"label"`
	SecretHash string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}
