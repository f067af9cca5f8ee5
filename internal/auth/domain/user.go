package domain

import "time"

type User struct {
	ID           string
	Email        string // unique, lower-cased
	DisplayName  string
	PasswordHash string // argon2id PHC string, empty for OAuth-only accounts
	Role         Role
	Active       bool
	MFAEnabled   *time.Time // set once TOTP enrollment is confirmed
	MFASecret    *string    // base32 TOTP secret, pending or enabled
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasMFA reports whether a second factor is required at login.
func (u User) HasMFA() bool {
	return u.MFAEnabled != nil && u.MFASecret != nil && *u.MFASecret != ""
}
