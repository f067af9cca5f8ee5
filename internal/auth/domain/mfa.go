package domain

import "time"

// MFAChallenge is a password-verified login waiting for its TOTP code.
type MFAChallenge struct {
	Token     string
	UserID    string
	Attempts  int
	ExpiresAt time.Time
}

// MFAChallengeResponse is returned by login in place of tokens when a second
// factor is required.
type MFAChallengeResponse struct {
	MFARequired bool   `json:"mfaRequired"`
	MFAToken    string `json:"mfaToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// MFAEnrollment is the provisioning material shown to the user.
type MFAEnrollment struct {
	Secret  string `json:"secret"`
	URI     string `json:"uri"`
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
	Enabled bool   `json:"enabled"`
}
