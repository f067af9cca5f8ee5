package authsdk

import (
	"encoding/json"
	"time"
)

// envelope wraps every API response except health.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// TokenPair is returned by login, MFA login, refresh and OAuth2 callbacks.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"` // seconds
}

type mfaChallenge struct {
	MFARequired bool   `json:"mfaRequired"`
	MFAToken    string `json:"mfaToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role"`
	Authorities []string  `json:"authorities"`
	Active      bool      `json:"active"`
	MFAEnabled  bool      `json:"mfaEnabled"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MFAEnrollment is the provisioning material for authenticator apps.
type MFAEnrollment struct {
	Secret  string `json:"secret"`
	URI     string `json:"uri"`
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
	Enabled bool   `json:"enabled"`
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// RealtimeSession is one open realtime connection. Principal is empty for
// anonymous connections.
type RealtimeSession struct {
	ID          string    `json:"id"`
	Principal   string    `json:"principal"`
	ConnectedAt time.Time `json:"connectedAt"`
	RemoteAddr  string    `json:"remoteAddr"`
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`
}

type loginMFARequest struct {
	MFAToken string `json:"mfaToken"`
	Code     string `json:"code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type setActiveRequest struct {
	Active bool `json:"active"`
}
