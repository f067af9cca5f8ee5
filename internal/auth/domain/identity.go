package domain

import "time"

// ExternalIdentity is what an OAuth2 provider asserts about a user.
type ExternalIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// IdentityLink ties a provider subject to a local user.
type IdentityLink struct {
	Provider  string
	Subject   string
	UserID    string
	Email     string
	CreatedAt time.Time
}
