package http

import (
	"regexp"

	"github.com/aussiebroadwan/teamhub/pkg/httpx"
)

// Paths the authentication gate skips entirely. Matched by prefix for
// every method.
var publicPrefixes = []string{
	"/api/auth/register",
	"/api/auth/login",
	"/api/auth/login-mfa",
	"/api/auth/verify-mfa",
	"/api/auth/generate-mfa",
	"/api/auth/view-mfa",
	"/api/auth/mfa-code",
	"/api/auth/refresh",
	"/login",
	"/oauth2",
	"/error",
	"/api/oauth2/",
	"/api/v1/ai/",
	"/api/v1/external/",
	"/api/test/",
	"/actuator/",
	"/ws/",
	"/ws-meeting/",
	"/favicon.ico",
	"/api/meetings/join/guest",
	"/api/meetings/validate/",
	"/.well-known/",
}

// Meeting lookups by join code are public for GET only.
var meetingCodePattern = regexp.MustCompile(`^/api/meetings/[A-Z0-9-]+$`)

// PublicPaths returns the gate allow-list.
func PublicPaths() httpx.PublicPaths {
	return httpx.PublicPaths{
		Prefixes:    publicPrefixes,
		GetPatterns: []*regexp.Regexp{meetingCodePattern},
	}
}
