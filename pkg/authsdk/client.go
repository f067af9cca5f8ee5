package authsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the TeamHub API.
// It provides access to unauthenticated operations and creates authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new TeamHub client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register creates a USER account.
func (c *SDKClient) Register(ctx context.Context, email, password, displayName string) (*User, error) {
	var u User
	err := c.call(ctx, http.MethodPost, "/api/auth/register", "", registerRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	}, http.StatusCreated, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Login exchanges credentials for a Session. Accounts with MFA enabled get
// a *MFARequiredError instead; pass its token to LoginMFA.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*Session, error) {
	var raw json.RawMessage
	err := c.call(ctx, http.MethodPost, "/api/auth/login", "", credentialsRequest{
		Email:    email,
		Password: password,
	}, http.StatusOK, &raw)
	if err != nil {
		return nil, err
	}

	var challenge mfaChallenge
	if err := json.Unmarshal(raw, &challenge); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	if challenge.MFARequired {
		return nil, &MFARequiredError{Token: challenge.MFAToken, ExpiresIn: challenge.ExpiresIn}
	}

	var pair TokenPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	return newSession(c, &pair), nil
}

// LoginMFA completes a login with the challenge token and a TOTP code.
func (c *SDKClient) LoginMFA(ctx context.Context, mfaToken, code string) (*Session, error) {
	var pair TokenPair
	err := c.call(ctx, http.MethodPost, "/api/auth/login-mfa", "", loginMFARequest{
		MFAToken: mfaToken,
		Code:     code,
	}, http.StatusOK, &pair)
	if err != nil {
		return nil, err
	}
	return newSession(c, &pair), nil
}

// Refresh rotates a refresh token. The old token stops working.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair TokenPair
	err := c.call(ctx, http.MethodPost, "/api/auth/refresh", "", refreshRequest{
		RefreshToken: refreshToken,
	}, http.StatusOK, &pair)
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

// NewSessionFromTokens wraps tokens obtained elsewhere, e.g. the fragment of
// an OAuth2 success redirect.
func (c *SDKClient) NewSessionFromTokens(pair TokenPair) *Session {
	return newSession(c, &pair)
}

// GenerateMFA starts (or restarts) TOTP enrollment.
func (c *SDKClient) GenerateMFA(ctx context.Context, email, password string) (*MFAEnrollment, error) {
	var enr MFAEnrollment
	err := c.call(ctx, http.MethodPost, "/api/auth/generate-mfa", "", credentialsRequest{
		Email:    email,
		Password: password,
	}, http.StatusOK, &enr)
	if err != nil {
		return nil, err
	}
	return &enr, nil
}

// VerifyMFA enables MFA once the authenticator produces a valid code.
func (c *SDKClient) VerifyMFA(ctx context.Context, email, password, code string) error {
	return c.call(ctx, http.MethodPost, "/api/auth/verify-mfa", "", credentialsRequest{
		Email:    email,
		Password: password,
		Code:     code,
	}, http.StatusOK, nil)
}

// ViewMFA returns a pending enrollment again, e.g. to redraw the QR code.
// The server refuses once MFA is enabled.
func (c *SDKClient) ViewMFA(ctx context.Context, email, password string) (*MFAEnrollment, error) {
	var enr MFAEnrollment
	err := c.call(ctx, http.MethodPost, "/api/auth/view-mfa", "", credentialsRequest{
		Email:    email,
		Password: password,
	}, http.StatusOK, &enr)
	if err != nil {
		return nil, err
	}
	return &enr, nil
}

// CurrentMFACode asks the server for the current TOTP code. Only
// development deployments expose this endpoint.
func (c *SDKClient) CurrentMFACode(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Code string `json:"code"`
	}
	err := c.call(ctx, http.MethodPost, "/api/auth/mfa-code", "", credentialsRequest{
		Email:    email,
		Password: password,
	}, http.StatusOK, &out)
	if err != nil {
		return "", err
	}
	return out.Code, nil
}

// GetHealth returns the health report. A degraded service answers 503; the
// report is returned together with an *APIError in that case.
func (c *SDKClient) GetHealth(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/actuator/health", "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var health HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, parseErrorResponse(resp, body)
	}
	if resp.StatusCode != http.StatusOK {
		return &health, &APIError{StatusCode: resp.StatusCode, Code: health.Status, Message: "service degraded"}
	}
	return &health, nil
}
