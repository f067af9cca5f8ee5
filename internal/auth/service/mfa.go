package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/teamhub/internal/auth/domain"
	"github.com/aussiebroadwan/teamhub/internal/auth/store"
	"github.com/aussiebroadwan/teamhub/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	DefaultMFAIssuer = "TeamHub"
	DefaultMFASkew   = 1

	totpPeriod     = 30
	totpSecretSize = 20 // 160 bits
)

// MFAService derives and checks RFC 6238 codes (30s period, 6 digits,
// SHA1) and persists enrollment state. Code checks never fail loudly: any
// anomalous input is simply a non-match.
type MFAService struct {
	Store  store.Store
	Issuer string

	// Skew is the number of adjacent periods accepted on each side.
	Skew uint

	Now func() time.Time
}

// NewMFAService uses DefaultMFAIssuer when issuer is empty.
func NewMFAService(st store.Store, issuer string) *MFAService {
	if issuer == "" {
		issuer = DefaultMFAIssuer
	}
	return &MFAService{Store: st, Issuer: issuer, Skew: DefaultMFASkew, Now: time.Now}
}

func (s *MFAService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *MFAService) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      s.Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// GenerateSecret returns a fresh base32 shared secret.
func (s *MFAService) GenerateSecret() (string, error) {
	// The account label only matters for the key URL, which is built
	// separately.
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: s.Issuer,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", err
	}
	return key.Secret(), nil
}

// CurrentCode is the code of the current window, or false when there is
// no usable secret.
func (s *MFAService) CurrentCode(secret *string) (string, bool) {
	return s.CurrentCodeAt(secret, s.now())
}

// CurrentCodeAt is CurrentCode for the window containing t.
func (s *MFAService) CurrentCodeAt(secret *string, t time.Time) (string, bool) {
	if secret == nil || strings.TrimSpace(*secret) == "" {
		return "", false
	}
	code, err := totp.GenerateCodeCustom(*secret, t, s.opts())
	if err != nil {
		return "", false
	}
	return code, true
}

// Verify checks code against the user's secret at the current time.
func (s *MFAService) Verify(u domain.User, code string) bool {
	return s.VerifyAt(u.MFASecret, code, s.now())
}

// VerifyAt checks code against secret at t within Skew windows.
func (s *MFAService) VerifyAt(secret *string, code string, t time.Time) bool {
	code = strings.TrimSpace(code)
	if secret == nil || strings.TrimSpace(*secret) == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, *secret, t, s.opts())
	return err == nil && ok
}

// BuildEnrollmentURI formats the otpauth provisioning URI of u. It returns
// an empty string when u has no secret.
func BuildEnrollmentURI(u domain.User, issuer string) string {
	if u.MFASecret == nil || *u.MFASecret == "" {
		return ""
	}
	label := url.PathEscape(issuer) + ":" + url.PathEscape(u.Email)
	return "otpauth://totp/" + label +
		"?secret=" + url.QueryEscape(*u.MFASecret) +
		"&issuer=" + url.QueryEscape(issuer)
}

func (s *MFAService) enrollment(u domain.User) domain.MFAEnrollment {
	return domain.MFAEnrollment{
		Secret:  *u.MFASecret,
		URI:     BuildEnrollmentURI(u, s.Issuer),
		Issuer:  s.Issuer,
		Account: u.Email,
		Enabled: u.HasMFA(),
	}
}

// Enroll stores a new pending secret for u. MFA is not required at login
// until Enable confirms a code. Enrolling again replaces a pending secret.
func (s *MFAService) Enroll(ctx context.Context, u domain.User) (domain.MFAEnrollment, error) {
	if u.HasMFA() {
		return domain.MFAEnrollment{}, ErrMFAAlreadyEnabled
	}

	secret, err := s.GenerateSecret()
	if err != nil {
		return domain.MFAEnrollment{}, err
	}
	if err := s.Store.Users().UpdateMFASecret(ctx, u.ID, secret); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.MFAEnrollment{}, ErrIdentityNotFound
		}
		return domain.MFAEnrollment{}, storeErr("update mfa secret", err)
	}

	u.MFASecret = &secret
	slogx.FromContext(ctx).Info("mfa enrollment started", "user_id", u.ID)
	return s.enrollment(u), nil
}

// View returns the provisioning material of a pending enrollment. Once MFA
// is enabled the secret is no longer disclosed.
func (s *MFAService) View(u domain.User) (domain.MFAEnrollment, error) {
	if u.HasMFA() {
		return domain.MFAEnrollment{}, ErrMFAAlreadyEnabled
	}
	if u.MFASecret == nil || *u.MFASecret == "" {
		return domain.MFAEnrollment{}, ErrMFANotEnrolled
	}
	return s.enrollment(u), nil
}

// Enable confirms a pending enrollment with a current code.
func (s *MFAService) Enable(ctx context.Context, u domain.User, code string) error {
	if u.HasMFA() {
		return ErrMFAAlreadyEnabled
	}
	if u.MFASecret == nil || *u.MFASecret == "" {
		return ErrMFANotEnrolled
	}
	if !s.Verify(u, code) {
		return ErrInvalidCode
	}

	if err := s.Store.Users().EnableMFA(ctx, u.ID, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMFANotEnrolled
		}
		return storeErr("enable mfa", err)
	}
	slogx.FromContext(ctx).Info("mfa enabled", "user_id", u.ID)
	return nil
}

// Disable clears the secret after checking a current code.
func (s *MFAService) Disable(ctx context.Context, u domain.User, code string) error {
	if !u.HasMFA() {
		return ErrMFANotEnabled
	}
	if !s.Verify(u, code) {
		return ErrInvalidCode
	}

	if err := s.Store.Users().DisableMFA(ctx, u.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrIdentityNotFound
		}
		return storeErr("disable mfa", err)
	}
	slogx.FromContext(ctx).Info("mfa disabled", "user_id", u.ID)
	return nil
}
