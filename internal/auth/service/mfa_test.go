package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/teamhub/internal/auth/domain"
	"github.com/aussiebroadwan/teamhub/internal/auth/service"
	"github.com/pquerna/otp"
	"github.com/stretchr/testify/require"
)

const fixedSecret = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"

func TestMFA_GenerateSecret(t *testing.T) {
	s := service.NewMFAService(nil, "")
	require.Equal(t, service.DefaultMFAIssuer, s.Issuer)

	a, err := s.GenerateSecret()
	require.NoError(t, err)
	b, err := s.GenerateSecret()
	require.NoError(t, err)

	require.Len(t, a, 32)
	require.NotEqual(t, a, b)

	code, ok := s.CurrentCode(&a)
	require.True(t, ok)
	require.Len(t, code, 6)
}

func TestMFA_Verify(t *testing.T) {
	s := service.NewMFAService(nil, "TeamHub")
	secret := fixedSecret

	code, ok := s.CurrentCodeAt(&secret, t0)
	require.True(t, ok)

	require.True(t, s.VerifyAt(&secret, code, t0))
	require.True(t, s.VerifyAt(&secret, code, t0.Add(31*time.Second)), "adjacent window")
	require.False(t, s.VerifyAt(&secret, code, t0.Add(90*time.Second)), "outside tolerance")

	s.Skew = 0
	require.False(t, s.VerifyAt(&secret, code, t0.Add(31*time.Second)))

	s.Now = func() time.Time { return t0 }
	s.Skew = 1
	require.True(t, s.Verify(domain.User{MFASecret: &secret}, code))
}

func TestMFA_AnomalousInputIsFalse(t *testing.T) {
	s := service.NewMFAService(nil, "TeamHub")
	secret := fixedSecret
	empty := ""
	garbage := "!!not base32!!"

	_, ok := s.CurrentCode(nil)
	require.False(t, ok)
	_, ok = s.CurrentCode(&empty)
	require.False(t, ok)

	tests := []struct {
		name   string
		secret *string
		code   string
	}{
		{"nil secret", nil, "123456"},
		{"empty secret", &empty, "123456"},
		{"garbage secret", &garbage, "123456"},
		{"empty code", &secret, ""},
		{"non digits", &secret, "abcdef"},
		{"too long", &secret, "1234567"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotPanics(t, func() {
				require.False(t, s.VerifyAt(tt.secret, tt.code, t0))
			})
		})
	}

	require.False(t, s.Verify(domain.User{}, "123456"))
}

func TestBuildEnrollmentURI(t *testing.T) {
	secret := fixedSecret
	u := domain.User{Email: "alice@example.com", MFASecret: &secret}

	uri := service.BuildEnrollmentURI(u, "TeamHub")
	require.Equal(t, "otpauth://totp/TeamHub:alice@example.com?secret="+fixedSecret+"&issuer=TeamHub", uri)

	key, err := otp.NewKeyFromURL(uri)
	require.NoError(t, err)
	require.Equal(t, "totp", key.Type())
	require.Equal(t, "TeamHub", key.Issuer())
	require.Equal(t, "alice@example.com", key.AccountName())
	require.Equal(t, fixedSecret, key.Secret())

	spaced := service.BuildEnrollmentURI(u, "Team Hub")
	key, err = otp.NewKeyFromURL(spaced)
	require.NoError(t, err)
	require.Equal(t, "Team Hub", key.Issuer())

	require.Empty(t, service.BuildEnrollmentURI(domain.User{Email: "x@example.com"}, "TeamHub"))
}

func TestMFA_EnrollmentLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "bob@example.com")

	_, err := f.MFA.View(u)
	require.ErrorIs(t, err, service.ErrMFANotEnrolled)
	require.ErrorIs(t, f.MFA.Enable(ctx, u, "123456"), service.ErrMFANotEnrolled)
	require.ErrorIs(t, f.MFA.Disable(ctx, u, "123456"), service.ErrMFANotEnabled)

	enr, err := f.MFA.Enroll(ctx, u)
	require.NoError(t, err)
	require.False(t, enr.Enabled)
	require.Equal(t, "bob@example.com", enr.Account)
	require.Contains(t, enr.URI, "secret="+enr.Secret)

	u, err = f.Users.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, u.HasMFA())

	viewed, err := f.MFA.View(u)
	require.NoError(t, err)
	require.Equal(t, enr.Secret, viewed.Secret)

	require.ErrorIs(t, f.MFA.Enable(ctx, u, "abcdef"), service.ErrInvalidCode)

	code, ok := f.MFA.CurrentCode(u.MFASecret)
	require.True(t, ok)
	require.NoError(t, f.MFA.Enable(ctx, u, code))

	u, err = f.Users.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, u.HasMFA())

	_, err = f.MFA.Enroll(ctx, u)
	require.ErrorIs(t, err, service.ErrMFAAlreadyEnabled)

	hidden, err := f.MFA.View(u)
	require.ErrorIs(t, err, service.ErrMFAAlreadyEnabled)
	require.Empty(t, hidden.Secret)
	require.ErrorIs(t, f.MFA.Enable(ctx, u, code), service.ErrMFAAlreadyEnabled)

	require.ErrorIs(t, f.MFA.Disable(ctx, u, "abcdef"), service.ErrInvalidCode)
	require.NoError(t, f.MFA.Disable(ctx, u, code))

	u, err = f.Users.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, u.HasMFA())
	require.Nil(t, u.MFASecret)
}
