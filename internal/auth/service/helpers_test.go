package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/teamhub/internal/auth/domain"
	"github.com/aussiebroadwan/teamhub/internal/auth/service"
	"github.com/aussiebroadwan/teamhub/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/teamhub/pkg/cryptox"
	"github.com/aussiebroadwan/teamhub/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// t0 sits exactly on a 30 second TOTP boundary.
var t0 = time.Unix(1_700_000_010, 0).UTC()

var testKey = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	Store  *sqlite.Store
	Clock  *fakeClock
	Users  *service.UserService
	MFA    *service.MFAService
	Tokens *service.TokenService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	clock := &fakeClock{now: t0}

	codec, err := jwtx.NewHS256(testKey, jwtx.HS256Options{Issuer: "teamhub-test", Now: clock.Now})
	require.NoError(t, err)

	users := &service.UserService{Store: st, Passwords: cryptox.PasswordHasher{Pepper: "pepper"}}

	mfa := service.NewMFAService(st, "TeamHub")
	mfa.Now = clock.Now

	challenges := service.NewChallengeCache(0)
	challenges.Now = clock.Now

	return &fixture{
		Store: st,
		Clock: clock,
		Users: users,
		MFA:   mfa,
		Tokens: &service.TokenService{
			Codec:         codec,
			RefreshTokens: st.RefreshTokens(),
			Users:         users,
			MFA:           mfa,
			Challenges:    challenges,
		},
	}
}

const testPassword = "correct horse battery"

func (f *fixture) register(t *testing.T, email string) domain.User {
	t.Helper()

	u, err := f.Users.Register(context.Background(), email, testPassword, "")
	require.NoError(t, err)
	return u
}

// registerUser makes sure the returned account is a plain USER by
// bootstrapping an admin first when needed.
func (f *fixture) registerUser(t *testing.T, email string) domain.User {
	t.Helper()

	n, err := f.Store.Users().CountUsers(context.Background())
	require.NoError(t, err)
	if n == 0 {
		f.register(t, "admin@example.com")
	}
	u := f.register(t, email)
	require.Equal(t, domain.RoleUser, u.Role)
	return u
}

// enableMFA enrolls u and confirms it with the current code.
func (f *fixture) enableMFA(t *testing.T, u domain.User) domain.User {
	t.Helper()
	ctx := context.Background()

	enr, err := f.MFA.Enroll(ctx, u)
	require.NoError(t, err)

	code, ok := f.MFA.CurrentCode(&enr.Secret)
	require.True(t, ok)

	u.MFASecret = &enr.Secret
	require.NoError(t, f.MFA.Enable(ctx, u, code))

	u, err = f.Users.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, u.HasMFA())
	return u
}
