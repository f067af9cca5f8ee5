package domain_test

import (
	"testing"

	"github.com/aussiebroadwan/teamhub/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestRole_Authorities(t *testing.T) {
	tests := []struct {
		role domain.Role
		want []string
	}{
		{domain.RoleAdmin, []string{"ADMIN", "USER"}},
		{domain.RoleUser, []string{"USER"}},
		{domain.Role("GUEST"), []string{}},
		{domain.Role(""), []string{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			require.Equal(t, tt.want, tt.role.AuthorityStrings())
			require.Len(t, tt.role.Authorities(), len(tt.want))
		})
	}
}

func TestRole_AuthoritiesReturnsCopy(t *testing.T) {
	as := domain.RoleAdmin.Authorities()
	as[0] = domain.AuthorityUser

	require.Equal(t, domain.AuthorityAdmin, domain.RoleAdmin.Authorities()[0])
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want domain.Role
		ok   bool
	}{
		{"ADMIN", domain.RoleAdmin, true},
		{" user ", domain.RoleUser, true},
		{"Admin", domain.RoleAdmin, true},
		{"owner", domain.Role("OWNER"), false},
		{"", domain.Role(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := domain.ParseRole(tt.in)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}
