package domain

import "strings"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Authority is a capability granted to a principal.
type Authority string

const (
	AuthorityUser  Authority = "USER"
	AuthorityAdmin Authority = "ADMIN"
)

var roleAuthorities = map[Role][]Authority{
	RoleAdmin: {AuthorityAdmin, AuthorityUser},
	RoleUser:  {AuthorityUser},
}

// Authorities expands a role into its ordered capability set. ADMIN implies
// USER. Unknown roles grant nothing.
func (r Role) Authorities() []Authority {
	return append([]Authority(nil), roleAuthorities[r]...)
}

// AuthorityStrings is Authorities as plain strings.
func (r Role) AuthorityStrings() []string {
	as := roleAuthorities[r]
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = string(a)
	}
	return out
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleAuthorities[r]
	return ok
}

// ParseRole accepts any casing of a known role name.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}
