package httpx

import (
	"net/http"
	"regexp"
	"strings"
)

// PathMatcher decides whether a request bypasses authentication.
type PathMatcher interface {
	Match(r *http.Request) bool
}

// PublicPaths matches by path prefix for any method, and by anchored
// pattern for GET requests only.
type PublicPaths struct {
	Prefixes    []string
	GetPatterns []*regexp.Regexp
}

// Match reports whether r skips authentication.
func (p PublicPaths) Match(r *http.Request) bool {
	path := r.URL.Path
	for _, prefix := range p.Prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	if r.Method != http.MethodGet {
		return false
	}
	for _, re := range p.GetPatterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
