package app

import (
	"net/url"
	"strings"
)

// originMatcher builds the CORS origin check for allowed_origins. An entry is
// a full origin ("https://chat.example.com"), a bare host matched with any
// scheme, a subdomain wildcard ("*.example.com"), a host on any port
// ("localhost:*") or "*". An empty list allows every origin.
func originMatcher(patterns []string) func(origin string) bool {
	if len(patterns) == 0 {
		return func(string) bool { return true }
	}
	normalized := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			normalized = append(normalized, strings.TrimSuffix(p, "/"))
		}
	}
	return func(origin string) bool {
		u, err := url.Parse(strings.ToLower(origin))
		if err != nil || u.Host == "" {
			return false
		}
		for _, p := range normalized {
			if originAllowed(p, u) {
				return true
			}
		}
		return false
	}
}

func originAllowed(pattern string, origin *url.URL) bool {
	switch {
	case pattern == "*":
		return true
	case strings.Contains(pattern, "://"):
		return pattern == origin.Scheme+"://"+origin.Host
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(origin.Hostname(), pattern[1:])
	case strings.HasSuffix(pattern, ":*"):
		return origin.Hostname() == strings.TrimSuffix(pattern, ":*")
	default:
		return pattern == origin.Host
	}
}
