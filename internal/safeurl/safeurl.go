package safeurl

import (
	"net/url"
	"strings"
)

// IsHTTPOrHTTPS returns true if u is an absolute URL with scheme http or https and a host.
// Every playlist entry must satisfy this; resolvers drop anything else.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return false
	}
	s := strings.ToLower(parsed.Scheme)
	return (s == "http" || s == "https") && parsed.Host != ""
}

// Origin returns scheme://host of u, or "" if u is not an http(s) URL.
func Origin(u string) string {
	if !IsHTTPOrHTTPS(u) {
		return ""
	}
	parsed, _ := url.Parse(strings.TrimSpace(u))
	return strings.ToLower(parsed.Scheme) + "://" + parsed.Host
}

// WithScheme returns host as an https URL when it has no scheme (e.g. "cdn.example.net").
func WithScheme(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "//") {
		return "https:" + host
	}
	if !strings.Contains(host, "://") {
		return "https://" + host
	}
	return host
}
