package service

import (
	"net/url"
	"strings"
)

// ParseTarget validates the raw url query parameter. An empty value is
// ErrMissingParameter; anything that is not an absolute http(s) URL with a
// host is ErrInvalidURL.
func ParseTarget(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, ErrMissingParameter
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, ErrInvalidURL
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, ErrInvalidURL
	}
	return u, nil
}
