// Package domain derives registrable hosts from URLs and validates URLs
// before ingestion.
package domain

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ValidationError reports a malformed URL.
type ValidationError struct {
	URL    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid url %q: %s", e.URL, e.Reason)
}

// Validate checks that raw is an absolute http(s) URL with a host.
func Validate(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &ValidationError{URL: raw, Reason: "empty"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{URL: raw, Reason: err.Error()}
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "":
		return &ValidationError{URL: raw, Reason: "missing scheme"}
	default:
		return &ValidationError{URL: raw, Reason: "unsupported scheme " + u.Scheme}
	}
	if u.Hostname() == "" {
		return &ValidationError{URL: raw, Reason: "missing host"}
	}
	return nil
}

// Registrable returns the registrable domain (public suffix plus one label)
// of raw, lower-cased. "http://a.b.example.co.uk/x" yields "example.co.uk".
// IP addresses and hosts without a registrable part (e.g. "localhost") are
// returned unchanged.
func Registrable(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", &ValidationError{URL: raw, Reason: err.Error()}
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", &ValidationError{URL: raw, Reason: "missing host"}
	}
	if net.ParseIP(host) != nil {
		return host, nil
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host, nil
	}
	return etld1, nil
}
