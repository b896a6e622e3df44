package audit

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidTarget is returned when a target cannot be normalized into an absolute URL.
var ErrInvalidTarget = errors.New("invalid target url")

// NormalizeTarget turns user input into an absolute http(s) URL, defaulting the scheme to https.
func NormalizeTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", ErrInvalidTarget)
	}
	if !strings.HasPrefix(strings.ToLower(raw), "http://") && !strings.HasPrefix(strings.ToLower(raw), "https://") {
		if strings.Contains(raw, "://") {
			return "", fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidTarget, raw)
		}
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidTarget, raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	return u.String(), nil
}

// Host returns the lower-cased host (including any port) of a target, or "" when unparsable.
func Host(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
