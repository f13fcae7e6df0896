package shortener

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Normalizer canonicalizes raw input into a well-formed absolute URL.
// Normalization is pure: identical input always yields identical output,
// which is what makes destination-based deduplication possible.
type Normalizer struct {
	serviceDomain string
}

// NewNormalizer returns a Normalizer that rejects destinations pointing at
// serviceDomain (or localhost/loopback addresses).
func NewNormalizer(serviceDomain string) *Normalizer {
	return &Normalizer{serviceDomain: strings.ToLower(serviceDomain)}
}

// Normalize trims, scheme-qualifies, and canonicalizes raw. Input without a
// scheme gets https:// prepended rather than rejected; the intent is maximal
// acceptance of casual input.
func (n *Normalizer) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidURL)
	}

	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: missing scheme or host", ErrInvalidURL)
	}

	// Scheme and host are case-insensitive per RFC 3986; lower-casing them
	// keeps the dedup key canonical. Path and query are left untouched.
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if n.isOwnHost(u.Hostname()) {
		return "", ErrSelfReferential
	}

	return u.String(), nil
}

func (n *Normalizer) isOwnHost(host string) bool {
	if host == n.serviceDomain || host == "www."+n.serviceDomain {
		return true
	}
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}
	return false
}
