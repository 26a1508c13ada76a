package tenant

import (
	"errors"
	"net"
	"net/http"
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Source tells where an identifier came from.
type Source string

const (
	SourceSubdomain Source = "subdomain"
	SourceSession   Source = "session"
)

// Identifier is the raw value extracted from a request.
type Identifier struct {
	Source Source
	Value  string
}

// Resolver extracts an identifier from a request. It returns ErrNoIdentifier
// when the request carries nothing it understands.
type Resolver func(r *http.Request) (Identifier, error)

var labelPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// NewSubdomainResolver extracts the single label in front of rootDomain.
// "acme.example.com" with root "example.com" yields "acme". The bare root,
// reserved labels and nested subdomains yield ErrNoIdentifier.
func NewSubdomainResolver(rootDomain string, reserved ...string) Resolver {
	root := "." + strings.ToLower(strings.Trim(rootDomain, "."))
	if len(reserved) == 0 {
		reserved = []string{"www"}
	}

	return func(r *http.Request) (Identifier, error) {
		host := strings.ToLower(r.Host)
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		if !strings.HasSuffix(host, root) {
			return Identifier{}, ErrNoIdentifier
		}

		label := strings.TrimSuffix(host, root)
		if label == "" || strings.Contains(label, ".") || slices.Contains(reserved, label) {
			return Identifier{}, ErrNoIdentifier
		}
		if !labelPattern.MatchString(label) {
			return Identifier{}, ErrInvalidIdentifier
		}
		return Identifier{Source: SourceSubdomain, Value: label}, nil
	}
}

// NewSessionResolver reads the tenant id persisted in the session by Switcher.
func NewSessionResolver(lookup func(r *http.Request) (string, bool)) Resolver {
	return func(r *http.Request) (Identifier, error) {
		raw, ok := lookup(r)
		if !ok || raw == "" {
			return Identifier{}, ErrNoIdentifier
		}
		if _, err := uuid.Parse(raw); err != nil {
			return Identifier{}, ErrInvalidIdentifier
		}
		return Identifier{Source: SourceSession, Value: raw}, nil
	}
}

// Chain returns the result of the first resolver that yields an identifier
// or a real error. Later resolvers are not consulted after that.
func Chain(resolvers ...Resolver) Resolver {
	return func(r *http.Request) (Identifier, error) {
		for _, res := range resolvers {
			id, err := res(r)
			if errors.Is(err, ErrNoIdentifier) {
				continue
			}
			return id, err
		}
		return Identifier{}, ErrNoIdentifier
	}
}
