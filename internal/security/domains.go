package security

import (
	"maps"
	"slices"
	"strings"
)

// DomainPolicy restricts registration to a set of e-mail domains.
// An empty policy allows every domain.
type DomainPolicy struct {
	allowed map[string]struct{}
}

// NewDomainPolicy normalizes the configured domain list.
func NewDomainPolicy(domains []string) DomainPolicy {
	p := DomainPolicy{allowed: make(map[string]struct{}, len(domains))}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@"))
		if d != "" {
			p.allowed[d] = struct{}{}
		}
	}
	return p
}

// Allows reports whether the e-mail address belongs to an allowed domain.
func (p DomainPolicy) Allows(email string) bool {
	if len(p.allowed) == 0 {
		return true
	}
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}
	_, ok := p.allowed[strings.ToLower(strings.TrimSpace(email[at+1:]))]
	return ok
}

// Domains returns the allowed domains.
func (p DomainPolicy) Domains() []string {
	return slices.Sorted(maps.Keys(p.allowed))
}
