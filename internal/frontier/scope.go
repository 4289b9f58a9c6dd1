package frontier

import "strings"

// HostScope decides which discovered links may be enqueued.
type HostScope struct {
	hosts   map[string]struct{}
	any     bool
	exclude *hostPatterns
}

// NewHostScope admits links on the hosts of seeds. A leading "www." is
// ignored so example.com and www.example.com are the same site. With
// sameHostOnly false every http(s) link is admitted.
func NewHostScope(seeds []string, sameHostOnly bool) *HostScope {
	s := &HostScope{hosts: make(map[string]struct{}), any: !sameHostOnly}
	for _, seed := range seeds {
		if h := siteKey(Host(seed)); h != "" {
			s.hosts[h] = struct{}{}
		}
	}
	return s
}

// Exclude rejects links on the given hosts even when they would otherwise be
// in scope. "*.example.org" and ".example.org" also cover subdomains.
func (s *HostScope) Exclude(patterns ...string) *HostScope {
	s.exclude = newHostPatterns(patterns)
	return s
}

// Allows reports whether rawURL is in scope.
func (s *HostScope) Allows(rawURL string) bool {
	host := Host(rawURL)
	if host == "" || s.exclude.match(host) {
		return false
	}
	if s.any {
		return true
	}
	_, ok := s.hosts[siteKey(host)]
	return ok
}

func siteKey(host string) string {
	return strings.TrimPrefix(host, "www.")
}
