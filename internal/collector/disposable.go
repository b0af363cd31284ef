package collector

import "strings"

// disposableDomains is a seed set of well-known throwaway-address
// providers. Extend at construction time from configuration.
var disposableDomains = []string{
	"10minutemail.com",
	"dispostable.com",
	"fakeinbox.com",
	"getnada.com",
	"guerrillamail.com",
	"guerrillamail.net",
	"mail-temp.com",
	"mailinator.com",
	"maildrop.cc",
	"mintemail.com",
	"mohmal.com",
	"sharklasers.com",
	"spamgourmet.com",
	"tempail.com",
	"temp-mail.org",
	"tempmail.dev",
	"throwawaymail.com",
	"trashmail.com",
	"yopmail.com",
}

// StaticDisposableChecker answers disposable-domain lookups from an
// in-memory set.
type StaticDisposableChecker struct {
	domains map[string]bool
}

// NewStaticDisposableChecker builds a checker from the seed set plus
// any extra domains.
func NewStaticDisposableChecker(extra ...string) *StaticDisposableChecker {
	m := make(map[string]bool, len(disposableDomains)+len(extra))
	for _, d := range disposableDomains {
		m[d] = true
	}
	for _, d := range extra {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			m[d] = true
		}
	}
	return &StaticDisposableChecker{domains: m}
}

// IsDisposable implements DisposableChecker. Subdomains of a listed
// provider match as well.
func (c *StaticDisposableChecker) IsDisposable(domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if c.domains[domain] {
		return true
	}
	for {
		i := strings.Index(domain, ".")
		if i < 0 {
			return false
		}
		domain = domain[i+1:]
		if c.domains[domain] {
			return true
		}
	}
}

// majorProviders are large, well-established mail providers whose
// domains earn a positive reputation signal.
var majorProviders = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"outlook.com":    true,
	"hotmail.com":    true,
	"live.com":       true,
	"yahoo.com":      true,
	"icloud.com":     true,
	"me.com":         true,
	"proton.me":      true,
	"protonmail.com": true,
	"fastmail.com":   true,
	"zoho.com":       true,
	"aol.com":        true,
	"gmx.com":        true,
	"gmx.net":        true,
}

// IsMajorProvider reports whether domain belongs to a well-known
// major mail provider.
func IsMajorProvider(domain string) bool {
	return majorProviders[strings.ToLower(strings.TrimSpace(domain))]
}
