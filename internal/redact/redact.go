// Package redact strips sensitive material from target values before
// they cross the persistence or logging boundary. Scoring always sees
// the original value; redaction produces a new value and never mutates
// the result it is given.
package redact

import (
	"net/url"
	"strings"

	"github.com/safecheck/safecheck/internal/scoring"
	"github.com/safecheck/safecheck/internal/target"
)

// Policy selects how aggressively URL values are stripped.
type Policy string

const (
	// PolicyNone leaves values untouched.
	PolicyNone Policy = "NONE"
	// PolicyConservative removes only query parameters with sensitive names.
	PolicyConservative Policy = "CONSERVATIVE"
	// PolicyModerate removes the entire query string and fragment.
	PolicyModerate Policy = "MODERATE"
	// PolicyAggressive keeps only scheme and host.
	PolicyAggressive Policy = "AGGRESSIVE"
)

// ParsePolicy parses a configured policy name, defaulting to MODERATE
// for unrecognized input.
func ParsePolicy(s string) Policy {
	switch Policy(strings.ToUpper(strings.TrimSpace(s))) {
	case PolicyNone:
		return PolicyNone
	case PolicyConservative:
		return PolicyConservative
	case PolicyAggressive:
		return PolicyAggressive
	default:
		return PolicyModerate
	}
}

// sensitiveParams are query parameter names removed under CONSERVATIVE.
var sensitiveParams = map[string]bool{
	"token": true, "access_token": true, "auth": true, "key": true,
	"api_key": true, "apikey": true, "password": true, "passwd": true,
	"secret": true, "session": true, "sid": true, "sessionid": true,
	"code": true, "signature": true, "sig": true, "email": true,
}

// Apply redacts a single target value under the given policy. Email and
// hash values pass through unchanged at every level; only URLs carry
// query/fragment material worth stripping.
func Apply(policy Policy, t target.Target) string {
	if policy == PolicyNone || t.Kind != target.KindURL {
		return t.Value
	}

	u, err := url.Parse(t.Value)
	if err != nil {
		return t.Value
	}

	switch policy {
	case PolicyConservative:
		q := u.Query()
		for name := range q {
			if sensitiveParams[strings.ToLower(name)] {
				q.Set(name, "REDACTED")
			}
		}
		u.RawQuery = q.Encode()
	case PolicyModerate:
		u.RawQuery = ""
		u.Fragment = ""
	case PolicyAggressive:
		u.RawQuery = ""
		u.Fragment = ""
		u.Path = "/"
	}
	return u.String()
}

// Result returns a redacted copy of a scan result, rewriting the target
// value and any metadata entry that embeds it. The input is unchanged.
func Result(policy Policy, r *scoring.ScanResult) *scoring.ScanResult {
	if policy == PolicyNone {
		return r
	}

	redacted := Apply(policy, r.Target)

	meta := make(map[string]string, len(r.Metadata))
	for k, v := range r.Metadata {
		meta[k] = strings.ReplaceAll(v, r.Target.Value, redacted)
	}

	out := *r
	out.Target = target.Target{Kind: r.Target.Kind, Value: redacted}
	out.Metadata = meta
	out.Reasons = append([]scoring.Reason(nil), r.Reasons...)
	return &out
}
