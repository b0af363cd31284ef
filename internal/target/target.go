// Package target classifies raw user input into one of the three
// scannable target kinds and normalizes it to a canonical form.
//
// Detection precedence is fixed: URL, then email, then SHA-256 hash.
// A bare string never becomes a URL by protocol inference — only an
// explicit http(s):// scheme or a leading "www." qualifies — so a hex
// string can never be shadowed by a loose URL match.
package target

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Kind discriminates the Target variant.
type Kind int

const (
	KindURL Kind = iota
	KindEmail
	KindFileHash
)

// String returns the kind's stable wire name.
func (k Kind) String() string {
	switch k {
	case KindURL:
		return "url"
	case KindEmail:
		return "email"
	case KindFileHash:
		return "file_hash"
	default:
		return "unknown"
	}
}

// KindFromString parses a wire name back into a Kind.
func KindFromString(s string) (Kind, bool) {
	switch s {
	case "url":
		return KindURL, true
	case "email":
		return KindEmail, true
	case "file_hash":
		return KindFileHash, true
	default:
		return 0, false
	}
}

// MarshalJSON encodes the kind as its wire name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a wire name back into a Kind.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, ok := KindFromString(s)
	if !ok {
		return fmt.Errorf("unknown target kind %q", s)
	}
	*k = parsed
	return nil
}

// Target is an immutable classified input value. Two targets are equal
// when their kind and normalized value are equal; always compare
// normalized targets.
type Target struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
}

// Describe returns a log-friendly description, e.g. "url https://example.com/".
func (t Target) Describe() string {
	return fmt.Sprintf("%s %s", t.Kind, t.Value)
}

// Key returns the canonical cache/lookup key for the target.
func (t Target) Key() string {
	return t.Kind.String() + ":" + t.Value
}

const (
	maxURLLen   = 2048
	maxEmailLen = 254
)

// RFC-5322-lite: one local part, one domain with at least one dot,
// conservative character classes. Dot placement is checked separately.
var emailRe = regexp.MustCompile(`^[A-Za-z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?)+$`)

var sha256Re = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Detect classifies raw input. It returns false for blank input and for
// anything that matches none of the three patterns; callers must report
// INVALID_INPUT in that case. The returned target is already normalized.
func Detect(raw string) (Target, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Target{}, false
	}

	if t, ok := detectURL(s); ok {
		return Normalize(t), true
	}
	if ok := validEmail(s); ok {
		return Normalize(Target{Kind: KindEmail, Value: s}), true
	}
	if sha256Re.MatchString(s) {
		return Normalize(Target{Kind: KindFileHash, Value: s}), true
	}
	return Target{}, false
}

func detectURL(s string) (Target, bool) {
	if len(s) > maxURLLen {
		return Target{}, false
	}

	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		// explicit scheme
	case strings.HasPrefix(lower, "www."):
		s = "https://" + s
	default:
		return Target{}, false
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return Target{}, false
	}
	if !strings.Contains(u.Host, ".") && !strings.Contains(u.Host, ":") {
		return Target{}, false
	}
	return Target{Kind: KindURL, Value: s}, true
}

func validEmail(s string) bool {
	if len(s) > maxEmailLen {
		return false
	}
	if !emailRe.MatchString(s) {
		return false
	}
	local, domain, _ := strings.Cut(s, "@")
	for _, part := range []string{local, domain} {
		if strings.HasPrefix(part, ".") || strings.HasSuffix(part, ".") || strings.Contains(part, "..") {
			return false
		}
	}
	return true
}

// Normalize canonicalizes a target value. It is idempotent:
// Normalize(Normalize(t)) == Normalize(t).
//
//   - URL: lowercase scheme and host, strip default port (80/443),
//     strip fragment, add a trailing slash when the path is absent.
//     Path and query keep their original case.
//   - Email: trimmed and lowercased.
//   - FileHash: trimmed and uppercased.
func Normalize(t Target) Target {
	switch t.Kind {
	case KindURL:
		return Target{Kind: KindURL, Value: normalizeURL(t.Value)}
	case KindEmail:
		return Target{Kind: KindEmail, Value: strings.ToLower(strings.TrimSpace(t.Value))}
	case KindFileHash:
		return Target{Kind: KindFileHash, Value: strings.ToUpper(strings.TrimSpace(t.Value))}
	default:
		return t
	}
}

func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		// IPv6 literals keep their brackets.
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" && !isDefaultPort(u.Scheme, port) {
		host = host + ":" + port
	}
	u.Host = host
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}
