// Package collector defines the capability interfaces for the external
// signal sources consulted during a scan — DNS, TLS, WHOIS, disposable
// email detection, and hash reputation — together with their result
// contracts. Implementations return coded errors from package scanerr;
// they never panic across the interface boundary.
package collector

import (
	"context"
	"time"
)

// DefaultTimeout bounds every network-bound collector call.
const DefaultTimeout = 10 * time.Second

// MXRecord is one mail exchanger entry.
type MXRecord struct {
	Host     string
	Priority uint16
}

// DNSResolver resolves the record types the scan pipelines consult.
type DNSResolver interface {
	ResolveA(ctx context.Context, domain string) ([]string, error)
	ResolveAAAA(ctx context.Context, domain string) ([]string, error)
	ResolveMX(ctx context.Context, domain string) ([]MXRecord, error)
	ResolveTXT(ctx context.Context, domain string) ([]string, error)
	ResolveCNAME(ctx context.Context, domain string) (string, error)
	ReverseResolve(ctx context.Context, ip string) (string, error)
}

// CertificateInfo describes the leaf certificate presented by a host.
type CertificateInfo struct {
	Subject      string
	Issuer       string
	SerialNumber string
	Algorithm    string
	KeySize      int
	ValidFrom    time.Time
	ValidTo      time.Time
	Fingerprint  string
	SANs         []string
	IsSelfSigned bool
	IsWildcard   bool
}

// SecurityIssue is one problem found during TLS analysis.
type SecurityIssue struct {
	Type        string
	Severity    string // "low", "medium", "high", "critical"
	Description string
}

// TLSReport is the outcome of a certificate analysis.
type TLSReport struct {
	HasValidCertificate bool
	Certificate         CertificateInfo
	TLSVersion          string
	CipherSuite         string
	SecurityIssues      []SecurityIssue
	ConnectionTime      time.Duration
}

// TLSAnalyzer inspects the TLS posture of a host.
type TLSAnalyzer interface {
	AnalyzeCertificate(ctx context.Context, hostname string, port int) (*TLSReport, error)
}

// WhoisRecord is the parsed registration data for a domain.
type WhoisRecord struct {
	Registrar          string
	RegisteredDate     time.Time
	ExpiryDate         time.Time
	NameServers        []string
	Status             []string
	IsPrivacyProtected bool
	AgeDays            int
}

// WhoisClient looks up domain registration data.
type WhoisClient interface {
	Lookup(ctx context.Context, domain string) (*WhoisRecord, error)
}

// DisposableChecker reports whether an email domain belongs to a
// throwaway-address provider.
type DisposableChecker interface {
	IsDisposable(domain string) bool
}

// HashVerdict classifies a file hash against threat intelligence.
type HashVerdict string

const (
	VerdictMalicious HashVerdict = "malicious"
	VerdictBenign    HashVerdict = "benign"
	VerdictUnknown   HashVerdict = "unknown"
)

// HashReport is the reputation outcome for one file hash.
type HashReport struct {
	Verdict     HashVerdict
	Sources     int // number of intel sources agreeing with the verdict
	FirstSeen   time.Time
	LastSeen    time.Time
	ThreatLabel string // e.g. malware family, empty when not malicious
}

// ReputationSource answers hash reputation queries against a
// threat-intelligence feed.
type ReputationSource interface {
	LookupHash(ctx context.Context, sha256 string) (*HashReport, error)
}
