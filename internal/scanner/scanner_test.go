package scanner

import (
	"context"
	"time"

	"github.com/safecheck/safecheck/internal/collector"
	"github.com/safecheck/safecheck/internal/ratelimit"
	"github.com/safecheck/safecheck/internal/retry"
	"github.com/safecheck/safecheck/internal/scanerr"
	"github.com/safecheck/safecheck/internal/scoring"
	"go.uber.org/zap"
)

// Function-field stubs so each test overrides only the legs it cares
// about. Unset legs return empty results rather than failing.

type stubDNS struct {
	resolveA     func(domain string) ([]string, error)
	resolveAAAA  func(domain string) ([]string, error)
	resolveMX    func(domain string) ([]collector.MXRecord, error)
	resolveTXT   func(domain string) ([]string, error)
	resolveCNAME func(domain string) (string, error)

	calls int
}

func (s *stubDNS) ResolveA(_ context.Context, domain string) ([]string, error) {
	s.calls++
	if s.resolveA != nil {
		return s.resolveA(domain)
	}
	return []string{"192.0.2.10"}, nil
}

func (s *stubDNS) ResolveAAAA(_ context.Context, domain string) ([]string, error) {
	if s.resolveAAAA != nil {
		return s.resolveAAAA(domain)
	}
	return nil, nil
}

func (s *stubDNS) ResolveMX(_ context.Context, domain string) ([]collector.MXRecord, error) {
	s.calls++
	if s.resolveMX != nil {
		return s.resolveMX(domain)
	}
	return []collector.MXRecord{{Host: "mx1." + domain, Priority: 10}}, nil
}

func (s *stubDNS) ResolveTXT(_ context.Context, domain string) ([]string, error) {
	s.calls++
	if s.resolveTXT != nil {
		return s.resolveTXT(domain)
	}
	return nil, nil
}

func (s *stubDNS) ResolveCNAME(_ context.Context, domain string) (string, error) {
	if s.resolveCNAME != nil {
		return s.resolveCNAME(domain)
	}
	return "", scanerr.New(scanerr.CodeDNSNoRecords, "no cname")
}

func (s *stubDNS) ReverseResolve(_ context.Context, _ string) (string, error) {
	return "", scanerr.New(scanerr.CodeDNSNoRecords, "no ptr")
}

type stubTLS struct {
	report *collector.TLSReport
	err    error
	calls  int
}

func (s *stubTLS) AnalyzeCertificate(_ context.Context, _ string, _ int) (*collector.TLSReport, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.report != nil {
		return s.report, nil
	}
	return cleanTLSReport(), nil
}

func cleanTLSReport() *collector.TLSReport {
	return &collector.TLSReport{
		HasValidCertificate: true,
		Certificate: collector.CertificateInfo{
			Subject: "CN=example.com",
			Issuer:  "CN=Test CA",
			KeySize: 2048,
			ValidTo: time.Now().Add(90 * 24 * time.Hour),
		},
		TLSVersion:  "TLS 1.3",
		CipherSuite: "TLS_AES_128_GCM_SHA256",
	}
}

type stubWhois struct {
	record *collector.WhoisRecord
	err    error
	calls  int
}

func (s *stubWhois) Lookup(_ context.Context, _ string) (*collector.WhoisRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.record != nil {
		return s.record, nil
	}
	return whoisAged(400), nil
}

func whoisAged(days int) *collector.WhoisRecord {
	return &collector.WhoisRecord{
		Registrar:      "Test Registrar",
		RegisteredDate: time.Now().AddDate(0, 0, -days),
		AgeDays:        days,
	}
}

type stubDisposable struct{ domains map[string]bool }

func (s *stubDisposable) IsDisposable(domain string) bool { return s.domains[domain] }

type stubReputation struct {
	report *collector.HashReport
	err    error
	calls  int
}

func (s *stubReputation) LookupHash(_ context.Context, _ string) (*collector.HashReport, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.report != nil {
		return s.report, nil
	}
	return &collector.HashReport{Verdict: collector.VerdictUnknown}, nil
}

// testDeps wires permissive stubs: generous rate limit, single-attempt
// retry so failure paths resolve without backoff sleeps.
func testDeps(dns *stubDNS, tls *stubTLS, whois *stubWhois, disp *stubDisposable, rep *stubReputation) *Deps {
	if dns == nil {
		dns = &stubDNS{}
	}
	if tls == nil {
		tls = &stubTLS{}
	}
	if whois == nil {
		whois = &stubWhois{}
	}
	if disp == nil {
		disp = &stubDisposable{}
	}
	if rep == nil {
		rep = &stubReputation{}
	}
	policy := retry.NewPolicy()
	policy.MaxAttempts = 1
	return &Deps{
		DNS:        dns,
		TLS:        tls,
		Whois:      whois,
		Disposable: disp,
		Reputation: rep,
		Limiter:    ratelimit.New(1000, time.Second),
		Retry:      policy,
		Weights:    scoring.DefaultWeights(),
		Logger:     zap.NewNop(),
	}
}

func reasonCodes(r *scoring.ScanResult) []string {
	codes := make([]string, len(r.Reasons))
	for i, reason := range r.Reasons {
		codes[i] = reason.Code
	}
	return codes
}

func hasReason(r *scoring.ScanResult, code string) bool {
	for _, reason := range r.Reasons {
		if reason.Code == code {
			return true
		}
	}
	return false
}
