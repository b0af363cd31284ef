package scanner

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/safecheck/safecheck/internal/collector"
	"github.com/safecheck/safecheck/internal/scanerr"
	"github.com/safecheck/safecheck/internal/scoring"
	"github.com/safecheck/safecheck/internal/target"
	"go.uber.org/zap"
)

// URLScanner analyzes URL targets: DNS resolution, TLS certificate
// posture, and WHOIS domain age, gathered concurrently and scored in a
// fixed evaluation order (scheme, DNS, TLS, WHOIS).
type URLScanner struct {
	deps *Deps
}

// NewURLScanner creates the URL pipeline.
func NewURLScanner(deps *Deps) *URLScanner {
	return &URLScanner{deps: deps}
}

// Info implements Scanner.
func (s *URLScanner) Info() Info {
	return Info{
		Name:         "url-scanner",
		Version:      "1.0.0",
		Capabilities: []string{"dns", "tls", "whois"},
	}
}

// dnsSignal is the joined outcome of the DNS fan-out leg.
type dnsSignal struct {
	ips   []string
	cname string
	mx    []collector.MXRecord
	err   error
}

type tlsSignal struct {
	report *collector.TLSReport
	err    error
}

type whoisSignal struct {
	record *collector.WhoisRecord
	err    error
}

// Scan implements Scanner.
func (s *URLScanner) Scan(ctx context.Context, t target.Target) (*scoring.ScanResult, error) {
	t = target.Normalize(t)
	if t.Kind != target.KindURL {
		return nil, scanerr.Newf(scanerr.CodeInvalidInput, "url scanner received %s target", t.Kind)
	}

	u, err := url.Parse(t.Value)
	if err != nil || u.Hostname() == "" {
		return nil, scanerr.New(scanerr.CodeInvalidInput, "target is not a parseable url").
			WithDetail("target", t.Value)
	}
	host := u.Hostname()
	isHTTPS := u.Scheme == "https"

	// Independent lookups run concurrently and are joined before any
	// reason is recorded, so reason order stays deterministic.
	dnsCh := make(chan dnsSignal, 1)
	tlsCh := make(chan tlsSignal, 1)
	whoisCh := make(chan whoisSignal, 1)

	go func() {
		var sig dnsSignal
		sig.err = s.deps.guarded(ctx, sourceDNS, func(ctx context.Context) error {
			ips, err := s.deps.DNS.ResolveA(ctx, host)
			if err != nil {
				return err
			}
			sig.ips = ips
			if v6, err := s.deps.DNS.ResolveAAAA(ctx, host); err == nil {
				sig.ips = append(sig.ips, v6...)
			}
			if cname, err := s.deps.DNS.ResolveCNAME(ctx, host); err == nil {
				sig.cname = cname
			}
			if mx, err := s.deps.DNS.ResolveMX(ctx, registrableDomain(host)); err == nil {
				sig.mx = mx
			}
			return nil
		})
		dnsCh <- sig
	}()

	go func() {
		var sig tlsSignal
		if !isHTTPS {
			tlsCh <- sig // no TLS leg for plain-http targets
			return
		}
		port := 443
		if p := u.Port(); p != "" {
			port, _ = strconv.Atoi(p)
		}
		sig.err = s.deps.guarded(ctx, sourceTLS, func(ctx context.Context) error {
			report, err := s.deps.TLS.AnalyzeCertificate(ctx, host, port)
			if err != nil {
				return err
			}
			sig.report = report
			return nil
		})
		tlsCh <- sig
	}()

	go func() {
		var sig whoisSignal
		sig.err = s.deps.guarded(ctx, sourceWhois, func(ctx context.Context) error {
			rec, err := s.deps.Whois.Lookup(ctx, registrableDomain(host))
			if err != nil {
				return err
			}
			sig.record = rec
			return nil
		})
		whoisCh <- sig
	}()

	dns := <-dnsCh
	tlsSig := <-tlsCh
	whois := <-whoisCh

	w := s.deps.Weights
	list := newReasonList()

	// 1. transport scheme
	if !isHTTPS {
		list.add(ReasonNoHTTPS, "site does not use HTTPS", w.NoHTTPS)
	}

	// 2. DNS
	switch {
	case dns.err != nil:
		list.inconclusive(ReasonDNSInconclusive, "DNS lookup could not be completed", dns.err)
	case len(dns.ips) == 0:
		list.add(ReasonNoDNSRecords, "domain has no A or AAAA records", w.NoDNSRecords)
	default:
		list.note("resolved_ips", strings.Join(dns.ips, ","))
		if dns.cname != "" {
			list.note("cname", dns.cname)
		}
		// MX presence is informational for a URL, not a scored signal.
		list.note("mx_count", strconv.Itoa(len(dns.mx)))
	}

	// 3. TLS
	s.scoreTLS(list, tlsSig, isHTTPS)

	// 4. WHOIS age
	s.scoreWhois(list, whois)

	list.ensureNonEmpty("no risk signals found for this URL")

	result, err := scoring.NewScanResult(t, list.reasons, list.meta)
	if err != nil {
		return nil, err
	}

	s.deps.Logger.Info("url scan complete",
		zap.String("host", host),
		zap.Int("score", result.Score),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

func (s *URLScanner) scoreTLS(list *reasonList, sig tlsSignal, isHTTPS bool) {
	if !isHTTPS {
		return // NO_HTTPS already covers the missing transport security
	}
	if sig.err != nil {
		list.inconclusive(ReasonTLSInconclusive, "TLS certificate could not be analyzed", sig.err)
		return
	}
	report := sig.report

	w := s.deps.Weights
	for _, issue := range report.SecurityIssues {
		switch issue.Type {
		case "expired_certificate":
			list.add(ReasonCertExpired, "certificate is expired", w.ExpiredCert)
		case "self_signed":
			list.add(ReasonCertSelfSigned, "certificate is self-signed", w.SelfSignedCert)
		case "weak_protocol", "weak_signature":
			list.add(ReasonWeakTLS, issue.Description, w.WeakTLS)
		case "weak_key":
			list.add(ReasonCertWeakKey, issue.Description, w.ShortKey)
		}
	}
	list.note("tls_version", report.TLSVersion)
	list.note("cipher_suite", report.CipherSuite)
	list.note("cert_valid", strconv.FormatBool(report.HasValidCertificate))
	list.note("cert_expiry", report.Certificate.ValidTo.Format("2006-01-02"))
}

func (s *URLScanner) scoreWhois(list *reasonList, sig whoisSignal) {
	if sig.err != nil {
		list.inconclusive(ReasonWhoisInconclusive, "WHOIS record could not be retrieved", sig.err)
		return
	}
	rec := sig.record
	list.note("domain_age_days", strconv.Itoa(rec.AgeDays))
	if rec.Registrar != "" {
		list.note("registrar", rec.Registrar)
	}

	w := s.deps.Weights
	switch {
	case rec.RegisteredDate.IsZero():
		list.add(ReasonWhoisInconclusive, "registration date not published", 0)
	case rec.AgeDays < 7:
		list.add(ReasonDomainVeryNew, fmt.Sprintf("domain registered %d days ago", rec.AgeDays), w.DomainVeryNew)
	case rec.AgeDays < 30:
		list.add(ReasonDomainNew, fmt.Sprintf("domain registered %d days ago", rec.AgeDays), w.DomainNew)
	case rec.AgeDays > 365:
		list.add(ReasonDomainEstablished, fmt.Sprintf("long-established domain (%d days)", rec.AgeDays), w.DomainEstablished)
	}
}

// registrableDomain trims the hostname down to its registrable suffix
// pair, a pragmatic cut that covers the common gTLD case. Multi-label
// public suffixes (co.uk) keep three labels.
func registrableDomain(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	tld := labels[len(labels)-1]
	second := labels[len(labels)-2]
	if len(second) <= 3 && (tld == "uk" || tld == "au" || tld == "nz" || tld == "jp" || tld == "br" || tld == "in") {
		if len(labels) >= 3 {
			return strings.Join(labels[len(labels)-3:], ".")
		}
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
