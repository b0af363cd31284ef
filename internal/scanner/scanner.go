// Package scanner implements the per-target-kind analysis pipelines.
// Each pipeline fans out to its signal collectors, wraps every upstream
// call in the shared rate limiter and retry policy, and folds the
// gathered signals into a ScanResult through the scoring package.
//
// Collector failures degrade gracefully: a failed lookup becomes an
// inconclusive (delta 0) reason plus a metadata note. Only mandatory
// gates — email syntax, hash format — abort a pipeline early.
package scanner

import (
	"context"
	"time"

	"github.com/safecheck/safecheck/internal/collector"
	"github.com/safecheck/safecheck/internal/metrics"
	"github.com/safecheck/safecheck/internal/ratelimit"
	"github.com/safecheck/safecheck/internal/retry"
	"github.com/safecheck/safecheck/internal/scanerr"
	"github.com/safecheck/safecheck/internal/scoring"
	"github.com/safecheck/safecheck/internal/target"
	"go.uber.org/zap"
)

// Reason codes emitted by the pipelines. Stable; persisted with results.
const (
	ReasonNoHTTPS           = "NO_HTTPS"
	ReasonNoDNSRecords      = "NO_DNS_RECORDS"
	ReasonDNSInconclusive   = "DNS_INCONCLUSIVE"
	ReasonCertExpired       = "CERT_EXPIRED"
	ReasonCertSelfSigned    = "CERT_SELF_SIGNED"
	ReasonCertWeakKey       = "CERT_WEAK_KEY"
	ReasonWeakTLS           = "WEAK_TLS"
	ReasonTLSInconclusive   = "TLS_INCONCLUSIVE"
	ReasonDomainVeryNew     = "DOMAIN_VERY_NEW"
	ReasonDomainNew         = "DOMAIN_NEW"
	ReasonDomainEstablished = "DOMAIN_ESTABLISHED"
	ReasonWhoisInconclusive = "WHOIS_INCONCLUSIVE"
	ReasonInvalidSyntax     = "INVALID_SYNTAX"
	ReasonDisposableDomain  = "DISPOSABLE_DOMAIN"
	ReasonNoMXRecords       = "NO_MX_RECORDS"
	ReasonMXInconclusive    = "MX_INCONCLUSIVE"
	ReasonSPFMissing        = "SPF_MISSING"
	ReasonSPFStrict         = "SPF_STRICT"
	ReasonDMARCMissing      = "DMARC_MISSING"
	ReasonDMARCReject       = "DMARC_REJECT"
	ReasonDMARCQuarantine   = "DMARC_QUARANTINE"
	ReasonDKIMPresent       = "DKIM_PRESENT"
	ReasonMajorProvider     = "MAJOR_PROVIDER"
	ReasonAuthInconclusive  = "EMAIL_AUTH_INCONCLUSIVE"
	ReasonKnownMalicious    = "KNOWN_MALICIOUS"
	ReasonConfirmedBenign   = "CONFIRMED_BENIGN"
	ReasonUnknownHash       = "UNKNOWN_HASH"
	ReasonRepInconclusive   = "REPUTATION_INCONCLUSIVE"
	ReasonNoRiskSignals     = "NO_RISK_SIGNALS"
)

// Upstream source keys for rate limiting.
const (
	sourceDNS        = "dns"
	sourceTLS        = "tls"
	sourceWhois      = "whois"
	sourceReputation = "reputation"
)

// Info describes a pipeline for diagnostics.
type Info struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

// Scanner is the common pipeline capability. Scan either returns a
// fully-formed ScanResult or a coded error; it never returns both.
type Scanner interface {
	Scan(ctx context.Context, t target.Target) (*scoring.ScanResult, error)
	Info() Info
}

// Deps bundles the collectors and cross-cutting components shared by
// the pipelines. Limiter and Retry guard every upstream call.
type Deps struct {
	DNS        collector.DNSResolver
	TLS        collector.TLSAnalyzer
	Whois      collector.WhoisClient
	Disposable collector.DisposableChecker
	Reputation collector.ReputationSource
	Limiter    *ratelimit.Limiter
	Retry      *retry.Policy
	Weights    scoring.Weights
	Logger     *zap.Logger
}

// guarded runs op under the source's rate-limit bucket and the retry
// policy, recording collector latency. A denied acquire surfaces as a
// retryable RATE_LIMITED error so the retry policy backs off and tries
// again before giving up.
func (d *Deps) guarded(ctx context.Context, source string, op func(context.Context) error) error {
	start := time.Now()
	defer func() {
		metrics.CollectorDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	}()

	return d.Retry.Execute(ctx, func(ctx context.Context) error {
		decision := d.Limiter.TryAcquire(source, 1)
		if !decision.Allowed {
			metrics.RateLimitDenialsTotal.WithLabelValues(source).Inc()
			return scanerr.Newf(scanerr.CodeRateLimited, "source %s throttled, retry after %s", source, decision.RetryAfter).
				WithDetail("source", source)
		}
		return op(ctx)
	})
}

// reasonList accumulates reasons in evaluation order together with the
// metadata notes that explain inconclusive signals.
type reasonList struct {
	reasons []scoring.Reason
	meta    map[string]string
}

func newReasonList() *reasonList {
	return &reasonList{meta: make(map[string]string)}
}

func (l *reasonList) add(code, message string, delta int) {
	l.reasons = append(l.reasons, scoring.MustReason(code, message, delta))
}

// inconclusive records a collector failure as a neutral reason plus a
// metadata note carrying the underlying error code.
func (l *reasonList) inconclusive(code, message string, err error) {
	l.add(code, message, 0)
	l.meta[metaKeyFor(code)] = scanerr.CodeOf(err) + ": " + err.Error()
}

func (l *reasonList) note(key, value string) {
	l.meta[key] = value
}

// ensureNonEmpty appends the neutral baseline reason when a fully clean
// run produced no signals, keeping the non-empty-reasons invariant.
func (l *reasonList) ensureNonEmpty(message string) {
	if len(l.reasons) == 0 {
		l.add(ReasonNoRiskSignals, message, 0)
	}
}

func metaKeyFor(code string) string {
	switch code {
	case ReasonDNSInconclusive:
		return "dns_error"
	case ReasonTLSInconclusive:
		return "tls_error"
	case ReasonWhoisInconclusive:
		return "whois_error"
	case ReasonMXInconclusive:
		return "mx_error"
	case ReasonAuthInconclusive:
		return "email_auth_error"
	case ReasonRepInconclusive:
		return "reputation_error"
	default:
		return "note"
	}
}
