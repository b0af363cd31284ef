package scanner

import (
	"context"
	"strconv"
	"strings"

	"github.com/safecheck/safecheck/internal/collector"
	"github.com/safecheck/safecheck/internal/emailauth"
	"github.com/safecheck/safecheck/internal/scanerr"
	"github.com/safecheck/safecheck/internal/scoring"
	"github.com/safecheck/safecheck/internal/target"
	"go.uber.org/zap"
)

// EmailScanner analyzes email targets. Syntax is a mandatory gate:
// structurally invalid addresses short-circuit with a RISK-forcing
// reason and no network collectors are called for them.
type EmailScanner struct {
	deps *Deps
}

// NewEmailScanner creates the email pipeline.
func NewEmailScanner(deps *Deps) *EmailScanner {
	return &EmailScanner{deps: deps}
}

// Info implements Scanner.
func (s *EmailScanner) Info() Info {
	return Info{
		Name:         "email-scanner",
		Version:      "1.0.0",
		Capabilities: []string{"syntax", "disposable", "mx", "spf", "dmarc", "dkim", "provider-reputation"},
	}
}

// authSignal joins the SPF/DMARC/DKIM leg.
type authSignal struct {
	spf   *emailauth.SPFPolicy
	dmarc *emailauth.DMARCPolicy
	dkim  emailauth.DKIMResult
	err   error
}

type mxSignal struct {
	records []collector.MXRecord
	err     error
}

// Scan implements Scanner.
func (s *EmailScanner) Scan(ctx context.Context, t target.Target) (*scoring.ScanResult, error) {
	t = target.Normalize(t)
	if t.Kind != target.KindEmail {
		return nil, scanerr.Newf(scanerr.CodeInvalidInput, "email scanner received %s target", t.Kind)
	}

	list := newReasonList()
	w := s.deps.Weights

	// Mandatory syntax gate. Detect already validated the address, but
	// the pipeline guards its own input so a directly-constructed
	// target cannot trigger expensive lookups.
	local, domain, ok := strings.Cut(t.Value, "@")
	if !ok || local == "" || domain == "" || !strings.Contains(domain, ".") {
		list.add(ReasonInvalidSyntax, "address is not structurally valid", -100)
		return scoring.NewScanResult(t, list.reasons, list.meta)
	}

	// 1. disposable domain (local set, no network)
	disposable := s.deps.Disposable.IsDisposable(domain)

	// 2+3. MX and auth records fan out concurrently.
	mxCh := make(chan mxSignal, 1)
	authCh := make(chan authSignal, 1)

	go func() {
		var sig mxSignal
		sig.err = s.deps.guarded(ctx, sourceDNS, func(ctx context.Context) error {
			records, err := s.deps.DNS.ResolveMX(ctx, domain)
			if err != nil {
				return err
			}
			sig.records = records
			return nil
		})
		mxCh <- sig
	}()

	go func() {
		var sig authSignal
		sig.err = s.deps.guarded(ctx, sourceDNS, func(ctx context.Context) error {
			txts, err := s.deps.DNS.ResolveTXT(ctx, domain)
			if err != nil {
				return err
			}
			sig.spf = emailauth.FindSPF(txts)

			if dmarcTxts, err := s.deps.DNS.ResolveTXT(ctx, "_dmarc."+domain); err == nil {
				sig.dmarc = emailauth.FindDMARC(dmarcTxts)
			}
			sig.dkim = emailauth.CheckDKIM(ctx, s.deps.DNS, domain)
			return nil
		})
		authCh <- sig
	}()

	mx := <-mxCh
	auth := <-authCh

	if disposable {
		list.add(ReasonDisposableDomain, "domain belongs to a disposable email provider", w.DisposableDomain)
	}

	switch {
	case mx.err != nil:
		list.inconclusive(ReasonMXInconclusive, "MX records could not be resolved", mx.err)
	case len(mx.records) == 0:
		list.add(ReasonNoMXRecords, "domain publishes no MX records", w.NoMXRecords)
	default:
		list.note("mx_count", strconv.Itoa(len(mx.records)))
		list.note("mx_primary", mx.records[0].Host)
	}

	s.scoreAuth(list, auth)

	if collector.IsMajorProvider(domain) {
		list.add(ReasonMajorProvider, "well-known major mail provider", w.MajorProvider)
	}

	list.ensureNonEmpty("no risk signals found for this address")

	result, err := scoring.NewScanResult(t, list.reasons, list.meta)
	if err != nil {
		return nil, err
	}

	s.deps.Logger.Info("email scan complete",
		zap.String("domain", domain),
		zap.Int("score", result.Score),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

func (s *EmailScanner) scoreAuth(list *reasonList, sig authSignal) {
	if sig.err != nil {
		list.inconclusive(ReasonAuthInconclusive, "email authentication records could not be resolved", sig.err)
		return
	}
	w := s.deps.Weights

	if sig.spf == nil {
		list.add(ReasonSPFMissing, "domain publishes no SPF record", w.SPFMissing)
	} else {
		list.note("spf_strictness", sig.spf.Strictness.String())
		if sig.spf.Strictness == emailauth.StrictnessStrict {
			list.add(ReasonSPFStrict, "SPF hard-fails unauthorized senders", w.SPFStrict)
		}
	}

	if sig.dmarc == nil {
		list.add(ReasonDMARCMissing, "domain publishes no DMARC record", w.DMARCMissing)
	} else {
		list.note("dmarc_policy", sig.dmarc.Policy)
		switch sig.dmarc.Policy {
		case "reject":
			list.add(ReasonDMARCReject, "DMARC reject policy in force", w.DMARCReject)
		case "quarantine":
			list.add(ReasonDMARCQuarantine, "DMARC quarantine policy in force", w.DMARCQuarantine)
		}
	}

	if sig.dkim.Found {
		list.note("dkim_selectors", strings.Join(sig.dkim.Selectors, ","))
		list.add(ReasonDKIMPresent, "DKIM keys published", w.DKIMPresent)
	}
}
