package collector

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/safecheck/safecheck/internal/scanerr"
	"go.uber.org/zap"
)

// DefaultDNSServer is used when no upstream resolver is configured.
const DefaultDNSServer = "1.1.1.1:53"

// MiekgResolver is the production DNSResolver backed by miekg/dns.
// Every query runs against a single configured upstream with an
// explicit timeout; a deadline expiry maps to a retryable TIMEOUT.
type MiekgResolver struct {
	client *dns.Client
	server string
	logger *zap.Logger
}

// NewMiekgResolver creates a resolver querying server ("host:port").
// An empty server falls back to DefaultDNSServer.
func NewMiekgResolver(server string, timeout time.Duration, logger *zap.Logger) *MiekgResolver {
	if server == "" {
		server = DefaultDNSServer
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &MiekgResolver{
		client: &dns.Client{Timeout: timeout},
		server: server,
		logger: logger,
	}
}

func (r *MiekgResolver) query(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.RecursionDesired = true

	resp, rtt, err := r.client.ExchangeContext(ctx, m, r.server)
	if err != nil {
		if isTimeout(err) {
			return nil, scanerr.Wrap(scanerr.CodeTimeout, "dns query timed out", err).
				WithDetail("domain", name)
		}
		return nil, scanerr.Wrap(scanerr.CodeDNSLookupFailed, "dns query failed", err).
			WithDetail("domain", name)
	}

	r.logger.Debug("dns query",
		zap.String("domain", name),
		zap.Uint16("qtype", qtype),
		zap.Duration("rtt", rtt),
		zap.Int("rcode", resp.Rcode),
	)

	switch resp.Rcode {
	case dns.RcodeSuccess:
		return resp, nil
	case dns.RcodeNameError:
		return nil, scanerr.Newf(scanerr.CodeDNSNoRecords, "domain %s does not exist", name).
			WithDetail("domain", name)
	case dns.RcodeServerFailure:
		return nil, scanerr.Newf(scanerr.CodeServiceUnavailable, "upstream resolver SERVFAIL for %s", name).
			WithDetail("domain", name)
	default:
		return nil, scanerr.Newf(scanerr.CodeDNSLookupFailed, "dns rcode %s for %s", dns.RcodeToString[resp.Rcode], name).
			WithDetail("domain", name)
	}
}

func isTimeout(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// ResolveA implements DNSResolver.
func (r *MiekgResolver) ResolveA(ctx context.Context, domain string) ([]string, error) {
	resp, err := r.query(ctx, domain, dns.TypeA)
	if err != nil {
		return nil, err
	}
	var ips []string
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			ips = append(ips, a.A.String())
		}
	}
	return ips, nil
}

// ResolveAAAA implements DNSResolver.
func (r *MiekgResolver) ResolveAAAA(ctx context.Context, domain string) ([]string, error) {
	resp, err := r.query(ctx, domain, dns.TypeAAAA)
	if err != nil {
		return nil, err
	}
	var ips []string
	for _, rr := range resp.Answer {
		if aaaa, ok := rr.(*dns.AAAA); ok {
			ips = append(ips, aaaa.AAAA.String())
		}
	}
	return ips, nil
}

// ResolveMX implements DNSResolver. Records are returned in answer order.
func (r *MiekgResolver) ResolveMX(ctx context.Context, domain string) ([]MXRecord, error) {
	resp, err := r.query(ctx, domain, dns.TypeMX)
	if err != nil {
		return nil, err
	}
	var mxs []MXRecord
	for _, rr := range resp.Answer {
		if mx, ok := rr.(*dns.MX); ok {
			mxs = append(mxs, MXRecord{
				Host:     strings.TrimSuffix(mx.Mx, "."),
				Priority: mx.Preference,
			})
		}
	}
	return mxs, nil
}

// ResolveTXT implements DNSResolver. Multi-string records are joined.
func (r *MiekgResolver) ResolveTXT(ctx context.Context, domain string) ([]string, error) {
	resp, err := r.query(ctx, domain, dns.TypeTXT)
	if err != nil {
		return nil, err
	}
	var txts []string
	for _, rr := range resp.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			txts = append(txts, strings.Join(txt.Txt, ""))
		}
	}
	return txts, nil
}

// ResolveCNAME implements DNSResolver. Returns "" when the name has no CNAME.
func (r *MiekgResolver) ResolveCNAME(ctx context.Context, domain string) (string, error) {
	resp, err := r.query(ctx, domain, dns.TypeCNAME)
	if err != nil {
		return "", err
	}
	for _, rr := range resp.Answer {
		if cname, ok := rr.(*dns.CNAME); ok {
			return strings.TrimSuffix(cname.Target, "."), nil
		}
	}
	return "", nil
}

// ReverseResolve implements DNSResolver via a PTR query.
func (r *MiekgResolver) ReverseResolve(ctx context.Context, ip string) (string, error) {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return "", scanerr.Wrap(scanerr.CodeInvalidInput, "invalid ip address", err)
	}
	resp, err := r.query(ctx, strings.TrimSuffix(arpa, "."), dns.TypePTR)
	if err != nil {
		return "", err
	}
	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}
	return "", nil
}
