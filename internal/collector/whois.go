package collector

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/safecheck/safecheck/internal/scanerr"
	"go.uber.org/zap"
)

// ianaWhois is the root WHOIS server used to find the TLD registry.
const ianaWhois = "whois.iana.org:43"

// PortWhoisClient is the production WhoisClient speaking the port-43
// text protocol. It queries IANA for the authoritative server of the
// domain's TLD, follows one referral, and parses the free-form reply
// into a WhoisRecord.
type PortWhoisClient struct {
	timeout time.Duration
	logger  *zap.Logger

	// dial is swapped in tests to avoid real sockets.
	dial func(ctx context.Context, addr string) (net.Conn, error)
}

// NewPortWhoisClient creates a WHOIS client with the given per-query
// timeout (DefaultTimeout when zero).
func NewPortWhoisClient(timeout time.Duration, logger *zap.Logger) *PortWhoisClient {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	c := &PortWhoisClient{timeout: timeout, logger: logger}
	c.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: c.timeout}
		return d.DialContext(ctx, "tcp", addr)
	}
	return c
}

// Lookup implements WhoisClient.
func (c *PortWhoisClient) Lookup(ctx context.Context, domain string) (*WhoisRecord, error) {
	server, err := c.referralServer(ctx, domain)
	if err != nil {
		return nil, err
	}

	raw, err := c.queryServer(ctx, server, domain)
	if err != nil {
		return nil, err
	}

	// Registries often refer to the registrar's own server, which holds
	// the registration dates. Follow a single referral at most.
	if referral := parseField(raw, "registrar whois server"); referral != "" && !strings.EqualFold(referral, strings.TrimSuffix(server, ":43")) {
		if deeper, err := c.queryServer(ctx, referral+":43", domain); err == nil && deeper != "" {
			raw = deeper
		}
	}

	rec := parseWhois(raw)
	if rec.RegisteredDate.IsZero() && rec.Registrar == "" {
		return nil, scanerr.Newf(scanerr.CodeWhoisLookupFailed, "no registration data for %s", domain).
			WithDetail("domain", domain)
	}

	c.logger.Debug("whois lookup",
		zap.String("domain", domain),
		zap.String("registrar", rec.Registrar),
		zap.Int("age_days", rec.AgeDays),
	)
	return rec, nil
}

func (c *PortWhoisClient) referralServer(ctx context.Context, domain string) (string, error) {
	raw, err := c.queryServer(ctx, ianaWhois, domain)
	if err != nil {
		return "", err
	}
	if server := parseField(raw, "refer"); server != "" {
		return server + ":43", nil
	}
	return "", scanerr.Newf(scanerr.CodeWhoisLookupFailed, "no whois server known for %s", domain).
		WithDetail("domain", domain)
}

func (c *PortWhoisClient) queryServer(ctx context.Context, addr, domain string) (string, error) {
	conn, err := c.dial(ctx, addr)
	if err != nil {
		if isTimeout(err) {
			return "", scanerr.Wrap(scanerr.CodeTimeout, "whois connect timed out", err).
				WithDetail("server", addr)
		}
		return "", scanerr.Wrap(scanerr.CodeNetworkError, "whois connect failed", err).
			WithDetail("server", addr)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := fmt.Fprintf(conn, "%s\r\n", domain); err != nil {
		return "", scanerr.Wrap(scanerr.CodeNetworkError, "whois write failed", err).
			WithDetail("server", addr)
	}

	data, err := io.ReadAll(io.LimitReader(conn, 64*1024))
	if err != nil {
		if isTimeout(err) {
			return "", scanerr.Wrap(scanerr.CodeTimeout, "whois read timed out", err).
				WithDetail("server", addr)
		}
		return "", scanerr.Wrap(scanerr.CodeNetworkError, "whois read failed", err).
			WithDetail("server", addr)
	}
	return string(data), nil
}

// whoisDateLayouts covers the date formats seen across registries.
var whoisDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
}

func parseWhois(raw string) *WhoisRecord {
	rec := &WhoisRecord{}
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		switch key {
		case "registrar":
			if rec.Registrar == "" {
				rec.Registrar = value
			}
		case "creation date", "created", "registered on", "registration time":
			if rec.RegisteredDate.IsZero() {
				rec.RegisteredDate = parseWhoisDate(value)
			}
		case "registry expiry date", "expiry date", "expiration date", "expires":
			if rec.ExpiryDate.IsZero() {
				rec.ExpiryDate = parseWhoisDate(value)
			}
		case "name server", "nserver":
			rec.NameServers = append(rec.NameServers, strings.ToLower(strings.Fields(value)[0]))
		case "domain status", "status":
			rec.Status = append(rec.Status, strings.Fields(value)[0])
		}
	}

	lower := strings.ToLower(raw)
	rec.IsPrivacyProtected = strings.Contains(lower, "privacy") ||
		strings.Contains(lower, "redacted for privacy") ||
		strings.Contains(lower, "whoisguard")

	if !rec.RegisteredDate.IsZero() {
		rec.AgeDays = int(time.Since(rec.RegisteredDate).Hours() / 24)
	}
	return rec
}

func parseWhoisDate(s string) time.Time {
	// Some registries append a timezone suffix after the timestamp.
	s = strings.TrimSpace(s)
	for _, layout := range whoisDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
		if len(s) > len(layout) {
			if t, err := time.Parse(layout, s[:len(layout)]); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func parseField(raw, field string) string {
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(key), field) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
