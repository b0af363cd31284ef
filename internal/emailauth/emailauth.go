// Package emailauth parses the DNS-published email authentication
// records — SPF, DMARC, and DKIM — into structured policy analyses the
// email pipeline can score. Parsing is pure; only DKIM selector probing
// touches the resolver.
package emailauth

import (
	"context"
	"strconv"
	"strings"

	"github.com/safecheck/safecheck/internal/collector"
)

// Strictness grades how firmly a policy rejects unauthorized mail.
type Strictness int

const (
	StrictnessNone Strictness = iota
	StrictnessLenient
	StrictnessModerate
	StrictnessStrict
)

func (s Strictness) String() string {
	switch s {
	case StrictnessStrict:
		return "strict"
	case StrictnessModerate:
		return "moderate"
	case StrictnessLenient:
		return "lenient"
	default:
		return "none"
	}
}

// SPFMechanism is one mechanism term in an SPF record with its qualifier.
type SPFMechanism struct {
	Qualifier string // "+", "-", "~", "?"
	Mechanism string // "all", "ip4", "include", "mx", ...
	Value     string // argument after ":", if any
}

// SPFPolicy is the parsed form of a v=spf1 record.
type SPFPolicy struct {
	Raw        string
	Mechanisms []SPFMechanism
	// AllQualifier is the qualifier on the trailing "all" mechanism,
	// empty when the record carries none.
	AllQualifier string
	Strictness   Strictness
}

// FindSPF scans TXT record strings for the domain's SPF record.
// Returns nil when none is published.
func FindSPF(txts []string) *SPFPolicy {
	for _, txt := range txts {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(txt)), "v=spf1") {
			return ParseSPF(txt)
		}
	}
	return nil
}

// ParseSPF parses a single v=spf1 record.
func ParseSPF(record string) *SPFPolicy {
	p := &SPFPolicy{Raw: record}

	for _, term := range strings.Fields(record)[1:] {
		if strings.Contains(term, "=") {
			continue // modifier (redirect=, exp=), not a mechanism
		}
		qualifier := "+"
		switch term[0] {
		case '+', '-', '~', '?':
			qualifier = string(term[0])
			term = term[1:]
		}
		mech, value, _ := strings.Cut(term, ":")
		p.Mechanisms = append(p.Mechanisms, SPFMechanism{
			Qualifier: qualifier,
			Mechanism: strings.ToLower(mech),
			Value:     value,
		})
		if strings.EqualFold(mech, "all") {
			p.AllQualifier = qualifier
		}
	}

	switch p.AllQualifier {
	case "-":
		p.Strictness = StrictnessStrict
	case "~":
		p.Strictness = StrictnessModerate
	case "?":
		p.Strictness = StrictnessLenient
	default:
		p.Strictness = StrictnessNone
	}
	return p
}

// DMARCPolicy is the parsed form of a _dmarc TXT record.
type DMARCPolicy struct {
	Raw             string
	Policy          string // "none", "quarantine", "reject"
	SubdomainPolicy string // sp= value, falls back to Policy
	Percent         int    // pct= value, default 100
	DKIMAlignment   string // adkim=: "r" relaxed (default) or "s" strict
	SPFAlignment    string // aspf=: "r" relaxed (default) or "s" strict
	Strictness      Strictness
}

// FindDMARC scans the TXT records published at _dmarc.<domain> for a
// DMARC record. Returns nil when none is published.
func FindDMARC(txts []string) *DMARCPolicy {
	for _, txt := range txts {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(txt)), "v=dmarc1") {
			return ParseDMARC(txt)
		}
	}
	return nil
}

// ParseDMARC parses a single v=DMARC1 record.
func ParseDMARC(record string) *DMARCPolicy {
	p := &DMARCPolicy{
		Raw:           record,
		Percent:       100,
		DKIMAlignment: "r",
		SPFAlignment:  "r",
	}

	for _, tag := range strings.Split(record, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(tag), "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "p":
			p.Policy = strings.ToLower(value)
		case "sp":
			p.SubdomainPolicy = strings.ToLower(value)
		case "pct":
			if n, err := strconv.Atoi(value); err == nil {
				p.Percent = n
			}
		case "adkim":
			p.DKIMAlignment = strings.ToLower(value)
		case "aspf":
			p.SPFAlignment = strings.ToLower(value)
		}
	}
	if p.SubdomainPolicy == "" {
		p.SubdomainPolicy = p.Policy
	}

	switch {
	case p.Policy == "reject" && p.Percent >= 100:
		p.Strictness = StrictnessStrict
	case p.Policy == "reject" || p.Policy == "quarantine":
		p.Strictness = StrictnessModerate
	case p.Policy == "none":
		p.Strictness = StrictnessLenient
	default:
		p.Strictness = StrictnessNone
	}
	return p
}

// commonDKIMSelectors are the selector names probed by CheckDKIM.
// Most hosted providers publish under one of these.
var commonDKIMSelectors = []string{
	"default", "google", "selector1", "selector2", "k1", "s1", "s2",
	"dkim", "mail", "smtp", "mandrill", "pm", "zmail",
}

// DKIMResult reports which selectors published DKIM keys for a domain.
type DKIMResult struct {
	Selectors []string
	Found     bool
}

// CheckDKIM probes the common selector names under
// <selector>._domainkey.<domain>. An unpublished selector is not an
// error; resolver failures for individual selectors are skipped.
func CheckDKIM(ctx context.Context, resolver collector.DNSResolver, domain string) DKIMResult {
	var res DKIMResult
	for _, sel := range commonDKIMSelectors {
		txts, err := resolver.ResolveTXT(ctx, sel+"._domainkey."+domain)
		if err != nil {
			continue
		}
		for _, txt := range txts {
			if strings.Contains(strings.ToLower(txt), "v=dkim1") || strings.Contains(txt, "p=") {
				res.Selectors = append(res.Selectors, sel)
				res.Found = true
				break
			}
		}
	}
	return res
}
