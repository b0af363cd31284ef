package collector

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/safecheck/safecheck/internal/scanerr"
	"go.uber.org/zap"
)

// minRSAKeySize is the smallest RSA key size not flagged as weak.
const minRSAKeySize = 2048

// StandardTLSAnalyzer is the production TLSAnalyzer. It performs a real
// handshake with verification disabled so that expired and self-signed
// certificates can still be inspected, then verifies the chain itself
// to populate HasValidCertificate.
type StandardTLSAnalyzer struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewStandardTLSAnalyzer creates an analyzer with the given handshake
// timeout (DefaultTimeout when zero).
func NewStandardTLSAnalyzer(timeout time.Duration, logger *zap.Logger) *StandardTLSAnalyzer {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &StandardTLSAnalyzer{timeout: timeout, logger: logger}
}

// AnalyzeCertificate implements TLSAnalyzer.
func (a *StandardTLSAnalyzer) AnalyzeCertificate(ctx context.Context, hostname string, port int) (*TLSReport, error) {
	if port == 0 {
		port = 443
	}
	addr := fmt.Sprintf("%s:%d", hostname, port)

	dialer := &tls.Dialer{
		Config: &tls.Config{
			ServerName:         hostname,
			InsecureSkipVerify: true, //nolint:gosec // verification is done manually below
			MinVersion:         tls.VersionTLS10,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	connTime := time.Since(start)
	if err != nil {
		if isTimeout(err) {
			return nil, scanerr.Wrap(scanerr.CodeTimeout, "tls handshake timed out", err).
				WithDetail("host", addr)
		}
		return nil, scanerr.Wrap(scanerr.CodeTLSHandshakeFailed, "tls handshake failed", err).
			WithDetail("host", addr)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, scanerr.New(scanerr.CodeTLSCertInvalid, "server presented no certificate").
			WithDetail("host", addr)
	}

	leaf := state.PeerCertificates[0]
	report := &TLSReport{
		Certificate:    describeCertificate(leaf),
		TLSVersion:     tls.VersionName(state.Version),
		CipherSuite:    tls.CipherSuiteName(state.CipherSuite),
		ConnectionTime: connTime,
	}

	report.HasValidCertificate = a.verifyChain(hostname, state.PeerCertificates) == nil
	report.SecurityIssues = findIssues(leaf, state, report.HasValidCertificate)

	a.logger.Debug("tls analysis",
		zap.String("host", addr),
		zap.Bool("valid", report.HasValidCertificate),
		zap.String("version", report.TLSVersion),
		zap.Int("issues", len(report.SecurityIssues)),
	)
	return report, nil
}

func (a *StandardTLSAnalyzer) verifyChain(hostname string, certs []*x509.Certificate) error {
	opts := x509.VerifyOptions{
		DNSName:       hostname,
		Intermediates: x509.NewCertPool(),
	}
	for _, c := range certs[1:] {
		opts.Intermediates.AddCert(c)
	}
	_, err := certs[0].Verify(opts)
	return err
}

func describeCertificate(cert *x509.Certificate) CertificateInfo {
	sum := sha256.Sum256(cert.Raw)

	keySize := 0
	if pub, ok := cert.PublicKey.(*rsa.PublicKey); ok {
		keySize = pub.N.BitLen()
	}

	isWildcard := false
	for _, san := range cert.DNSNames {
		if strings.HasPrefix(san, "*.") {
			isWildcard = true
			break
		}
	}

	return CertificateInfo{
		Subject:      cert.Subject.String(),
		Issuer:       cert.Issuer.String(),
		SerialNumber: cert.SerialNumber.Text(16),
		Algorithm:    cert.SignatureAlgorithm.String(),
		KeySize:      keySize,
		ValidFrom:    cert.NotBefore,
		ValidTo:      cert.NotAfter,
		Fingerprint:  hex.EncodeToString(sum[:]),
		SANs:         cert.DNSNames,
		IsSelfSigned: cert.Issuer.String() == cert.Subject.String(),
		IsWildcard:   isWildcard,
	}
}

func findIssues(leaf *x509.Certificate, state tls.ConnectionState, chainValid bool) []SecurityIssue {
	var issues []SecurityIssue
	now := time.Now()

	if now.After(leaf.NotAfter) {
		issues = append(issues, SecurityIssue{
			Type:        "expired_certificate",
			Severity:    "critical",
			Description: "certificate expired on " + leaf.NotAfter.Format(time.RFC3339),
		})
	} else if leaf.NotAfter.Sub(now) < 14*24*time.Hour {
		issues = append(issues, SecurityIssue{
			Type:        "expiring_certificate",
			Severity:    "medium",
			Description: "certificate expires within 14 days",
		})
	}
	if now.Before(leaf.NotBefore) {
		issues = append(issues, SecurityIssue{
			Type:        "not_yet_valid",
			Severity:    "high",
			Description: "certificate is not valid until " + leaf.NotBefore.Format(time.RFC3339),
		})
	}
	if leaf.Issuer.String() == leaf.Subject.String() {
		issues = append(issues, SecurityIssue{
			Type:        "self_signed",
			Severity:    "high",
			Description: "certificate is self-signed",
		})
	} else if !chainValid {
		issues = append(issues, SecurityIssue{
			Type:        "untrusted_chain",
			Severity:    "high",
			Description: "certificate chain does not verify against system roots",
		})
	}
	if pub, ok := leaf.PublicKey.(*rsa.PublicKey); ok && pub.N.BitLen() < minRSAKeySize {
		issues = append(issues, SecurityIssue{
			Type:        "weak_key",
			Severity:    "high",
			Description: fmt.Sprintf("RSA key size %d below %d bits", pub.N.BitLen(), minRSAKeySize),
		})
	}
	if state.Version < tls.VersionTLS12 {
		issues = append(issues, SecurityIssue{
			Type:        "weak_protocol",
			Severity:    "high",
			Description: "negotiated " + tls.VersionName(state.Version) + ", below TLS 1.2",
		})
	}
	if leaf.SignatureAlgorithm == x509.SHA1WithRSA || leaf.SignatureAlgorithm == x509.ECDSAWithSHA1 {
		issues = append(issues, SecurityIssue{
			Type:        "weak_signature",
			Severity:    "high",
			Description: "certificate signed with SHA-1",
		})
	}
	return issues
}
