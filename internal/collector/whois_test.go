package collector

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
)

const registryReply = `Domain Name: EXAMPLE.COM
Registrar: Example Registrar, LLC
Registrar WHOIS Server: whois.example-registrar.com
Creation Date: 2010-06-01T00:00:00Z
Registry Expiry Date: 2030-06-01T00:00:00Z
Name Server: NS1.EXAMPLE.COM
Name Server: NS2.EXAMPLE.COM
Domain Status: clientTransferProhibited https://icann.org/epp
`

func TestParseWhois(t *testing.T) {
	rec := parseWhois(registryReply)

	if rec.Registrar != "Example Registrar, LLC" {
		t.Errorf("Registrar = %q", rec.Registrar)
	}
	want := time.Date(2010, 6, 1, 0, 0, 0, 0, time.UTC)
	if !rec.RegisteredDate.Equal(want) {
		t.Errorf("RegisteredDate = %v, want %v", rec.RegisteredDate, want)
	}
	if len(rec.NameServers) != 2 || rec.NameServers[0] != "ns1.example.com" {
		t.Errorf("NameServers = %v", rec.NameServers)
	}
	if len(rec.Status) != 1 || rec.Status[0] != "clientTransferProhibited" {
		t.Errorf("Status = %v", rec.Status)
	}
	if rec.AgeDays < 5000 {
		t.Errorf("AgeDays = %d, want a multi-year age", rec.AgeDays)
	}
}

func TestParseWhoisDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2010-06-01T00:00:00Z", time.Date(2010, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"2010-06-01", time.Date(2010, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"01-Jun-2010", time.Date(2010, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"2010.06.01", time.Date(2010, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"garbage", time.Time{}},
	}
	for _, tt := range tests {
		if got := parseWhoisDate(tt.in); !got.Equal(tt.want) {
			t.Errorf("parseWhoisDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// fakeConn replays a canned reply and swallows the query write.
type fakeConn struct {
	net.Conn
	reply string
	off   int
}

func (c *fakeConn) Read(p []byte) (int, error) {
	if c.off >= len(c.reply) {
		return 0, io.EOF
	}
	n := copy(p, c.reply[c.off:])
	c.off += n
	return n, nil
}

func (c *fakeConn) Write(p []byte) (int, error)   { return len(p), nil }
func (c *fakeConn) Close() error                  { return nil }
func (c *fakeConn) SetDeadline(_ time.Time) error { return nil }

func TestLookup_followsIANAReferral(t *testing.T) {
	replies := map[string]string{
		"whois.iana.org:43":        "refer: whois.verisign-grs.com\n",
		"whois.verisign-grs.com:43": registryReply,
	}
	var dialed []string

	c := NewPortWhoisClient(time.Second, zap.NewNop())
	c.dial = func(_ context.Context, addr string) (net.Conn, error) {
		dialed = append(dialed, addr)
		return &fakeConn{reply: replies[addr]}, nil
	}

	rec, err := c.Lookup(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec.Registrar != "Example Registrar, LLC" {
		t.Errorf("Registrar = %q", rec.Registrar)
	}
	if len(dialed) < 2 || dialed[0] != "whois.iana.org:43" || dialed[1] != "whois.verisign-grs.com:43" {
		t.Errorf("dialed = %v, want IANA then referral", dialed)
	}
}

func TestLookup_noReferral(t *testing.T) {
	c := NewPortWhoisClient(time.Second, zap.NewNop())
	c.dial = func(_ context.Context, _ string) (net.Conn, error) {
		return &fakeConn{reply: "no match\n"}, nil
	}

	if _, err := c.Lookup(context.Background(), "example.invalid"); err == nil {
		t.Fatal("expected error when IANA publishes no referral")
	}
}
