package scoring

// Weights holds the tunable per-signal score deltas applied by the
// scan pipelines. Exact weightings are policy, not contract — override
// individual fields via configuration before wiring the pipelines.
type Weights struct {
	// URL pipeline
	NoHTTPS           int
	ExpiredCert       int
	SelfSignedCert    int
	WeakTLS           int
	ShortKey          int
	DomainVeryNew     int // registered < 7 days ago
	DomainNew         int // registered < 30 days ago
	DomainEstablished int // registered > 365 days ago
	NoDNSRecords      int

	// Email pipeline
	DisposableDomain int
	NoMXRecords      int
	SPFMissing       int
	SPFStrict        int
	DMARCMissing     int
	DMARCReject      int
	DMARCQuarantine  int
	DKIMPresent      int
	MajorProvider    int

	// FileHash pipeline
	KnownMalicious  int
	ConfirmedBenign int
}

// DefaultWeights returns the default delta policy.
func DefaultWeights() Weights {
	return Weights{
		NoHTTPS:           -30,
		ExpiredCert:       -40,
		SelfSignedCert:    -20,
		WeakTLS:           -15,
		ShortKey:          -10,
		DomainVeryNew:     -25,
		DomainNew:         -10,
		DomainEstablished: 10,
		NoDNSRecords:      -35,

		DisposableDomain: -50,
		NoMXRecords:      -35,
		SPFMissing:       -10,
		SPFStrict:        5,
		DMARCMissing:     -10,
		DMARCReject:      15,
		DMARCQuarantine:  8,
		DKIMPresent:      5,
		MajorProvider:    10,

		KnownMalicious:  -100,
		ConfirmedBenign: 20,
	}
}
