// Package history persists and queries scan results.
//
// Two implementations of the Repository interface are provided:
//   - MemoryRepository: in-process, for testing and single-user use.
//   - PostgresRepository: durable, for server deployments.
//
// Both guarantee read-your-writes in a single process: a save followed
// by a latest-for-target lookup observes the just-written result.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/safecheck/safecheck/internal/scoring"
	"github.com/safecheck/safecheck/internal/target"
)

// ErrNotFound is returned when a requested scan result does not exist.
var ErrNotFound = errors.New("scan result not found")

// Repository is the persistence contract for scan results. Rows are
// keyed by scan id, with a secondary access pattern by target and
// timestamp descending. List results are ordered newest-first.
type Repository interface {
	SaveScanResult(ctx context.Context, r *scoring.ScanResult) error
	GetScanResultByID(ctx context.Context, scanID string) (*scoring.ScanResult, error)
	GetLatestScanForTarget(ctx context.Context, t target.Target) (*scoring.ScanResult, error)
	GetAllScanResults(ctx context.Context) ([]*scoring.ScanResult, error)
	GetScanResults(ctx context.Context, limit, offset int) ([]*scoring.ScanResult, error)
	SearchScanResults(ctx context.Context, query string) ([]*scoring.ScanResult, error)
	GetScanResultsByStatus(ctx context.Context, status scoring.Status) ([]*scoring.ScanResult, error)
	GetScanResultsByKind(ctx context.Context, kind target.Kind) ([]*scoring.ScanResult, error)
	DeleteByID(ctx context.Context, scanID string) (bool, error)
	DeleteByTarget(ctx context.Context, t target.Target) (int, error)
	DeleteAll(ctx context.Context) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	GetScanResultCount(ctx context.Context) (int, error)
	HasRecentScan(ctx context.Context, t target.Target, within time.Duration) (bool, error)
}
