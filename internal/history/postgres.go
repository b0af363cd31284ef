package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/safecheck/safecheck/internal/scoring"
	"github.com/safecheck/safecheck/internal/target"
	"go.uber.org/zap"
)

// Schema is the DDL for the scan_results table. The daemon applies it
// via Migrate at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS scan_results (
	scan_id       TEXT PRIMARY KEY,
	target_kind   TEXT NOT NULL,
	target_value  TEXT NOT NULL,
	score         INT  NOT NULL CHECK (score BETWEEN 0 AND 100),
	status        TEXT NOT NULL,
	reasons       JSONB NOT NULL,
	metadata      JSONB NOT NULL DEFAULT '{}',
	timestamp_utc TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scan_results_target
	ON scan_results (target_kind, target_value, timestamp_utc DESC);
CREATE INDEX IF NOT EXISTS idx_scan_results_timestamp
	ON scan_results (timestamp_utc DESC);
`

const selectColumns = `scan_id, target_kind, target_value, score, status, reasons, metadata, timestamp_utc`

// PostgresRepository is the durable Repository backed by PostgreSQL.
type PostgresRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresRepository creates a PostgresRepository on the given pool.
func NewPostgresRepository(db *pgxpool.Pool, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

// Migrate applies the scan_results schema.
func (p *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply scan_results schema: %w", err)
	}
	return nil
}

// SaveScanResult implements Repository.
func (p *PostgresRepository) SaveScanResult(ctx context.Context, r *scoring.ScanResult) error {
	reasons, err := json.Marshal(r.Reasons)
	if err != nil {
		return fmt.Errorf("marshal reasons: %w", err)
	}
	meta, err := json.Marshal(r.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = p.db.Exec(ctx, `
		INSERT INTO scan_results (scan_id, target_kind, target_value, score, status, reasons, metadata, timestamp_utc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ScanID, r.Target.Kind.String(), r.Target.Value,
		r.Score, string(r.Status), reasons, meta, r.TimestampUTC,
	)
	if err != nil {
		return fmt.Errorf("insert scan result: %w", err)
	}

	p.logger.Debug("scan result saved",
		zap.String("scan_id", r.ScanID),
		zap.String("target", r.Target.Describe()),
	)
	return nil
}

func (p *PostgresRepository) scanRow(row pgx.Row) (*scoring.ScanResult, error) {
	var (
		scanID, kindStr, value, statusStr string
		score                             int
		reasonsJSON, metaJSON             []byte
		ts                                time.Time
	)
	if err := row.Scan(&scanID, &kindStr, &value, &score, &statusStr, &reasonsJSON, &metaJSON, &ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan result row: %w", err)
	}

	kind, ok := target.KindFromString(kindStr)
	if !ok {
		return nil, fmt.Errorf("stored target kind %q is unknown", kindStr)
	}
	status, ok := scoring.ParseStatus(statusStr)
	if !ok {
		return nil, fmt.Errorf("stored status %q is unknown", statusStr)
	}

	var reasons []scoring.Reason
	if err := json.Unmarshal(reasonsJSON, &reasons); err != nil {
		return nil, fmt.Errorf("unmarshal reasons: %w", err)
	}
	var meta map[string]string
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return scoring.Restore(scanID, target.Target{Kind: kind, Value: value}, score, status, reasons, meta, ts)
}

func (p *PostgresRepository) queryMany(ctx context.Context, query string, args ...any) ([]*scoring.ScanResult, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scan results: %w", err)
	}
	defer rows.Close()

	var out []*scoring.ScanResult
	for rows.Next() {
		r, err := p.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetScanResultByID implements Repository.
func (p *PostgresRepository) GetScanResultByID(ctx context.Context, scanID string) (*scoring.ScanResult, error) {
	row := p.db.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM scan_results WHERE scan_id = $1`, scanID)
	return p.scanRow(row)
}

// GetLatestScanForTarget implements Repository.
func (p *PostgresRepository) GetLatestScanForTarget(ctx context.Context, t target.Target) (*scoring.ScanResult, error) {
	row := p.db.QueryRow(ctx, `
		SELECT `+selectColumns+` FROM scan_results
		WHERE target_kind = $1 AND target_value = $2
		ORDER BY timestamp_utc DESC LIMIT 1`,
		t.Kind.String(), t.Value)
	return p.scanRow(row)
}

// GetAllScanResults implements Repository.
func (p *PostgresRepository) GetAllScanResults(ctx context.Context) ([]*scoring.ScanResult, error) {
	return p.queryMany(ctx,
		`SELECT `+selectColumns+` FROM scan_results ORDER BY timestamp_utc DESC`)
}

// GetScanResults implements Repository.
func (p *PostgresRepository) GetScanResults(ctx context.Context, limit, offset int) ([]*scoring.ScanResult, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return p.queryMany(ctx, `
		SELECT `+selectColumns+` FROM scan_results
		ORDER BY timestamp_utc DESC LIMIT $1 OFFSET $2`, limit, offset)
}

// SearchScanResults implements Repository.
func (p *PostgresRepository) SearchScanResults(ctx context.Context, query string) ([]*scoring.ScanResult, error) {
	return p.queryMany(ctx, `
		SELECT `+selectColumns+` FROM scan_results
		WHERE target_value ILIKE '%' || $1 || '%'
		ORDER BY timestamp_utc DESC`, query)
}

// GetScanResultsByStatus implements Repository.
func (p *PostgresRepository) GetScanResultsByStatus(ctx context.Context, status scoring.Status) ([]*scoring.ScanResult, error) {
	return p.queryMany(ctx, `
		SELECT `+selectColumns+` FROM scan_results
		WHERE status = $1 ORDER BY timestamp_utc DESC`, string(status))
}

// GetScanResultsByKind implements Repository.
func (p *PostgresRepository) GetScanResultsByKind(ctx context.Context, kind target.Kind) ([]*scoring.ScanResult, error) {
	return p.queryMany(ctx, `
		SELECT `+selectColumns+` FROM scan_results
		WHERE target_kind = $1 ORDER BY timestamp_utc DESC`, kind.String())
}

// DeleteByID implements Repository.
func (p *PostgresRepository) DeleteByID(ctx context.Context, scanID string) (bool, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM scan_results WHERE scan_id = $1`, scanID)
	if err != nil {
		return false, fmt.Errorf("delete scan result: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteByTarget implements Repository.
func (p *PostgresRepository) DeleteByTarget(ctx context.Context, t target.Target) (int, error) {
	tag, err := p.db.Exec(ctx,
		`DELETE FROM scan_results WHERE target_kind = $1 AND target_value = $2`,
		t.Kind.String(), t.Value)
	if err != nil {
		return 0, fmt.Errorf("delete scans for target: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteAll implements Repository.
func (p *PostgresRepository) DeleteAll(ctx context.Context) (int, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM scan_results`)
	if err != nil {
		return 0, fmt.Errorf("delete all scans: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteOlderThan implements Repository.
func (p *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := p.db.Exec(ctx,
		`DELETE FROM scan_results WHERE timestamp_utc < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old scans: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// GetScanResultCount implements Repository.
func (p *PostgresRepository) GetScanResultCount(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRow(ctx, `SELECT COUNT(*) FROM scan_results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count scan results: %w", err)
	}
	return n, nil
}

// HasRecentScan implements Repository.
func (p *PostgresRepository) HasRecentScan(ctx context.Context, t target.Target, within time.Duration) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM scan_results
			WHERE target_kind = $1 AND target_value = $2 AND timestamp_utc > $3
		)`,
		t.Kind.String(), t.Value, time.Now().UTC().Add(-within)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check recent scan: %w", err)
	}
	return exists, nil
}
