// Package safecheck is the top-level scan orchestrator: it classifies
// raw input, short-circuits on fresh cached results, dispatches to the
// matching pipeline, persists the outcome, and reports progressive
// state updates to the caller.
//
// Every request terminates in exactly one Success or Error update; no
// failure, including a panic inside a pipeline, escapes the service
// boundary uncaught.
package safecheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/safecheck/safecheck/internal/cache"
	"github.com/safecheck/safecheck/internal/history"
	"github.com/safecheck/safecheck/internal/metrics"
	"github.com/safecheck/safecheck/internal/redact"
	"github.com/safecheck/safecheck/internal/scanerr"
	"github.com/safecheck/safecheck/internal/scanner"
	"github.com/safecheck/safecheck/internal/scoring"
	"github.com/safecheck/safecheck/internal/target"
	"go.uber.org/zap"
)

// DefaultFreshness is the window within which a previous result for the
// same target is returned without re-scanning.
const DefaultFreshness = 5 * time.Minute

// State is the lifecycle phase of a scan request.
type State int

const (
	StateLoading State = iota
	StateSuccess
	StateError
)

// ScanResponse is the terminal payload of a successful request.
type ScanResponse struct {
	ScanResult       *scoring.ScanResult `json:"scan_result"`
	FromCache        bool                `json:"from_cache"`
	ProcessingTimeMs int64               `json:"processing_time_ms"`
}

// Update is one progressive status emission. Response is set for
// StateSuccess, Err for StateError.
type Update struct {
	State    State
	Response *ScanResponse
	Err      *scanerr.Error
}

// Options tune a single request.
type Options struct {
	// SkipCache forces a fresh scan even when a recent result exists.
	SkipCache bool
	// SkipPersist suppresses the repository write.
	SkipPersist bool
}

// Config holds service-level tunables.
type Config struct {
	Freshness      time.Duration // 0 → DefaultFreshness
	RedactPolicy   redact.Policy // applied at the persistence boundary
	ResultCacheTTL time.Duration // 0 disables the in-memory result cache
}

// Service orchestrates scans across the three pipelines.
type Service struct {
	pipelines map[target.Kind]scanner.Scanner
	repo      history.Repository
	store     *cache.Store
	cfg       Config
	logger    *zap.Logger
}

// New creates a Service. store may be nil to disable the in-memory
// fast path; the repository freshness window still applies.
func New(pipelines map[target.Kind]scanner.Scanner, repo history.Repository, store *cache.Store, cfg Config, logger *zap.Logger) *Service {
	if cfg.Freshness == 0 {
		cfg.Freshness = DefaultFreshness
	}
	if cfg.RedactPolicy == "" {
		cfg.RedactPolicy = redact.PolicyNone
	}
	return &Service{
		pipelines: pipelines,
		repo:      repo,
		store:     store,
		cfg:       cfg,
		logger:    logger,
	}
}

// Check runs the full scan flow, emitting Loading followed by exactly
// one terminal update on the returned channel. The channel is closed
// after the terminal update.
func (s *Service) Check(ctx context.Context, raw string, opts Options) <-chan Update {
	ch := make(chan Update, 2)
	ch <- Update{State: StateLoading}
	go func() {
		defer close(ch)
		resp, err := s.CheckSync(ctx, raw, opts)
		if err != nil {
			var coded *scanerr.Error
			if !errors.As(err, &coded) {
				coded = scanerr.Wrap(scanerr.CodeServiceError, "scan failed", err)
			}
			ch <- Update{State: StateError, Err: coded}
			return
		}
		ch <- Update{State: StateSuccess, Response: resp}
	}()
	return ch
}

// CheckSync is the synchronous form of Check.
func (s *Service) CheckSync(ctx context.Context, raw string, opts Options) (resp *ScanResponse, err error) {
	start := time.Now()

	// A panicking pipeline must not cross the service boundary.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scan panicked", zap.Any("panic", r))
			resp = nil
			err = scanerr.Newf(scanerr.CodeServiceError, "internal failure: %v", r)
		}
		if err != nil {
			metrics.ScanErrorsTotal.WithLabelValues(scanerr.CodeOf(err)).Inc()
		}
	}()

	t, ok := target.Detect(raw)
	if !ok {
		return nil, scanerr.New(scanerr.CodeInvalidInput, "input is not a URL, email address, or SHA-256 hash")
	}

	if !opts.SkipCache {
		if cached := s.lookupFresh(ctx, t); cached != nil {
			s.logger.Debug("returning fresh result", zap.String("target", t.Describe()))
			return &ScanResponse{
				ScanResult:       cached,
				FromCache:        true,
				ProcessingTimeMs: time.Since(start).Milliseconds(),
			}, nil
		}
	}

	result, err := s.scan(ctx, t)
	if err != nil {
		return nil, err
	}

	if !opts.SkipPersist {
		s.persist(ctx, result)
	}

	metrics.ScansTotal.WithLabelValues(string(result.Status)).Inc()
	return &ScanResponse{
		ScanResult:       result,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// Rescan is Check without the freshness short-circuit. Errors are
// wrapped as RESCAN_FAILED.
func (s *Service) Rescan(ctx context.Context, raw string) (*ScanResponse, error) {
	resp, err := s.CheckSync(ctx, raw, Options{SkipCache: true})
	if err != nil {
		if scanerr.CodeOf(err) == scanerr.CodeInvalidInput {
			return nil, err
		}
		return nil, scanerr.Wrap(scanerr.CodeRescanFailed, "rescan failed", err)
	}
	return resp, nil
}

// PipelineInfo reports the mounted pipelines for diagnostics.
func (s *Service) PipelineInfo() []scanner.Info {
	infos := make([]scanner.Info, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		infos = append(infos, p.Info())
	}
	return infos
}

// lookupFresh checks the in-memory store first, then the repository
// freshness window. A hit in either returns the prior result.
func (s *Service) lookupFresh(ctx context.Context, t target.Target) *scoring.ScanResult {
	if s.store != nil {
		if raw, ok := s.store.Get(t.Key()); ok {
			metrics.CacheEventsTotal.WithLabelValues("hit").Inc()
			var r scoring.ScanResult
			if err := json.Unmarshal([]byte(raw), &r); err == nil {
				return &r
			}
			s.store.Remove(t.Key())
		} else {
			metrics.CacheEventsTotal.WithLabelValues("miss").Inc()
		}
	}

	recent, err := s.repo.HasRecentScan(ctx, t, s.cfg.Freshness)
	if err != nil || !recent {
		return nil
	}
	r, err := s.repo.GetLatestScanForTarget(ctx, t)
	if err != nil {
		return nil
	}
	return r
}

// scan dispatches to the pipeline matching the target kind and wraps
// pipeline failures with SCAN_FAILED, preserving the underlying code.
func (s *Service) scan(ctx context.Context, t target.Target) (*scoring.ScanResult, error) {
	p, ok := s.pipelines[t.Kind]
	if !ok {
		return nil, scanerr.Newf(scanerr.CodeServiceError, "no pipeline mounted for %s targets", t.Kind)
	}

	result, err := p.Scan(ctx, t)
	if err != nil {
		return nil, scanerr.Wrap(scanerr.CodeScanFailed, fmt.Sprintf("scan of %s failed", t.Describe()), err).
			WithDetail("target", t.Describe()).
			WithDetail("cause", scanerr.CodeOf(err))
	}
	return result, nil
}

// persist writes the result through the redaction boundary to both the
// repository and the fast-path store. Persistence failures are logged,
// not fatal: the caller still gets the scan outcome.
func (s *Service) persist(ctx context.Context, result *scoring.ScanResult) {
	stored := redact.Result(s.cfg.RedactPolicy, result)

	if err := s.repo.SaveScanResult(ctx, stored); err != nil {
		s.logger.Warn("failed to persist scan result",
			zap.String("scan_id", result.ScanID),
			zap.Error(err),
		)
	}

	if s.store != nil && s.cfg.ResultCacheTTL > 0 {
		if raw, err := json.Marshal(result); err == nil {
			// Cached under the original target key: the cache is
			// process-local and scoring-facing, so it keeps the
			// unredacted value.
			s.store.Put(result.Target.Key(), string(raw), s.cfg.ResultCacheTTL)
		}
	}
}
