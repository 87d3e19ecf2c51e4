package fraud

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
)

// PatternRegistry holds the active fraud-pattern snapshot. Reads are
// lock-free against an immutable slice; Refresh swaps the whole snapshot
// atomically, never mutating it in place. The registry tolerates an empty
// or stale snapshot: a failed refresh keeps serving the previous one, and
// an evaluation against zero patterns simply matches nothing.
type PatternRegistry struct {
	repo     PatternRepository
	logger   *slog.Logger
	snapshot atomic.Pointer[patternSnapshot]
}

type patternSnapshot struct {
	patterns  []*fraud.FraudPattern
	refreshed time.Time
}

// NewPatternRegistry creates a registry with an empty snapshot. Call
// Refresh before first use; until then ActivePatterns returns nothing.
func NewPatternRegistry(repo PatternRepository, logger *slog.Logger) *PatternRegistry {
	r := &PatternRegistry{repo: repo, logger: logger}
	r.snapshot.Store(&patternSnapshot{})
	return r
}

// Refresh reloads active patterns from the store and swaps the snapshot.
// On failure the previous snapshot stays in place: scoring degrades to
// "no additional patterns matched" rather than failing the evaluation.
func (r *PatternRegistry) Refresh(ctx context.Context) error {
	patterns, err := r.repo.ListActive(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "pattern registry refresh failed, keeping previous snapshot",
			"error", err,
			"stale_patterns", len(r.snapshot.Load().patterns),
		)
		return err
	}

	valid := patterns[:0:0]
	for _, p := range patterns {
		if err := p.Rule.Validate(); err != nil {
			r.logger.WarnContext(ctx, "skipping malformed fraud pattern",
				"pattern_key", p.Key,
				"error", err,
			)
			continue
		}
		valid = append(valid, p)
	}

	r.snapshot.Store(&patternSnapshot{patterns: valid, refreshed: time.Now()})
	r.logger.InfoContext(ctx, "pattern registry refreshed", "patterns", len(valid))
	return nil
}

// ActivePatterns returns the current snapshot, optionally filtered by
// category. The returned slice must be treated as read-only.
func (r *PatternRegistry) ActivePatterns(categories ...fraud.PatternCategory) []*fraud.FraudPattern {
	snap := r.snapshot.Load()
	if len(categories) == 0 {
		return snap.patterns
	}

	var out []*fraud.FraudPattern
	for _, p := range snap.patterns {
		for _, c := range categories {
			if p.Category == c {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// LastRefreshed reports when the snapshot was last swapped. Zero when the
// registry has never successfully refreshed.
func (r *PatternRegistry) LastRefreshed() time.Time {
	return r.snapshot.Load().refreshed
}
