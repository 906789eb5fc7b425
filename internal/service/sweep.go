package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Skotchmaster/waterworks/internal/logging"
	"github.com/Skotchmaster/waterworks/internal/models"
)

const sweepBatchSize = 500

type SweepOptions struct {
	DryRun bool
	// Confirm is asked before anything is deleted. Returning false cancels
	// the sweep. A nil Confirm means no confirmation is needed.
	Confirm func(candidates []models.AccessToken) bool
}

type SweepReport struct {
	Candidates []models.AccessToken
	Deleted    int64
	Cancelled  bool
	DryRun     bool
}

// SweepExpired removes every token whose expiry is in the past.
func (s *TokenService) SweepExpired(ctx context.Context, opts SweepOptions) (*SweepReport, error) {
	candidates, err := s.Repo.ExpiredTokens(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("find expired tokens: %w", err)
	}
	return s.sweep(ctx, "expired", candidates, opts)
}

// SweepStale removes expired tokens plus tokens not used for more than
// olderThanDays days. A token that was never used counts from its creation.
func (s *TokenService) SweepStale(ctx context.Context, olderThanDays int, opts SweepOptions) (*SweepReport, error) {
	if olderThanDays < 0 {
		return nil, fmt.Errorf("%w: days must not be negative", ErrValidation)
	}
	now := s.now()

	expired, err := s.Repo.ExpiredTokens(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("find expired tokens: %w", err)
	}
	stale, err := s.Repo.StaleTokens(ctx, now.AddDate(0, 0, -olderThanDays))
	if err != nil {
		return nil, fmt.Errorf("find stale tokens: %w", err)
	}
	return s.sweep(ctx, "stale", mergeTokens(expired, stale), opts)
}

func mergeTokens(lists ...[]models.AccessToken) []models.AccessToken {
	seen := map[uint]bool{}
	var out []models.AccessToken
	for _, l := range lists {
		for _, t := range l {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *TokenService) sweep(ctx context.Context, kind string, candidates []models.AccessToken, opts SweepOptions) (*SweepReport, error) {
	l := logging.FromContext(ctx).With("svc", "tokens.sweep", "kind", kind)
	report := &SweepReport{Candidates: candidates, DryRun: opts.DryRun}

	if opts.DryRun || len(candidates) == 0 {
		l.Info("sweep_scanned", "candidates", len(candidates), "dry_run", opts.DryRun)
		return report, nil
	}
	if opts.Confirm != nil && !opts.Confirm(candidates) {
		report.Cancelled = true
		l.Info("sweep_cancelled", "candidates", len(candidates))
		return report, nil
	}

	start := time.Now()
	for from := 0; from < len(candidates); from += sweepBatchSize {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("sweep interrupted after %d tokens: %w", report.Deleted, err)
		}
		to := from + sweepBatchSize
		if to > len(candidates) {
			to = len(candidates)
		}
		ids := make([]uint, 0, to-from)
		for _, t := range candidates[from:to] {
			ids = append(ids, t.ID)
		}
		n, err := s.Repo.DeleteTokensByID(ctx, ids)
		if err != nil {
			return report, fmt.Errorf("delete tokens: %w", err)
		}
		report.Deleted += n
	}

	l.Info("sweep_completed", "candidates", len(candidates), "deleted", report.Deleted, "duration_ms", time.Since(start).Milliseconds())
	return report, nil
}
