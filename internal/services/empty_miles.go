package services

import (
	"context"
	"fmt"

	"route-invoice-service/internal/domain"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// EmptyMilesCalculator computes the deadhead gaps between consecutive
// mile-billed assignments with the same cache-first routing as the stitcher.
type EmptyMilesCalculator struct {
	router      *LegRouter
	concurrency int
}

func NewEmptyMilesCalculator(router *LegRouter, concurrency int) *EmptyMilesCalculator {
	if concurrency <= 0 {
		concurrency = defaultLegConcurrency
	}
	return &EmptyMilesCalculator{router: router, concurrency: concurrency}
}

// Compute builds the map for the PER_MILE subset of assignments in
// chronological order: one entry per gap plus the terminal "-to-end" entry,
// which starts at zero. Keys present in overrides keep the user's value and
// are not routed. Routed values are rounded to 2 decimals.
func (c *EmptyMilesCalculator) Compute(
	ctx context.Context,
	generation uint64,
	assignments []domain.Assignment,
	overrides map[string]decimal.Decimal,
) (domain.EmptyMilesMap, error) {
	ordered := domain.MileBilled(domain.SortChronologically(assignments))
	if len(ordered) == 0 {
		return domain.EmptyMilesMap{}, nil
	}

	entries := make([]domain.EmptyMilesEntry, len(ordered))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, a := range ordered {
		toID := domain.EmptyMilesEndKey
		if i < len(ordered)-1 {
			toID = ordered[i+1].ID
		}
		key := domain.EmptyMilesKey(a.ID, toID)
		entries[i] = domain.EmptyMilesEntry{Key: key, FromID: a.ID, ToID: toID, Miles: decimal.Zero}

		if v, ok := overrides[key]; ok {
			entries[i].Miles = v
			entries[i].Overridden = true
			continue
		}
		if i == len(ordered)-1 {
			continue
		}

		from := stopPoint(a.LastStop())
		to := stopPoint(ordered[i+1].FirstStop())
		g.Go(func() error {
			leg := c.router.RouteLeg(gctx, generation, key, from, to)
			entries[i].Miles = decimal.NewFromFloat(leg.DistanceMiles).Round(2)
			entries[i].Fallback = leg.Fallback
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return domain.EmptyMilesMap{}, fmt.Errorf("compute empty miles: %w", err)
	}

	return domain.EmptyMilesMap{Entries: entries}, nil
}

func stopPoint(s *domain.Stop) *domain.GeoPoint {
	if s == nil {
		return nil
	}
	return s.Point
}
