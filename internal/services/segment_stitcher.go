package services

import (
	"context"
	"fmt"

	"route-invoice-service/internal/domain"

	"golang.org/x/sync/errgroup"
)

const defaultLegConcurrency = 4

// SegmentStitcher turns each assignment's stops into one continuous route.
// Legs are fetched concurrently and re-joined in stop order.
type SegmentStitcher struct {
	router      *LegRouter
	concurrency int
}

func NewSegmentStitcher(router *LegRouter, concurrency int) *SegmentStitcher {
	if concurrency <= 0 {
		concurrency = defaultLegConcurrency
	}
	return &SegmentStitcher{router: router, concurrency: concurrency}
}

type legJob struct {
	assignment int
	index      int
	from, to   *domain.GeoPoint
	label      string
}

// StitchAll routes every assignment, preserving input order. The only error
// is the cancellation of ctx; routing failures degrade to straight lines.
func (s *SegmentStitcher) StitchAll(
	ctx context.Context,
	generation uint64,
	assignments []domain.Assignment,
) ([]domain.AssignmentRoute, error) {
	legs := make([][]domain.LegRoute, len(assignments))
	jobs := make([]legJob, 0)

	for ai, a := range assignments {
		if len(a.Stops) < 2 {
			continue
		}
		legs[ai] = make([]domain.LegRoute, len(a.Stops)-1)
		for i := 0; i < len(a.Stops)-1; i++ {
			jobs = append(jobs, legJob{
				assignment: ai,
				index:      i,
				from:       a.Stops[i].Point,
				to:         a.Stops[i+1].Point,
				label:      fmt.Sprintf("%s#%d", a.ID, i),
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, job := range jobs {
		g.Go(func() error {
			// Each goroutine writes its own slot; no locking needed.
			legs[job.assignment][job.index] = s.router.RouteLeg(gctx, generation, job.label, job.from, job.to)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("stitch assignments: %w", err)
	}

	out := make([]domain.AssignmentRoute, 0, len(assignments))
	for ai, a := range assignments {
		out = append(out, Stitch(a.ID, legs[ai]))
	}
	return out, nil
}

// Stitch concatenates leg paths in order. A leg that directly follows a drawn
// leg drops its first point, which repeats the previous leg's end. After a leg
// without coordinates the first point is a real stop and is kept unless it
// equals the last drawn point. Distances and durations are plain sums.
func Stitch(assignmentID string, legs []domain.LegRoute) domain.AssignmentRoute {
	route := domain.AssignmentRoute{AssignmentID: assignmentID}
	prevDrawn := false

	for _, leg := range legs {
		route.TotalDistanceMiles += leg.DistanceMiles
		route.TotalDurationHours += leg.DurationHours
		if leg.Fallback {
			route.FallbackLegs++
		}

		if len(leg.Coordinates) == 0 {
			prevDrawn = false
			continue
		}

		coords := leg.Coordinates
		if n := len(route.Coordinates); n > 0 && (prevDrawn || route.Coordinates[n-1] == coords[0]) {
			coords = coords[1:]
		}
		route.Coordinates = append(route.Coordinates, coords...)
		prevDrawn = true
	}

	return route
}
