package services

import (
	"route-invoice-service/internal/ports"
)

type PlannerConfig struct {
	LegRouterConfig
	// Concurrency caps in-flight provider calls per fan-out.
	Concurrency int
}

// Planner bundles the routing pipeline shared by every drafting session.
// The route cache is passed in once and owned by the caller.
type Planner struct {
	Router     *LegRouter
	Stitcher   *SegmentStitcher
	EmptyMiles *EmptyMilesCalculator
	Cache      ports.RouteCache
}

func NewPlanner(provider ports.DirectionsProvider, cache ports.RouteCache, cfg PlannerConfig) *Planner {
	router := NewLegRouter(provider, cache, cfg.LegRouterConfig)
	return &Planner{
		Router:     router,
		Stitcher:   NewSegmentStitcher(router, cfg.Concurrency),
		EmptyMiles: NewEmptyMilesCalculator(router, cfg.Concurrency),
		Cache:      cache,
	}
}
