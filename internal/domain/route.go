package domain

// Provider result for one routed leg (two or more ordered points).
// EncodedPath is a polyline-compressed list of (lat, lon) pairs.
// A RouteResult is immutable once produced.
type RouteResult struct {
	EncodedPath   string
	DistanceMiles float64
	DurationHours float64
}

// Represents one resolved leg between two consecutive stops.
// When Fallback is set the coordinates are a straight line (or empty when a
// stop had no coordinates) and the distance is great-circle.
type LegRoute struct {
	Coordinates    []GeoPoint
	DistanceMiles  float64
	DurationHours  float64
	Fallback       bool
	FallbackReason string

	// Err is the recovered failure behind a fallback leg: a
	// *MissingCoordinateError or a *ProviderError.
	Err error
}

// The stitched route of a single assignment.
// An empty Coordinates slice means there is nothing to draw; the assignment
// still takes part in invoicing.
type AssignmentRoute struct {
	AssignmentID       string
	Coordinates        []GeoPoint
	TotalDistanceMiles float64
	TotalDurationHours float64
	FallbackLegs       int
}

// Empty reports whether the route has no drawable path.
func (r AssignmentRoute) Empty() bool { return len(r.Coordinates) == 0 }
