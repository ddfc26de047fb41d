package domain

import (
	"math"
	"strconv"
	"strings"
)

// Coordinates are rounded to this many decimals before keying, so float
// noise below ~0.1m never produces a distinct entry.
const keyPrecision = 6

// RouteKey derives the content address of an ordered coordinate sequence.
// It is a pure function of the rounded coordinates.
func RouteKey(points []GeoPoint) string {
	var b strings.Builder
	b.WriteString("route:")
	for i, p := range points {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(formatCoord(p.Lat))
		b.WriteByte(',')
		b.WriteString(formatCoord(p.Lon))
	}
	return b.String()
}

func formatCoord(v float64) string {
	scale := math.Pow10(keyPrecision)
	s := strconv.FormatFloat(math.Round(v*scale)/scale, 'f', keyPrecision, 64)
	// -0.000000 and 0.000000 are the same place.
	if s == "-0.000000" {
		return "0.000000"
	}
	return s
}
