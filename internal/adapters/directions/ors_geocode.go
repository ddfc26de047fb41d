package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"route-invoice-service/internal/domain"
	"route-invoice-service/internal/platform/obs"
)

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// GeocodeCache persists address -> coordinate lookups.
type GeocodeCache interface {
	GetMany(ctx context.Context, addresses []string) (map[string]domain.GeoPoint, error)
	PutMany(ctx context.Context, results map[string]domain.GeoPoint) error
}

// ORSGeocoder resolves stop addresses with OpenRouteService (/geocode/search).
// It runs upstream of routing: an address it cannot resolve is simply left
// out of the result and the stop keeps no coordinates.
type ORSGeocoder struct {
	orsClient
	cache GeocodeCache
}

// NewORSGeocoder builds a geocoder; cache may be nil.
func NewORSGeocoder(apiKey string, opts ORSOptions, cache GeocodeCache) (*ORSGeocoder, error) {
	client, err := newORSClient(apiKey, opts.BaseURL, opts.Timeout)
	if err != nil {
		return nil, err
	}
	return &ORSGeocoder{orsClient: client, cache: cache}, nil
}

// normalize ensures consistent cache keys by collapsing whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// GeocodeMany returns coordinates keyed by normalized address. Cached
// addresses are served without a network call.
func (g *ORSGeocoder) GeocodeMany(
	ctx context.Context,
	addresses []string,
) (_ map[string]domain.GeoPoint, err error) {
	defer obs.Time(ctx, "ors.GeocodeMany")(&err)

	seen := make(map[string]struct{}, len(addresses))
	uniq := make([]string, 0, len(addresses))
	for _, a := range addresses {
		norm := normalize(a)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		uniq = append(uniq, norm)
	}

	out := make(map[string]domain.GeoPoint, len(uniq))
	if len(uniq) == 0 {
		return out, nil
	}

	if g.cache != nil {
		hits, err := g.cache.GetMany(ctx, uniq)
		if err != nil {
			log.Printf("geocode cache read failed: %v", err)
		}
		for k, v := range hits {
			out[k] = v
		}
	}

	fresh := make(map[string]domain.GeoPoint)
	for _, a := range uniq {
		if _, ok := out[a]; ok {
			continue
		}

		p, err := g.geocodeOne(ctx, a)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("geocode failed address=%q err=%v", a, err)
			continue
		}
		fresh[a] = p
		out[a] = p
	}

	if g.cache != nil && len(fresh) > 0 {
		if err := g.cache.PutMany(ctx, fresh); err != nil {
			log.Printf("geocode cache write failed: %v", err)
		}
	}

	return out, nil
}

func (g *ORSGeocoder) geocodeOne(ctx context.Context, address string) (domain.GeoPoint, error) {
	endpoint := g.baseURL + "/geocode/search"

	resp, err := g.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := g.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("text", address)
		q.Set("boundary.country", "US")
		q.Set("size", "1")
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return domain.GeoPoint{}, &domain.ProviderError{StatusCode: statusCode(err), Err: err}
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.GeoPoint{}, fmt.Errorf("decode geocode response: %w", err)
	}

	if len(decoded.Features) == 0 {
		return domain.GeoPoint{}, fmt.Errorf("no geocode results for %q", address)
	}

	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) != 2 {
		return domain.GeoPoint{}, fmt.Errorf("invalid coordinate format for %q", address)
	}

	return domain.GeoPoint{Lon: coords[0], Lat: coords[1]}, nil
}
