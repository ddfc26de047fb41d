package directions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"route-invoice-service/internal/domain"
	"route-invoice-service/internal/platform/obs"
)

const (
	metersPerMile  = 1609.344
	secondsPerHour = 3600.0

	defaultProfile = "driving-hgv"
)

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Routes []struct {
		Summary struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"summary"`
		Geometry string `json:"geometry"`
	} `json:"routes"`
}

// ORSDirectionsProvider implements ports.DirectionsProvider using the
// OpenRouteService directions endpoint. Every failure is returned as a
// *domain.ProviderError.
//
// The provider is safe for concurrent use.
type ORSDirectionsProvider struct {
	orsClient
	profile string
}

type ORSOptions struct {
	BaseURL string
	Profile string
	Timeout time.Duration
}

func NewORSDirectionsProvider(apiKey string, opts ORSOptions) (*ORSDirectionsProvider, error) {
	client, err := newORSClient(apiKey, opts.BaseURL, opts.Timeout)
	if err != nil {
		return nil, err
	}

	profile := opts.Profile
	if profile == "" {
		profile = defaultProfile
	}

	return &ORSDirectionsProvider{orsClient: client, profile: profile}, nil
}

// FetchRoute routes through points in order and returns the encoded path,
// miles and hours of the first route ORS proposes.
func (o *ORSDirectionsProvider) FetchRoute(
	ctx context.Context,
	points []domain.GeoPoint,
) (_ domain.RouteResult, err error) {
	defer obs.Time(ctx, "ors.FetchRoute")(&err)

	if len(points) < 2 {
		return domain.RouteResult{}, &domain.ProviderError{
			Err: fmt.Errorf("need at least 2 points, got %d", len(points)),
		}
	}

	coords := make([][]float64, 0, len(points))
	for _, p := range points {
		coords = append(coords, p.CoordsToList())
	}

	payload, err := json.Marshal(directionsRequest{Coordinates: coords})
	if err != nil {
		return domain.RouteResult{}, &domain.ProviderError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	endpoint := fmt.Sprintf("%s/v2/directions/%s", o.baseURL, o.profile)

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		return o.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return domain.RouteResult{}, &domain.ProviderError{
			StatusCode: statusCode(err),
			Err:        fmt.Errorf("execute request: %w", err),
		}
	}
	defer resp.Body.Close()

	var decoded directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.RouteResult{}, &domain.ProviderError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode directions response: %w", err),
		}
	}

	if len(decoded.Routes) == 0 {
		return domain.RouteResult{}, &domain.ProviderError{StatusCode: resp.StatusCode, Err: domain.ErrNoRoutes}
	}

	route := decoded.Routes[0]
	if route.Summary.Distance < 0 || route.Summary.Duration < 0 {
		return domain.RouteResult{}, &domain.ProviderError{
			StatusCode: resp.StatusCode,
			Err:        errors.New("negative distance or duration in response"),
		}
	}

	return domain.RouteResult{
		EncodedPath:   route.Geometry,
		DistanceMiles: route.Summary.Distance / metersPerMile,
		DurationHours: route.Summary.Duration / secondsPerHour,
	}, nil
}
