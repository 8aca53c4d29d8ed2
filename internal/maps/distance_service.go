// README: Distance oracle backed by the Google Maps Directions API.
package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"fleetbid/internal/types"
)

const metersPerMile = 1609.344

// DistanceService resolves driving distance and duration for a route.
type DistanceService struct {
	client *maps.Client
}

func NewDistanceService(apiKey string) (*DistanceService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &DistanceService{client: client}, nil
}

// Route returns total miles and minutes for pickup → waypoints… → dropoff.
// With waypoints the distance is the sum of consecutive legs, never the
// direct pickup→dropoff distance.
func (s *DistanceService) Route(ctx context.Context, pickup, dropoff types.Point, waypoints []types.Point) (miles, minutes float64, err error) {
	r := &maps.DirectionsRequest{
		Origin:      latLng(pickup),
		Destination: latLng(dropoff),
		Mode:        maps.TravelModeDriving,
		Region:      "GB",
	}
	for _, w := range waypoints {
		r.Waypoints = append(r.Waypoints, latLng(w))
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return 0, 0, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, 0, fmt.Errorf("no route found")
	}

	for _, leg := range routes[0].Legs {
		miles += float64(leg.Distance.Meters) / metersPerMile
		minutes += leg.Duration.Minutes()
	}
	return miles, minutes, nil
}

func latLng(p types.Point) string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}
