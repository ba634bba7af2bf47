package therapist

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	places "google.golang.org/api/places/v1"
)

const placesFieldMask = "places.id,places.displayName,places.formattedAddress,places.rating,places.userRatingCount,places.googleMapsUri"

// PlacesSource runs a Google Places text search such as "therapist in Hyderabad".
type PlacesSource struct {
	svc   *places.Service
	query string
}

func NewPlacesSource(ctx context.Context, apiKey, keyword, location string, opts ...option.ClientOption) (*PlacesSource, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := places.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create places client: %w", err)
	}
	return &PlacesSource{svc: svc, query: fmt.Sprintf("%s in %s", keyword, location)}, nil
}

func (p *PlacesSource) Name() string { return "google_places" }

func (p *PlacesSource) Fetch(ctx context.Context) ([]Therapist, error) {
	resp, err := p.svc.Places.SearchText(&places.GoogleMapsPlacesV1SearchTextRequest{
		TextQuery: p.query,
	}).Fields(placesFieldMask).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("places text search: %w", err)
	}

	out := make([]Therapist, 0, len(resp.Places))
	for _, place := range resp.Places {
		if place == nil {
			continue
		}
		t := Therapist{
			Source:      p.Name(),
			Address:     place.FormattedAddress,
			RatingCount: place.UserRatingCount,
			Link:        place.GoogleMapsUri,
		}
		if place.DisplayName != nil {
			t.Name = place.DisplayName.Text
		}
		if place.Rating > 0 {
			rating := place.Rating
			t.Rating = &rating
		}
		if t.Link == "" && place.Id != "" {
			t.Link = "https://www.google.com/maps/place/?q=place_id:" + place.Id
		}
		out = append(out, t)
	}
	return out, nil
}
