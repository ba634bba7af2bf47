package therapist

import "context"

// Therapist is one entry of the contact directory.
type Therapist struct {
	Name        string   `json:"name"`
	Source      string   `json:"source"`
	Address     string   `json:"address,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	RatingCount int64    `json:"user_ratings_total,omitempty"`
	Experience  string   `json:"experience,omitempty"`
	Clinic      string   `json:"clinic,omitempty"`
	Link        string   `json:"link"`
}

// Source produces directory entries from one provider.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Therapist, error)
}
