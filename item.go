package storypager

import (
	"time"

	"github.com/samber/lo"
)

// Item is a single story as returned by the feed endpoint. Items are never
// mutated after decoding.
type Item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PhotoURL    string    `json:"photoUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	Lat         *float64  `json:"lat,omitempty"`
	Lon         *float64  `json:"lon,omitempty"`
}

// HasLocation reports whether both coordinates are present.
func (i Item) HasLocation() bool {
	return i.Lat != nil && i.Lon != nil
}

// SameItem reports whether a and b are the same story, possibly in different
// revisions.
func SameItem(a, b Item) bool {
	return a.ID == b.ID
}

// SameContent reports whether a and b are equal field by field.
func SameContent(a, b Item) bool {
	return a.ID == b.ID &&
		a.Name == b.Name &&
		a.Description == b.Description &&
		a.PhotoURL == b.PhotoURL &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		sameCoordinate(a.Lat, b.Lat) &&
		sameCoordinate(a.Lon, b.Lon)
}

func sameCoordinate(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return lo.FromPtr(a) == lo.FromPtr(b)
}
