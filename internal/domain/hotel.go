package domain

import (
	"sort"
	"strings"
)

// RoomType is a catalog entry: the flat price of a stay and how many guests fit.
type RoomType struct {
	Price    int `json:"price" yaml:"price"`
	Capacity int `json:"capacity" yaml:"capacity"`
}

// Hotel is the static reference data the concierge answers from.
// Rooms is keyed by lower-case room type name.
type Hotel struct {
	Name               string              `json:"name" yaml:"name"`
	Location           string              `json:"location" yaml:"location"`
	Amenities          []string            `json:"amenities" yaml:"amenities"`
	CheckInTime        string              `json:"checkInTime" yaml:"checkInTime"`
	CheckOutTime       string              `json:"checkOutTime" yaml:"checkOutTime"`
	CancellationPolicy string              `json:"cancellationPolicy,omitempty" yaml:"cancellationPolicy,omitempty"`
	Rooms              map[string]RoomType `json:"roomTypes" yaml:"roomTypes"`
}

// DefaultHotel returns the built-in catalog.
func DefaultHotel() Hotel {
	return Hotel{
		Name:               "Sunset Resort",
		Location:           "Goa, India",
		Amenities:          []string{"pool", "spa", "restaurant", "free Wi-Fi"},
		CheckInTime:        "2:00 PM",
		CheckOutTime:       "11:00 AM",
		CancellationPolicy: "Free cancellation up to 24 hours before check-in; later cancellations are charged one night.",
		Rooms: map[string]RoomType{
			"standard": {Price: 5000, Capacity: 2},
			"deluxe":   {Price: 8000, Capacity: 4},
			"suite":    {Price: 12000, Capacity: 6},
		},
	}
}

// Room looks up a room type by name, case-insensitively.
func (h Hotel) Room(name string) (RoomType, bool) {
	rt, ok := h.Rooms[strings.ToLower(name)]
	return rt, ok
}

// RoomNames returns the room type names ordered by price, then name.
func (h Hotel) RoomNames() []string {
	names := make([]string, 0, len(h.Rooms))
	for name := range h.Rooms {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := h.Rooms[names[i]].Price, h.Rooms[names[j]].Price
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j]
	})
	return names
}
