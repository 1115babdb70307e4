package traveltime

import "time"

// View is a travel time as shown on the listing detail page.
type View struct {
	ID                   string    `json:"id"`
	ListingID            string    `json:"listing_id"`
	ReferenceAddressID   string    `json:"reference_address_id"`
	ReferenceAddressName string    `json:"reference_address_name,omitempty"`
	Minutes              int       `json:"minutes"`
	IsManual             bool      `json:"is_manual"`
	DistanceKm           *float64  `json:"distance_km,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}
