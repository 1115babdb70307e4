package listing

import (
	"time"

	"backend-flathunt/internal/status"
)

type Listing struct {
	ID               string        `json:"id"`
	URL              string        `json:"url"`
	Title            string        `json:"title"`
	Type             string        `json:"type"`
	Rooms            *int          `json:"rooms"`
	Location         string        `json:"location"`
	Address          string        `json:"address"`
	Latitude         *float64      `json:"latitude"`
	Longitude        *float64      `json:"longitude"`
	Images           []string      `json:"images"`
	Size             *float64      `json:"size"`
	Floor            *int          `json:"floor"`
	Price            *float64      `json:"price"`
	Charges          *float64      `json:"charges"`
	Description      string        `json:"description"`
	AgencyContact    string        `json:"agency_contact"`
	Conditions       string        `json:"conditions"`
	DPE              string        `json:"dpe"`
	Heating          string        `json:"heating"`
	Status           status.Status `json:"status"`
	Votes            int           `json:"votes"`
	Online           bool          `json:"online"`
	AppointmentDate  *time.Time    `json:"appointment_date"`
	AppointmentNotes *string       `json:"appointment_notes"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	Comments         []Comment     `json:"comments"`
	TravelTimes      []TravelTime  `json:"travel_times"`
}

type Comment struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TravelTime is the flat row attached to listings in list views. The
// detail view with address names lives in the traveltime package.
type TravelTime struct {
	ID                 string    `json:"id"`
	ListingID          string    `json:"listing_id"`
	ReferenceAddressID string    `json:"reference_address_id"`
	Minutes            int       `json:"minutes"`
	IsManual           bool      `json:"is_manual"`
	CreatedAt          time.Time `json:"created_at"`
}

type Appointment struct {
	ListingID string        `json:"listing_id"`
	Title     string        `json:"title"`
	Address   string        `json:"address"`
	Status    status.Status `json:"status"`
	Date      time.Time     `json:"date"`
	Notes     string        `json:"notes"`
}

// CalendarDay groups the appointments falling on one local date.
type CalendarDay struct {
	Date         string        `json:"date"`
	Appointments []Appointment `json:"appointments"`
}

// Input is the write contract for creating and replacing a listing.
type Input struct {
	URL              string `json:"url"`
	Title            string `json:"title"`
	Type             string `json:"type"`
	Rooms            Number `json:"rooms"`
	Location         string `json:"location"`
	Address          string `json:"address"`
	Latitude         Number `json:"latitude"`
	Longitude        Number `json:"longitude"`
	Images           string `json:"images"`
	ExistingImages   string `json:"existing_images"`
	Size             Number `json:"size"`
	Floor            Number `json:"floor"`
	Price            Number `json:"price"`
	Charges          Number `json:"charges"`
	Description      string `json:"description"`
	AgencyContact    string `json:"agency_contact"`
	Conditions       string `json:"conditions"`
	DPE              string `json:"dpe"`
	Heating          string `json:"heating"`
	Status           string `json:"status"`
	Online           *bool  `json:"online"`
	AppointmentDate  string `json:"appointment_date"`
	AppointmentNotes string `json:"appointment_notes"`
}
