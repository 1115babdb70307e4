package listing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"backend-flathunt/internal/status"
)

const appointmentLayout = "2006-01-02T15:04"

// Number is an optional numeric form field. It accepts a JSON number, a
// numeric string, an empty string or null; the last two leave it unset.
type Number struct {
	value *float64
}

func NumberOf(v float64) Number {
	return Number{value: &v}
}

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		n.value = nil
		return nil
	}
	raw := string(b)
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			n.value = nil
			return nil
		}
		raw = strings.Replace(raw, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s", ErrInvalidNumber, string(b))
	}
	n.value = &v
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if n.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.value)
}

// Float returns the value or nil when unset.
func (n Number) Float() *float64 {
	if n.value == nil {
		return nil
	}
	v := *n.value
	return &v
}

// Int returns the value rounded to an integer, or nil when unset. Values
// outside the INTEGER column range are rejected.
func (n Number) Int() (*int, error) {
	if n.value == nil {
		return nil, nil
	}
	r := math.Round(*n.value)
	if r < math.MinInt32 || r > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %v out of range", ErrInvalidNumber, *n.value)
	}
	v := int(r)
	return &v, nil
}

// SplitImages turns the comma-joined images field into a list, dropping
// blank fragments. It never returns nil.
func SplitImages(s string) []string {
	images := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			images = append(images, p)
		}
	}
	return images
}

// ParseAppointmentDate accepts a datetime-local value interpreted in loc,
// or an RFC 3339 timestamp.
func ParseAppointmentDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(appointmentLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// toListing validates in and maps it onto a Listing. Nothing is written
// when it fails.
func (in Input) toListing() (Listing, error) {
	st, err := status.OrDefault(strings.TrimSpace(in.Status))
	if err != nil {
		return Listing{}, err
	}
	rooms, err := in.Rooms.Int()
	if err != nil {
		return Listing{}, fmt.Errorf("rooms: %w", err)
	}
	floor, err := in.Floor.Int()
	if err != nil {
		return Listing{}, fmt.Errorf("floor: %w", err)
	}

	l := Listing{
		URL:           in.URL,
		Title:         in.Title,
		Type:          in.Type,
		Rooms:         rooms,
		Location:      in.Location,
		Address:       in.Address,
		Latitude:      in.Latitude.Float(),
		Longitude:     in.Longitude.Float(),
		Images:        SplitImages(in.Images),
		Size:          in.Size.Float(),
		Floor:         floor,
		Price:         in.Price.Float(),
		Charges:       in.Charges.Float(),
		Description:   in.Description,
		AgencyContact: in.AgencyContact,
		Conditions:    in.Conditions,
		DPE:           in.DPE,
		Heating:       in.Heating,
		Status:        st,
		Online:        true,
	}
	if len(l.Images) == 0 {
		l.Images = SplitImages(in.ExistingImages)
	}
	if in.Online != nil {
		l.Online = *in.Online
	}
	if strings.TrimSpace(in.AppointmentDate) != "" {
		at, err := ParseAppointmentDate(in.AppointmentDate, time.Local)
		if err != nil {
			return Listing{}, err
		}
		l.AppointmentDate = &at
		if notes := strings.TrimSpace(in.AppointmentNotes); notes != "" {
			l.AppointmentNotes = &notes
		}
	}
	return l, nil
}
