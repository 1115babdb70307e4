package listing

import (
	"context"
	"sort"
	"strings"
	"time"

	"backend-flathunt/internal/status"
)

// SetAppointment records a visit date and notes on the listing. Past dates
// are accepted.
func (s *Service) SetAppointment(ctx context.Context, id string, at time.Time, notes string) (Appointment, error) {
	var notesArg *string
	if n := strings.TrimSpace(notes); n != "" {
		notesArg = &n
	}
	a, err := scanAppointment(s.db.QueryRow(ctx, `
		UPDATE listings SET appointment_date=$2, appointment_notes=$3, updated_at=now()
		WHERE id=$1
		RETURNING id, title, address, status, appointment_date, COALESCE(appointment_notes, '')
	`, id, at, notesArg))
	if isNotFound(err) {
		return Appointment{}, ErrNotFound
	}
	if err != nil {
		return Appointment{}, err
	}
	s.publish("appointment", id, a)
	return a, nil
}

// CancelAppointment clears both appointment fields.
func (s *Service) CancelAppointment(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE listings SET appointment_date=NULL, appointment_notes=NULL, updated_at=now()
		WHERE id=$1
	`, id)
	if isNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.publish("appointment", id, nil)
	return nil
}

// Appointments lists every scheduled visit, soonest first.
func (s *Service) Appointments(ctx context.Context) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, title, address, status, appointment_date, COALESCE(appointment_notes, '')
		FROM listings
		WHERE appointment_date IS NOT NULL
		ORDER BY appointment_date
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appointments := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, a)
	}
	return appointments, rows.Err()
}

// GroupByDay buckets appointments by their date in loc, in chronological
// order.
func GroupByDay(appointments []Appointment, loc *time.Location) []CalendarDay {
	if loc == nil {
		loc = time.UTC
	}
	sorted := make([]Appointment, len(appointments))
	copy(sorted, appointments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	days := []CalendarDay{}
	for _, a := range sorted {
		key := a.Date.In(loc).Format("2006-01-02")
		if n := len(days); n > 0 && days[n-1].Date == key {
			days[n-1].Appointments = append(days[n-1].Appointments, a)
			continue
		}
		days = append(days, CalendarDay{Date: key, Appointments: []Appointment{a}})
	}
	return days
}

func scanAppointment(row interface{ Scan(dest ...any) error }) (Appointment, error) {
	var a Appointment
	var st string
	if err := row.Scan(&a.ListingID, &a.Title, &a.Address, &st, &a.Date, &a.Notes); err != nil {
		return Appointment{}, err
	}
	a.Status = status.Status(st)
	return a, nil
}
