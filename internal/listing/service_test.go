package listing

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"backend-flathunt/internal/status"
	"backend-flathunt/internal/stream"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
)

var listingCols = []string{
	"id", "url", "title", "type", "rooms", "location", "address", "latitude", "longitude", "images",
	"size", "floor", "price", "charges", "description", "agency_contact", "conditions", "dpe", "heating",
	"status", "votes", "online", "appointment_date", "appointment_notes", "created_at", "updated_at",
}

type recorder struct {
	events []stream.Event
}

func (r *recorder) Publish(_ string, ev stream.Event) {
	r.events = append(r.events, ev)
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func listingRows() *pgxmock.Rows {
	return pgxmock.NewRows(listingCols)
}

func addListing(rows *pgxmock.Rows, id, title string, votes int, st string, images []string) *pgxmock.Rows {
	now := time.Now()
	return rows.AddRow(id, "https://example.com/"+id, title, "apartment", nil, "", "1 rue de la Paix", nil, nil, images,
		nil, nil, nil, nil, "", "", "", "", "", st, votes, true, nil, nil, now, now)
}

// writeArgs matches the 23 arguments of an insert or update, checking
// title, images and status.
func writeArgs(first any, title string, images []string, st string) []any {
	args := make([]any, 23)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	args[0] = first
	args[2] = title
	args[9] = images
	args[19] = st
	return args
}

func expectEnrich(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery(`SELECT id, listing_id, content, created_at\s+FROM comments WHERE listing_id = ANY`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "listing_id", "content", "created_at"}))
	mock.ExpectQuery(`FROM travel_times WHERE listing_id = ANY`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "listing_id", "reference_address_id", "minutes", "is_manual", "created_at"}))
}

func TestCreateDefaults(t *testing.T) {
	mock := newMock(t)
	events := &recorder{}
	svc := NewService(mock, events)

	mock.ExpectQuery(`INSERT INTO listings`).
		WithArgs(writeArgs(pgxmock.AnyArg(), "Studio", []string{}, "to_contact")...).
		WillReturnRows(addListing(listingRows(), "l-1", "Studio", 0, "to_contact", []string{}))

	l, err := svc.Create(context.Background(), Input{Title: "Studio"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.Status != status.ToContact || l.Votes != 0 {
		t.Fatalf("unexpected defaults: %+v", l)
	}
	if l.Images == nil || len(l.Images) != 0 || l.Comments == nil || l.TravelTimes == nil {
		t.Fatalf("expected empty sequences")
	}
	if len(events.events) != 1 || events.events[0].Type != "created" {
		t.Fatalf("expected created event, got %+v", events.events)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateImagesRoundTrip(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	images := []string{"a.jpg", "b.jpg"}
	mock.ExpectQuery(`INSERT INTO listings`).
		WithArgs(writeArgs(pgxmock.AnyArg(), "T3", images, "visited")...).
		WillReturnRows(addListing(listingRows(), "l-2", "T3", 0, "visited", images))

	l, err := svc.Create(context.Background(), Input{Title: "T3", Images: "a.jpg,b.jpg", Status: "visited"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(l.Images) != 2 || l.Images[0] != "a.jpg" || l.Images[1] != "b.jpg" {
		t.Fatalf("unexpected images %v", l.Images)
	}
}

func TestInvalidStatusNeverWrites(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	if _, err := svc.Create(context.Background(), Input{Title: "x", Status: "archived"}); !errors.Is(err, status.ErrInvalid) {
		t.Fatalf("create: expected invalid status, got %v", err)
	}
	if _, err := svc.Update(context.Background(), "l-1", Input{Title: "x", Status: "sold"}); !errors.Is(err, status.ErrInvalid) {
		t.Fatalf("update: expected invalid status, got %v", err)
	}
	if err := svc.SetStatus(context.Background(), "l-1", status.Status("sold")); !errors.Is(err, status.ErrInvalid) {
		t.Fatalf("set status: expected invalid status, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected database calls: %v", err)
	}
}

func TestUpdateKeepsExistingImages(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	mock.ExpectQuery(`UPDATE listings SET url=\$2`).
		WithArgs(writeArgs("l-1", "Renamed", []string{"old.jpg"}, "contacting")...).
		WillReturnRows(addListing(listingRows(), "l-1", "Renamed", 2, "contacting", []string{"old.jpg"}))
	expectEnrich(mock)

	l, err := svc.Update(context.Background(), "l-1", Input{Title: "Renamed", ExistingImages: "old.jpg", Status: "contacting"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if l.Votes != 2 || l.Images[0] != "old.jpg" {
		t.Fatalf("unexpected listing %+v", l)
	}

	mock.ExpectQuery(`UPDATE listings SET url=\$2`).
		WithArgs(writeArgs("missing", "Renamed", []string{}, "to_contact")...).
		WillReturnRows(listingRows())
	if _, err := svc.Update(context.Background(), "missing", Input{Title: "Renamed"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFetchOneEmptySequences(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	mock.ExpectQuery(`FROM listings WHERE id=\$1`).
		WithArgs("l-1").
		WillReturnRows(addListing(listingRows(), "l-1", "Loft", 1, "apt", nil))
	expectEnrich(mock)

	l, err := svc.FetchOne(context.Background(), "l-1")
	if err != nil {
		t.Fatalf("fetch one: %v", err)
	}
	payload, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, field := range []string{`"comments":[]`, `"travel_times":[]`, `"images":[]`} {
		if !strings.Contains(string(payload), field) {
			t.Fatalf("expected %s in %s", field, payload)
		}
	}
}

func TestFetchOneNotFound(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM listings WHERE id=\$1`).
		WithArgs("nope").
		WillReturnRows(listingRows())

	if _, err := NewService(mock, nil).FetchOne(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFetchAllSortAndAggregation(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)
	now := time.Now()

	mock.ExpectQuery(`FROM listings ORDER BY title COLLATE "C" ASC, created_at DESC`).
		WillReturnRows(addListing(addListing(listingRows(), "l-a", "Zebra loft", 0, "to_contact", nil), "l-b", "appartement", 5, "ended", nil))
	mock.ExpectQuery(`FROM comments WHERE listing_id = ANY\(\$1::uuid\[\]\)\s+ORDER BY created_at DESC, seq DESC`).
		WithArgs([]string{"l-a", "l-b"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "listing_id", "content", "created_at"}).
			AddRow("c-3", "l-b", "newest", now).
			AddRow("c-2", "l-b", "same instant, inserted earlier", now).
			AddRow("c-1", "l-b", "oldest", now.Add(-time.Hour)))
	mock.ExpectQuery(`FROM travel_times WHERE listing_id = ANY`).
		WithArgs([]string{"l-a", "l-b"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "listing_id", "reference_address_id", "minutes", "is_manual", "created_at"}).
			AddRow("t-1", "l-a", "a-1", 25, false, now))

	listings, err := svc.FetchAll(context.Background(), SortAlphabetical)
	if err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	if len(listings) != 2 || !sort.StringsAreSorted([]string{listings[0].Title, listings[1].Title}) {
		t.Fatalf("expected byte-wise title order, got %+v", listings)
	}
	if len(listings[0].Comments) != 0 || len(listings[0].TravelTimes) != 1 {
		t.Fatalf("unexpected aggregation for l-a")
	}
	if len(listings[1].Comments) != 3 || listings[1].Comments[0].ID != "c-3" || listings[1].Comments[1].ID != "c-2" {
		t.Fatalf("expected most recent comment first")
	}

	for _, key := range []string{SortVotes, "bogus", ""} {
		mock.ExpectQuery(`FROM listings ORDER BY votes DESC`).
			WillReturnRows(listingRows())
		listings, err := svc.FetchAll(context.Background(), key)
		if err != nil {
			t.Fatalf("fetch all %q: %v", key, err)
		}
		if listings == nil {
			t.Fatalf("expected empty slice for %q", key)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDelete(t *testing.T) {
	mock := newMock(t)
	events := &recorder{}
	svc := NewService(mock, events)

	mock.ExpectExec(`DELETE FROM listings WHERE id=\$1`).
		WithArgs("l-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	if err := svc.Delete(context.Background(), "l-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	mock.ExpectExec(`DELETE FROM listings`).
		WithArgs("l-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	if err := svc.Delete(context.Background(), "l-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(events.events) != 1 || events.events[0].Type != "deleted" {
		t.Fatalf("expected one deleted event, got %+v", events.events)
	}
}

func TestAdjustVotesRoundTrip(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	mock.ExpectQuery(`UPDATE listings SET votes = votes \+ \$2`).
		WithArgs("l-1", 1).
		WillReturnRows(pgxmock.NewRows([]string{"votes"}).AddRow(4))
	mock.ExpectQuery(`UPDATE listings SET votes = votes \+ \$2`).
		WithArgs("l-1", -1).
		WillReturnRows(pgxmock.NewRows([]string{"votes"}).AddRow(3))

	up, err := svc.AdjustVotes(context.Background(), "l-1", 1)
	if err != nil {
		t.Fatalf("vote up: %v", err)
	}
	down, err := svc.AdjustVotes(context.Background(), "l-1", -1)
	if err != nil {
		t.Fatalf("vote down: %v", err)
	}
	if up != 4 || down != 3 {
		t.Fatalf("expected round trip 4 then 3, got %d and %d", up, down)
	}

	if _, err := svc.AdjustVotes(context.Background(), "l-1", 2); !errors.Is(err, ErrInvalidDelta) {
		t.Fatalf("expected invalid delta, got %v", err)
	}

	mock.ExpectQuery(`UPDATE listings SET votes`).
		WithArgs("gone", 1).
		WillReturnRows(pgxmock.NewRows([]string{"votes"}))
	if _, err := svc.AdjustVotes(context.Background(), "gone", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetStatusAcceptsFullSet(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	mock.ExpectExec(`UPDATE listings SET status=\$2`).
		WithArgs("l-1", "evaluating").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := svc.SetStatus(context.Background(), "l-1", status.Evaluating); err != nil {
		t.Fatalf("set status: %v", err)
	}

	mock.ExpectExec(`UPDATE listings SET status=\$2`).
		WithArgs("gone", "offline").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	if err := svc.SetStatus(context.Background(), "gone", status.Offline); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddComment(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	if _, err := svc.AddComment(context.Background(), "l-1", "   "); !errors.Is(err, ErrEmptyComment) {
		t.Fatalf("expected empty comment error, got %v", err)
	}

	mock.ExpectQuery(`INSERT INTO comments`).
		WithArgs(pgxmock.AnyArg(), "l-1", "Nice view").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	c, err := svc.AddComment(context.Background(), "l-1", "  Nice view ")
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if c.ID == "" || c.Content != "Nice view" {
		t.Fatalf("unexpected comment %+v", c)
	}

	mock.ExpectQuery(`INSERT INTO comments`).
		WithArgs(pgxmock.AnyArg(), "gone", "hello").
		WillReturnError(&pgconn.PgError{Code: "23503"})
	if _, err := svc.AddComment(context.Background(), "gone", "hello"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAppointmentSetAndCancel(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	at, err := ParseAppointmentDate("2025-03-01T10:00", time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mock.ExpectQuery(`UPDATE listings SET appointment_date=\$2, appointment_notes=\$3`).
		WithArgs("l-1", at, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "address", "status", "appointment_date", "notes"}).
			AddRow("l-1", "Loft", "1 rue", "apt", at, "bring ID"))

	a, err := svc.SetAppointment(context.Background(), "l-1", at, "bring ID")
	if err != nil {
		t.Fatalf("set appointment: %v", err)
	}
	if !a.Date.Equal(at) || a.Notes != "bring ID" {
		t.Fatalf("unexpected appointment %+v", a)
	}

	mock.ExpectExec(`UPDATE listings SET appointment_date=NULL, appointment_notes=NULL`).
		WithArgs("l-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := svc.CancelAppointment(context.Background(), "l-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	mock.ExpectQuery(`FROM listings WHERE id=\$1`).
		WithArgs("l-1").
		WillReturnRows(addListing(listingRows(), "l-1", "Loft", 0, "apt", nil))
	expectEnrich(mock)
	l, err := svc.FetchOne(context.Background(), "l-1")
	if err != nil {
		t.Fatalf("fetch one: %v", err)
	}
	if l.AppointmentDate != nil || l.AppointmentNotes != nil {
		t.Fatalf("expected appointment cleared")
	}

	mock.ExpectExec(`UPDATE listings SET appointment_date=NULL`).
		WithArgs("gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	if err := svc.CancelAppointment(context.Background(), "gone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAppointmentsOrderedByDate(t *testing.T) {
	mock := newMock(t)
	first := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE appointment_date IS NOT NULL\s+ORDER BY appointment_date`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "address", "status", "appointment_date", "notes"}).
			AddRow("l-1", "Loft", "1 rue", "apt", first, "").
			AddRow("l-2", "Studio", "2 rue", "visited", first.Add(26*time.Hour), "keys"))

	appointments, err := NewService(mock, nil).Appointments(context.Background())
	if err != nil {
		t.Fatalf("appointments: %v", err)
	}
	if len(appointments) != 2 || appointments[1].Status != status.Visited {
		t.Fatalf("unexpected appointments %+v", appointments)
	}
	if days := GroupByDay(appointments, time.UTC); len(days) != 2 {
		t.Fatalf("expected two calendar days, got %d", len(days))
	}
}

func TestCoordinates(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)
	lat, lng := 48.85, 2.35

	mock.ExpectQuery(`SELECT latitude, longitude FROM listings`).
		WithArgs("l-1").
		WillReturnRows(pgxmock.NewRows([]string{"latitude", "longitude"}).AddRow(&lat, &lng))
	p, ok, err := svc.Coordinates(context.Background(), "l-1")
	if err != nil || !ok || p.Lat != lat {
		t.Fatalf("unexpected coordinates %+v %v %v", p, ok, err)
	}

	mock.ExpectQuery(`SELECT latitude, longitude FROM listings`).
		WithArgs("gone").
		WillReturnRows(pgxmock.NewRows([]string{"latitude", "longitude"}))
	if _, _, err := svc.Coordinates(context.Background(), "gone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
