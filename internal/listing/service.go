package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backend-flathunt/internal/db"
	"backend-flathunt/internal/shared/geo"
	"backend-flathunt/internal/status"
	"backend-flathunt/internal/stream"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	SortVotes        = "votes"
	SortAlphabetical = "alphabetical"
)

var (
	ErrNotFound      = fmt.Errorf("listing %w", db.ErrNotFound)
	ErrEmptyComment  = errors.New("comment cannot be empty")
	ErrInvalidDelta  = errors.New("vote delta must be +1 or -1")
	ErrInvalidNumber = errors.New("invalid number")
	ErrInvalidDate   = errors.New("invalid appointment date")
)

const listingColumns = `id, url, title, type, rooms, location, address, latitude, longitude, images,
	size, floor, price, charges, description, agency_contact, conditions, dpe, heating,
	status, votes, online, appointment_date, appointment_notes, created_at, updated_at`

// Publisher receives listing change events. *stream.Hub satisfies it.
type Publisher interface {
	Publish(topic string, ev stream.Event)
}

type Service struct {
	db     db.Querier
	events Publisher
}

// NewService builds the listing service. events may be nil.
func NewService(q db.Querier, events Publisher) *Service {
	return &Service{db: q, events: events}
}

func (s *Service) Create(ctx context.Context, in Input) (Listing, error) {
	l, err := in.toListing()
	if err != nil {
		return Listing{}, err
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO listings (id, url, title, type, rooms, location, address, latitude, longitude, images,
			size, floor, price, charges, description, agency_contact, conditions, dpe, heating,
			status, online, appointment_date, appointment_notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
		RETURNING `+listingColumns,
		uuid.NewString(), l.URL, l.Title, l.Type, l.Rooms, l.Location, l.Address, l.Latitude, l.Longitude, l.Images,
		l.Size, l.Floor, l.Price, l.Charges, l.Description, l.AgencyContact, l.Conditions, l.DPE, l.Heating,
		string(l.Status), l.Online, l.AppointmentDate, l.AppointmentNotes)
	created, err := scanListing(row)
	if err != nil {
		return Listing{}, err
	}
	created.Comments = []Comment{}
	created.TravelTimes = []TravelTime{}
	s.publish("created", created.ID, created)
	return created, nil
}

// Update replaces every editable field of the listing. Votes, comments and
// travel times are kept.
func (s *Service) Update(ctx context.Context, id string, in Input) (Listing, error) {
	l, err := in.toListing()
	if err != nil {
		return Listing{}, err
	}
	row := s.db.QueryRow(ctx, `
		UPDATE listings SET url=$2, title=$3, type=$4, rooms=$5, location=$6, address=$7,
			latitude=$8, longitude=$9, images=$10, size=$11, floor=$12, price=$13, charges=$14,
			description=$15, agency_contact=$16, conditions=$17, dpe=$18, heating=$19,
			status=$20, online=$21, appointment_date=$22, appointment_notes=$23, updated_at=now()
		WHERE id=$1
		RETURNING `+listingColumns,
		id, l.URL, l.Title, l.Type, l.Rooms, l.Location, l.Address, l.Latitude, l.Longitude, l.Images,
		l.Size, l.Floor, l.Price, l.Charges, l.Description, l.AgencyContact, l.Conditions, l.DPE, l.Heating,
		string(l.Status), l.Online, l.AppointmentDate, l.AppointmentNotes)
	updated, err := scanListing(row)
	if isNotFound(err) {
		return Listing{}, ErrNotFound
	}
	if err != nil {
		return Listing{}, err
	}
	listings, err := s.enrich(ctx, []Listing{updated})
	if err != nil {
		return Listing{}, err
	}
	s.publish("updated", id, listings[0])
	return listings[0], nil
}

// FetchOne returns the listing with its comments and travel times.
func (s *Service) FetchOne(ctx context.Context, id string) (Listing, error) {
	row := s.db.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id=$1`, id)
	l, err := scanListing(row)
	if isNotFound(err) {
		return Listing{}, ErrNotFound
	}
	if err != nil {
		return Listing{}, err
	}
	listings, err := s.enrich(ctx, []Listing{l})
	if err != nil {
		return Listing{}, err
	}
	return listings[0], nil
}

// FetchAll returns every listing ordered by sortKey. Unknown keys sort by
// votes.
func (s *Service) FetchAll(ctx context.Context, sortKey string) ([]Listing, error) {
	rows, err := s.db.Query(ctx, `SELECT `+listingColumns+` FROM listings ORDER BY `+orderClause(sortKey))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := []Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return s.enrich(ctx, listings)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM listings WHERE id=$1`, id)
	if isNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.publish("deleted", id, nil)
	return nil
}

// AdjustVotes applies delta in a single statement and returns the new count.
func (s *Service) AdjustVotes(ctx context.Context, id string, delta int) (int, error) {
	if delta != 1 && delta != -1 {
		return 0, ErrInvalidDelta
	}
	var votes int
	err := s.db.QueryRow(ctx, `
		UPDATE listings SET votes = votes + $2, updated_at = now()
		WHERE id=$1
		RETURNING votes
	`, id, delta).Scan(&votes)
	if isNotFound(err) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	s.publish("vote", id, map[string]int{"votes": votes})
	return votes, nil
}

func (s *Service) SetStatus(ctx context.Context, id string, st status.Status) error {
	if !st.IsValid() {
		return fmt.Errorf("%w: %q", status.ErrInvalid, string(st))
	}
	tag, err := s.db.Exec(ctx, `UPDATE listings SET status=$2, updated_at=now() WHERE id=$1`, id, string(st))
	if isNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.publish("status", id, map[string]string{"status": string(st)})
	return nil
}

func (s *Service) AddComment(ctx context.Context, listingID, content string) (Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Comment{}, ErrEmptyComment
	}
	c := Comment{
		ID:        uuid.NewString(),
		ListingID: listingID,
		Content:   content,
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO comments (id, listing_id, content)
		VALUES ($1,$2,$3)
		RETURNING created_at
	`, c.ID, c.ListingID, c.Content).Scan(&c.CreatedAt)
	if isForeignKeyViolation(err) || isNotFound(err) {
		return Comment{}, ErrNotFound
	}
	if err != nil {
		return Comment{}, err
	}
	s.publish("comment", listingID, c)
	return c, nil
}

// Coordinates returns the listing's position; ok is false when either
// coordinate is unset.
func (s *Service) Coordinates(ctx context.Context, id string) (geo.Point, bool, error) {
	var lat, lng *float64
	err := s.db.QueryRow(ctx, `SELECT latitude, longitude FROM listings WHERE id=$1`, id).Scan(&lat, &lng)
	if isNotFound(err) {
		return geo.Point{}, false, ErrNotFound
	}
	if err != nil {
		return geo.Point{}, false, err
	}
	p, ok := geo.PointFrom(lat, lng)
	return p, ok, nil
}

// enrich attaches comments and travel times with one query each.
func (s *Service) enrich(ctx context.Context, listings []Listing) ([]Listing, error) {
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
	}
	comments, err := s.loadComments(ctx, ids)
	if err != nil {
		return nil, err
	}
	travelTimes, err := s.loadTravelTimes(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range listings {
		listings[i].Comments = comments[listings[i].ID]
		if listings[i].Comments == nil {
			listings[i].Comments = []Comment{}
		}
		listings[i].TravelTimes = travelTimes[listings[i].ID]
		if listings[i].TravelTimes == nil {
			listings[i].TravelTimes = []TravelTime{}
		}
	}
	return listings, nil
}

func (s *Service) loadComments(ctx context.Context, listingIDs []string) (map[string][]Comment, error) {
	if len(listingIDs) == 0 {
		return map[string][]Comment{}, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, listing_id, content, created_at
		FROM comments WHERE listing_id = ANY($1::uuid[])
		ORDER BY created_at DESC, seq DESC
	`, listingIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	comments := map[string][]Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.ListingID, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments[c.ListingID] = append(comments[c.ListingID], c)
	}
	return comments, rows.Err()
}

func (s *Service) loadTravelTimes(ctx context.Context, listingIDs []string) (map[string][]TravelTime, error) {
	if len(listingIDs) == 0 {
		return map[string][]TravelTime{}, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, listing_id, reference_address_id, minutes, is_manual, created_at
		FROM travel_times WHERE listing_id = ANY($1::uuid[])
		ORDER BY created_at
	`, listingIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	travelTimes := map[string][]TravelTime{}
	for rows.Next() {
		var t TravelTime
		if err := rows.Scan(&t.ID, &t.ListingID, &t.ReferenceAddressID, &t.Minutes, &t.IsManual, &t.CreatedAt); err != nil {
			return nil, err
		}
		travelTimes[t.ListingID] = append(travelTimes[t.ListingID], t)
	}
	return travelTimes, rows.Err()
}

func (s *Service) publish(kind, listingID string, data any) {
	if s.events == nil {
		return
	}
	s.events.Publish(stream.TopicListings, stream.Event{Type: kind, ListingID: listingID, Data: data})
}

// NormalizeSort maps a requested sort key to the one actually applied.
func NormalizeSort(sortKey string) string {
	if sortKey == SortAlphabetical {
		return SortAlphabetical
	}
	return SortVotes
}

func orderClause(sortKey string) string {
	if NormalizeSort(sortKey) == SortAlphabetical {
		return `title COLLATE "C" ASC, created_at DESC`
	}
	return "votes DESC, created_at DESC"
}

func scanListing(row pgx.Row) (Listing, error) {
	var l Listing
	var st string
	err := row.Scan(&l.ID, &l.URL, &l.Title, &l.Type, &l.Rooms, &l.Location, &l.Address, &l.Latitude, &l.Longitude, &l.Images,
		&l.Size, &l.Floor, &l.Price, &l.Charges, &l.Description, &l.AgencyContact, &l.Conditions, &l.DPE, &l.Heating,
		&st, &l.Votes, &l.Online, &l.AppointmentDate, &l.AppointmentNotes, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return Listing{}, err
	}
	l.Status = status.Status(st)
	if l.Images == nil {
		l.Images = []string{}
	}
	return l, nil
}

// isNotFound also covers ids that are not valid UUIDs, which PostgreSQL
// rejects before looking anything up.
func isNotFound(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
