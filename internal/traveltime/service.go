package traveltime

import (
	"context"
	"errors"
	"fmt"
	"math"

	"backend-flathunt/internal/db"
	"backend-flathunt/internal/logger"
	"backend-flathunt/internal/ors"
	"backend-flathunt/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound           = fmt.Errorf("listing or reference address %w", db.ErrNotFound)
	ErrMissingCoordinates = errors.New("listing or reference address has no coordinates")
	ErrNotCalculable      = errors.New("travel time not calculable")
	ErrInvalidMinutes     = errors.New("minutes must be zero or more")
	ErrProvider           = errors.New("routing provider failed")
)

// Locator resolves the coordinates of a listing or reference address.
// A missing row is reported with an error wrapping db.ErrNotFound.
type Locator interface {
	Coordinates(ctx context.Context, id string) (geo.Point, bool, error)
}

// Router returns the driving duration in seconds between two points.
type Router interface {
	Route(ctx context.Context, from, to geo.Point) (float64, error)
}

type Service struct {
	db        db.Querier
	listings  Locator
	addresses Locator
	router    Router
	log       logger.Logger
}

func NewService(q db.Querier, listings, addresses Locator, router Router, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{db: q, listings: listings, addresses: addresses, router: router, log: log}
}

// Add stores a travel time. Several rows for the same pair may exist.
func (s *Service) Add(ctx context.Context, listingID, addressID string, minutes int, manual bool) (View, error) {
	if minutes < 0 {
		return View{}, ErrInvalidMinutes
	}
	v := View{
		ID:                 uuid.NewString(),
		ListingID:          listingID,
		ReferenceAddressID: addressID,
		Minutes:            minutes,
		IsManual:           manual,
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO travel_times (id, listing_id, reference_address_id, minutes, is_manual)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, v.ID, v.ListingID, v.ReferenceAddressID, v.Minutes, v.IsManual).Scan(&v.CreatedAt)
	if isMissingParent(err) {
		return View{}, ErrNotFound
	}
	if err != nil {
		return View{}, err
	}
	return v, nil
}

func (s *Service) Update(ctx context.Context, id string, minutes int, manual bool) error {
	if minutes < 0 {
		return ErrInvalidMinutes
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE travel_times SET minutes=$2, is_manual=$3 WHERE id=$1
	`, id, minutes, manual)
	if isMissingParent(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ForListing returns the listing's travel times with the destination name
// and, when both ends are located, the straight-line distance.
func (s *Service) ForListing(ctx context.Context, listingID string) ([]View, error) {
	rows, err := s.db.Query(ctx, `
		SELECT t.id, t.listing_id, t.reference_address_id, r.name, t.minutes, t.is_manual, t.created_at,
			l.latitude, l.longitude, r.latitude, r.longitude
		FROM travel_times t
		JOIN reference_addresses r ON r.id = t.reference_address_id
		JOIN listings l ON l.id = t.listing_id
		WHERE t.listing_id=$1
		ORDER BY r.created_at, t.created_at
	`, listingID)
	if isMissingParent(err) {
		return []View{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := []View{}
	for rows.Next() {
		var v View
		var fromLat, fromLng, toLat, toLng *float64
		if err := rows.Scan(&v.ID, &v.ListingID, &v.ReferenceAddressID, &v.ReferenceAddressName,
			&v.Minutes, &v.IsManual, &v.CreatedAt, &fromLat, &fromLng, &toLat, &toLng); err != nil {
			return nil, err
		}
		from, okFrom := geo.PointFrom(fromLat, fromLng)
		to, okTo := geo.PointFrom(toLat, toLng)
		if okFrom && okTo {
			v.DistanceKm = distance(from, to)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// Compute asks the router for the driving time between a listing and a
// reference address and stores the result as a computed row.
func (s *Service) Compute(ctx context.Context, listingID, addressID string) (View, error) {
	from, ok, err := s.listings.Coordinates(ctx, listingID)
	if err != nil {
		return View{}, notFound(err)
	}
	if !ok {
		return View{}, ErrMissingCoordinates
	}
	to, ok, err := s.addresses.Coordinates(ctx, addressID)
	if err != nil {
		return View{}, notFound(err)
	}
	if !ok {
		return View{}, ErrMissingCoordinates
	}

	seconds, err := s.router.Route(ctx, from, to)
	if errors.Is(err, ors.ErrNoRoute) {
		return View{}, ErrNotCalculable
	}
	if err != nil {
		return View{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	v, err := s.Add(ctx, listingID, addressID, ors.Minutes(seconds), false)
	if err != nil {
		return View{}, err
	}
	v.DistanceKm = distance(from, to)
	return v, nil
}

// Backfill computes a travel time for every located listing and reference
// address pair that has none yet. Failures are logged and skipped; the
// number of stored rows is returned.
func (s *Service) Backfill(ctx context.Context) (int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT l.id, r.id
		FROM listings l
		CROSS JOIN reference_addresses r
		WHERE l.latitude IS NOT NULL AND l.longitude IS NOT NULL
		  AND r.latitude IS NOT NULL AND r.longitude IS NOT NULL
		  AND NOT EXISTS (
			SELECT 1 FROM travel_times t
			WHERE t.listing_id = l.id AND t.reference_address_id = r.id
		  )
		ORDER BY l.created_at, r.created_at
	`)
	if err != nil {
		return 0, err
	}
	type pair struct{ listingID, addressID string }
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.listingID, &p.addressID); err != nil {
			rows.Close()
			return 0, err
		}
		pairs = append(pairs, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	stored := 0
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		if _, err := s.Compute(ctx, p.listingID, p.addressID); err != nil {
			s.log.Warn("travel time backfill skipped",
				logger.String("listing_id", p.listingID),
				logger.String("reference_address_id", p.addressID),
				logger.Error(err))
			continue
		}
		stored++
	}
	s.log.Info("travel time backfill done", logger.Int("pairs", len(pairs)), logger.Int("stored", stored))
	return stored, nil
}

func notFound(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func distance(from, to geo.Point) *float64 {
	km := math.Round(geo.DistanceKm(from, to)*10) / 10
	return &km
}

// isMissingParent matches foreign key violations and ids PostgreSQL cannot
// parse as UUIDs.
func isMissingParent(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23503" || pgErr.Code == "22P02")
}
