package reference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backend-flathunt/internal/db"
	"backend-flathunt/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MaxAddresses is the number of reference addresses that may exist at once.
const MaxAddresses = 4

var (
	ErrNotFound     = fmt.Errorf("reference address %w", db.ErrNotFound)
	ErrLimitReached = fmt.Errorf("maximum %d reference addresses allowed", MaxAddresses)
	ErrInvalid      = errors.New("name and address required")
)

type Service struct {
	db db.Querier
}

func NewService(q db.Querier) *Service {
	return &Service{db: q}
}

// List returns every address in creation order.
func (s *Service) List(ctx context.Context) ([]Address, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, address, latitude, longitude, created_at
		FROM reference_addresses
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	addresses := []Address{}
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.Name, &a.Address, &a.Latitude, &a.Longitude, &a.CreatedAt); err != nil {
			return nil, err
		}
		addresses = append(addresses, a)
	}
	return addresses, rows.Err()
}

func (s *Service) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM reference_addresses`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Create inserts a new address unless MaxAddresses already exist.
func (s *Service) Create(ctx context.Context, input Address) (Address, error) {
	if err := validate(input); err != nil {
		return Address{}, err
	}
	n, err := s.Count(ctx)
	if err != nil {
		return Address{}, err
	}
	if n >= MaxAddresses {
		return Address{}, ErrLimitReached
	}

	input.ID = uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO reference_addresses (id, name, address, latitude, longitude)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, input.ID, input.Name, input.Address, input.Latitude, input.Longitude)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Address{}, err
	}
	return input, nil
}

func (s *Service) Update(ctx context.Context, id string, input Address) error {
	if err := validate(input); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE reference_addresses SET name=$2, address=$3, latitude=$4, longitude=$5
		WHERE id=$1
	`, id, input.Name, input.Address, input.Latitude, input.Longitude)
	return affected(tag, err)
}

// Delete removes the address and, through the foreign key, its travel times.
func (s *Service) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM reference_addresses WHERE id=$1`, id)
	return affected(tag, err)
}

// Coordinates returns the address position; ok is false when either
// coordinate is unset.
func (s *Service) Coordinates(ctx context.Context, id string) (geo.Point, bool, error) {
	var lat, lng *float64
	err := s.db.QueryRow(ctx, `SELECT latitude, longitude FROM reference_addresses WHERE id=$1`, id).Scan(&lat, &lng)
	if isNotFound(err) {
		return geo.Point{}, false, ErrNotFound
	}
	if err != nil {
		return geo.Point{}, false, err
	}
	p, ok := geo.PointFrom(lat, lng)
	return p, ok, nil
}

func validate(a Address) error {
	if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.Address) == "" {
		return ErrInvalid
	}
	return nil
}

func affected(tag pgconn.CommandTag, err error) error {
	if isNotFound(err) {
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

func isNotFound(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
