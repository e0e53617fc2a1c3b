package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Dealer models a seller with an optional geocoded location. Listings
// reference dealers by id; a listing without a dealer is excluded from
// geographic filtering and sorting.
type Dealer struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Website *string `json:"website,omitempty"`

	Address *string `json:"address,omitempty"`
	City    *string `json:"city,omitempty"`
	State   *string `json:"state,omitempty"`
	ZipCode *string `json:"zipCode,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	DealerType *string `json:"dealerType,omitempty"`
}

// DealerColumns is the dealer side of the left-joined select list paired
// with ListingColumns.
const DealerColumns = `
	d.id, d.name, d.website, d.address, d.city, d.state, d.zip_code,
	d.latitude, d.longitude, d.dealer_type`

// DealerByID returns a single dealer by its identifier.
func (s *Store) DealerByID(ctx context.Context, id string) (Dealer, error) {
	var d Dealer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, website, address, city, state, zip_code,
			latitude, longitude, dealer_type
		FROM dealers
		WHERE id = $1
	`, id).Scan(
		&d.ID, &d.Name, &d.Website, &d.Address, &d.City, &d.State, &d.ZipCode,
		&d.Latitude, &d.Longitude, &d.DealerType,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Dealer{}, ErrDealerNotFound
		}
		return Dealer{}, fmt.Errorf("lookup dealer: %w", err)
	}
	return d, nil
}

// UpsertDealer inserts a dealer or refreshes its location fields. The
// ingestion pipeline supplies ids it has seen before; a blank id gets a
// fresh one.
func (s *Store) UpsertDealer(ctx context.Context, dealer Dealer) (string, error) {
	if strings.TrimSpace(dealer.Name) == "" {
		return "", fmt.Errorf("%w: dealer name is required", ErrInvalidListing)
	}
	if dealer.ID == "" {
		dealer.ID = uuid.New().String()
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO dealers (id, name, website, address, city, state, zip_code, latitude, longitude, dealer_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, website = EXCLUDED.website,
			address = EXCLUDED.address, city = EXCLUDED.city, state = EXCLUDED.state,
			zip_code = EXCLUDED.zip_code, latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude, dealer_type = EXCLUDED.dealer_type
	`,
		dealer.ID, dealer.Name, dealer.Website, dealer.Address, dealer.City,
		dealer.State, dealer.ZipCode, dealer.Latitude, dealer.Longitude, dealer.DealerType,
	); err != nil {
		return "", fmt.Errorf("upsert dealer: %w", err)
	}

	return dealer.ID, nil
}

// nullableDealer scans the dealer side of a left join, where every column
// may be NULL because the listing has no dealer.
type nullableDealer struct {
	ID         sql.NullString
	Name       sql.NullString
	Website    sql.NullString
	Address    sql.NullString
	City       sql.NullString
	State      sql.NullString
	ZipCode    sql.NullString
	Latitude   sql.NullFloat64
	Longitude  sql.NullFloat64
	DealerType sql.NullString
}

func (n nullableDealer) dealer() *Dealer {
	if !n.ID.Valid {
		return nil
	}

	d := &Dealer{
		ID:   n.ID.String,
		Name: n.Name.String,
	}
	if n.Website.Valid {
		d.Website = &n.Website.String
	}
	if n.Address.Valid {
		d.Address = &n.Address.String
	}
	if n.City.Valid {
		d.City = &n.City.String
	}
	if n.State.Valid {
		d.State = &n.State.String
	}
	if n.ZipCode.Valid {
		d.ZipCode = &n.ZipCode.String
	}
	if n.Latitude.Valid {
		d.Latitude = &n.Latitude.Float64
	}
	if n.Longitude.Valid {
		d.Longitude = &n.Longitude.Float64
	}
	if n.DealerType.Valid {
		d.DealerType = &n.DealerType.String
	}
	return d
}
