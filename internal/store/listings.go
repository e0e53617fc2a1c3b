package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Listing models one vehicle offer as observed on a source marketplace.
// Only active listings are visible to search; the VIN is unique across
// the table.
type Listing struct {
	ID  string `json:"id"`
	VIN string `json:"vin"`

	Year     int     `json:"year"`
	Make     string  `json:"make"`
	Model    string  `json:"model"`
	Trim     *string `json:"trim,omitempty"`
	BodyType *string `json:"bodyType,omitempty"`

	Engine       *string `json:"engine,omitempty"`
	Transmission *string `json:"transmission,omitempty"`
	Drivetrain   *string `json:"drivetrain,omitempty"`
	FuelType     *string `json:"fuelType,omitempty"`

	ExteriorColor *string `json:"exteriorColor,omitempty"`
	InteriorColor *string `json:"interiorColor,omitempty"`

	Price        *int `json:"price,omitempty"`
	BaseMSRP     *int `json:"baseMsrp,omitempty"`
	CombinedMSRP *int `json:"combinedMsrp,omitempty"`

	Miles       *int    `json:"miles,omitempty"`
	Condition   *string `json:"condition,omitempty"`
	IsCertified bool    `json:"isCertified"`

	IsActive bool `json:"isActive"`
	IsSold   bool `json:"isSold"`

	FirstSeenAt time.Time `json:"firstSeenAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`

	Source    string  `json:"source"`
	SourceURL string  `json:"sourceUrl"`
	ImageURL  *string `json:"imageUrl,omitempty"`

	DealerID *string `json:"dealerId,omitempty"`
}

// ListingColumns is the select list shared by every query that scans a
// full Listing row, including the search engine's page queries.
const ListingColumns = `
	l.id, l.vin, l.year, l.make, l.model, l.trim, l.body_type,
	l.engine, l.transmission, l.drivetrain, l.fuel_type,
	l.exterior_color, l.interior_color,
	l.price, l.base_msrp, l.combined_msrp,
	l.miles, l.condition, l.is_certified,
	l.is_active, l.is_sold,
	l.first_seen_at, l.last_seen_at,
	l.source, l.source_url, l.image_url, l.dealer_id`

// ListingByVIN returns a single listing by its VIN, with the dealer
// attached when one is known.
func (s *Store) ListingByVIN(ctx context.Context, vin string) (Listing, *Dealer, error) {
	vin = strings.ToUpper(strings.TrimSpace(vin))
	if vin == "" {
		return Listing{}, nil, fmt.Errorf("%w: vin is required", ErrInvalidListing)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT`+ListingColumns+`,`+DealerColumns+`
		FROM listings l
		LEFT JOIN dealers d ON l.dealer_id = d.id
		WHERE l.vin = $1
	`, vin)

	listing, dealer, err := ScanListingWithDealer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Listing{}, nil, ErrListingNotFound
		}
		return Listing{}, nil, fmt.Errorf("lookup listing: %w", err)
	}
	return listing, dealer, nil
}

// UpsertResult describes what the ingestion upsert did to a listing.
type UpsertResult struct {
	ID           string
	Created      bool
	PriceChanged bool
}

// UpsertListing records one scrape observation: it inserts a new listing
// for an unseen VIN, or refreshes price, mileage, and last-seen on an
// existing one. A price change appends a price-history row. Callers are
// expected to invalidate the facets cache after a batch of upserts.
func (s *Store) UpsertListing(ctx context.Context, listing Listing) (UpsertResult, error) {
	if err := validateListing(listing); err != nil {
		return UpsertResult{}, err
	}
	listing.VIN = strings.ToUpper(strings.TrimSpace(listing.VIN))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	var (
		existingID    string
		existingPrice sql.NullInt64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, price
		FROM listings
		WHERE vin = $1
	`, listing.VIN).Scan(&existingID, &existingPrice)

	result := UpsertResult{}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		result.ID = uuid.New().String()
		result.Created = true
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO listings (
				id, vin, year, make, model, trim, body_type,
				engine, transmission, drivetrain, fuel_type,
				exterior_color, interior_color,
				price, base_msrp, combined_msrp,
				miles, condition, is_certified,
				is_active, is_sold,
				first_seen_at, last_seen_at,
				source, source_url, image_url, dealer_id
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
				$14, $15, $16, $17, $18, $19, TRUE, FALSE, NOW(), NOW(),
				$20, $21, $22, $23)
		`,
			result.ID, listing.VIN, listing.Year, listing.Make, listing.Model,
			listing.Trim, listing.BodyType,
			listing.Engine, listing.Transmission, listing.Drivetrain, listing.FuelType,
			listing.ExteriorColor, listing.InteriorColor,
			listing.Price, listing.BaseMSRP, listing.CombinedMSRP,
			listing.Miles, listing.Condition, listing.IsCertified,
			listing.Source, listing.SourceURL, listing.ImageURL, listing.DealerID,
		); err != nil {
			return UpsertResult{}, fmt.Errorf("insert listing: %w", err)
		}
	case err != nil:
		return UpsertResult{}, fmt.Errorf("lookup listing: %w", err)
	default:
		result.ID = existingID
		result.PriceChanged = priceChanged(existingPrice, listing.Price)
		if _, err := tx.ExecContext(ctx, `
			UPDATE listings
			SET price = $1, miles = $2, last_seen_at = NOW(), is_active = TRUE
			WHERE id = $3
		`, listing.Price, listing.Miles, existingID); err != nil {
			return UpsertResult{}, fmt.Errorf("update listing: %w", err)
		}
	}

	if result.PriceChanged {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO listing_price_history (id, listing_id, vin, price, miles, source, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`, uuid.New().String(), result.ID, listing.VIN, listing.Price, listing.Miles, listing.Source); err != nil {
			return UpsertResult{}, fmt.Errorf("insert price history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, fmt.Errorf("commit tx: %w", err)
	}
	tx = nil

	return result, nil
}

// DeactivateStale soft-deactivates listings that have not been observed
// since the cutoff. Returns the number of listings deactivated.
func (s *Store) DeactivateStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE listings
		SET is_active = FALSE
		WHERE is_active = TRUE AND last_seen_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deactivate stale listings: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deactivated listings: %w", err)
	}
	return n, nil
}

func validateListing(listing Listing) error {
	switch {
	case strings.TrimSpace(listing.VIN) == "":
		return fmt.Errorf("%w: vin is required", ErrInvalidListing)
	case listing.Year <= 0:
		return fmt.Errorf("%w: year must be positive", ErrInvalidListing)
	case strings.TrimSpace(listing.Make) == "":
		return fmt.Errorf("%w: make is required", ErrInvalidListing)
	case strings.TrimSpace(listing.Model) == "":
		return fmt.Errorf("%w: model is required", ErrInvalidListing)
	case strings.TrimSpace(listing.Source) == "":
		return fmt.Errorf("%w: source is required", ErrInvalidListing)
	}
	return nil
}

func priceChanged(previous sql.NullInt64, observed *int) bool {
	switch {
	case !previous.Valid && observed == nil:
		return false
	case !previous.Valid || observed == nil:
		return true
	default:
		return int(previous.Int64) != *observed
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// ScanListingWithDealer reads a Listing plus its left-joined Dealer from a
// row selected with ListingColumns followed by DealerColumns.
func ScanListingWithDealer(scanner rowScanner) (Listing, *Dealer, error) {
	var (
		l Listing
		d nullableDealer
	)
	if err := scanner.Scan(
		&l.ID, &l.VIN, &l.Year, &l.Make, &l.Model, &l.Trim, &l.BodyType,
		&l.Engine, &l.Transmission, &l.Drivetrain, &l.FuelType,
		&l.ExteriorColor, &l.InteriorColor,
		&l.Price, &l.BaseMSRP, &l.CombinedMSRP,
		&l.Miles, &l.Condition, &l.IsCertified,
		&l.IsActive, &l.IsSold,
		&l.FirstSeenAt, &l.LastSeenAt,
		&l.Source, &l.SourceURL, &l.ImageURL, &l.DealerID,
		&d.ID, &d.Name, &d.Website, &d.Address, &d.City, &d.State, &d.ZipCode,
		&d.Latitude, &d.Longitude, &d.DealerType,
	); err != nil {
		return Listing{}, nil, err
	}
	return l, d.dealer(), nil
}
