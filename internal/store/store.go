package store

import (
	"database/sql"
	"errors"
)

var (
	// ErrListingNotFound signals a missing listing record.
	ErrListingNotFound = errors.New("listing not found")
	// ErrInvalidListing indicates validation failure for listing data.
	ErrInvalidListing = errors.New("invalid listing")
	// ErrDealerNotFound signals a missing dealer record.
	ErrDealerNotFound = errors.New("dealer not found")
)

// Store provides persistence backed by Postgres.
type Store struct {
	db *sql.DB
}

// New sets up a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}
