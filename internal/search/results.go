package search

import (
	"github.com/smashj-dev/car-search-platform/internal/store"
)

// Row is one search hit: a listing, its dealer when known, and the
// computed distance from the search origin when a geographic search ran.
type Row struct {
	store.Listing
	Dealer   *store.Dealer `json:"dealer,omitempty"`
	Distance *int          `json:"distance,omitempty"`
}

// Meta carries pagination metadata for one result page.
type Meta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// FacetValue is one value/count pair within a facet dimension.
type FacetValue struct {
	Value any `json:"value"`
	Count int `json:"count"`
}

// Facets maps dimension name to its value histogram, computed over the
// fully filtered result set.
type Facets map[string][]FacetValue

// StatsValues summarizes a numeric column over the filtered set.
type StatsValues struct {
	Min    int      `json:"min"`
	Max    int      `json:"max"`
	Avg    int      `json:"avg"`
	Median *float64 `json:"median,omitempty"`
}

// YearStats summarizes the model-year range of the filtered set.
type YearStats struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Stats aggregates the distribution summaries for one search.
type Stats struct {
	Price StatsValues `json:"price"`
	Miles StatsValues `json:"miles"`
	Year  YearStats   `json:"year"`
}

// BucketValue is one fixed-boundary histogram bucket.
type BucketValue struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Buckets holds the fixed-boundary histograms for UI rendering. Buckets
// with zero count are omitted; the ones present keep canonical order.
type Buckets struct {
	Price []BucketValue `json:"price"`
	Miles []BucketValue `json:"miles"`
	Year  []BucketValue `json:"year"`
}

// Results is the composed search envelope. Facets, Stats, and Buckets are
// nil when the caller opted out via feature flags.
type Results struct {
	Data    []Row    `json:"data"`
	Meta    Meta     `json:"meta"`
	Facets  Facets   `json:"facets,omitempty"`
	Stats   *Stats   `json:"stats,omitempty"`
	Buckets *Buckets `json:"buckets,omitempty"`
}

// RangeStats is a global min/max pair for the filter-options endpoint.
type RangeStats struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// FilterOptions is the unfiltered universe of selectable values per
// dimension, used to populate filter UI controls.
type FilterOptions struct {
	Makes         []FacetValue `json:"makes"`
	Conditions    []FacetValue `json:"conditions"`
	Drivetrains   []FacetValue `json:"drivetrains"`
	Transmissions []FacetValue `json:"transmissions"`
	FuelTypes     []FacetValue `json:"fuel_types"`
	DealerTypes   []FacetValue `json:"dealer_types"`
	Ranges        struct {
		Year  RangeStats `json:"year"`
		Price RangeStats `json:"price"`
		Miles RangeStats `json:"miles"`
	} `json:"ranges"`
}
