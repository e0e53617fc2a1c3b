package search

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Defaults and bounds for pagination.
const (
	DefaultPerPage = 25
	MaxPerPage     = 100
)

// Allowed sort fields and directions.
const (
	SortByPrice     = "price"
	SortByMiles     = "miles"
	SortByYear      = "year"
	SortByDaysOnLot = "days_on_lot"
	SortByDistance  = "distance"

	SortAsc  = "asc"
	SortDesc = "desc"
)

var (
	allowedConditions    = map[string]bool{"new": true, "used": true, "certified": true}
	allowedDrivetrains   = map[string]bool{"fwd": true, "rwd": true, "awd": true, "4wd": true}
	allowedTransmissions = map[string]bool{"automatic": true, "manual": true}
	allowedFuelTypes     = map[string]bool{"gas": true, "diesel": true, "hybrid": true, "electric": true}
	allowedDealerTypes   = map[string]bool{"franchise": true, "independent": true}
	allowedSortFields    = map[string]bool{
		SortByPrice: true, SortByMiles: true, SortByYear: true,
		SortByDaysOnLot: true, SortByDistance: true,
	}
)

// ValidationError reports a malformed filter parameter with field detail.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Filters is the canonical representation of one search request. A nil
// slice or nil numeric pointer means "no constraint on that dimension",
// never "match nothing".
type Filters struct {
	Make  []string
	Model []string
	Trim  []string

	YearMin  *int
	YearMax  *int
	PriceMin *int
	PriceMax *int
	MilesMin *int
	MilesMax *int

	Condition   []string
	IsCertified *bool

	ExteriorColor []string
	InteriorColor []string
	Drivetrain    []string
	Transmission  []string
	FuelType      []string

	DealerType []string

	ZipCode string
	Radius  *int

	Page      int
	PerPage   int
	SortBy    string
	SortOrder string

	IncludeFacets  bool
	IncludeStats   bool
	IncludeBuckets bool
}

// ParseFilters normalizes raw query parameters into a Filters value.
// Non-numeric input for a numeric parameter is a *ValidationError; unknown
// values in enumerated dimensions are dropped silently so older servers
// tolerate newer UI options.
func ParseFilters(params url.Values) (Filters, error) {
	f := Filters{
		Page:           1,
		PerPage:        DefaultPerPage,
		SortBy:         SortByPrice,
		SortOrder:      SortAsc,
		IncludeFacets:  true,
		IncludeStats:   true,
		IncludeBuckets: true,
	}

	f.Make = parseList(params.Get("make"))
	f.Model = parseList(params.Get("model"))
	f.Trim = parseList(params.Get("trim"))

	var err error
	if f.YearMin, err = parseOptionalInt(params.Get("year_min"), "year_min"); err != nil {
		return Filters{}, err
	}
	if f.YearMax, err = parseOptionalInt(params.Get("year_max"), "year_max"); err != nil {
		return Filters{}, err
	}
	if f.PriceMin, err = parseOptionalInt(params.Get("price_min"), "price_min"); err != nil {
		return Filters{}, err
	}
	if f.PriceMax, err = parseOptionalInt(params.Get("price_max"), "price_max"); err != nil {
		return Filters{}, err
	}
	if f.MilesMin, err = parseOptionalInt(params.Get("miles_min"), "miles_min"); err != nil {
		return Filters{}, err
	}
	if f.MilesMax, err = parseOptionalInt(params.Get("miles_max"), "miles_max"); err != nil {
		return Filters{}, err
	}

	f.Condition = filterAllowed(parseList(params.Get("condition")), allowedConditions)
	f.IsCertified = parseOptionalBool(params.Get("is_certified"))

	f.ExteriorColor = parseList(params.Get("exterior_color"))
	f.InteriorColor = parseList(params.Get("interior_color"))
	f.Drivetrain = filterAllowed(parseList(params.Get("drivetrain")), allowedDrivetrains)
	f.Transmission = filterAllowed(parseList(params.Get("transmission")), allowedTransmissions)
	f.FuelType = filterAllowed(parseList(params.Get("fuel_type")), allowedFuelTypes)
	f.DealerType = filterAllowed(parseList(params.Get("dealer_type")), allowedDealerTypes)

	f.ZipCode = strings.TrimSpace(params.Get("zip_code"))
	if f.Radius, err = parseOptionalInt(params.Get("radius"), "radius"); err != nil {
		return Filters{}, err
	}

	if page, err := parseOptionalInt(params.Get("page"), "page"); err != nil {
		return Filters{}, err
	} else if page != nil && *page > 0 {
		f.Page = *page
	}
	if perPage, err := parseOptionalInt(params.Get("per_page"), "per_page"); err != nil {
		return Filters{}, err
	} else if perPage != nil && *perPage > 0 {
		f.PerPage = *perPage
		if f.PerPage > MaxPerPage {
			f.PerPage = MaxPerPage
		}
	}

	if sortBy := params.Get("sort_by"); allowedSortFields[sortBy] {
		f.SortBy = sortBy
	}
	if sortOrder := params.Get("sort_order"); sortOrder == SortAsc || sortOrder == SortDesc {
		f.SortOrder = sortOrder
	}

	if v := parseOptionalBool(params.Get("include_facets")); v != nil {
		f.IncludeFacets = *v
	}
	if v := parseOptionalBool(params.Get("include_stats")); v != nil {
		f.IncludeStats = *v
	}
	if v := parseOptionalBool(params.Get("include_buckets")); v != nil {
		f.IncludeBuckets = *v
	}

	return f, nil
}

// HasGeoFilter reports whether the request asked for radius filtering.
func (f Filters) HasGeoFilter() bool {
	return f.ZipCode != "" && f.Radius != nil && *f.Radius > 0
}

// CacheFields returns the filter dimensions that affect facet content,
// keyed by parameter name. Pagination, sort, and feature flags are
// excluded: they never change facets, stats, or buckets.
func (f Filters) CacheFields() map[string]string {
	fields := make(map[string]string)

	addList := func(key string, values []string) {
		if len(values) > 0 {
			fields[key] = strings.Join(values, ",")
		}
	}
	addInt := func(key string, value *int) {
		if value != nil {
			fields[key] = strconv.Itoa(*value)
		}
	}

	addList("make", f.Make)
	addList("model", f.Model)
	addList("trim", f.Trim)
	addInt("year_min", f.YearMin)
	addInt("year_max", f.YearMax)
	addInt("price_min", f.PriceMin)
	addInt("price_max", f.PriceMax)
	addInt("miles_min", f.MilesMin)
	addInt("miles_max", f.MilesMax)
	addList("condition", f.Condition)
	if f.IsCertified != nil {
		fields["is_certified"] = strconv.FormatBool(*f.IsCertified)
	}
	addList("exterior_color", f.ExteriorColor)
	addList("interior_color", f.InteriorColor)
	addList("drivetrain", f.Drivetrain)
	addList("transmission", f.Transmission)
	addList("fuel_type", f.FuelType)
	addList("dealer_type", f.DealerType)

	return fields
}

func parseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func filterAllowed(values []string, allowed map[string]bool) []string {
	if values == nil {
		return nil
	}

	var kept []string
	for _, v := range values {
		if allowed[v] {
			kept = append(kept, v)
		}
	}
	return kept
}

func parseOptionalInt(raw, field string) (*int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, &ValidationError{Field: field, Message: "must be a number"}
	}
	return &n, nil
}

func parseOptionalBool(raw string) *bool {
	switch raw {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	default:
		return nil
	}
}
