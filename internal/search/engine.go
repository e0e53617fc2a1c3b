package search

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/smashj-dev/car-search-platform/internal/geo"
	"github.com/smashj-dev/car-search-platform/internal/store"
)

// Engine executes one search as a scatter/gather over the listing store:
// the page query, the count query, and the facet, stat, and bucket
// sub-queries all share one predicate list and run concurrently.
type Engine struct {
	db *sql.DB
}

// NewEngine creates an Engine backed by the supplied database handle.
func NewEngine(db *sql.DB) *Engine {
	return &Engine{db: db}
}

const fromListings = `
	FROM listings l
	LEFT JOIN dealers d ON l.dealer_id = d.id
`

// Search runs the composed query set for one request. origin is the
// resolved search origin, or nil when no postal code was supplied or it
// failed to resolve; in the latter case the search silently degrades to a
// non-geographic one.
func (e *Engine) Search(ctx context.Context, f Filters, origin *geo.Coordinates) (*Results, error) {
	preds := BuildPredicates(f)

	res := &Results{
		Data: make([]Row, 0),
		Meta: Meta{Page: f.Page, PerPage: f.PerPage},
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	run := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}

	if f.HasGeoFilter() && origin != nil {
		// Radius filtering cannot be pushed into the store; fetch the
		// whole filtered set, filter by distance, and paginate here.
		// The post-filter count is authoritative for pagination.
		run(func() error {
			rows, total, err := e.geoPage(ctx, f, preds, *origin)
			if err != nil {
				return err
			}
			mu.Lock()
			res.Data = rows
			res.Meta.Total = total
			mu.Unlock()
			return nil
		})
	} else {
		run(func() error {
			rows, err := e.fetchPage(ctx, f, preds, origin)
			if err != nil {
				return err
			}
			mu.Lock()
			res.Data = rows
			mu.Unlock()
			return nil
		})
		run(func() error {
			total, err := e.count(ctx, preds)
			if err != nil {
				return err
			}
			mu.Lock()
			res.Meta.Total = total
			mu.Unlock()
			return nil
		})
	}

	if f.IncludeFacets {
		facets := make(Facets, len(facetDims))
		res.Facets = facets
		for _, dim := range facetDims {
			dim := dim
			run(func() error {
				values, err := e.facet(ctx, preds, dim)
				if err != nil {
					return err
				}
				mu.Lock()
				facets[dim.name] = values
				mu.Unlock()
				return nil
			})
		}
	}
	if f.IncludeStats {
		run(func() error {
			stats, err := e.stats(ctx, preds)
			if err != nil {
				return err
			}
			mu.Lock()
			res.Stats = stats
			mu.Unlock()
			return nil
		})
	}
	if f.IncludeBuckets {
		run(func() error {
			buckets, err := e.buckets(ctx, preds)
			if err != nil {
				return err
			}
			mu.Lock()
			res.Buckets = buckets
			mu.Unlock()
			return nil
		})
	}

	wg.Wait()
	if firstErr != nil {
		// No partial envelopes: if any sub-query failed the whole
		// request fails.
		return nil, firstErr
	}

	res.Meta.TotalPages = totalPages(res.Meta.Total, f.PerPage)
	return res, nil
}

func (e *Engine) fetchPage(ctx context.Context, f Filters, preds Predicates, origin *geo.Coordinates) ([]Row, error) {
	query := `SELECT` + store.ListingColumns + `,` + store.DealerColumns +
		fromListings + preds.Where() +
		" ORDER BY " + orderClause(f) +
		fmt.Sprintf(" LIMIT %d OFFSET %d", f.PerPage, (f.Page-1)*f.PerPage)

	rows, err := e.db.QueryContext(ctx, query, preds.Args()...)
	if err != nil {
		return nil, fmt.Errorf("select listings: %w", err)
	}
	defer rows.Close()

	results := make([]Row, 0, f.PerPage)
	for rows.Next() {
		listing, dealer, err := store.ScanListingWithDealer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		results = append(results, annotate(Row{Listing: listing, Dealer: dealer}, origin))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}

	return results, nil
}

func (e *Engine) count(ctx context.Context, preds Predicates) (int, error) {
	var total int
	err := e.db.QueryRowContext(ctx,
		`SELECT COUNT(*)`+fromListings+preds.Where(),
		preds.Args()...,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return total, nil
}

// geoPage fetches every predicate-matching row, applies the radius filter
// in process, and slices out the requested page. Rows without dealer
// coordinates cannot be proven inside the radius and are excluded.
func (e *Engine) geoPage(ctx context.Context, f Filters, preds Predicates, origin geo.Coordinates) ([]Row, int, error) {
	// A bounding box around the origin prunes the fetch in SQL. The exact
	// haversine check below is still authoritative because the box
	// overshoots at its corners.
	radius := float64(*f.Radius)
	box := geo.Box(origin.Lat, origin.Lon, radius)
	n := preds.NextPlaceholder()
	query := `SELECT` + store.ListingColumns + `,` + store.DealerColumns +
		fromListings +
		preds.Where(
			fmt.Sprintf("d.latitude BETWEEN $%d AND $%d", n, n+1),
			fmt.Sprintf("d.longitude BETWEEN $%d AND $%d", n+2, n+3),
		) +
		" ORDER BY " + orderClause(f)
	args := append(preds.Args(), box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select listings: %w", err)
	}
	defer rows.Close()

	matched := make([]Row, 0)
	for rows.Next() {
		listing, dealer, err := store.ScanListingWithDealer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan listing: %w", err)
		}
		if dealer == nil || dealer.Latitude == nil || dealer.Longitude == nil {
			continue
		}
		if !geo.ValidCoordinates(*dealer.Latitude, *dealer.Longitude) {
			continue
		}

		distance := geo.Distance(origin.Lat, origin.Lon, *dealer.Latitude, *dealer.Longitude)
		if distance > radius {
			continue
		}

		rounded := int(math.Round(distance))
		matched = append(matched, Row{Listing: listing, Dealer: dealer, Distance: &rounded})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate listings: %w", err)
	}

	if f.SortBy == SortByDistance {
		sort.SliceStable(matched, func(i, j int) bool {
			return *matched[i].Distance < *matched[j].Distance
		})
	}

	total := len(matched)
	start := (f.Page - 1) * f.PerPage
	if start >= total {
		return make([]Row, 0), total, nil
	}
	end := start + f.PerPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// facetDim describes one facet sub-query. High-cardinality dimensions are
// capped harder than bounded enumerations.
type facetDim struct {
	name      string
	column    string
	notNull   bool
	limit     int
	byValue   bool // order by the value itself (year) instead of count
	isNumeric bool
}

var facetDims = []facetDim{
	{name: "make", column: "l.make", limit: 50},
	{name: "model", column: "l.model", limit: 50},
	{name: "trim", column: "l.trim", notNull: true, limit: 50},
	{name: "year", column: "l.year", limit: 20, byValue: true, isNumeric: true},
	{name: "condition", column: "l.condition", notNull: true},
	{name: "exterior_color", column: "l.exterior_color", notNull: true, limit: 20},
	{name: "interior_color", column: "l.interior_color", notNull: true, limit: 20},
	{name: "drivetrain", column: "l.drivetrain", notNull: true},
	{name: "transmission", column: "l.transmission", notNull: true},
	{name: "fuel_type", column: "l.fuel_type", notNull: true},
	{name: "dealer_type", column: "d.dealer_type", notNull: true},
}

func (e *Engine) facet(ctx context.Context, preds Predicates, dim facetDim) ([]FacetValue, error) {
	where := preds.Where()
	if dim.notNull {
		where = preds.Where(dim.column + " IS NOT NULL")
	}

	orderBy := " ORDER BY COUNT(*) DESC"
	if dim.byValue {
		orderBy = " ORDER BY " + dim.column + " DESC"
	}

	query := `SELECT ` + dim.column + `, COUNT(*)` + fromListings + where +
		" GROUP BY " + dim.column + orderBy
	if dim.limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", dim.limit)
	}

	rows, err := e.db.QueryContext(ctx, query, preds.Args()...)
	if err != nil {
		return nil, fmt.Errorf("facet %s: %w", dim.name, err)
	}
	defer rows.Close()

	values := make([]FacetValue, 0)
	for rows.Next() {
		var count int
		if dim.isNumeric {
			var value int
			if err := rows.Scan(&value, &count); err != nil {
				return nil, fmt.Errorf("scan facet %s: %w", dim.name, err)
			}
			values = append(values, FacetValue{Value: value, Count: count})
			continue
		}

		var value sql.NullString
		if err := rows.Scan(&value, &count); err != nil {
			return nil, fmt.Errorf("scan facet %s: %w", dim.name, err)
		}
		if value.Valid {
			values = append(values, FacetValue{Value: value.String, Count: count})
		} else {
			values = append(values, FacetValue{Value: nil, Count: count})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facet %s: %w", dim.name, err)
	}

	return values, nil
}

func (e *Engine) stats(ctx context.Context, preds Predicates) (*Stats, error) {
	stats := &Stats{}

	err := e.db.QueryRowContext(ctx,
		`SELECT COALESCE(MIN(l.price), 0), COALESCE(MAX(l.price), 0), COALESCE(ROUND(AVG(l.price)), 0)`+
			fromListings+preds.Where("l.price IS NOT NULL"),
		preds.Args()...,
	).Scan(&stats.Price.Min, &stats.Price.Max, &stats.Price.Avg)
	if err != nil {
		return nil, fmt.Errorf("price stats: %w", err)
	}

	err = e.db.QueryRowContext(ctx,
		`SELECT COALESCE(MIN(l.miles), 0), COALESCE(MAX(l.miles), 0), COALESCE(ROUND(AVG(l.miles)), 0)`+
			fromListings+preds.Where("l.miles IS NOT NULL"),
		preds.Args()...,
	).Scan(&stats.Miles.Min, &stats.Miles.Max, &stats.Miles.Avg)
	if err != nil {
		return nil, fmt.Errorf("miles stats: %w", err)
	}

	err = e.db.QueryRowContext(ctx,
		`SELECT COALESCE(MIN(l.year), 0), COALESCE(MAX(l.year), 0)`+
			fromListings+preds.Where(),
		preds.Args()...,
	).Scan(&stats.Year.Min, &stats.Year.Max)
	if err != nil {
		return nil, fmt.Errorf("year stats: %w", err)
	}

	prices, err := e.intColumn(ctx, preds, "l.price", true)
	if err != nil {
		return nil, fmt.Errorf("median prices: %w", err)
	}
	if median, ok := medianOf(prices); ok {
		stats.Price.Median = &median
	}

	return stats, nil
}

// intColumn fetches every non-null value of one numeric column under the
// shared predicates, optionally sorted ascending.
func (e *Engine) intColumn(ctx context.Context, preds Predicates, column string, sorted bool) ([]int, error) {
	query := `SELECT ` + column + fromListings + preds.Where(column+" IS NOT NULL")
	if sorted {
		query += " ORDER BY " + column + " ASC"
	}

	rows, err := e.db.QueryContext(ctx, query, preds.Args()...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", column, err)
	}
	defer rows.Close()

	var values []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", column, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", column, err)
	}

	return values, nil
}

// medianOf returns the median of sorted values; ok is false for an empty
// slice.
func medianOf(sorted []int) (float64, bool) {
	n := len(sorted)
	if n == 0 {
		return 0, false
	}
	mid := n / 2
	if n%2 == 0 {
		return (float64(sorted[mid-1]) + float64(sorted[mid])) / 2, true
	}
	return float64(sorted[mid]), true
}

var (
	priceBucketLabels = []string{"Under $20k", "$20k-$30k", "$30k-$40k", "$40k-$50k", "$50k+"}
	priceBucketBounds = []int{20000, 30000, 40000, 50000}

	milesBucketLabels = []string{"Under 10k", "10k-25k", "25k-50k", "50k-75k", "75k+"}
	milesBucketBounds = []int{10000, 25000, 50000, 75000}
)

// buckets fetches raw column values and computes fixed-boundary
// histograms in memory, keeping the engine portable across store
// backends. Empty buckets are omitted.
func (e *Engine) buckets(ctx context.Context, preds Predicates) (*Buckets, error) {
	prices, err := e.intColumn(ctx, preds, "l.price", false)
	if err != nil {
		return nil, fmt.Errorf("price buckets: %w", err)
	}

	miles, err := e.intColumn(ctx, preds, "l.miles", false)
	if err != nil {
		return nil, fmt.Errorf("miles buckets: %w", err)
	}

	years, err := e.yearValues(ctx, preds)
	if err != nil {
		return nil, fmt.Errorf("year buckets: %w", err)
	}

	yearLabels, yearOf := yearBucketing(time.Now().Year())

	return &Buckets{
		Price: bucketize(prices, priceBucketLabels, func(v int) string {
			return boundedBucket(v, priceBucketBounds, priceBucketLabels)
		}),
		Miles: bucketize(miles, milesBucketLabels, func(v int) string {
			return boundedBucket(v, milesBucketBounds, milesBucketLabels)
		}),
		Year: bucketize(years, yearLabels, yearOf),
	}, nil
}

func (e *Engine) yearValues(ctx context.Context, preds Predicates) ([]int, error) {
	query := `SELECT l.year` + fromListings + preds.Where()

	rows, err := e.db.QueryContext(ctx, query, preds.Args()...)
	if err != nil {
		return nil, fmt.Errorf("select years: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("scan year: %w", err)
		}
		years = append(years, y)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate years: %w", err)
	}

	return years, nil
}

func boundedBucket(v int, bounds []int, labels []string) string {
	for i, bound := range bounds {
		if v < bound {
			return labels[i]
		}
	}
	return labels[len(labels)-1]
}

/// yearBucketing builds the relative year buckets: the current model year,
// the three preceding it, and everything older. Next-model-year listings
// arrive before the calendar catches up, so future years clamp into the
// newest bucket instead of falling through to the oldest.
func yearBucketing(currentYear int) ([]string, func(int) string) {
	labels := []string{
		strconv.Itoa(currentYear),
		strconv.Itoa(currentYear - 1),
		strconv.Itoa(currentYear - 2),
		strconv.Itoa(currentYear - 3),
		strconv.Itoa(currentYear-4) + " and older",
	}

	return labels, func(y int) string {
		diff := currentYear - y
		if diff < 0 {
			diff = 0
		}
		if diff <= 3 {
			return labels[diff]
		}
		return labels[4]
	}
}

// bucketize counts values per bucket and emits non-empty buckets in
// canonical label order.
func bucketize(values []int, labels []string, bucketOf func(int) string) []BucketValue {
	counts := make(map[string]int)
	for _, v := range values {
		counts[bucketOf(v)]++
	}

	result := make([]BucketValue, 0, len(labels))
	for _, label := range labels {
		if counts[label] > 0 {
			result = append(result, BucketValue{Label: label, Count: counts[label]})
		}
	}
	return result
}

// orderClause maps the requested sort onto whitelisted column
// expressions, always with the listing id as a deterministic tiebreaker
// so page boundaries never duplicate or skip rows under ties.
func orderClause(f Filters) string {
	dir := "ASC"
	if f.SortOrder == SortDesc {
		dir = "DESC"
	}

	var expr string
	switch f.SortBy {
	case SortByMiles:
		expr = "l.miles"
	case SortByYear:
		expr = "l.year"
	case SortByDaysOnLot:
		expr = "EXTRACT(EPOCH FROM (NOW() - l.first_seen_at))"
	case SortByDistance:
		// Distance ordering happens in the application layer after the
		// radius filter; the store query falls back to price.
		expr = "l.price"
	default:
		expr = "l.price"
	}

	return expr + " " + dir + " NULLS LAST, l.id ASC"
}

func annotate(row Row, origin *geo.Coordinates) Row {
	if origin == nil || row.Dealer == nil || row.Dealer.Latitude == nil || row.Dealer.Longitude == nil {
		return row
	}

	distance := geo.Distance(origin.Lat, origin.Lon, *row.Dealer.Latitude, *row.Dealer.Longitude)
	rounded := int(math.Round(distance))
	row.Distance = &rounded
	return row
}

func totalPages(total, perPage int) int {
	if total == 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// FilterOptions returns the unfiltered universe of selectable values per
// dimension plus global numeric ranges, for building filter UI controls.
func (e *Engine) FilterOptions(ctx context.Context) (*FilterOptions, error) {
	preds := BuildPredicates(Filters{})
	opts := &FilterOptions{}

	dims := []struct {
		dst *[]FacetValue
		dim facetDim
	}{
		{&opts.Makes, facetDim{name: "make", column: "l.make", limit: 50}},
		{&opts.Conditions, facetDim{name: "condition", column: "l.condition", notNull: true}},
		{&opts.Drivetrains, facetDim{name: "drivetrain", column: "l.drivetrain", notNull: true}},
		{&opts.Transmissions, facetDim{name: "transmission", column: "l.transmission", notNull: true}},
		{&opts.FuelTypes, facetDim{name: "fuel_type", column: "l.fuel_type", notNull: true}},
		{&opts.DealerTypes, facetDim{name: "dealer_type", column: "d.dealer_type", notNull: true}},
	}

	for _, d := range dims {
		values, err := e.facet(ctx, preds, d.dim)
		if err != nil {
			return nil, err
		}
		*d.dst = values
	}

	ranges := []struct {
		dst     *RangeStats
		column  string
		notNull bool
	}{
		{&opts.Ranges.Year, "l.year", false},
		{&opts.Ranges.Price, "l.price", true},
		{&opts.Ranges.Miles, "l.miles", true},
	}

	for _, r := range ranges {
		where := preds.Where()
		if r.notNull {
			where = preds.Where(r.column + " IS NOT NULL")
		}
		err := e.db.QueryRowContext(ctx,
			`SELECT COALESCE(MIN(`+r.column+`), 0), COALESCE(MAX(`+r.column+`), 0)`+fromListings+where,
			preds.Args()...,
		).Scan(&r.dst.Min, &r.dst.Max)
		if err != nil {
			return nil, fmt.Errorf("range %s: %w", r.column, err)
		}
	}

	return opts, nil
}
