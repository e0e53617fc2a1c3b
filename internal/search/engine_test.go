package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/smashj-dev/car-search-platform/internal/geo"
)

var resultColumns = []string{
	"id", "vin", "year", "make", "model", "trim", "body_type",
	"engine", "transmission", "drivetrain", "fuel_type",
	"exterior_color", "interior_color",
	"price", "base_msrp", "combined_msrp",
	"miles", "condition", "is_certified",
	"is_active", "is_sold",
	"first_seen_at", "last_seen_at",
	"source", "source_url", "image_url", "dealer_id",
	"d_id", "d_name", "d_website", "d_address", "d_city", "d_state", "d_zip_code",
	"d_latitude", "d_longitude", "d_dealer_type",
}

// listingRow builds one joined result row. lat/lon of nil leaves the
// dealer side of the join empty.
func listingRow(rows *sqlmock.Rows, id, vin string, year int, make, model string, price int, lat, lon any) *sqlmock.Rows {
	now := time.Now()

	dealerID, dealerName, dealerType := any(nil), any(nil), any(nil)
	if lat != nil {
		dealerID, dealerName, dealerType = "dealer-1", "Test Dealer", "franchise"
	}

	return rows.AddRow(
		id, vin, year, make, model, nil, nil,
		nil, nil, nil, nil,
		nil, nil,
		price, nil, nil,
		12000, "used", false,
		true, false,
		now, now,
		"test", nil, nil, dealerID,
		dealerID, dealerName, nil, nil, nil, nil, nil,
		lat, lon, dealerType,
	)
}

func noAggregates(f Filters) Filters {
	f.IncludeFacets = false
	f.IncludeStats = false
	f.IncludeBuckets = false
	return f
}

func TestSearchPageAndCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	rows := sqlmock.NewRows(resultColumns)
	listingRow(rows, "id-1", "VIN00000000000001", 2022, "Toyota", "Camry", 26500, nil, nil)
	listingRow(rows, "id-2", "VIN00000000000002", 2023, "Toyota", "Camry", 31900, nil, nil)

	mock.ExpectQuery(`ORDER BY l\.price ASC NULLS LAST, l\.id ASC LIMIT 25 OFFSET 0`).
		WithArgs("Toyota").
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM listings l`).
		WithArgs("Toyota").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(52))

	engine := NewEngine(db)
	f := noAggregates(Filters{Make: []string{"Toyota"}, Page: 1, PerPage: 25, SortBy: SortByPrice, SortOrder: SortAsc})

	res, err := engine.Search(context.Background(), f, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(res.Data) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Data))
	}
	if res.Data[0].VIN != "VIN00000000000001" {
		t.Fatalf("unexpected first row: %+v", res.Data[0])
	}
	if res.Meta.Total != 52 || res.Meta.TotalPages != 3 {
		t.Fatalf("unexpected meta: %+v", res.Meta)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSearchGeoRadiusFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	// One dealer next to the origin, one across the country, one with no
	// dealer location at all, one with garbage coordinates.
	rows := sqlmock.NewRows(resultColumns)
	listingRow(rows, "id-near", "VIN00000000000001", 2022, "Toyota", "Camry", 26500, 40.76, -73.99)
	listingRow(rows, "id-far", "VIN00000000000002", 2022, "Toyota", "Camry", 24900, 34.05, -118.24)
	listingRow(rows, "id-nowhere", "VIN00000000000003", 2022, "Toyota", "Camry", 23900, nil, nil)
	listingRow(rows, "id-offgrid", "VIN00000000000004", 2022, "Toyota", "Camry", 25900, 999.0, 0.0)

	mock.ExpectQuery(`SELECT .* FROM listings l LEFT JOIN dealers d`).
		WillReturnRows(rows)

	engine := NewEngine(db)
	radius := 50
	f := noAggregates(Filters{
		ZipCode: "10001", Radius: &radius,
		Page: 1, PerPage: 25, SortBy: SortByPrice, SortOrder: SortAsc,
	})
	origin := geo.Coordinates{Lat: 40.7506, Lon: -73.9971}

	res, err := engine.Search(context.Background(), f, &origin)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if res.Meta.Total != 1 {
		t.Fatalf("post-filter total = %d, want 1", res.Meta.Total)
	}
	if len(res.Data) != 1 || res.Data[0].ID != "id-near" {
		t.Fatalf("unexpected rows: %+v", res.Data)
	}
	if res.Data[0].Distance == nil || *res.Data[0].Distance > 50 {
		t.Fatalf("expected annotated distance within radius, got %+v", res.Data[0].Distance)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSearchGeoBoundingBoxPredicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	origin := geo.Coordinates{Lat: 40.7506, Lon: -73.9971}
	radius := 50
	box := geo.Box(origin.Lat, origin.Lon, float64(radius))

	mock.ExpectQuery(`d\.latitude BETWEEN \$1 AND \$2 AND d\.longitude BETWEEN \$3 AND \$4`).
		WithArgs(box.MinLat, box.MaxLat, box.MinLon, box.MaxLon).
		WillReturnRows(sqlmock.NewRows(resultColumns))

	engine := NewEngine(db)
	f := noAggregates(Filters{
		ZipCode: "10001", Radius: &radius,
		Page: 1, PerPage: 25, SortBy: SortByPrice, SortOrder: SortAsc,
	})

	res, err := engine.Search(context.Background(), f, &origin)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Meta.Total != 0 || len(res.Data) != 0 {
		t.Fatalf("expected empty result set, got %+v", res.Meta)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSearchGeoPagination(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	rows := sqlmock.NewRows(resultColumns)
	for i := 0; i < 3; i++ {
		vin := []string{"VIN00000000000001", "VIN00000000000002", "VIN00000000000003"}[i]
		listingRow(rows, vin, vin, 2022, "Toyota", "Camry", 20000+i*1000, 40.76, -73.99)
	}

	mock.ExpectQuery(`SELECT .* FROM listings l LEFT JOIN dealers d`).
		WillReturnRows(rows)

	engine := NewEngine(db)
	radius := 50
	f := noAggregates(Filters{
		ZipCode: "10001", Radius: &radius,
		Page: 2, PerPage: 2, SortBy: SortByPrice, SortOrder: SortAsc,
	})
	origin := geo.Coordinates{Lat: 40.7506, Lon: -73.9971}

	res, err := engine.Search(context.Background(), f, &origin)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if res.Meta.Total != 3 || res.Meta.TotalPages != 2 {
		t.Fatalf("unexpected meta: %+v", res.Meta)
	}
	if len(res.Data) != 1 || res.Data[0].ID != "VIN00000000000003" {
		t.Fatalf("expected last row on page 2, got %+v", res.Data)
	}
}

func TestSearchStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(`ORDER BY l\.price ASC NULLS LAST, l\.id ASC LIMIT 25 OFFSET 0`).
		WillReturnRows(sqlmock.NewRows(resultColumns))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM listings l`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(`MIN\(l\.price\).*MAX\(l\.price\).*AVG\(l\.price\)`).
		WillReturnRows(sqlmock.NewRows([]string{"min", "max", "avg"}).AddRow(18900, 52300, 31250))
	mock.ExpectQuery(`MIN\(l\.miles\).*MAX\(l\.miles\).*AVG\(l\.miles\)`).
		WillReturnRows(sqlmock.NewRows([]string{"min", "max", "avg"}).AddRow(5400, 61500, 22312))
	mock.ExpectQuery(`MIN\(l\.year\).*MAX\(l\.year\)`).
		WillReturnRows(sqlmock.NewRows([]string{"min", "max"}).AddRow(2019, 2023))
	mock.ExpectQuery(`SELECT l\.price FROM listings l .* ORDER BY l\.price ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"price"}).
			AddRow(18900).AddRow(26500).AddRow(31900).AddRow(52300))

	engine := NewEngine(db)
	f := noAggregates(Filters{Page: 1, PerPage: 25, SortBy: SortByPrice, SortOrder: SortAsc})
	f.IncludeStats = true

	res, err := engine.Search(context.Background(), f, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if res.Stats == nil {
		t.Fatal("expected stats")
	}
	if res.Stats.Price.Min != 18900 || res.Stats.Price.Max != 52300 || res.Stats.Price.Avg != 31250 {
		t.Fatalf("unexpected price stats: %+v", res.Stats.Price)
	}
	if res.Stats.Price.Median == nil || *res.Stats.Price.Median != 29200 {
		t.Fatalf("expected even-count median 29200, got %v", res.Stats.Price.Median)
	}
	if res.Stats.Year.Min != 2019 || res.Stats.Year.Max != 2023 {
		t.Fatalf("unexpected year stats: %+v", res.Stats.Year)
	}
}

func TestSearchSubQueryFailureFailsRequest(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(`ORDER BY l\.price ASC NULLS LAST, l\.id ASC LIMIT 25 OFFSET 0`).
		WillReturnRows(sqlmock.NewRows(resultColumns))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM listings l`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`MIN\(l\.price\)`).
		WillReturnError(errors.New("relation vanished"))

	engine := NewEngine(db)
	f := noAggregates(Filters{Page: 1, PerPage: 25, SortBy: SortByPrice, SortOrder: SortAsc})
	f.IncludeStats = true

	if _, err := engine.Search(context.Background(), f, nil); err == nil {
		t.Fatal("expected the whole search to fail when a sub-query fails")
	}
}

func TestFacetQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT l\.make, COUNT\(\*\) FROM listings l .* GROUP BY l\.make ORDER BY COUNT\(\*\) DESC LIMIT 50`).
		WillReturnRows(sqlmock.NewRows([]string{"make", "count"}).
			AddRow("Toyota", 412).
			AddRow("Honda", 287))

	engine := NewEngine(db)
	values, err := engine.facet(context.Background(), BuildPredicates(Filters{}), facetDims[0])
	if err != nil {
		t.Fatalf("facet: %v", err)
	}

	if len(values) != 2 || values[0].Value != "Toyota" || values[0].Count != 412 {
		t.Fatalf("unexpected facet values: %+v", values)
	}
}

func TestFacetQueryNullableDimension(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT l\.drivetrain, COUNT\(\*\) FROM listings l .* WHERE l\.is_active = TRUE AND l\.drivetrain IS NOT NULL GROUP BY l\.drivetrain`).
		WillReturnRows(sqlmock.NewRows([]string{"drivetrain", "count"}).
			AddRow("awd", 120).
			AddRow("fwd", 98))

	engine := NewEngine(db)
	var dim facetDim
	for _, d := range facetDims {
		if d.name == "drivetrain" {
			dim = d
		}
	}

	values, err := engine.facet(context.Background(), BuildPredicates(Filters{}), dim)
	if err != nil {
		t.Fatalf("facet: %v", err)
	}
	if len(values) != 2 || values[0].Value != "awd" {
		t.Fatalf("unexpected facet values: %+v", values)
	}
}

func TestOrderClause(t *testing.T) {
	tests := []struct {
		name string
		f    Filters
		want string
	}{
		{
			name: "price ascending",
			f:    Filters{SortBy: SortByPrice, SortOrder: SortAsc},
			want: "l.price ASC NULLS LAST, l.id ASC",
		},
		{
			name: "miles descending",
			f:    Filters{SortBy: SortByMiles, SortOrder: SortDesc},
			want: "l.miles DESC NULLS LAST, l.id ASC",
		},
		{
			name: "days on lot",
			f:    Filters{SortBy: SortByDaysOnLot, SortOrder: SortAsc},
			want: "EXTRACT(EPOCH FROM (NOW() - l.first_seen_at)) ASC NULLS LAST, l.id ASC",
		},
		{
			name: "distance falls back to price in the store query",
			f:    Filters{SortBy: SortByDistance, SortOrder: SortAsc},
			want: "l.price ASC NULLS LAST, l.id ASC",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := orderClause(tc.f); got != tc.want {
				t.Fatalf("orderClause() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMedianOf(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		want   float64
		wantOK bool
	}{
		{name: "empty", values: nil, wantOK: false},
		{name: "single", values: []int{10}, want: 10, wantOK: true},
		{name: "odd", values: []int{1, 5, 9}, want: 5, wantOK: true},
		{name: "even", values: []int{1, 3, 5, 9}, want: 4, wantOK: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, ok := medianOf(tc.values)
			if ok != tc.wantOK || (ok && got != tc.want) {
				t.Fatalf("medianOf(%v) = %v, %v; want %v, %v", tc.values, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestBucketize(t *testing.T) {
	prices := []int{15000, 22000, 28000, 35000, 61000}
	buckets := bucketize(prices, priceBucketLabels, func(v int) string {
		return boundedBucket(v, priceBucketBounds, priceBucketLabels)
	})

	want := []BucketValue{
		{Label: "Under $20k", Count: 1},
		{Label: "$20k-$30k", Count: 2},
		{Label: "$30k-$40k", Count: 1},
		{Label: "$50k+", Count: 1},
	}
	if len(buckets) != len(want) {
		t.Fatalf("got %v, want %v", buckets, want)
	}
	for i := range want {
		if buckets[i] != want[i] {
			t.Fatalf("bucket %d = %+v, want %+v", i, buckets[i], want[i])
		}
	}
}

func TestYearBucketing(t *testing.T) {
	labels, bucketOf := yearBucketing(2026)

	if labels[0] != "2026" || labels[4] != "2022 and older" {
		t.Fatalf("unexpected labels: %v", labels)
	}
	if bucketOf(2026) != "2026" || bucketOf(2023) != "2023" {
		t.Fatal("recent years should bucket to their own label")
	}
	if bucketOf(2019) != "2022 and older" || bucketOf(1998) != "2022 and older" {
		t.Fatal("older years should collapse into the catch-all bucket")
	}
	if bucketOf(2027) != "2026" {
		t.Fatal("next model year should clamp into the newest bucket")
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total   int
		perPage int
		want    int
	}{
		{total: 0, perPage: 25, want: 0},
		{total: 1, perPage: 25, want: 1},
		{total: 25, perPage: 25, want: 1},
		{total: 26, perPage: 25, want: 2},
		{total: 52, perPage: 25, want: 3},
	}

	for _, tc := range tests {
		if got := totalPages(tc.total, tc.perPage); got != tc.want {
			t.Fatalf("totalPages(%d, %d) = %d, want %d", tc.total, tc.perPage, got, tc.want)
		}
	}
}
