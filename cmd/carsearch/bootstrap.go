package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smashj-dev/car-search-platform/internal/store"
)

// bootstrapDemoData seeds a handful of dealers and listings so the API is
// explorable on a fresh database. Seeding is idempotent: everything goes
// through the VIN and dealer upserts.
func bootstrapDemoData(ctx context.Context, db *sql.DB, dataStore *store.Store) error {
	listingsTableExists, err := tableExists(ctx, db, "listings")
	if err != nil {
		return fmt.Errorf("check listings table: %w", err)
	}
	if !listingsTableExists {
		return nil
	}

	if err := ensureDemoDealers(ctx, dataStore); err != nil {
		return err
	}
	return ensureDemoListings(ctx, dataStore)
}

func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }
func f64Ptr(v float64) *float64 {
	return &v
}

var demoDealers = []store.Dealer{
	{
		ID:         "dealer-empire-toyota",
		Name:       "Empire Toyota of Manhattan",
		City:       strPtr("New York"),
		State:      strPtr("NY"),
		ZipCode:    strPtr("10001"),
		Latitude:   f64Ptr(40.7506),
		Longitude:  f64Ptr(-73.9971),
		DealerType: strPtr("franchise"),
	},
	{
		ID:         "dealer-sunset-motors",
		Name:       "Sunset Motors",
		City:       strPtr("Los Angeles"),
		State:      strPtr("CA"),
		ZipCode:    strPtr("90001"),
		Latitude:   f64Ptr(33.9731),
		Longitude:  f64Ptr(-118.2479),
		DealerType: strPtr("independent"),
	},
	{
		ID:         "dealer-lakeshore-auto",
		Name:       "Lakeshore Auto Group",
		City:       strPtr("Chicago"),
		State:      strPtr("IL"),
		ZipCode:    strPtr("60601"),
		Latitude:   f64Ptr(41.8858),
		Longitude:  f64Ptr(-87.6229),
		DealerType: strPtr("franchise"),
	},
}

var demoListings = []store.Listing{
	{
		VIN: "4T1G11AK5NU700001", Year: 2022, Make: "Toyota", Model: "Camry",
		Trim: strPtr("SE"), Price: intPtr(26500), Miles: intPtr(24100),
		Condition: strPtr("used"), Drivetrain: strPtr("fwd"), Transmission: strPtr("automatic"),
		FuelType: strPtr("gas"), ExteriorColor: strPtr("Silver"),
		DealerID: strPtr("dealer-empire-toyota"), Source: "bootstrap", IsActive: true,
	},
	{
		VIN: "4T1G11AK8PU700002", Year: 2023, Make: "Toyota", Model: "Camry",
		Trim: strPtr("XLE"), Price: intPtr(31900), Miles: intPtr(8900),
		Condition: strPtr("used"), Drivetrain: strPtr("fwd"), Transmission: strPtr("automatic"),
		FuelType: strPtr("gas"), ExteriorColor: strPtr("White"), IsCertified: true,
		DealerID: strPtr("dealer-empire-toyota"), Source: "bootstrap", IsActive: true,
	},
	{
		VIN: "2T3P1RFV1NC700003", Year: 2022, Make: "Toyota", Model: "RAV4",
		Trim: strPtr("XLE"), Price: intPtr(29400), Miles: intPtr(19800),
		Condition: strPtr("used"), Drivetrain: strPtr("awd"), Transmission: strPtr("automatic"),
		FuelType: strPtr("gas"), ExteriorColor: strPtr("Blue"),
		DealerID: strPtr("dealer-lakeshore-auto"), Source: "bootstrap", IsActive: true,
	},
	{
		VIN: "5TDGZRBH3NS700004", Year: 2021, Make: "Toyota", Model: "Highlander",
		Trim: strPtr("Limited"), Price: intPtr(38750), Miles: intPtr(31200),
		Condition: strPtr("used"), Drivetrain: strPtr("awd"), Transmission: strPtr("automatic"),
		FuelType: strPtr("gas"), ExteriorColor: strPtr("Black"),
		DealerID: strPtr("dealer-lakeshore-auto"), Source: "bootstrap", IsActive: true,
	},
	{
		VIN: "1HGCV1F34NA700005", Year: 2022, Make: "Honda", Model: "Accord",
		Trim: strPtr("Sport"), Price: intPtr(27800), Miles: intPtr(15600),
		Condition: strPtr("used"), Drivetrain: strPtr("fwd"), Transmission: strPtr("automatic"),
		FuelType: strPtr("gas"), ExteriorColor: strPtr("Gray"),
		DealerID: strPtr("dealer-sunset-motors"), Source: "bootstrap", IsActive: true,
	},
	{
		VIN: "5YJ3E1EA8PF700006", Year: 2023, Make: "Tesla", Model: "Model 3",
		Price: intPtr(36200), Miles: intPtr(5400),
		Condition: strPtr("used"), Drivetrain: strPtr("rwd"), Transmission: strPtr("automatic"),
		FuelType: strPtr("electric"), ExteriorColor: strPtr("White"),
		DealerID: strPtr("dealer-sunset-motors"), Source: "bootstrap", IsActive: true,
	},
	{
		VIN: "1FTFW1E52PK700007", Year: 2023, Make: "Ford", Model: "F-150",
		Trim: strPtr("Lariat"), Price: intPtr(52300), Miles: intPtr(12000),
		Condition: strPtr("used"), Drivetrain: strPtr("4wd"), Transmission: strPtr("automatic"),
		FuelType: strPtr("gas"), ExteriorColor: strPtr("Red"),
		DealerID: strPtr("dealer-lakeshore-auto"), Source: "bootstrap", IsActive: true,
	},
	{
		VIN: "4T1G11AK2KU700008", Year: 2019, Make: "Toyota", Model: "Camry",
		Trim: strPtr("LE"), Price: intPtr(18900), Miles: intPtr(61500),
		Condition: strPtr("used"), Drivetrain: strPtr("fwd"), Transmission: strPtr("automatic"),
		FuelType: strPtr("gas"), ExteriorColor: strPtr("Silver"),
		DealerID: strPtr("dealer-empire-toyota"), Source: "bootstrap", IsActive: true,
	},
}

func ensureDemoDealers(ctx context.Context, dataStore *store.Store) error {
	for _, dealer := range demoDealers {
		if _, err := dataStore.UpsertDealer(ctx, dealer); err != nil {
			return fmt.Errorf("seed dealer %q: %w", dealer.ID, err)
		}
	}
	return nil
}

func ensureDemoListings(ctx context.Context, dataStore *store.Store) error {
	for _, listing := range demoListings {
		if _, err := dataStore.UpsertListing(ctx, listing); err != nil {
			return fmt.Errorf("seed listing %q: %w", listing.VIN, err)
		}
	}
	return nil
}

type queryRower interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func tableExists(ctx context.Context, q queryRower, table string) (bool, error) {
	var name sql.NullString
	if err := q.QueryRowContext(ctx, `SELECT to_regclass($1)`, table).Scan(&name); err != nil {
		return false, err
	}
	return name.Valid, nil
}
