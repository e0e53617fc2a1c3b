package geo

import (
	"math"
	"strings"
)

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// earthRadiusMiles is the spherical-earth approximation used for haversine.
const earthRadiusMiles = 3958.8

// Distance returns the great-circle distance between two points in miles.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c
}

func toRadians(degrees float64) float64 {
	return degrees * (math.Pi / 180)
}

// BoundingBox returns min/max lat/lon enclosing a circle of the given
// radius around a point. The longitude span widens with latitude.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Box computes the bounding box for a center point and radius in miles.
func Box(lat, lon, radiusMiles float64) BoundingBox {
	latChange := radiusMiles / 69
	lonChange := radiusMiles / (math.Cos(toRadians(lat)) * 69)

	return BoundingBox{
		MinLat: lat - latChange,
		MaxLat: lat + latChange,
		MinLon: lon - lonChange,
		MaxLon: lon + lonChange,
	}
}

// ValidCoordinates reports whether lat/lon fall within valid ranges.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// zipCoords maps major-city ZIP codes to centroids. A geocoding service
// should replace this table without changing the Resolve contract.
var zipCoords = map[string]Coordinates{
	"10001": {Lat: 40.7506, Lon: -73.9971},  // New York, NY
	"90001": {Lat: 33.9731, Lon: -118.2479}, // Los Angeles, CA
	"60601": {Lat: 41.8859, Lon: -87.6181},  // Chicago, IL
	"77001": {Lat: 29.7589, Lon: -95.3677},  // Houston, TX
	"85001": {Lat: 33.4484, Lon: -112.0741}, // Phoenix, AZ
	"19101": {Lat: 39.9526, Lon: -75.1652},  // Philadelphia, PA
	"78201": {Lat: 29.4252, Lon: -98.4946},  // San Antonio, TX
	"92101": {Lat: 32.7157, Lon: -117.1611}, // San Diego, CA
	"75201": {Lat: 32.7767, Lon: -96.7970},  // Dallas, TX
	"95101": {Lat: 37.3382, Lon: -121.8863}, // San Jose, CA
	"98101": {Lat: 47.6062, Lon: -122.3321}, // Seattle, WA
	"80201": {Lat: 39.7392, Lon: -104.9903}, // Denver, CO
	"20001": {Lat: 38.9072, Lon: -77.0369},  // Washington, DC
	"02101": {Lat: 42.3601, Lon: -71.0589},  // Boston, MA
	"33101": {Lat: 25.7617, Lon: -80.1918},  // Miami, FL
	"30301": {Lat: 33.7490, Lon: -84.3880},  // Atlanta, GA
	"48201": {Lat: 42.3314, Lon: -83.0458},  // Detroit, MI
	"55401": {Lat: 44.9778, Lon: -93.2650},  // Minneapolis, MN
	"63101": {Lat: 38.6270, Lon: -90.1994},  // St. Louis, MO
	"97201": {Lat: 45.5152, Lon: -122.6784}, // Portland, OR
}

// Resolve maps a postal code to coordinates. The ZIP+4 suffix is dropped
// and the code is zero-padded to five digits. An unknown code returns
// ok=false rather than an error; callers degrade to a non-geographic
// search in that case.
func Resolve(zipCode string) (Coordinates, bool) {
	normalized := strings.TrimSpace(zipCode)
	if i := strings.IndexByte(normalized, '-'); i >= 0 {
		normalized = normalized[:i]
	}
	for len(normalized) < 5 {
		normalized = "0" + normalized
	}

	coords, ok := zipCoords[normalized]
	return coords, ok
}
