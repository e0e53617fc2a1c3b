package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/smashj-dev/car-search-platform/internal/facetcache"
	"github.com/smashj-dev/car-search-platform/internal/geo"
	"github.com/smashj-dev/car-search-platform/internal/search"
	"github.com/smashj-dev/car-search-platform/internal/store"
)

// SearchService captures the search operations needed by the HTTP handlers.
type SearchService interface {
	Search(ctx context.Context, f search.Filters, origin *geo.Coordinates) (*search.Results, error)
	FilterOptions(ctx context.Context) (*search.FilterOptions, error)
}

// ListingService exposes single-listing lookups.
type ListingService interface {
	ListingByVIN(ctx context.Context, vin string) (store.Listing, *store.Dealer, error)
}

// FacetCache caches the aggregate portions of search responses.
type FacetCache interface {
	Key(f search.Filters) string
	Get(key string) (facetcache.Entry, bool)
	Set(key string, entry facetcache.Entry)
	GetFilterOptions() (*search.FilterOptions, bool)
	SetFilterOptions(opts *search.FilterOptions)
	InvalidateAll() int
}

// Server wires HTTP handlers to the underlying services.
type Server struct {
	searcher    SearchService
	listings    ListingService
	cache       FacetCache
	adminSecret []byte
}

// New configures a Server with the given services. adminSecret signs the
// bearer tokens accepted by the cache invalidation endpoint.
func New(searcher SearchService, listings ListingService, cache FacetCache, adminSecret []byte) *Server {
	return &Server{
		searcher:    searcher,
		listings:    listings,
		cache:       cache,
		adminSecret: adminSecret,
	}
}

// Routes exposes the HTTP handlers for the search API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /api/v1/search", s.handleSearch)
	mux.HandleFunc("GET /api/v1/search/filter-options", s.handleFilterOptions)
	mux.HandleFunc("POST /api/v1/search/cache/invalidate", s.handleCacheInvalidate)
	mux.HandleFunc("GET /api/v1/listings/{vin}", s.handleListingByVIN)

	return mux
}

// Error codes returned in the error envelope.
const (
	codeValidation   = "VALIDATION_ERROR"
	codeSearchFailed = "SEARCH_FAILED"
	codeNotFound     = "NOT_FOUND"
	codeUnauthorized = "UNAUTHORIZED"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, errorEnvelope{Success: false, Error: body})
}

func parseBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}
