package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smashj-dev/car-search-platform/internal/facetcache"
	"github.com/smashj-dev/car-search-platform/internal/geo"
	"github.com/smashj-dev/car-search-platform/internal/search"
)

type searchPerformance struct {
	QueryTimeMS  int64 `json:"query_time_ms"`
	CachedFacets bool  `json:"cached_facets"`
}

type searchEnvelope struct {
	Success     bool              `json:"success"`
	Data        []search.Row      `json:"data"`
	Meta        search.Meta       `json:"meta"`
	Facets      search.Facets     `json:"facets,omitempty"`
	Stats       *search.Stats     `json:"stats,omitempty"`
	Buckets     *search.Buckets   `json:"buckets,omitempty"`
	Performance searchPerformance `json:"performance"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	filters, err := search.ParseFilters(r.URL.Query())
	if err != nil {
		var verr *search.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, errorBody{
				Code:    codeValidation,
				Message: verr.Message,
				Field:   verr.Field,
			})
			return
		}
		writeError(w, http.StatusBadRequest, errorBody{Code: codeValidation, Message: err.Error()})
		return
	}

	// An unresolvable postal code degrades the search to a
	// non-geographic one rather than failing the request.
	var origin *geo.Coordinates
	if filters.ZipCode != "" {
		if coords, ok := geo.Resolve(filters.ZipCode); ok {
			origin = &coords
		} else {
			log.Debug().Str("zip_code", filters.ZipCode).Msg("postal code not resolvable, skipping geo filter")
		}
	}

	// Aggregates are cached per filter combination. A hit only counts
	// when the entry covers everything this request asked for.
	wantsAggregates := filters.IncludeFacets || filters.IncludeStats || filters.IncludeBuckets
	var (
		cacheKey string
		cached   *facetcache.Entry
	)
	if wantsAggregates {
		cacheKey = s.cache.Key(filters)
		if entry, ok := s.cache.Get(cacheKey); ok && covers(entry, filters) {
			cached = &entry
			filters.IncludeFacets = false
			filters.IncludeStats = false
			filters.IncludeBuckets = false
		}
	}

	results, err := s.searcher.Search(r.Context(), filters, origin)
	if err != nil {
		log.Error().Err(err).Msg("search failed")
		writeError(w, http.StatusInternalServerError, errorBody{
			Code:    codeSearchFailed,
			Message: "search failed",
		})
		return
	}

	envelope := searchEnvelope{
		Success: true,
		Data:    results.Data,
		Meta:    results.Meta,
		Facets:  results.Facets,
		Stats:   results.Stats,
		Buckets: results.Buckets,
	}

	if cached != nil {
		envelope.Facets = cached.Facets
		envelope.Stats = cached.Stats
		envelope.Buckets = cached.Buckets
		envelope.Performance.CachedFacets = true
	} else if wantsAggregates {
		s.cache.Set(cacheKey, facetcache.Entry{
			Facets:  results.Facets,
			Stats:   results.Stats,
			Buckets: results.Buckets,
		})
	}

	envelope.Performance.QueryTimeMS = time.Since(start).Milliseconds()
	writeJSON(w, http.StatusOK, envelope)
}

// covers reports whether a cached entry satisfies every aggregate the
// request asked for.
func covers(entry facetcache.Entry, f search.Filters) bool {
	if f.IncludeFacets && entry.Facets == nil {
		return false
	}
	if f.IncludeStats && entry.Stats == nil {
		return false
	}
	if f.IncludeBuckets && entry.Buckets == nil {
		return false
	}
	return true
}

type filterOptionsEnvelope struct {
	Success bool                  `json:"success"`
	Data    *search.FilterOptions `json:"data"`
	Source  string                `json:"source"`
}

func (s *Server) handleFilterOptions(w http.ResponseWriter, r *http.Request) {
	if opts, ok := s.cache.GetFilterOptions(); ok {
		writeJSON(w, http.StatusOK, filterOptionsEnvelope{Success: true, Data: opts, Source: "cache"})
		return
	}

	opts, err := s.searcher.FilterOptions(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("filter options query failed")
		writeError(w, http.StatusInternalServerError, errorBody{
			Code:    codeSearchFailed,
			Message: "failed to load filter options",
		})
		return
	}

	s.cache.SetFilterOptions(opts)
	writeJSON(w, http.StatusOK, filterOptionsEnvelope{Success: true, Data: opts, Source: "database"})
}
