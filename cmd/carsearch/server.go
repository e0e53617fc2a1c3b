package main

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/smashj-dev/car-search-platform/internal/facetcache"
	"github.com/smashj-dev/car-search-platform/internal/httpapi"
	"github.com/smashj-dev/car-search-platform/internal/logging"
	"github.com/smashj-dev/car-search-platform/internal/middleware"
	"github.com/smashj-dev/car-search-platform/internal/search"
	"github.com/smashj-dev/car-search-platform/internal/store"
)

func newHTTPHandler(cfg Config, db *sql.DB, dataStore *store.Store, logger *logging.Logger) http.Handler {
	engine := search.NewEngine(db)
	cache := facetcache.New(facetcache.NewMemoryKV(), cfg.FacetCacheTTL, logger.Zerolog())

	api := httpapi.New(engine, dataStore, cache, []byte(cfg.AdminTokenSecret))

	handler := api.Routes()
	handler = middleware.RequestLogging()(handler)
	handler = middleware.Recovery()(handler)

	return withCORS(cfg.AllowedOrigins, handler)
}

func withCORS(allowedOrigins []string, next http.Handler) http.Handler {
	originAllowed := func(origin string) bool {
		if len(allowedOrigins) == 0 || origin == "" {
			return false
		}
		for _, o := range allowedOrigins {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
