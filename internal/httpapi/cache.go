package httpapi

import (
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

type invalidateEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		EntriesRemoved int `json:"entries_removed"`
	} `json:"data"`
}

// handleCacheInvalidate drops every cached aggregate entry. It is meant
// for the ingestion pipeline to call after bulk inventory updates, so it
// requires an admin bearer token.
func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	token := parseBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		writeError(w, http.StatusUnauthorized, errorBody{
			Code:    codeUnauthorized,
			Message: "missing bearer token",
		})
		return
	}

	if err := s.verifyAdminToken(token); err != nil {
		log.Warn().Err(err).Msg("rejected cache invalidation token")
		writeError(w, http.StatusUnauthorized, errorBody{
			Code:    codeUnauthorized,
			Message: "invalid bearer token",
		})
		return
	}

	removed := s.cache.InvalidateAll()
	log.Info().Int("entries_removed", removed).Msg("facet cache invalidated")

	envelope := invalidateEnvelope{Success: true}
	envelope.Data.EntriesRemoved = removed
	writeJSON(w, http.StatusOK, envelope)
}

func (s *Server) verifyAdminToken(token string) error {
	_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.adminSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return fmt.Errorf("parse admin token: %w", err)
	}
	return nil
}
