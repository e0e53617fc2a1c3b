package httpapi

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/smashj-dev/car-search-platform/internal/store"
)

type listingEnvelope struct {
	Success bool          `json:"success"`
	Data    listingDetail `json:"data"`
}

type listingDetail struct {
	store.Listing
	Dealer *store.Dealer `json:"dealer,omitempty"`
}

func (s *Server) handleListingByVIN(w http.ResponseWriter, r *http.Request) {
	vin := r.PathValue("vin")
	if vin == "" {
		writeError(w, http.StatusBadRequest, errorBody{
			Code:    codeValidation,
			Message: "missing VIN",
			Field:   "vin",
		})
		return
	}

	listing, dealer, err := s.listings.ListingByVIN(r.Context(), vin)
	if err != nil {
		if errors.Is(err, store.ErrListingNotFound) {
			writeError(w, http.StatusNotFound, errorBody{
				Code:    codeNotFound,
				Message: "listing not found",
			})
			return
		}
		log.Error().Err(err).Str("vin", vin).Msg("listing lookup failed")
		writeError(w, http.StatusInternalServerError, errorBody{
			Code:    codeSearchFailed,
			Message: "listing lookup failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, listingEnvelope{
		Success: true,
		Data:    listingDetail{Listing: listing, Dealer: dealer},
	})
}
