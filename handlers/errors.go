package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"bastaku-campaign-api/database"
	"bastaku-campaign-api/logger"
	"bastaku-campaign-api/services/auth"
	"bastaku-campaign-api/services/campaign"
	"bastaku-campaign-api/services/pricing"
	"bastaku-campaign-api/utils"
)

const maxBodyBytes = 1 << 20

// writeError maps domain errors onto HTTP statuses. Anything unrecognised
// is logged and reported as a 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var regErr *auth.RegistrationError
	switch {
	case errors.Is(err, pricing.ErrInvalidInput):
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &regErr):
		utils.SendErrorResponse(w, http.StatusBadRequest, regErr.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		utils.SendErrorResponse(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, campaign.ErrWholesaler):
		utils.SendErrorResponse(w, http.StatusForbidden, "Wholesale accounts cannot take part in campaigns")
	case errors.Is(err, database.ErrNotFound):
		utils.SendErrorResponse(w, http.StatusNotFound, "Not found")
	case errors.Is(err, campaign.ErrNotParticipant):
		utils.SendErrorResponse(w, http.StatusNotFound, "You are not part of this campaign")
	case errors.Is(err, auth.ErrEmailTaken):
		utils.SendErrorResponse(w, http.StatusConflict, "Email is already registered")
	case errors.Is(err, database.ErrCampaignClosed):
		utils.SendErrorResponse(w, http.StatusConflict, "Campaign is no longer open")
	case errors.Is(err, database.ErrParticipationConflict):
		utils.SendErrorResponse(w, http.StatusConflict, "You already joined this campaign at a different price")
	case errors.Is(err, campaign.ErrExceedsStock), errors.Is(err, database.ErrInsufficientStock):
		utils.SendErrorResponse(w, http.StatusConflict, "Not enough stock for the requested quantity")
	default:
		logger.Get().Errorw("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON reads a bounded JSON body into dst. It writes the 400 itself
// and reports false when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
