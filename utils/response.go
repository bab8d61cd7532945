package utils

import (
	"encoding/json"
	"net/http"

	"bastaku-campaign-api/logger"
	"bastaku-campaign-api/models"
)

func SendErrorResponse(w http.ResponseWriter, status int, message string) {
	SendJSON(w, status, models.APIResponse{
		Status:  models.StatusError,
		Message: message,
	})
}

func SendSuccessResponse(w http.ResponseWriter, response models.APIResponse) {
	if response.Status == "" {
		response.Status = models.StatusSuccess
	}
	SendJSON(w, http.StatusOK, response)
}

func SendJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Get().Warnw("failed to encode response", "error", err)
	}
}
