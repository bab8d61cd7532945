package handlers

import (
	"context"
	"net/http"
	"net/mail"
	"strings"

	"github.com/pkg/errors"

	"bastaku-campaign-api/database"
	"bastaku-campaign-api/models"
	"bastaku-campaign-api/services/auth"
	"bastaku-campaign-api/utils"
)

type ProfileStore interface {
	GetUserProfile(ctx context.Context, userID int64) (*models.Profile, error)
	UpdateUserProfile(ctx context.Context, userID int64, p *models.Profile) error
}

type ProfileHandler struct {
	profiles ProfileStore
}

func NewProfileHandler(profiles ProfileStore) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	profile, err := h.profiles.GetUserProfile(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.SendSuccessResponse(w, models.APIResponse{Data: profile})
}

// UpdateProfile applies a partial update to the caller's contact details
// and shipping address.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req models.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := h.profiles.GetUserProfile(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req.Apply(profile)
	profile.Email = strings.ToLower(profile.Email)

	if msg := validateProfile(profile); msg != "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.profiles.UpdateUserProfile(r.Context(), user.ID, profile); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			err = auth.ErrEmailTaken
		}
		writeError(w, r, err)
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Message: "Profile updated",
		Data:    profile,
	})
}

func validateProfile(p *models.Profile) string {
	switch {
	case p.FirstName == "":
		return "first_name is required"
	case p.LastName == "":
		return "last_name is required"
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return "email is not a valid address"
	}
	return ""
}
