package handlers

import (
	"context"
	"net/http"
	"strings"

	"bastaku-campaign-api/logger"
	"bastaku-campaign-api/models"
	"bastaku-campaign-api/utils"
)

type Authenticator interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
}

type AuthHandler struct {
	auth Authenticator
}

func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.auth.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.SendJSON(w, http.StatusCreated, models.APIResponse{
		Status:  models.StatusSuccess,
		Message: "Account created",
		Data:    resp,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	resp, err := h.auth.Login(r.Context(), req)
	if err != nil {
		logger.Get().Infow("login failed", "remote_addr", r.RemoteAddr, "error", err)
		writeError(w, r, err)
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Message: "Authentication successful",
		Data:    resp,
	})
}
