package api

import (
	"encoding/json"
	"net/http"

	"github.com/voltahq/volta/internal/identity/application/auth"
	identityCommands "github.com/voltahq/volta/internal/identity/application/commands"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Timezone string `json:"timezone"`
}

type authResponse struct {
	User   userResponse   `json:"user"`
	Tokens auth.TokenPair `json:"tokens"`
}

// Register creates an account and returns an initial token pair.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.deps.Register.Handle(r.Context(), identityCommands.RegisterUserCommand{
		Email:    req.Email,
		Password: req.Password,
		Timezone: req.Timezone,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		User:   toUserResponse(result.User),
		Tokens: result.Tokens,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials and returns a token pair.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.deps.Login.Handle(r.Context(), identityCommands.LoginCommand{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		User:   toUserResponse(result.User),
		Tokens: result.Tokens,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh exchanges a refresh token for a new pair.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pair, err := h.deps.Refresh.Handle(r.Context(), identityCommands.RefreshCommand{
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

type sleepScheduleRequest struct {
	Bedtime            int    `json:"bedtime"`
	WakeHour           int    `json:"wakeHour"`
	Chronotype         string `json:"chronotype"`
	GenerateEnergyData bool   `json:"generateEnergyData"`
}

// UpdateSleepSchedule updates the caller's sleep schedule and optionally
// seeds a week of generated energy data.
func (h *Handler) UpdateSleepSchedule(w http.ResponseWriter, r *http.Request) {
	var req sleepScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.deps.UpdateSleepSchedule.Handle(r.Context(), identityCommands.UpdateSleepScheduleCommand{
		UserID:             userIDFrom(r.Context()),
		Bedtime:            req.Bedtime,
		WakeHour:           req.WakeHour,
		Chronotype:         req.Chronotype,
		GenerateEnergyData: req.GenerateEnergyData,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}
