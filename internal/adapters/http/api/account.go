package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/typeshield/typeshield/internal/adapters/repository"
	"github.com/typeshield/typeshield/internal/app"
	"github.com/typeshield/typeshield/internal/auth"
)

// RegisterHandler handles enrollment requests.
type RegisterHandler struct {
	deps Dependencies
}

// NewRegisterHandler creates a new register handler.
func NewRegisterHandler(deps Dependencies) *RegisterHandler {
	return &RegisterHandler{deps: deps}
}

type registerResponse struct {
	Username string  `json:"username"`
	Score    float64 `json:"score"`
	Token    string  `json:"token"`
}

// HandleRegister handles POST /api/register requests.
func (h *RegisterHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	creds, err := h.deps.Register(r.Context(), req.Username, req.Password, req.Behaviour.attempt(), req.Behaviour.AttemptID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateUser):
			writeError(w, http.StatusConflict, "username_taken", err)
		case errors.Is(err, app.ErrReplayedAttempt):
			writeError(w, http.StatusConflict, "replayed_attempt", err)
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, auth.ErrEmptyPassword), errors.Is(err, auth.ErrPasswordTooLong):
			writeError(w, http.StatusBadRequest, "bad_request", err)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", ErrInternal)
		}
		return
	}

	setSessionCookie(w, creds.Session)
	writeJSON(w, http.StatusCreated, registerResponse{
		Username: creds.Session.Username,
		Score:    creds.Session.LastScore,
		Token:    creds.Token,
	})
}

// LoginHandler handles authentication requests.
type LoginHandler struct {
	deps Dependencies
}

// NewLoginHandler creates a new login handler.
func NewLoginHandler(deps Dependencies) *LoginHandler {
	return &LoginHandler{deps: deps}
}

type loginResponse struct {
	Match   bool     `json:"match"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons,omitempty"`
	Token   string   `json:"token,omitempty"`
}

// HandleLogin handles POST /api/login requests. A behavioural mismatch
// answers 401 with the score and per-signal reasons so the UI can explain
// the rejection.
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	result, err := h.deps.Login(r.Context(), req.Username, req.Password, req.Behaviour.attempt(), req.Behaviour.AttemptID)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrBadCredentials):
			writeError(w, http.StatusUnauthorized, "unauthorized", auth.ErrBadCredentials)
		case errors.Is(err, repository.ErrNoTemplate):
			writeError(w, http.StatusBadRequest, "no_template", err)
		case errors.Is(err, app.ErrReplayedAttempt):
			writeError(w, http.StatusConflict, "replayed_attempt", err)
		case errors.Is(err, app.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "bad_request", err)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", ErrInternal)
		}
		return
	}

	if !result.Decision.IsMatch {
		writeJSON(w, http.StatusUnauthorized, loginResponse{
			Match:   false,
			Score:   result.Decision.Score,
			Reasons: result.Decision.Reasons,
		})
		return
	}

	setSessionCookie(w, result.Credentials.Session)
	writeJSON(w, http.StatusOK, loginResponse{
		Match: true,
		Score: result.Decision.Score,
		Token: result.Credentials.Token,
	})
}

// LogoutHandler closes sessions.
type LogoutHandler struct {
	deps Dependencies
}

// NewLogoutHandler creates a new logout handler.
func NewLogoutHandler(deps Dependencies) *LogoutHandler {
	return &LogoutHandler{deps: deps}
}

// HandleLogout handles POST /api/logout requests.
func (h *LogoutHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if id, err := sessionID(r); err == nil {
		h.deps.Logout(id)
	}
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
