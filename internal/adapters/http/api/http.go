// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/typeshield/typeshield/internal/app"
	"github.com/typeshield/typeshield/internal/auth"
	"github.com/typeshield/typeshield/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the application service.
type Dependencies interface {
	Register(ctx context.Context, username, password string, att model.Attempt, attemptID string) (app.Credentials, error)
	Login(ctx context.Context, username, password string, att model.Attempt, attemptID string) (app.LoginResult, error)
	Dashboard(ctx context.Context, sessionID uuid.UUID) (app.DashboardData, error)
	Session(sessionID uuid.UUID) (auth.Session, error)
	Logout(sessionID uuid.UUID)
}

// StatsProvider exposes service statistics.
type StatsProvider interface {
	GetStats() map[string]any
}

// Server wires HTTP routes for the authentication API.
type Server struct {
	registerHandler  *RegisterHandler
	loginHandler     *LoginHandler
	logoutHandler    *LogoutHandler
	dashboardHandler *DashboardHandler
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
}

// NewServer creates an API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		registerHandler:  NewRegisterHandler(deps),
		loginHandler:     NewLoginHandler(deps),
		logoutHandler:    NewLogoutHandler(deps),
		dashboardHandler: NewDashboardHandler(deps),
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
	}
}

// Register attaches all API routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/register", MetricsMiddleware(s.registerHandler.HandleRegister, "register"))
	mux.HandleFunc("/api/login", MetricsMiddleware(s.loginHandler.HandleLogin, "login"))
	mux.HandleFunc("/api/logout", MetricsMiddleware(s.logoutHandler.HandleLogout, "logout"))
	mux.HandleFunc("/api/dashboard", MetricsMiddleware(s.dashboardHandler.HandleDashboard, "dashboard"))
}

// behaviourPayload mirrors what the capture script submits.
type behaviourPayload struct {
	AttemptID   string    `json:"attempt_id"`
	DwellTimes  []float64 `json:"dwell_times"`
	FlightTimes []float64 `json:"flight_times"`
	TotalTime   float64   `json:"total_time"`
	ErrorCount  int       `json:"error_count"`
	DeviceType  string    `json:"device_type"`
}

// validate enforces the non-negativity contract the matching core assumes.
func (b behaviourPayload) validate() error {
	switch {
	case strings.TrimSpace(b.AttemptID) == "":
		return errors.New("missing attempt_id")
	case b.TotalTime < 0:
		return errors.New("total_time must be non-negative")
	case b.ErrorCount < 0:
		return errors.New("error_count must be non-negative")
	}
	for _, v := range b.DwellTimes {
		if v < 0 {
			return errors.New("dwell_times must be non-negative")
		}
	}
	for _, v := range b.FlightTimes {
		if v < 0 {
			return errors.New("flight_times must be non-negative")
		}
	}
	return nil
}

func (b behaviourPayload) attempt() model.Attempt {
	return model.Attempt{
		DwellTimes:  b.DwellTimes,
		FlightTimes: b.FlightTimes,
		TotalTime:   b.TotalTime,
		ErrorCount:  b.ErrorCount,
		DeviceType:  b.DeviceType,
	}
}

type credentialsRequest struct {
	Username  string           `json:"username"`
	Password  string           `json:"password"`
	Behaviour behaviourPayload `json:"behaviour"`
}

func (r credentialsRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Username) == "":
		return errors.New("missing username")
	case r.Password == "":
		return errors.New("missing password")
	}
	return r.Behaviour.validate()
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// setSessionCookie attaches the session id to the response.
func setSessionCookie(w http.ResponseWriter, sess auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    sess.ID.String(),
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearSessionCookie expires the session cookie.
func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// sessionID extracts the session id from the request cookie.
func sessionID(r *http.Request) (uuid.UUID, error) {
	cookie, err := r.Cookie(auth.SessionCookie)
	if err != nil {
		return uuid.Nil, auth.ErrNoSession
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil {
		return uuid.Nil, auth.ErrNoSession
	}
	return id, nil
}
