package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/hnrobert/gatekeep/internal/auth"
	"github.com/hnrobert/gatekeep/internal/logger"
)

type healthResponse struct {
	Status   string `json:"status"`
	App      string `json:"app"`
	Version  string `json:"version"`
	Sessions int    `json:"sessions"`
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, healthResponse{
		Status:   "healthy",
		App:      AppName,
		Version:  a.version,
		Sessions: a.sessions.Count(),
	})
}

type firstTimeResponse struct {
	IsFirstTime bool   `json:"is_first_time"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (a *App) handleFirstTimeCheck(w http.ResponseWriter, r *http.Request) {
	creds, err := a.welcome.RetrieveOnce()
	if err != nil {
		logger.Error("First-time check failed: %v", err)
		sendJSON(w, http.StatusInternalServerError, firstTimeResponse{Error: "Could not read welcome credentials"})
		return
	}
	if creds == nil {
		sendJSON(w, http.StatusOK, firstTimeResponse{})
		return
	}
	logger.Info("First-time credentials delivered to %s", requestIDFrom(r))
	sendJSON(w, http.StatusOK, firstTimeResponse{
		IsFirstTime: true,
		Username:    creds.Username,
		Password:    creds.Password,
		Message:     "Save these credentials now! They won't be shown again.",
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresAt string `json:"expires_at"`
}

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		sendError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	g, err := a.sessions.Login(req.Username, req.Password)
	if err != nil {
		a.sendAuthError(w, err)
		return
	}
	a.issueCookie(w, g.Token, g.ExpiresAt)
	sendJSON(w, http.StatusOK, loginResponse{
		Success:   true,
		Token:     g.Token,
		Username:  g.Username,
		ExpiresAt: g.ExpiresAt.Format(time.RFC3339),
	})
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.sessions.Logout(a.readToken(r))
	a.clearCookie(w)
	sendJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Logged out successfully"})
}

type sessionResponse struct {
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at"`
}

func (a *App) handleSession(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r)
	sendJSON(w, http.StatusOK, sessionResponse{
		Username:  s.Username,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
		ExpiresAt: s.ExpiresAt.Format(time.RFC3339),
	})
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (a *App) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r)

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		sendError(w, http.StatusBadRequest, "Old password and new password are required")
		return
	}

	if err := a.sessions.ChangePassword(s.Username, req.OldPassword, req.NewPassword); err != nil {
		a.sendAuthError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Password changed successfully"})
}

// sendAuthError maps core errors onto status codes. The body never says more
// than auth.HumanAuthError does.
func (a *App) sendAuthError(w http.ResponseWriter, err error) {
	var locked *auth.AccountLockedError
	switch {
	case errors.As(err, &locked):
		w.Header().Set("Retry-After", strconv.Itoa(int(locked.Remaining.Round(time.Second)/time.Second)+1))
		sendError(w, http.StatusTooManyRequests, auth.HumanAuthError(err))
	case errors.Is(err, auth.ErrInvalidCredentials):
		sendError(w, http.StatusUnauthorized, auth.HumanAuthError(err))
	case errors.Is(err, auth.ErrWeakPassword):
		sendError(w, http.StatusBadRequest, auth.HumanAuthError(err))
	default:
		logger.Error("Auth request failed: %v", err)
		sendError(w, http.StatusInternalServerError, auth.HumanAuthError(err))
	}
}
