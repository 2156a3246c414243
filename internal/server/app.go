package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hnrobert/gatekeep/internal/bootstrap"
	"github.com/hnrobert/gatekeep/internal/session"
)

const (
	AppName           = "gatekeep"
	DefaultCookieName = "gatekeep_session"
)

type App struct {
	version    string
	cookieName string
	sessions   *session.Manager
	welcome    *bootstrap.Delivery
}

func newApp(cfg Config, sessions *session.Manager, welcome *bootstrap.Delivery) *App {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &App{
		version:    version,
		cookieName: DefaultCookieName,
		sessions:   sessions,
		welcome:    welcome,
	}
}

func (a *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(a.withSession)

	r.Get("/health", a.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/first-time-check", a.handleFirstTimeCheck)
		r.Post("/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)
			r.Post("/logout", a.handleLogout)
			r.Get("/session", a.handleSession)
			r.Post("/change-password", a.handleChangePassword)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		sendError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

func (a *App) issueCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   false,
		Expires:  expires,
		MaxAge:   int(a.sessions.TTL().Seconds()),
	})
}

func (a *App) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   false,
		MaxAge:   -1,
	})
}
