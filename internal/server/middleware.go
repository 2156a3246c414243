package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/hnrobert/gatekeep/internal/logger"
	"github.com/hnrobert/gatekeep/internal/session"
)

type ctxKey string

const (
	ctxRequestID ctxKey = "request_id"
	ctxSession   ctxKey = "session"

	headerRequestID = "X-Request-ID"
)

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set(headerRequestID, id)
		ctx := context.WithValue(r.Context(), ctxRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(r *http.Request) string {
	if v, ok := r.Context().Value(ctxRequestID).(string); ok {
		return v
	}
	return ""
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Info("%s %s %s %d %dB %s", requestIDFrom(r), r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start).Round(time.Millisecond))
	})
}

// withSession attaches the validated session, if any, to the request context.
func (a *App) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := a.readToken(r); token != "" {
			if s, ok := a.sessions.Validate(token); ok {
				r = r.WithContext(context.WithValue(r.Context(), ctxSession, s))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// readToken prefers the Authorization header, with or without the "Bearer "
// prefix, and falls back to the session cookie.
func (a *App) readToken(r *http.Request) string {
	if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
		parts := strings.SplitN(authz, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return authz
	}
	if c, err := r.Cookie(a.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

func sessionFrom(r *http.Request) (session.Session, bool) {
	s, ok := r.Context().Value(ctxSession).(session.Session)
	return s, ok
}

func (a *App) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := sessionFrom(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		if a.readToken(r) == "" {
			sendError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		sendError(w, http.StatusUnauthorized, "Invalid or expired session")
	})
}
