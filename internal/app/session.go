package app

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/klabast/wb-services/plaza/internal/admin"
)

// SessionCookie carries the browser session id
const SessionCookie = "plaza_session"

type sessionKey struct{}

// withSession makes sure every request carries a session id, issuing a
// fresh cookie when the browser has none.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(SessionCookie); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, id)))
	})
}

// session returns the login state of the request's browser session
func (s *Server) session(r *http.Request) *admin.Session {
	id, _ := r.Context().Value(sessionKey{}).(string)
	return s.gate.Session(id)
}

// requireAdmin rejects requests from sessions that are not logged in
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.session(r).Authenticated(r.Context()) {
			writeError(w, http.StatusUnauthorized, ErrNotAuthenticated)
			return
		}
		next(w, r)
	}
}
