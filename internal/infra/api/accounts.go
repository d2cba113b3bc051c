package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"applyassist/internal/domain/model"
)

// SessionService is the login surface used by the app shell.
type SessionService interface {
	Login(ctx context.Context, email, password string) (*model.Session, error)
	Current(ctx context.Context) *model.Session
	Logout(ctx context.Context)
}

// ProfileService backs role selection and onboarding.
type ProfileService interface {
	Me(ctx context.Context) (*model.Profile, error)
	SelectRole(ctx context.Context, role string) (*model.Profile, error)
	CompleteOnboarding(ctx context.Context) (*model.Profile, error)
}

func (s *Server) mountAccounts(r chi.Router) {
	if s.sessions != nil {
		r.Get("/session", s.handleSession)
		r.Post("/session", s.handleLogin)
		r.Delete("/session", s.handleLogout)
	}
	if s.profiles != nil {
		r.Get("/profile", s.handleProfile)
		r.Put("/profile/role", s.handleSelectRole)
		r.Post("/profile/onboarding", s.handleOnboarding)
	}
}

type sessionDTO struct {
	Authenticated bool       `json:"authenticated"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func sessionDTOFrom(ss *model.Session) sessionDTO {
	return sessionDTO{Authenticated: ss.Authenticated, ExpiresAt: ss.ExpiresAt}
}

type profileDTO struct {
	*model.Profile
	NeedsOnboarding bool `json:"needs_onboarding"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionDTOFrom(s.sessions.Current(r.Context())))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req, "invalid json") {
		return
	}
	ss, err := s.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionDTOFrom(ss))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.writeProfile(w, r)(s.profiles.Me(r.Context()))
}

func (s *Server) handleSelectRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if !decodeJSON(w, r, &req, "invalid json") {
		return
	}
	s.writeProfile(w, r)(s.profiles.SelectRole(r.Context(), req.Role))
}

func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	s.writeProfile(w, r)(s.profiles.CompleteOnboarding(r.Context()))
}

func (s *Server) writeProfile(w http.ResponseWriter, r *http.Request) func(*model.Profile, error) {
	return func(p *model.Profile, err error) {
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profileDTO{Profile: p, NeedsOnboarding: p.NeedsOnboarding()})
	}
}
