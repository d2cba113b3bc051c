package model

import "time"

// Keys under which session tokens are persisted.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// Session describes the locally known authentication state.
type Session struct {
	Authenticated bool
	AccessToken   string
	RefreshToken  string
	ExpiresAt     *time.Time // nil when the token carries no expiry
}

// Unauthenticated is the session used whenever tokens are missing or unreadable.
func Unauthenticated() *Session { return &Session{} }

// Expired reports whether the access token expiry has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}
