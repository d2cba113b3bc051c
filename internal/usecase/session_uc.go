// File: internal/usecase/session_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"applyassist/internal/domain"
	"applyassist/internal/domain/model"
	"applyassist/internal/domain/ports/adapter"
	"applyassist/internal/domain/ports/repository"
	"applyassist/internal/infra/logging"
)

// SessionUseCase persists session tokens. Storage failures never surface to
// callers: they are logged and the session degrades to unauthenticated.
type SessionUseCase struct {
	api   adapter.BackendAPI
	store repository.SessionTokenStore
	log   *zerolog.Logger
	now   func() time.Time
}

func NewSessionUseCase(api adapter.BackendAPI, store repository.SessionTokenStore, logger *zerolog.Logger) *SessionUseCase {
	return &SessionUseCase{
		api:   api,
		store: store,
		log:   logging.Component(logger, "SessionUseCase"),
		now:   time.Now,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Login exchanges credentials for tokens and persists them.
func (uc *SessionUseCase) Login(ctx context.Context, email, password string) (*model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidArgument
	}
	var tp tokenPair
	if err := uc.api.Do(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &tp); err != nil {
		if httpStatus(err) == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	if tp.AccessToken == "" {
		return nil, errors.New("login: empty access token")
	}

	uc.persist(ctx, model.AccessTokenKey, tp.AccessToken)
	if tp.RefreshToken != "" {
		uc.persist(ctx, model.RefreshTokenKey, tp.RefreshToken)
	}
	return uc.sessionFor(tp.AccessToken, tp.RefreshToken), nil
}

// Current returns the persisted session, or an unauthenticated one when
// tokens are missing, expired or unreadable.
func (uc *SessionUseCase) Current(ctx context.Context) *model.Session {
	access, ok, err := uc.store.Get(ctx, model.AccessTokenKey)
	if err != nil {
		uc.log.Warn().Err(err).Msg("read access token failed; treating as signed out")
		return model.Unauthenticated()
	}
	if !ok || access == "" {
		return model.Unauthenticated()
	}
	refresh, _, err := uc.store.Get(ctx, model.RefreshTokenKey)
	if err != nil {
		uc.log.Debug().Err(err).Msg("read refresh token failed")
		refresh = ""
	}
	s := uc.sessionFor(access, refresh)
	if s.Expired(uc.now()) {
		uc.log.Debug().Msg("access token expired")
		return model.Unauthenticated()
	}
	return s
}

// AccessToken implements restclient.TokenSource.
func (uc *SessionUseCase) AccessToken(ctx context.Context) (string, error) {
	return uc.Current(ctx).AccessToken, nil
}

// Logout forgets both tokens locally.
func (uc *SessionUseCase) Logout(ctx context.Context) {
	for _, k := range []string{model.AccessTokenKey, model.RefreshTokenKey} {
		if err := uc.store.Delete(ctx, k); err != nil {
			uc.log.Warn().Err(err).Str("key", k).Msg("delete token failed")
		}
	}
}

func (uc *SessionUseCase) persist(ctx context.Context, key, value string) {
	if err := uc.store.Set(ctx, key, value); err != nil {
		uc.log.Warn().Err(err).Str("key", key).Msg("persist token failed; session will not survive restart")
	}
}

func (uc *SessionUseCase) sessionFor(access, refresh string) *model.Session {
	return &model.Session{
		Authenticated: true,
		AccessToken:   access,
		RefreshToken:  refresh,
		ExpiresAt:     tokenExpiry(access),
	}
}

// tokenExpiry reads the exp claim of a JWT without verifying it; the backend
// verifies. Opaque tokens have no known expiry.
func tokenExpiry(tok string) *time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil || claims.ExpiresAt == nil {
		return nil
	}
	t := claims.ExpiresAt.Time
	return &t
}

func httpStatus(err error) int {
	var hs interface{ HTTPStatus() int }
	if errors.As(err, &hs) {
		return hs.HTTPStatus()
	}
	return 0
}
