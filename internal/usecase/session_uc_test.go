//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"applyassist/internal/domain"
	"applyassist/internal/domain/model"
	"applyassist/internal/usecase"
)

// fakeAPI is a scriptable adapter.BackendAPI.
type fakeAPI struct {
	DoFunc func(ctx context.Context, method, path string, in, out any) error

	mu    sync.Mutex
	calls []string
}

func (f *fakeAPI) Do(ctx context.Context, method, path string, in, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, method+" "+path)
	f.mu.Unlock()
	if f.DoFunc != nil {
		return f.DoFunc(ctx, method, path, in, out)
	}
	return nil
}

type statusErr int

func (s statusErr) Error() string   { return http.StatusText(int(s)) }
func (s statusErr) HTTPStatus() int { return int(s) }

// mapStore is an in-memory SessionTokenStore that can be told to fail.
type mapStore struct {
	mu      sync.Mutex
	data    map[string]string
	failGet error
	failSet error
}

func newMapStore() *mapStore { return &mapStore{data: map[string]string{}} }

func (m *mapStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return "", false, m.failGet
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	m.data[key] = value
	return nil
}

func (m *mapStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func loginReturning(access, refresh string) *fakeAPI {
	return &fakeAPI{DoFunc: func(ctx context.Context, method, path string, in, out any) error {
		type pair struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		}
		return assignJSON(pair{access, refresh}, out)
	}}
}

func TestSessionUseCase_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("persists tokens and reports expiry", func(t *testing.T) {
		// --- Arrange ---
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		access := signedToken(t, exp)
		store := newMapStore()
		uc := usecase.NewSessionUseCase(loginReturning(access, "r-1"), store, newTestLogger())

		// --- Act ---
		s, err := uc.Login(ctx, " me@example.com ", "pw")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !s.Authenticated || s.ExpiresAt == nil || !s.ExpiresAt.Equal(exp) {
			t.Errorf("unexpected session: %+v", s)
		}
		if store.data[model.AccessTokenKey] != access || store.data[model.RefreshTokenKey] != "r-1" {
			t.Errorf("tokens were not persisted: %v", store.data)
		}
	})

	t.Run("rejects empty credentials without calling the backend", func(t *testing.T) {
		api := &fakeAPI{}
		uc := usecase.NewSessionUseCase(api, newMapStore(), newTestLogger())
		if _, err := uc.Login(ctx, "", "pw"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if len(api.calls) != 0 {
			t.Errorf("expected no backend calls, got %v", api.calls)
		}
	})

	t.Run("401 maps to unauthenticated", func(t *testing.T) {
		api := &fakeAPI{DoFunc: func(context.Context, string, string, any, any) error { return statusErr(http.StatusUnauthorized) }}
		uc := usecase.NewSessionUseCase(api, newMapStore(), newTestLogger())
		if _, err := uc.Login(ctx, "me@example.com", "bad"); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Errorf("expected ErrUnauthenticated, got %v", err)
		}
	})

	t.Run("storage failure does not fail login", func(t *testing.T) {
		store := newMapStore()
		store.failSet = errors.New("disk full")
		uc := usecase.NewSessionUseCase(loginReturning("opaque", ""), store, newTestLogger())
		s, err := uc.Login(ctx, "me@example.com", "pw")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !s.Authenticated || s.ExpiresAt != nil {
			t.Errorf("expected authenticated session without expiry, got %+v", s)
		}
	})
}

func TestSessionUseCase_Current(t *testing.T) {
	ctx := context.Background()

	t.Run("no tokens", func(t *testing.T) {
		uc := usecase.NewSessionUseCase(&fakeAPI{}, newMapStore(), newTestLogger())
		if uc.Current(ctx).Authenticated {
			t.Error("expected unauthenticated session")
		}
	})

	t.Run("unreadable storage degrades to signed out", func(t *testing.T) {
		store := newMapStore()
		store.data[model.AccessTokenKey] = "opaque"
		store.failGet = errors.New("keychain locked")
		uc := usecase.NewSessionUseCase(&fakeAPI{}, store, newTestLogger())
		if uc.Current(ctx).Authenticated {
			t.Error("expected unauthenticated session")
		}
	})

	t.Run("expired token", func(t *testing.T) {
		store := newMapStore()
		store.data[model.AccessTokenKey] = signedToken(t, time.Now().Add(-time.Minute))
		uc := usecase.NewSessionUseCase(&fakeAPI{}, store, newTestLogger())
		if uc.Current(ctx).Authenticated {
			t.Error("expected expired token to be ignored")
		}
		tok, err := uc.AccessToken(ctx)
		if err != nil || tok != "" {
			t.Errorf("expected empty token, got %q, %v", tok, err)
		}
	})

	t.Run("logout clears tokens", func(t *testing.T) {
		store := newMapStore()
		store.data[model.AccessTokenKey] = "opaque"
		store.data[model.RefreshTokenKey] = "r"
		uc := usecase.NewSessionUseCase(&fakeAPI{}, store, newTestLogger())
		if tok, _ := uc.AccessToken(ctx); tok != "opaque" {
			t.Fatalf("expected stored token, got %q", tok)
		}

		uc.Logout(ctx)

		if len(store.data) != 0 {
			t.Errorf("expected empty store, got %v", store.data)
		}
	})
}
