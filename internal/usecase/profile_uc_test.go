//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"applyassist/internal/domain"
	"applyassist/internal/domain/model"
	"applyassist/internal/usecase"
)

// assignJSON copies v into out the way the REST client would decode a body.
func assignJSON(v, out any) error {
	if out == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func TestProfileUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("select role sends normalized role", func(t *testing.T) {
		// --- Arrange ---
		var sent any
		api := &fakeAPI{DoFunc: func(_ context.Context, method, path string, in, out any) error {
			sent = in
			return assignJSON(model.Profile{ID: "u1", Role: model.RoleRecruiter}, out)
		}}
		uc := usecase.NewProfileUseCase(api)

		// --- Act ---
		p, err := uc.SelectRole(ctx, " Recruiter ")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if p.Role != model.RoleRecruiter || !p.NeedsOnboarding() {
			t.Errorf("unexpected profile: %+v", p)
		}
		if m, ok := sent.(map[string]model.Role); !ok || m["role"] != model.RoleRecruiter {
			t.Errorf("unexpected request body: %#v", sent)
		}
		if api.calls[0] != http.MethodPut+" /users/me/role" {
			t.Errorf("unexpected call: %s", api.calls[0])
		}
	})

	t.Run("invalid role never reaches backend", func(t *testing.T) {
		api := &fakeAPI{}
		uc := usecase.NewProfileUseCase(api)
		if _, err := uc.SelectRole(ctx, "admin"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if len(api.calls) != 0 {
			t.Errorf("expected no calls, got %v", api.calls)
		}
	})

	t.Run("complete onboarding", func(t *testing.T) {
		api := &fakeAPI{DoFunc: func(_ context.Context, _, _ string, _, out any) error {
			return assignJSON(model.Profile{ID: "u1", Role: model.RoleJobSeeker, Onboarded: true}, out)
		}}
		p, err := usecase.NewProfileUseCase(api).CompleteOnboarding(ctx)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if p.NeedsOnboarding() {
			t.Error("expected onboarding to be complete")
		}
	})

	t.Run("status mapping", func(t *testing.T) {
		cases := []struct {
			status int
			want   error
		}{
			{http.StatusUnauthorized, domain.ErrUnauthenticated},
			{http.StatusNotFound, domain.ErrNotFound},
		}
		for _, tc := range cases {
			api := &fakeAPI{DoFunc: func(context.Context, string, string, any, any) error { return statusErr(tc.status) }}
			if _, err := usecase.NewProfileUseCase(api).Me(ctx); !errors.Is(err, tc.want) {
				t.Errorf("status %d: expected %v, got %v", tc.status, tc.want, err)
			}
		}
	})
}
