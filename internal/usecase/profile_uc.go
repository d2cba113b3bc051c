// File: internal/usecase/profile_uc.go
package usecase

import (
	"context"
	"fmt"
	"net/http"

	"applyassist/internal/domain"
	"applyassist/internal/domain/model"
	"applyassist/internal/domain/ports/adapter"
)

// ProfileUseCase backs the role selection and onboarding screens.
type ProfileUseCase struct {
	api adapter.BackendAPI
}

func NewProfileUseCase(api adapter.BackendAPI) *ProfileUseCase {
	return &ProfileUseCase{api: api}
}

func (uc *ProfileUseCase) Me(ctx context.Context) (*model.Profile, error) {
	var p model.Profile
	if err := uc.api.Do(ctx, http.MethodGet, "/users/me", nil, &p); err != nil {
		return nil, mapAPIError("get profile", err)
	}
	return &p, nil
}

func (uc *ProfileUseCase) SelectRole(ctx context.Context, role string) (*model.Profile, error) {
	r, err := model.ParseRole(role)
	if err != nil {
		return nil, err
	}
	var p model.Profile
	if err := uc.api.Do(ctx, http.MethodPut, "/users/me/role", map[string]model.Role{"role": r}, &p); err != nil {
		return nil, mapAPIError("select role", err)
	}
	return &p, nil
}

func (uc *ProfileUseCase) CompleteOnboarding(ctx context.Context) (*model.Profile, error) {
	var p model.Profile
	if err := uc.api.Do(ctx, http.MethodPost, "/users/me/onboarding", nil, &p); err != nil {
		return nil, mapAPIError("complete onboarding", err)
	}
	return &p, nil
}

func mapAPIError(op string, err error) error {
	switch httpStatus(err) {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrUnauthenticated, err)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
