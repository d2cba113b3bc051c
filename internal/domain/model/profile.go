package model

import (
	"strings"

	"applyassist/internal/domain"
)

// Role is chosen on the role selection screen.
type Role string

const (
	RoleJobSeeker Role = "job_seeker"
	RoleRecruiter Role = "recruiter"
)

// ParseRole validates a role supplied by a caller.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleJobSeeker, RoleRecruiter:
		return r, nil
	}
	return "", domain.ErrInvalidArgument
}

// Profile is the user record returned by the application backend.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      Role   `json:"role,omitempty"`
	Onboarded bool   `json:"onboarded"`
}

// NeedsOnboarding is true until a role is chosen and onboarding completed.
func (p *Profile) NeedsOnboarding() bool {
	return p == nil || p.Role == "" || !p.Onboarded
}
