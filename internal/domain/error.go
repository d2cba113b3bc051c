package domain

import (
	"errors"
	"fmt"
)

var (
	// Error kinds surfaced by the entitlement coordinator.
	ErrConfiguration          = errors.New("purchases not configured")
	ErrBackendUnavailable     = errors.New("purchase backend unavailable")
	ErrPlanNotFound           = errors.New("plan not found")
	ErrUnsupportedEnvironment = errors.New("purchase ui unsupported in this environment")
	ErrCancelledByUser        = errors.New("purchase cancelled by user")

	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthenticated = errors.New("not authenticated")
)

// PlanNotFoundError reports a plan that could not be mapped to a package.
type PlanNotFoundError struct {
	PlanID     string
	OfferingID string // empty when no offering was loaded
}

func (e *PlanNotFoundError) Error() string {
	if e.OfferingID == "" {
		return fmt.Sprintf("plan %q not found: no offering loaded", e.PlanID)
	}
	return fmt.Sprintf("plan %q not found in offering %q", e.PlanID, e.OfferingID)
}

func (e *PlanNotFoundError) Is(target error) bool { return target == ErrPlanNotFound }

// Kinds lists every error kind a coordinator operation may report.
var Kinds = []error{
	ErrConfiguration,
	ErrBackendUnavailable,
	ErrPlanNotFound,
	ErrUnsupportedEnvironment,
	ErrCancelledByUser,
}

// Classify returns err unchanged when it already carries one of the coordinator
// error kinds; any other error is wrapped as ErrBackendUnavailable.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range Kinds {
		if errors.Is(err, k) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}
