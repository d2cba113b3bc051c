package usecase

import (
	"strings"

	"applyassist/internal/domain"
	"applyassist/internal/domain/model"
)

// ResolvePackage maps plan onto one package of offering.
//
// A package whose identifier equals the plan (case-insensitively) always wins.
// Otherwise the first package, in offering order, whose type contains the
// plan's hint ("month", "year", "lifetime") is returned. Types are matched
// literally, so ANNUAL does not serve the yearly plan.
func ResolvePackage(offering *model.Offering, plan model.PlanID) (*model.Package, error) {
	want := plan.Normalize()
	if offering == nil {
		return nil, &domain.PlanNotFoundError{PlanID: string(want)}
	}
	if !want.Valid() {
		return nil, &domain.PlanNotFoundError{PlanID: string(want), OfferingID: offering.Identifier}
	}

	for i := range offering.Packages {
		if strings.EqualFold(offering.Packages[i].Identifier, string(want)) {
			pkg := offering.Packages[i]
			return &pkg, nil
		}
	}

	hint := want.TypeHint()
	for i := range offering.Packages {
		if strings.Contains(strings.ToLower(string(offering.Packages[i].Type)), hint) {
			pkg := offering.Packages[i]
			return &pkg, nil
		}
	}
	return nil, &domain.PlanNotFoundError{PlanID: string(want), OfferingID: offering.Identifier}
}
