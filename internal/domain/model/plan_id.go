package model

import "strings"

// PlanID is the caller-facing purchase choice.
type PlanID string

const (
	PlanMonthly  PlanID = "monthly"
	PlanYearly   PlanID = "yearly"
	PlanLifetime PlanID = "lifetime"
)

// Normalize lowercases and trims the plan id.
func (p PlanID) Normalize() PlanID {
	return PlanID(strings.ToLower(strings.TrimSpace(string(p))))
}

// Valid reports whether p (after normalization) is a known plan.
func (p PlanID) Valid() bool {
	return p.TypeHint() != ""
}

// TypeHint is the text a package type must contain to serve this plan.
func (p PlanID) TypeHint() string {
	switch p.Normalize() {
	case PlanMonthly:
		return "month"
	case PlanYearly:
		return "year"
	case PlanLifetime:
		return "lifetime"
	}
	return ""
}
