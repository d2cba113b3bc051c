package model

import (
	"sort"
	"time"
)

// EntitlementInfo is the state of one named entitlement for a customer.
type EntitlementInfo struct {
	Identifier        string
	ProductIdentifier string
	IsActive          bool
	ExpiresAt         *time.Time // nil for lifetime grants
}

// CustomerState is a snapshot of a customer as reported by the purchase backend.
// A snapshot is never modified after construction; refreshes replace it.
type CustomerState struct {
	AppUserID           string
	Entitlements        map[string]EntitlementInfo
	ActiveSubscriptions []string // product identifiers
	RequestedAt         time.Time
}

// NewCustomerState builds a snapshot keyed by entitlement identifier.
func NewCustomerState(appUserID string, entitlements []EntitlementInfo, activeSubs []string, requestedAt time.Time) *CustomerState {
	m := make(map[string]EntitlementInfo, len(entitlements))
	for _, e := range entitlements {
		m[e.Identifier] = e
	}
	subs := append([]string(nil), activeSubs...)
	return &CustomerState{
		AppUserID:           appUserID,
		Entitlements:        m,
		ActiveSubscriptions: subs,
		RequestedAt:         requestedAt,
	}
}

// IsActive reports whether key is present and active. Nil-safe.
func (c *CustomerState) IsActive(key string) bool {
	if c == nil {
		return false
	}
	e, ok := c.Entitlements[key]
	return ok && e.IsActive
}

// ActiveEntitlements returns the identifiers of active entitlements, sorted.
func (c *CustomerState) ActiveEntitlements() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Entitlements))
	for id, e := range c.Entitlements {
		if e.IsActive {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
