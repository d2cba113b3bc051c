package model

// CoordinatorState is the observable state of the entitlement coordinator.
// Values are copied out to readers; the pointed-to snapshots are immutable.
type CoordinatorState struct {
	Configured bool
	Loading    bool
	Customer   *CustomerState
	Catalog    *OfferingCatalog
	LastError  error
}

// IsEntitled reports whether the last known customer has key active.
func (s CoordinatorState) IsEntitled(key string) bool {
	return s.Customer.IsActive(key)
}

// CurrentOffering returns the catalog's current offering, if any.
func (s CoordinatorState) CurrentOffering() *Offering {
	return s.Catalog.Current()
}
