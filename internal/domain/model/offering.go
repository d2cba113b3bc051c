package model

// PackageType classifies a package by duration. Values follow the purchase
// backend's naming.
type PackageType string

const (
	PackageTypeUnknown    PackageType = "UNKNOWN"
	PackageTypeCustom     PackageType = "CUSTOM"
	PackageTypeLifetime   PackageType = "LIFETIME"
	PackageTypeAnnual     PackageType = "ANNUAL"
	PackageTypeSixMonth   PackageType = "SIX_MONTH"
	PackageTypeThreeMonth PackageType = "THREE_MONTH"
	PackageTypeTwoMonth   PackageType = "TWO_MONTH"
	PackageTypeMonthly    PackageType = "MONTHLY"
	PackageTypeWeekly     PackageType = "WEEKLY"
)

// Package is one purchasable product inside an offering.
type Package struct {
	Identifier         string
	Type               PackageType
	ProductIdentifier  string
	OfferingIdentifier string
}

// Offering is an ordered set of packages sold under one configuration.
type Offering struct {
	Identifier  string
	Description string
	Packages    []Package
}

// OfferingCatalog holds every offering; at most one is current.
type OfferingCatalog struct {
	CurrentID string
	Offerings map[string]*Offering
}

// NewOfferingCatalog indexes offerings by identifier. currentID may be empty.
func NewOfferingCatalog(currentID string, offerings ...*Offering) *OfferingCatalog {
	m := make(map[string]*Offering, len(offerings))
	for _, o := range offerings {
		if o != nil {
			m[o.Identifier] = o
		}
	}
	return &OfferingCatalog{CurrentID: currentID, Offerings: m}
}

// Current returns the current offering or nil.
func (c *OfferingCatalog) Current() *Offering {
	if c == nil || c.CurrentID == "" {
		return nil
	}
	return c.Offerings[c.CurrentID]
}

// Get returns the offering with the given identifier or nil.
func (c *OfferingCatalog) Get(id string) *Offering {
	if c == nil {
		return nil
	}
	return c.Offerings[id]
}
