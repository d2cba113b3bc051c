package purchases

import (
	"sort"
	"strings"
	"time"

	"applyassist/internal/domain/model"
)

type receiptRequest struct {
	AppUserID  string `json:"app_user_id"`
	FetchToken string `json:"fetch_token"`
	ProductID  string `json:"product_id,omitempty"`
	OfferingID string `json:"presented_offering_identifier,omitempty"`
	IsRestore  bool   `json:"is_restore,omitempty"`
}

type subscriberResponse struct {
	RequestDate time.Time  `json:"request_date"`
	Subscriber  subscriber `json:"subscriber"`
}

type subscriber struct {
	OriginalAppUserID string                         `json:"original_app_user_id"`
	Entitlements      map[string]entitlementPayload  `json:"entitlements"`
	Subscriptions     map[string]subscriptionPayload `json:"subscriptions"`
}

type entitlementPayload struct {
	ExpiresDate       *time.Time `json:"expires_date"`
	ProductIdentifier string     `json:"product_identifier"`
	PurchaseDate      *time.Time `json:"purchase_date"`
}

type subscriptionPayload struct {
	ExpiresDate *time.Time `json:"expires_date"`
}

// customerState converts the payload. An entitlement with no expiry is a
// lifetime grant; otherwise it is active until its expiry.
func (r subscriberResponse) customerState(appUserID string, now time.Time) *model.CustomerState {
	if r.Subscriber.OriginalAppUserID != "" {
		appUserID = r.Subscriber.OriginalAppUserID
	}
	requested := r.RequestDate
	if requested.IsZero() {
		requested = now
	}
	ents := make([]model.EntitlementInfo, 0, len(r.Subscriber.Entitlements))
	for id, e := range r.Subscriber.Entitlements {
		ents = append(ents, model.EntitlementInfo{
			Identifier:        id,
			ProductIdentifier: e.ProductIdentifier,
			IsActive:          e.ExpiresDate == nil || e.ExpiresDate.After(requested),
			ExpiresAt:         e.ExpiresDate,
		})
	}
	var subs []string
	for product, s := range r.Subscriber.Subscriptions {
		if s.ExpiresDate == nil || s.ExpiresDate.After(requested) {
			subs = append(subs, product)
		}
	}
	sort.Strings(subs)
	return model.NewCustomerState(appUserID, ents, subs, requested)
}

type offeringsResponse struct {
	CurrentOfferingID string            `json:"current_offering_id"`
	Offerings         []offeringPayload `json:"offerings"`
}

type offeringPayload struct {
	Identifier  string           `json:"identifier"`
	Description string           `json:"description"`
	Packages    []packagePayload `json:"packages"`
}

type packagePayload struct {
	Identifier                string `json:"identifier"`
	PlatformProductIdentifier string `json:"platform_product_identifier"`
}

func (r offeringsResponse) catalog() *model.OfferingCatalog {
	offerings := make([]*model.Offering, 0, len(r.Offerings))
	for _, o := range r.Offerings {
		off := &model.Offering{Identifier: o.Identifier, Description: o.Description}
		for _, p := range o.Packages {
			off.Packages = append(off.Packages, model.Package{
				Identifier:         p.Identifier,
				Type:               packageTypeOf(p.Identifier),
				ProductIdentifier:  p.PlatformProductIdentifier,
				OfferingIdentifier: o.Identifier,
			})
		}
		offerings = append(offerings, off)
	}
	return model.NewOfferingCatalog(r.CurrentOfferingID, offerings...)
}

var reservedPackageTypes = map[string]model.PackageType{
	"$rc_lifetime":    model.PackageTypeLifetime,
	"$rc_annual":      model.PackageTypeAnnual,
	"$rc_six_month":   model.PackageTypeSixMonth,
	"$rc_three_month": model.PackageTypeThreeMonth,
	"$rc_two_month":   model.PackageTypeTwoMonth,
	"$rc_monthly":     model.PackageTypeMonthly,
	"$rc_weekly":      model.PackageTypeWeekly,
}

// packageTypeOf infers the duration from RevenueCat's reserved identifiers.
func packageTypeOf(identifier string) model.PackageType {
	if t, ok := reservedPackageTypes[strings.ToLower(identifier)]; ok {
		return t
	}
	if strings.HasPrefix(identifier, "$rc_") {
		return model.PackageTypeUnknown
	}
	return model.PackageTypeCustom
}
