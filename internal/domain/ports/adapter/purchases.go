package adapter

import (
	"context"

	"applyassist/internal/domain/model"
)

// PaywallOptions configures PresentPaywallIfNeeded.
type PaywallOptions struct {
	// RequiredEntitlement suppresses the paywall when already active.
	RequiredEntitlement string
	OfferingID          string // empty means current offering
}

// ListenerID identifies a registered customer info listener.
type ListenerID uint64

// CustomerInfoListener receives customer snapshots pushed by the backend.
type CustomerInfoListener func(*model.CustomerState)

// PurchaseBackend is the port for the third-party purchase service.
type PurchaseBackend interface {
	// Configure must be called once before any other method.
	Configure(ctx context.Context, apiKey string) error

	GetCustomerInfo(ctx context.Context) (*model.CustomerState, error)
	GetOfferings(ctx context.Context) (*model.OfferingCatalog, error)
	// PurchasePackage fails with domain.ErrCancelledByUser when the user backs out.
	PurchasePackage(ctx context.Context, pkg model.Package) (*model.CustomerState, error)
	RestorePurchases(ctx context.Context) (*model.CustomerState, error)

	PresentPaywallIfNeeded(ctx context.Context, opts PaywallOptions) error
	PresentCustomerCenter(ctx context.Context) error

	AddCustomerInfoUpdateListener(l CustomerInfoListener) ListenerID
	RemoveCustomerInfoUpdateListener(id ListenerID)
}

// StoreFront is the native store surface: the purchase sheet and the
// paywall/customer center screens.
type StoreFront interface {
	// Purchase runs the store flow for a product and returns the store's
	// transaction token.
	Purchase(ctx context.Context, pkg model.Package) (token string, err error)
	// RestoreTokens returns tokens for every transaction the store remembers.
	RestoreTokens(ctx context.Context) ([]string, error)
	PresentPaywall(ctx context.Context, offering *model.Offering) error
	PresentCustomerCenter(ctx context.Context) error
}
