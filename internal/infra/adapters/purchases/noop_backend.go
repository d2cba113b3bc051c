package purchases

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"applyassist/internal/domain"
	"applyassist/internal/domain/model"
	"applyassist/internal/domain/ports/adapter"
)

var _ adapter.PurchaseBackend = (*NoopPurchaseBackend)(nil)

// NoopPurchaseBackend is a simple in-memory backend to use in tests and the
// demo. Purchases grant the configured entitlement.
type NoopPurchaseBackend struct {
	entitlement string

	mu         sync.Mutex
	configured bool
	customer   *model.CustomerState
	catalog    *model.OfferingCatalog
	owned      map[string]bool // product identifiers
	cancelNext bool

	listeners listenerSet
}

// NewNoopPurchaseBackend starts with no entitlements and a default offering
// holding monthly, annual and lifetime packages.
func NewNoopPurchaseBackend(appUserID, entitlement string) *NoopPurchaseBackend {
	return &NoopPurchaseBackend{
		entitlement: entitlement,
		customer:    model.NewCustomerState(appUserID, nil, nil, nowFunc()),
		catalog:     DefaultCatalog(),
		owned:       make(map[string]bool),
	}
}

// DefaultCatalog is the offering layout used by the in-memory backend.
func DefaultCatalog() *model.OfferingCatalog {
	const id = "default"
	return model.NewOfferingCatalog(id, &model.Offering{
		Identifier:  id,
		Description: "Standard plans",
		Packages: []model.Package{
			{Identifier: "$rc_monthly", Type: model.PackageTypeMonthly, ProductIdentifier: "pro_monthly", OfferingIdentifier: id},
			{Identifier: "$rc_annual", Type: model.PackageTypeAnnual, ProductIdentifier: "pro_annual", OfferingIdentifier: id},
			{Identifier: "$rc_lifetime", Type: model.PackageTypeLifetime, ProductIdentifier: "pro_lifetime", OfferingIdentifier: id},
		},
	})
}

// SetCatalog replaces the offerings served.
func (g *NoopPurchaseBackend) SetCatalog(c *model.OfferingCatalog) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.catalog = c
}

// CancelNextPurchase makes the next purchase fail as if the user backed out.
func (g *NoopPurchaseBackend) CancelNextPurchase() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelNext = true
}

// Push replaces the customer and notifies listeners, simulating a server-side change.
func (g *NoopPurchaseBackend) Push(cs *model.CustomerState) {
	g.mu.Lock()
	g.customer = cs
	g.mu.Unlock()
	g.listeners.notify(cs)
}

func (g *NoopPurchaseBackend) Configure(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("%w: empty api key", domain.ErrConfiguration)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.configured = true
	return nil
}

func (g *NoopPurchaseBackend) checkConfigured() error {
	if !g.configured {
		return fmt.Errorf("%w: noop: not configured", domain.ErrConfiguration)
	}
	return nil
}

func (g *NoopPurchaseBackend) GetCustomerInfo(ctx context.Context) (*model.CustomerState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkConfigured(); err != nil {
		return nil, err
	}
	return g.customer, nil
}

func (g *NoopPurchaseBackend) GetOfferings(ctx context.Context) (*model.OfferingCatalog, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkConfigured(); err != nil {
		return nil, err
	}
	return g.catalog, nil
}

func (g *NoopPurchaseBackend) PurchasePackage(ctx context.Context, pkg model.Package) (*model.CustomerState, error) {
	g.mu.Lock()
	if err := g.checkConfigured(); err != nil {
		g.mu.Unlock()
		return nil, err
	}
	if g.cancelNext {
		g.cancelNext = false
		g.mu.Unlock()
		return nil, domain.ErrCancelledByUser
	}
	g.owned[pkg.ProductIdentifier] = true
	cs := g.grantLocked()
	g.mu.Unlock()

	g.listeners.notify(cs)
	return cs, nil
}

func (g *NoopPurchaseBackend) RestorePurchases(ctx context.Context) (*model.CustomerState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkConfigured(); err != nil {
		return nil, err
	}
	return g.customer, nil
}

// grantLocked rebuilds the customer from owned products. Caller holds g.mu.
func (g *NoopPurchaseBackend) grantLocked() *model.CustomerState {
	subs := make([]string, 0, len(g.owned))
	for p := range g.owned {
		subs = append(subs, p)
	}
	sort.Strings(subs)
	var ents []model.EntitlementInfo
	if len(subs) > 0 {
		ents = append(ents, model.EntitlementInfo{Identifier: g.entitlement, ProductIdentifier: subs[0], IsActive: true})
	}
	g.customer = model.NewCustomerState(g.customer.AppUserID, ents, subs, nowFunc())
	return g.customer
}

func (g *NoopPurchaseBackend) PresentPaywallIfNeeded(ctx context.Context, opts adapter.PaywallOptions) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkConfigured()
}

func (g *NoopPurchaseBackend) PresentCustomerCenter(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkConfigured()
}

func (g *NoopPurchaseBackend) AddCustomerInfoUpdateListener(l adapter.CustomerInfoListener) adapter.ListenerID {
	return g.listeners.add(l)
}

func (g *NoopPurchaseBackend) RemoveCustomerInfoUpdateListener(id adapter.ListenerID) {
	g.listeners.remove(id)
}

// Listeners reports how many listeners are registered.
func (g *NoopPurchaseBackend) Listeners() int { return g.listeners.len() }
