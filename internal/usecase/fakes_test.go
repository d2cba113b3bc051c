package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"applyassist/internal/domain/model"
	"applyassist/internal/domain/ports/adapter"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// fakeBackend is a scriptable adapter.PurchaseBackend.
type fakeBackend struct {
	ConfigureFunc       func(ctx context.Context, apiKey string) error
	GetCustomerInfoFunc func(ctx context.Context) (*model.CustomerState, error)
	GetOfferingsFunc    func(ctx context.Context) (*model.OfferingCatalog, error)
	PurchaseFunc        func(ctx context.Context, pkg model.Package) (*model.CustomerState, error)
	RestoreFunc         func(ctx context.Context) (*model.CustomerState, error)
	PaywallFunc         func(ctx context.Context, opts adapter.PaywallOptions) error
	CustomerCenterFunc  func(ctx context.Context) error

	mu            sync.Mutex
	configured    int
	customerCalls int
	purchased     []model.Package
	paywallOpts   []adapter.PaywallOptions
	listeners     map[adapter.ListenerID]adapter.CustomerInfoListener
	nextID        adapter.ListenerID
}

func newFakeBackend(customer *model.CustomerState, catalog *model.OfferingCatalog) *fakeBackend {
	return &fakeBackend{
		GetCustomerInfoFunc: func(ctx context.Context) (*model.CustomerState, error) { return customer, nil },
		GetOfferingsFunc:    func(ctx context.Context) (*model.OfferingCatalog, error) { return catalog, nil },
		listeners:           make(map[adapter.ListenerID]adapter.CustomerInfoListener),
	}
}

func (f *fakeBackend) Configure(ctx context.Context, apiKey string) error {
	f.mu.Lock()
	f.configured++
	f.mu.Unlock()
	if f.ConfigureFunc != nil {
		return f.ConfigureFunc(ctx, apiKey)
	}
	return nil
}

func (f *fakeBackend) GetCustomerInfo(ctx context.Context) (*model.CustomerState, error) {
	f.mu.Lock()
	f.customerCalls++
	f.mu.Unlock()
	return f.GetCustomerInfoFunc(ctx)
}

func (f *fakeBackend) GetOfferings(ctx context.Context) (*model.OfferingCatalog, error) {
	return f.GetOfferingsFunc(ctx)
}

func (f *fakeBackend) PurchasePackage(ctx context.Context, pkg model.Package) (*model.CustomerState, error) {
	f.mu.Lock()
	f.purchased = append(f.purchased, pkg)
	f.mu.Unlock()
	if f.PurchaseFunc != nil {
		return f.PurchaseFunc(ctx, pkg)
	}
	return customerWith("Pro"), nil
}

func (f *fakeBackend) RestorePurchases(ctx context.Context) (*model.CustomerState, error) {
	if f.RestoreFunc != nil {
		return f.RestoreFunc(ctx)
	}
	return customerWith(), nil
}

func (f *fakeBackend) PresentPaywallIfNeeded(ctx context.Context, opts adapter.PaywallOptions) error {
	f.mu.Lock()
	f.paywallOpts = append(f.paywallOpts, opts)
	f.mu.Unlock()
	if f.PaywallFunc != nil {
		return f.PaywallFunc(ctx, opts)
	}
	return nil
}

func (f *fakeBackend) PresentCustomerCenter(ctx context.Context) error {
	if f.CustomerCenterFunc != nil {
		return f.CustomerCenterFunc(ctx)
	}
	return nil
}

func (f *fakeBackend) AddCustomerInfoUpdateListener(l adapter.CustomerInfoListener) adapter.ListenerID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.listeners[f.nextID] = l
	return f.nextID
}

func (f *fakeBackend) RemoveCustomerInfoUpdateListener(id adapter.ListenerID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.listeners, id)
}

func (f *fakeBackend) push(cs *model.CustomerState) {
	f.mu.Lock()
	ls := make([]adapter.CustomerInfoListener, 0, len(f.listeners))
	for _, l := range f.listeners {
		ls = append(ls, l)
	}
	f.mu.Unlock()
	for _, l := range ls {
		l(cs)
	}
}

func (f *fakeBackend) counts() (configured, customerCalls, purchases, listeners int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configured, f.customerCalls, len(f.purchased), len(f.listeners)
}

// customerWith returns a snapshot where exactly the given entitlements are active.
func customerWith(active ...string) *model.CustomerState {
	ents := make([]model.EntitlementInfo, 0, len(active))
	for _, a := range active {
		ents = append(ents, model.EntitlementInfo{Identifier: a, IsActive: true, ProductIdentifier: "prod_" + a})
	}
	return model.NewCustomerState("user-1", ents, nil, time.Now())
}

func rcOffering() *model.Offering {
	return &model.Offering{
		Identifier: "default",
		Packages: []model.Package{
			{Identifier: "$rc_monthly", Type: model.PackageTypeMonthly, ProductIdentifier: "pro_monthly"},
			{Identifier: "$rc_annual", Type: model.PackageTypeAnnual, ProductIdentifier: "pro_annual"},
		},
	}
}

func catalogOf(o *model.Offering) *model.OfferingCatalog {
	return model.NewOfferingCatalog(o.Identifier, o)
}
