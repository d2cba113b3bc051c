// File: internal/infra/adapters/purchases/revenuecat_backend.go
package purchases

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"applyassist/internal/domain"
	"applyassist/internal/domain/model"
	"applyassist/internal/domain/ports/adapter"
	"applyassist/internal/infra/logging"
	"applyassist/internal/infra/restclient"
)

var _ adapter.PurchaseBackend = (*RevenueCatBackend)(nil)

// RevenueCatBackend implements adapter.PurchaseBackend over the RevenueCat
// REST API v1. Store interaction (purchase sheet, paywall screens) is
// delegated to a StoreFront; without one those operations are unsupported.
type RevenueCatBackend struct {
	base      *restclient.Client
	appUserID string
	platform  string
	store     adapter.StoreFront
	log       *zerolog.Logger

	mu     sync.RWMutex
	client *restclient.Client // nil until Configure

	listeners listenerSet
}

// NewRevenueCatBackend builds an unconfigured backend. store may be nil.
func NewRevenueCatBackend(baseURL, appUserID string, timeout time.Duration, store adapter.StoreFront, logger *zerolog.Logger) (*RevenueCatBackend, error) {
	if strings.TrimSpace(appUserID) == "" {
		return nil, errors.New("app user id empty")
	}
	c, err := restclient.New(baseURL, timeout, nil, logger)
	if err != nil {
		return nil, err
	}
	return &RevenueCatBackend{
		base:      c,
		appUserID: appUserID,
		platform:  "ios",
		store:     store,
		log:       logging.Component(logger, "RevenueCatBackend"),
	}, nil
}

// SetPlatform overrides the X-Platform header sent with receipts.
func (b *RevenueCatBackend) SetPlatform(p string) {
	if p != "" {
		b.platform = p
	}
}

func (b *RevenueCatBackend) AppUserID() string { return b.appUserID }

// Configure stores the key. The key itself is validated by the first call
// that uses it.
func (b *RevenueCatBackend) Configure(ctx context.Context, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return fmt.Errorf("%w: empty api key", domain.ErrConfiguration)
	}
	b.mu.Lock()
	b.client = b.base.WithTokens(restclient.StaticToken(apiKey)).WithHeader("X-Platform", b.platform)
	b.mu.Unlock()
	b.log.Info().Str("app_user_id", b.appUserID).Msg("purchases configured")
	return nil
}

func (b *RevenueCatBackend) api() (*restclient.Client, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.client == nil {
		return nil, fmt.Errorf("%w: purchases not configured", domain.ErrConfiguration)
	}
	return b.client, nil
}

func (b *RevenueCatBackend) subscriberPath(suffix string) string {
	return "/v1/subscribers/" + url.PathEscape(b.appUserID) + suffix
}

func (b *RevenueCatBackend) GetCustomerInfo(ctx context.Context) (*model.CustomerState, error) {
	c, err := b.api()
	if err != nil {
		return nil, err
	}
	var resp subscriberResponse
	if err := c.Get(ctx, b.subscriberPath(""), &resp); err != nil {
		return nil, classify("get customer info", err)
	}
	return resp.customerState(b.appUserID, time.Now()), nil
}

func (b *RevenueCatBackend) GetOfferings(ctx context.Context) (*model.OfferingCatalog, error) {
	c, err := b.api()
	if err != nil {
		return nil, err
	}
	var resp offeringsResponse
	if err := c.Get(ctx, b.subscriberPath("/offerings"), &resp); err != nil {
		return nil, classify("get offerings", err)
	}
	return resp.catalog(), nil
}

// PurchasePackage runs the store flow and posts the resulting token.
func (b *RevenueCatBackend) PurchasePackage(ctx context.Context, pkg model.Package) (*model.CustomerState, error) {
	c, err := b.api()
	if err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, fmt.Errorf("%w: no store available for purchases", domain.ErrUnsupportedEnvironment)
	}
	token, err := b.store.Purchase(ctx, pkg)
	if err != nil {
		// cancellation and store errors pass through untouched
		return nil, err
	}
	cs, err := b.postReceipt(ctx, c, receiptRequest{
		AppUserID:  b.appUserID,
		FetchToken: token,
		ProductID:  pkg.ProductIdentifier,
		OfferingID: pkg.OfferingIdentifier,
	})
	if err != nil {
		return nil, err
	}
	b.log.Info().Str("package", pkg.Identifier).Str("product", pkg.ProductIdentifier).Msg("purchase recorded")
	b.listeners.notify(cs)
	return cs, nil
}

// RestorePurchases re-posts every token the store remembers, then re-reads
// the subscriber.
func (b *RevenueCatBackend) RestorePurchases(ctx context.Context) (*model.CustomerState, error) {
	c, err := b.api()
	if err != nil {
		return nil, err
	}
	if b.store != nil {
		tokens, err := b.store.RestoreTokens(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range tokens {
			if _, err := b.postReceipt(ctx, c, receiptRequest{AppUserID: b.appUserID, FetchToken: t, IsRestore: true}); err != nil {
				return nil, err
			}
		}
		b.log.Info().Int("tokens", len(tokens)).Msg("restore posted")
	}
	cs, err := b.GetCustomerInfo(ctx)
	if err != nil {
		return nil, err
	}
	b.listeners.notify(cs)
	return cs, nil
}

func (b *RevenueCatBackend) postReceipt(ctx context.Context, c *restclient.Client, req receiptRequest) (*model.CustomerState, error) {
	var resp subscriberResponse
	if err := c.Post(ctx, "/v1/receipts", req, &resp); err != nil {
		return nil, classify("post receipt", err)
	}
	return resp.customerState(b.appUserID, time.Now()), nil
}

// PresentPaywallIfNeeded shows the paywall unless the required entitlement is
// already active.
func (b *RevenueCatBackend) PresentPaywallIfNeeded(ctx context.Context, opts adapter.PaywallOptions) error {
	if b.store == nil {
		return fmt.Errorf("%w: paywall needs a store front", domain.ErrUnsupportedEnvironment)
	}
	if opts.RequiredEntitlement != "" {
		cs, err := b.GetCustomerInfo(ctx)
		if err != nil {
			return err
		}
		if cs.IsActive(opts.RequiredEntitlement) {
			return nil
		}
	}
	catalog, err := b.GetOfferings(ctx)
	if err != nil {
		return err
	}
	offering := catalog.Current()
	if opts.OfferingID != "" {
		offering = catalog.Get(opts.OfferingID)
	}
	if offering == nil {
		return fmt.Errorf("%w: no offering to present", domain.ErrConfiguration)
	}
	return b.store.PresentPaywall(ctx, offering)
}

func (b *RevenueCatBackend) PresentCustomerCenter(ctx context.Context) error {
	if _, err := b.api(); err != nil {
		return err
	}
	if b.store == nil {
		return fmt.Errorf("%w: customer center needs a store front", domain.ErrUnsupportedEnvironment)
	}
	return b.store.PresentCustomerCenter(ctx)
}

func (b *RevenueCatBackend) AddCustomerInfoUpdateListener(l adapter.CustomerInfoListener) adapter.ListenerID {
	return b.listeners.add(l)
}

func (b *RevenueCatBackend) RemoveCustomerInfoUpdateListener(id adapter.ListenerID) {
	b.listeners.remove(id)
}

// Sync re-reads the subscriber and pushes it to listeners. Used by the
// webhook when the backend reports a change.
func (b *RevenueCatBackend) Sync(ctx context.Context) error {
	cs, err := b.GetCustomerInfo(ctx)
	if err != nil {
		return err
	}
	b.listeners.notify(cs)
	return nil
}

// classify maps transport and HTTP failures onto domain errors.
func classify(op string, err error) error {
	switch restclient.StatusOf(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConfiguration, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrBackendUnavailable, err)
}
