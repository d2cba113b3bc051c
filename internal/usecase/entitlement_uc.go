// File: internal/usecase/entitlement_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"applyassist/internal/domain"
	"applyassist/internal/domain/model"
	"applyassist/internal/domain/ports/adapter"
	"applyassist/internal/infra/logging"
	"applyassist/internal/infra/metrics"
)

var errEmptyResponse = errors.New("empty response from purchase backend")

// Compile-time check
var _ EntitlementUseCase = (*EntitlementCoordinator)(nil)

// EntitlementUseCase is what screens and the HTTP layer see of the coordinator.
type EntitlementUseCase interface {
	Initialize(ctx context.Context) error
	Refresh(ctx context.Context) error
	IsEntitled(key string) bool
	ResolvePackage(offering *model.Offering, plan model.PlanID) (*model.Package, error)
	Purchase(ctx context.Context, plan model.PlanID) (*model.CustomerState, error)
	Restore(ctx context.Context) (*model.CustomerState, error)
	PresentPaywall(ctx context.Context, requiredEntitlement string) error
	PresentCustomerCenter(ctx context.Context) error

	Snapshot() model.CoordinatorState
	Watch() (<-chan model.CoordinatorState, func())
	Close() error
}

// CoordinatorOptions configures an EntitlementCoordinator.
type CoordinatorOptions struct {
	APIKey string
	// Preview marks a runtime that cannot show native purchase UI.
	Preview bool
}

// EntitlementCoordinator owns the subscription state of the running process.
//
// State is replaced as a whole under mu; no lock is held across backend calls.
// Mutating operations are not serialized against each other: concurrent
// purchase/restore/refresh/push updates resolve last-write-wins.
type EntitlementCoordinator struct {
	backend adapter.PurchaseBackend
	opts    CoordinatorOptions
	log     *zerolog.Logger

	initMu     sync.Mutex // guards configuration and listener registration
	listenerID adapter.ListenerID
	listening  bool

	mu        sync.RWMutex
	state     model.CoordinatorState
	watchers  map[int]chan model.CoordinatorState
	nextWatch int
	closed    bool
}

// NewEntitlementCoordinator returns a coordinator in the loading, unconfigured state.
func NewEntitlementCoordinator(backend adapter.PurchaseBackend, opts CoordinatorOptions, logger *zerolog.Logger) *EntitlementCoordinator {
	return &EntitlementCoordinator{
		backend:  backend,
		opts:     opts,
		log:      logging.Component(logger, "EntitlementCoordinator"),
		state:    model.CoordinatorState{Loading: true},
		watchers: make(map[int]chan model.CoordinatorState),
	}
}

// Initialize configures the backend once per coordinator and then refreshes.
// Calls after a successful configuration return nil without refreshing.
func (c *EntitlementCoordinator) Initialize(ctx context.Context) error {
	defer logging.TraceDuration(c.log, "EntitlementCoordinator.Initialize")()

	c.initMu.Lock()
	if c.Snapshot().Configured {
		c.initMu.Unlock()
		return nil
	}
	c.setError(nil)

	key := strings.TrimSpace(c.opts.APIKey)
	if !validAPIKey(key) {
		err := fmt.Errorf("%w: missing or invalid api key", domain.ErrConfiguration)
		c.update(func(s *model.CoordinatorState) {
			s.LastError = err
			s.Loading = false
		})
		c.initMu.Unlock()
		c.log.Error().Err(err).Msg("purchases configuration rejected")
		return err
	}
	if err := c.backend.Configure(ctx, key); err != nil {
		err = domain.Classify(fmt.Errorf("configure: %w", err))
		c.update(func(s *model.CoordinatorState) {
			s.LastError = err
			s.Loading = false
		})
		c.initMu.Unlock()
		c.log.Error().Err(err).Msg("purchases configuration failed")
		return err
	}
	c.listenerID = c.backend.AddCustomerInfoUpdateListener(c.onCustomerInfo)
	c.listening = true
	c.update(func(s *model.CoordinatorState) { s.Configured = true })
	c.initMu.Unlock()

	metrics.SetConfigured(true)
	c.log.Info().Str("api_key", logging.Redact(key, false)).Bool("preview", c.opts.Preview).Msg("purchases configured")
	return c.Refresh(ctx)
}

// Refresh fetches customer info and offerings concurrently and publishes both
// together. On failure neither is replaced.
func (c *EntitlementCoordinator) Refresh(ctx context.Context) error {
	defer metrics.ObserveDuration("refresh", time.Now())
	c.setError(nil)
	if err := c.requireConfigured(); err != nil {
		return err
	}
	_, err := detach(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.refresh(ctx)
	})
	return err
}

func (c *EntitlementCoordinator) refresh(ctx context.Context) error {
	var (
		customer *model.CustomerState
		catalog  *model.OfferingCatalog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ci, err := c.backend.GetCustomerInfo(gctx)
		if err != nil {
			return fmt.Errorf("get customer info: %w", err)
		}
		customer = ci
		return nil
	})
	g.Go(func() error {
		oc, err := c.backend.GetOfferings(gctx)
		if err != nil {
			return fmt.Errorf("get offerings: %w", err)
		}
		catalog = oc
		return nil
	})
	err := g.Wait()
	if err == nil && (customer == nil || catalog == nil) {
		err = errEmptyResponse
	}
	metrics.ObserveRefresh(err)
	if err != nil {
		err = domain.Classify(err)
		c.update(func(s *model.CoordinatorState) {
			s.LastError = err
			s.Loading = false
		})
		c.log.Warn().Err(err).Msg("refresh failed")
		return err
	}
	c.update(func(s *model.CoordinatorState) {
		s.Customer = customer
		s.Catalog = catalog
		s.Loading = false
	})
	c.log.Debug().Strs("active", customer.ActiveEntitlements()).Str("offering", catalog.CurrentID).Msg("refreshed")
	return nil
}

// IsEntitled reports whether key is active in the last known customer state.
func (c *EntitlementCoordinator) IsEntitled(key string) bool {
	return c.Snapshot().IsEntitled(key)
}

// ResolvePackage maps a plan onto a package of offering. See ResolvePackage.
func (c *EntitlementCoordinator) ResolvePackage(offering *model.Offering, plan model.PlanID) (*model.Package, error) {
	return ResolvePackage(offering, plan)
}

// Purchase buys the package serving plan in the current offering.
// Backend errors are returned as-is; unclassified ones are wrapped as
// domain.ErrBackendUnavailable.
func (c *EntitlementCoordinator) Purchase(ctx context.Context, plan model.PlanID) (*model.CustomerState, error) {
	defer metrics.ObserveDuration("purchase", time.Now())
	c.setError(nil)

	pkg, err := ResolvePackage(c.Snapshot().CurrentOffering(), plan)
	if err != nil {
		metrics.IncPlanResolutionFailure(string(plan))
		metrics.ObservePurchase(string(plan), err)
		c.setError(err)
		c.log.Warn().Err(err).Str("plan", string(plan)).Msg("plan resolution failed")
		return nil, err
	}
	if err := c.requireConfigured(); err != nil {
		return nil, err
	}

	ctx = logging.WithOperation(ctx, "purchase")
	return detach(ctx, func(ctx context.Context) (*model.CustomerState, error) {
		log := logging.With(ctx, c.log)
		customer, err := c.backend.PurchasePackage(ctx, *pkg)
		if err == nil && customer == nil {
			err = errEmptyResponse
		}
		metrics.ObservePurchase(string(plan), err)
		if err != nil {
			err = domain.Classify(err)
			c.setError(err)
			if errors.Is(err, domain.ErrCancelledByUser) {
				log.Info().Str("package", pkg.Identifier).Msg("purchase cancelled by user")
			} else {
				log.Warn().Err(err).Str("package", pkg.Identifier).Msg("purchase failed")
			}
			return nil, err
		}
		c.replaceCustomer(customer)
		log.Info().Str("package", pkg.Identifier).Strs("active", customer.ActiveEntitlements()).Msg("purchase completed")
		return customer, nil
	})
}

// Restore asks the backend to restore previous purchases.
func (c *EntitlementCoordinator) Restore(ctx context.Context) (*model.CustomerState, error) {
	defer metrics.ObserveDuration("restore", time.Now())
	c.setError(nil)
	if err := c.requireConfigured(); err != nil {
		return nil, err
	}
	ctx = logging.WithOperation(ctx, "restore")
	return detach(ctx, func(ctx context.Context) (*model.CustomerState, error) {
		customer, err := c.backend.RestorePurchases(ctx)
		if err == nil && customer == nil {
			err = errEmptyResponse
		}
		metrics.ObserveRestore(err)
		if err != nil {
			err = domain.Classify(err)
			c.setError(err)
			logging.With(ctx, c.log).Warn().Err(err).Msg("restore failed")
			return nil, err
		}
		c.replaceCustomer(customer)
		return customer, nil
	})
}

// PresentPaywall shows the paywall unless requiredEntitlement is already
// active, then refreshes on success.
func (c *EntitlementCoordinator) PresentPaywall(ctx context.Context, requiredEntitlement string) error {
	return c.present(ctx, "paywall", func(ctx context.Context) error {
		return c.backend.PresentPaywallIfNeeded(ctx, adapter.PaywallOptions{RequiredEntitlement: requiredEntitlement})
	})
}

// PresentCustomerCenter shows the subscription management screen, then
// refreshes on success.
func (c *EntitlementCoordinator) PresentCustomerCenter(ctx context.Context) error {
	return c.present(ctx, "customer center", c.backend.PresentCustomerCenter)
}

func (c *EntitlementCoordinator) present(ctx context.Context, surface string, show func(context.Context) error) error {
	c.setError(nil)
	if c.opts.Preview {
		err := fmt.Errorf("%w: %s", domain.ErrUnsupportedEnvironment, surface)
		c.setError(err)
		return err
	}
	if err := c.requireConfigured(); err != nil {
		return err
	}
	ctx = logging.WithOperation(ctx, "present "+surface)
	_, err := detach(ctx, func(ctx context.Context) (struct{}, error) {
		if err := show(ctx); err != nil {
			err = domain.Classify(fmt.Errorf("present %s: %w", surface, err))
			c.setError(err)
			logging.With(ctx, c.log).Warn().Err(err).Msg("presentation failed")
			return struct{}{}, err
		}
		return struct{}{}, c.refresh(ctx)
	})
	return err
}

// Snapshot returns a copy of the current state.
func (c *EntitlementCoordinator) Snapshot() model.CoordinatorState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Watch returns a channel that receives the current state immediately and
// every later state. Slow readers only see the most recent value. The
// returned func stops the subscription and closes the channel.
func (c *EntitlementCoordinator) Watch() (<-chan model.CoordinatorState, func()) {
	ch := make(chan model.CoordinatorState, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextWatch
	c.nextWatch++
	c.watchers[id] = ch
	ch <- c.state
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if w, ok := c.watchers[id]; ok {
				delete(c.watchers, id)
				close(w)
			}
		})
	}
}

// Close deregisters the push listener and closes every watcher.
func (c *EntitlementCoordinator) Close() error {
	c.initMu.Lock()
	if c.listening {
		c.backend.RemoveCustomerInfoUpdateListener(c.listenerID)
		c.listening = false
	}
	c.initMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for id, ch := range c.watchers {
		delete(c.watchers, id)
		close(ch)
	}
	return nil
}

func (c *EntitlementCoordinator) onCustomerInfo(customer *model.CustomerState) {
	if customer == nil {
		return
	}
	metrics.IncPushUpdate()
	c.replaceCustomer(customer)
	c.log.Debug().Strs("active", customer.ActiveEntitlements()).Msg("customer info pushed")
}

func (c *EntitlementCoordinator) replaceCustomer(customer *model.CustomerState) {
	c.update(func(s *model.CoordinatorState) { s.Customer = customer })
}

func (c *EntitlementCoordinator) requireConfigured() error {
	if c.Snapshot().Configured {
		return nil
	}
	err := fmt.Errorf("%w: call Initialize first", domain.ErrConfiguration)
	c.setError(err)
	return err
}

func (c *EntitlementCoordinator) setError(err error) {
	c.update(func(s *model.CoordinatorState) { s.LastError = err })
}

// update applies fn to a copy of the state, swaps it in and notifies watchers.
func (c *EntitlementCoordinator) update(fn func(*model.CoordinatorState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.state
	fn(&next)
	c.state = next
	for _, ch := range c.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- next:
		default:
		}
	}
}

// detach runs fn on a context that ignores the caller's cancellation. The
// caller may stop waiting when ctx is done; fn still runs to completion and
// its state updates still apply.
func detach[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(context.WithoutCancel(ctx))
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func validAPIKey(key string) bool {
	return key != "" && !strings.ContainsAny(key, " \t\r\n")
}
