// Command demo drives the entitlement coordinator against the in-memory
// purchase backend and prints every state transition.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"applyassist/internal/config"
	"applyassist/internal/domain"
	"applyassist/internal/domain/model"
	"applyassist/internal/infra/adapters/purchases"
	"applyassist/internal/infra/logging"
	"applyassist/internal/usecase"
)

const entitlement = "Pro"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "demo:", err)
		os.Exit(1)
	}
}

func run() error {
	logger := logging.New(config.LogConfig{Level: "warn", Format: "console"}, true)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	backend := purchases.NewNoopPurchaseBackend("$RCAnonymousID:demo", entitlement)
	coord := usecase.NewEntitlementCoordinator(backend, usecase.CoordinatorOptions{APIKey: "test_demo"}, logger)
	defer coord.Close()

	states, stop := coord.Watch()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for st := range states {
			fmt.Println("  state:", describe(st))
		}
	}()

	if err := step("initialize", coord.Initialize(ctx)); err != nil {
		return err
	}

	_, err := coord.Purchase(ctx, model.PlanYearly)
	var nf *domain.PlanNotFoundError
	if errors.As(err, &nf) {
		fmt.Printf("yearly: %v (the default offering sells $rc_annual, which is not a yearly match)\n", err)
	}

	backend.CancelNextPurchase()
	_, err = coord.Purchase(ctx, model.PlanMonthly)
	if err := step("purchase monthly (cancelled)", err); err != nil {
		return err
	}

	_, err = coord.Purchase(ctx, model.PlanMonthly)
	if err := step("purchase monthly", err); err != nil {
		return err
	}
	fmt.Printf("entitled to %s: %v\n", entitlement, coord.IsEntitled(entitlement))

	backend.Push(model.NewCustomerState("$RCAnonymousID:demo", nil, nil, time.Now()))
	time.Sleep(50 * time.Millisecond)
	fmt.Printf("after server-side expiry, entitled: %v\n", coord.IsEntitled(entitlement))

	_, err = coord.Restore(ctx)
	if err := step("restore", err); err != nil {
		return err
	}

	stop()
	wg.Wait()
	return nil
}

// step prints the outcome of name. A user cancellation is reported but not
// treated as failure.
func step(name string, err error) error {
	if err == nil {
		fmt.Printf("%s: ok\n", name)
		return nil
	}
	fmt.Printf("%s: %v\n", name, err)
	if errors.Is(err, domain.ErrCancelledByUser) {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func describe(st model.CoordinatorState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "configured=%v loading=%v", st.Configured, st.Loading)
	if st.Customer != nil {
		fmt.Fprintf(&b, " active=%v", st.Customer.ActiveEntitlements())
	}
	if o := st.CurrentOffering(); o != nil {
		fmt.Fprintf(&b, " offering=%s(%d)", o.Identifier, len(o.Packages))
	}
	if st.LastError != nil {
		fmt.Fprintf(&b, " error=%q", st.LastError)
	}
	return b.String()
}
