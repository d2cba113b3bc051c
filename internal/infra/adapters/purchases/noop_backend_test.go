//go:build !integration

package purchases_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applyassist/internal/domain"
	"applyassist/internal/domain/model"
	"applyassist/internal/infra/adapters/purchases"
)

func TestNoopPurchaseBackend(t *testing.T) {
	ctx := context.Background()
	b := purchases.NewNoopPurchaseBackend("user-1", "Pro")

	_, err := b.GetOfferings(ctx)
	require.ErrorIs(t, err, domain.ErrConfiguration)
	require.NoError(t, b.Configure(ctx, "test_key"))

	var pushed []*model.CustomerState
	id := b.AddCustomerInfoUpdateListener(func(cs *model.CustomerState) { pushed = append(pushed, cs) })
	assert.Equal(t, 1, b.Listeners())

	catalog, err := b.GetOfferings(ctx)
	require.NoError(t, err)
	pkg := catalog.Current().Packages[0]

	b.CancelNextPurchase()
	_, err = b.PurchasePackage(ctx, pkg)
	assert.ErrorIs(t, err, domain.ErrCancelledByUser)

	cs, err := b.PurchasePackage(ctx, pkg)
	require.NoError(t, err)
	assert.True(t, cs.IsActive("Pro"))
	assert.Equal(t, []string{"pro_monthly"}, cs.ActiveSubscriptions)
	require.Len(t, pushed, 1)

	b.Push(model.NewCustomerState("user-1", nil, nil, cs.RequestedAt))
	require.Len(t, pushed, 2)
	assert.False(t, pushed[1].IsActive("Pro"))

	b.RemoveCustomerInfoUpdateListener(id)
	assert.Equal(t, 0, b.Listeners())
}

func TestSandboxStoreFront(t *testing.T) {
	ctx := context.Background()
	s := purchases.NewSandboxStoreFront(newTestLogger())

	t1, err := s.Purchase(ctx, model.Package{ProductIdentifier: "a"})
	require.NoError(t, err)
	t2, err := s.Purchase(ctx, model.Package{ProductIdentifier: "b"})
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2)

	tokens, err := s.RestoreTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{t1, t2}, tokens)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Purchase(cancelled, model.Package{})
	assert.ErrorIs(t, err, context.Canceled)
}
