//go:build !integration

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applyassist/internal/domain"
	"applyassist/internal/domain/model"
	"applyassist/internal/infra/api"
	"applyassist/internal/infra/i18n"
)

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// mockEntitlements implements usecase.EntitlementUseCase with hooks.
type mockEntitlements struct {
	state model.CoordinatorState

	RefreshFunc  func(ctx context.Context) error
	PurchaseFunc func(ctx context.Context, plan model.PlanID) (*model.CustomerState, error)
	RestoreFunc  func(ctx context.Context) (*model.CustomerState, error)
	PaywallFunc  func(ctx context.Context, required string) error
}

func (m *mockEntitlements) Initialize(ctx context.Context) error { return nil }
func (m *mockEntitlements) Refresh(ctx context.Context) error {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx)
	}
	return nil
}
func (m *mockEntitlements) IsEntitled(key string) bool { return m.state.IsEntitled(key) }
func (m *mockEntitlements) ResolvePackage(o *model.Offering, p model.PlanID) (*model.Package, error) {
	return nil, domain.ErrPlanNotFound
}
func (m *mockEntitlements) Purchase(ctx context.Context, plan model.PlanID) (*model.CustomerState, error) {
	return m.PurchaseFunc(ctx, plan)
}
func (m *mockEntitlements) Restore(ctx context.Context) (*model.CustomerState, error) {
	return m.RestoreFunc(ctx)
}
func (m *mockEntitlements) PresentPaywall(ctx context.Context, required string) error {
	if m.PaywallFunc != nil {
		return m.PaywallFunc(ctx, required)
	}
	return nil
}
func (m *mockEntitlements) PresentCustomerCenter(ctx context.Context) error {
	return domain.ErrUnsupportedEnvironment
}
func (m *mockEntitlements) Snapshot() model.CoordinatorState { return m.state }
func (m *mockEntitlements) Watch() (<-chan model.CoordinatorState, func()) {
	ch := make(chan model.CoordinatorState)
	close(ch)
	return ch, func() {}
}
func (m *mockEntitlements) Close() error { return nil }

func proCustomer() *model.CustomerState {
	return model.NewCustomerState("user-1", []model.EntitlementInfo{{Identifier: "Pro", IsActive: true}}, []string{"pro_monthly"}, time.Unix(0, 0).UTC())
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_State(t *testing.T) {
	m := &mockEntitlements{state: model.CoordinatorState{
		Configured: true,
		Customer:   proCustomer(),
		Catalog: model.NewOfferingCatalog("default", &model.Offering{
			Identifier: "default",
			Packages:   []model.Package{{Identifier: "$rc_monthly", Type: model.PackageTypeMonthly, ProductIdentifier: "pro_monthly"}},
		}),
	}}
	h := api.NewServer(m, api.Options{}, newLogger()).Router()

	rec := do(t, h, http.MethodGet, "/api/v1/entitlements", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["configured"])
	assert.Equal(t, []any{"Pro"}, body["customer"].(map[string]any)["active_entitlements"])
	assert.Equal(t, "default", body["current_offering"].(map[string]any)["identifier"])

	rec = do(t, h, http.MethodGet, "/api/v1/entitlements/Pro", "")
	assert.JSONEq(t, `{"entitlement":"Pro","active":true}`, rec.Body.String())
	rec = do(t, h, http.MethodGet, "/api/v1/entitlements/pro", "")
	assert.JSONEq(t, `{"entitlement":"pro","active":false}`, rec.Body.String())
}

func TestServer_Purchase(t *testing.T) {
	var gotPlan model.PlanID
	m := &mockEntitlements{PurchaseFunc: func(ctx context.Context, plan model.PlanID) (*model.CustomerState, error) {
		gotPlan = plan
		switch plan {
		case "monthly":
			return proCustomer(), nil
		case "yearly":
			return nil, &domain.PlanNotFoundError{PlanID: "yearly", OfferingID: "default"}
		}
		return nil, domain.ErrCancelledByUser
	}}
	h := api.NewServer(m, api.Options{}, newLogger()).Router()

	rec := do(t, h, http.MethodPost, "/api/v1/purchases", `{"plan":"monthly"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PlanID("monthly"), gotPlan)
	assert.Contains(t, rec.Body.String(), `"active_entitlements":["Pro"]`)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/v1/purchases", `{"plan":"yearly"}`).Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/api/v1/purchases", `{"plan":"lifetime"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/purchases", `{}`).Code)

	huge := `{"plan":"` + strings.Repeat("m", 128<<10) + `"}`
	assert.Equal(t, http.StatusRequestEntityTooLarge, do(t, h, http.MethodPost, "/api/v1/purchases", huge).Code)
}

func TestServer_PaywallDefaultsEntitlement(t *testing.T) {
	var got string
	m := &mockEntitlements{PaywallFunc: func(_ context.Context, required string) error {
		got = required
		return nil
	}}
	h := api.NewServer(m, api.Options{Entitlement: "Pro"}, newLogger()).Router()

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodPost, "/api/v1/paywall", "").Code)
	assert.Equal(t, "Pro", got)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodPost, "/api/v1/paywall", `{"entitlement":"Team"}`).Code)
	assert.Equal(t, "Team", got)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/api/v1/customer-center", "").Code)
}

func TestServer_BearerAuth(t *testing.T) {
	m := &mockEntitlements{}
	h := api.NewServer(m, api.Options{APIKey: "k"}, newLogger()).Router()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code, "health is public")
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/v1/entitlements", "").Code)
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/api/v1/entitlements", "", "Authorization", "Bearer x").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/entitlements", "", "Authorization", "Bearer k").Code)
}

func TestServer_OptionalRoutes(t *testing.T) {
	hook := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) })
	h := api.NewServer(&mockEntitlements{}, api.Options{Webhook: hook, Metrics: hook}, newLogger()).Router()
	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/webhooks/revenuecat", "{}").Code)
	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodGet, "/metrics", "").Code)

	bare := api.NewServer(&mockEntitlements{}, api.Options{}, newLogger()).Router()
	assert.Equal(t, http.StatusNotFound, do(t, bare, http.MethodGet, "/metrics", "").Code)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&domain.PlanNotFoundError{PlanID: "x"}, http.StatusNotFound},
		{domain.ErrUnsupportedEnvironment, http.StatusConflict},
		{domain.ErrCancelledByUser, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", domain.ErrConfiguration), http.StatusServiceUnavailable},
		{domain.Classify(errors.New("boom")), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, api.StatusFor(tc.err), tc.err.Error())
	}
}

func TestRecover(t *testing.T) {
	h := api.Recover(newLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type stubSessions struct{ loggedOut bool }

func (s *stubSessions) Login(_ context.Context, email, _ string) (*model.Session, error) {
	if email != "me@example.com" {
		return nil, domain.ErrUnauthenticated
	}
	return &model.Session{Authenticated: true, AccessToken: "secret"}, nil
}
func (s *stubSessions) Current(context.Context) *model.Session { return model.Unauthenticated() }
func (s *stubSessions) Logout(context.Context)                 { s.loggedOut = true }

type stubProfiles struct{}

func (stubProfiles) Me(context.Context) (*model.Profile, error) {
	return &model.Profile{ID: "u1"}, nil
}
func (stubProfiles) SelectRole(_ context.Context, role string) (*model.Profile, error) {
	r, err := model.ParseRole(role)
	if err != nil {
		return nil, err
	}
	return &model.Profile{ID: "u1", Role: r}, nil
}
func (stubProfiles) CompleteOnboarding(context.Context) (*model.Profile, error) {
	return &model.Profile{ID: "u1", Role: model.RoleJobSeeker, Onboarded: true}, nil
}

func TestServer_Accounts(t *testing.T) {
	sess := &stubSessions{}
	h := api.NewServer(&mockEntitlements{}, api.Options{Sessions: sess, Profiles: stubProfiles{}}, newLogger()).Router()

	rec := do(t, h, http.MethodPost, "/api/v1/session", `{"email":"me@example.com","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":true}`, rec.Body.String(), "tokens never leave the process")

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/v1/session", `{"email":"x","password":"pw"}`).Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/api/v1/session", "").Code)
	assert.True(t, sess.loggedOut)

	rec = do(t, h, http.MethodGet, "/api/v1/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"needs_onboarding":true`)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/api/v1/profile/role", `{"role":"admin"}`).Code)
	rec = do(t, h, http.MethodPost, "/api/v1/profile/onboarding", "")
	assert.Contains(t, rec.Body.String(), `"needs_onboarding":false`)
}

func TestServer_LocalizedErrors(t *testing.T) {
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	require.NoError(t, err)
	m := &mockEntitlements{RestoreFunc: func(context.Context) (*model.CustomerState, error) {
		return nil, domain.ErrConfiguration
	}}
	h := api.NewServer(m, api.Options{Messages: tr}, newLogger()).Router()

	rec := do(t, h, http.MethodPost, "/api/v1/purchases/restore", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.ErrConfiguration.Error(), body["error"])
	assert.Equal(t, tr.T("error.configuration"), body["message"])
}
