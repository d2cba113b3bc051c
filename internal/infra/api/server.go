// Package api exposes the entitlement coordinator over HTTP for the app shell.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"applyassist/internal/domain"
	"applyassist/internal/domain/model"
	"applyassist/internal/infra/i18n"
	"applyassist/internal/infra/logging"
	"applyassist/internal/usecase"
)

const maxBodyBytes = 64 << 10

// Server maps HTTP routes onto the entitlement use case.
type Server struct {
	ent         usecase.EntitlementUseCase
	entitlement string // default for paywall requests
	apiKey      string
	webhook     http.Handler
	metrics     http.Handler
	timeout     time.Duration
	sessions    SessionService
	profiles    ProfileService
	messages    *i18n.Translator
	log         *zerolog.Logger
}

type Options struct {
	Entitlement string
	APIKey      string
	Webhook     http.Handler     // optional
	Metrics     http.Handler     // optional
	Sessions    SessionService   // optional
	Profiles    ProfileService   // optional
	Messages    *i18n.Translator // optional; adds "message" to error bodies
	Timeout     time.Duration
}

func NewServer(ent usecase.EntitlementUseCase, opts Options, logger *zerolog.Logger) *Server {
	return &Server{
		ent:         ent,
		entitlement: opts.Entitlement,
		apiKey:      opts.APIKey,
		webhook:     opts.Webhook,
		metrics:     opts.Metrics,
		timeout:     opts.Timeout,
		sessions:    opts.Sessions,
		profiles:    opts.Profiles,
		messages:    opts.Messages,
		log:         logging.Component(logger, "api"),
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	if s.webhook != nil {
		r.Method(http.MethodPost, "/webhooks/revenuecat", s.webhook)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(s.apiKey))
		if s.timeout > 0 {
			r.Use(Timeout(s.timeout))
		}
		r.Get("/entitlements", s.handleState)
		r.Get("/entitlements/{key}", s.handleEntitlement)
		r.Post("/entitlements/refresh", s.handleRefresh)
		r.Post("/purchases", s.handlePurchase)
		r.Post("/purchases/restore", s.handleRestore)
		r.Post("/paywall", s.handlePaywall)
		r.Post("/customer-center", s.handleCustomerCenter)
		s.mountAccounts(r)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stateDTOFrom(s.ent.Snapshot()))
}

func (s *Server) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	writeJSON(w, http.StatusOK, map[string]any{"entitlement": key, "active": s.ent.IsEntitled(key)})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.ent.Refresh(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateDTOFrom(s.ent.Snapshot()))
}

type purchaseRequest struct {
	Plan string `json:"plan"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	const usage = "body must be {\"plan\": \"monthly|yearly|lifetime\"}"
	var req purchaseRequest
	if !decodeJSON(w, r, &req, usage) {
		return
	}
	if req.Plan == "" {
		writeError(w, http.StatusBadRequest, usage)
		return
	}
	cs, err := s.ent.Purchase(r.Context(), model.PlanID(req.Plan))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customerDTOFrom(cs))
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	cs, err := s.ent.Restore(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customerDTOFrom(cs))
}

type paywallRequest struct {
	Entitlement string `json:"entitlement"`
}

func (s *Server) handlePaywall(w http.ResponseWriter, r *http.Request) {
	var req paywallRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req, "invalid json") {
			return
		}
	}
	if req.Entitlement == "" {
		req.Entitlement = s.entitlement
	}
	if err := s.ent.PresentPaywall(r.Context(), req.Entitlement); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCustomerCenter(w http.ResponseWriter, r *http.Request) {
	if err := s.ent.PresentCustomerCenter(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StatusFor maps coordinator error kinds onto HTTP statuses.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrPlanNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnsupportedEnvironment), errors.Is(err, domain.ErrCancelledByUser):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBackendUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	l := logging.With(r.Context(), s.log)
	if code >= 500 {
		l.Error().Err(err).Int("status", code).Msg("request failed")
	} else {
		l.Info().Err(err).Int("status", code).Msg("request rejected")
	}
	body := map[string]string{"error": err.Error()}
	if msg := s.messages.Message(err); msg != "" {
		body["message"] = msg
	}
	writeJSON(w, code, body)
}

type customerDTO struct {
	AppUserID           string    `json:"app_user_id"`
	ActiveEntitlements  []string  `json:"active_entitlements"`
	ActiveSubscriptions []string  `json:"active_subscriptions"`
	RequestedAt         time.Time `json:"requested_at"`
}

type packageDTO struct {
	Identifier        string `json:"identifier"`
	Type              string `json:"type"`
	ProductIdentifier string `json:"product_identifier"`
}

type offeringDTO struct {
	Identifier string       `json:"identifier"`
	Packages   []packageDTO `json:"packages"`
}

type stateDTO struct {
	Configured      bool         `json:"configured"`
	Loading         bool         `json:"loading"`
	Customer        *customerDTO `json:"customer,omitempty"`
	CurrentOffering *offeringDTO `json:"current_offering,omitempty"`
	Offerings       []string     `json:"offerings,omitempty"`
	LastError       string       `json:"last_error,omitempty"`
}

func customerDTOFrom(cs *model.CustomerState) *customerDTO {
	if cs == nil {
		return nil
	}
	subs := cs.ActiveSubscriptions
	if subs == nil {
		subs = []string{}
	}
	ents := cs.ActiveEntitlements()
	if ents == nil {
		ents = []string{}
	}
	return &customerDTO{
		AppUserID:           cs.AppUserID,
		ActiveEntitlements:  ents,
		ActiveSubscriptions: subs,
		RequestedAt:         cs.RequestedAt,
	}
}

func stateDTOFrom(st model.CoordinatorState) stateDTO {
	out := stateDTO{
		Configured: st.Configured,
		Loading:    st.Loading,
		Customer:   customerDTOFrom(st.Customer),
	}
	if o := st.CurrentOffering(); o != nil {
		od := &offeringDTO{Identifier: o.Identifier, Packages: make([]packageDTO, 0, len(o.Packages))}
		for _, p := range o.Packages {
			od.Packages = append(od.Packages, packageDTO{Identifier: p.Identifier, Type: string(p.Type), ProductIdentifier: p.ProductIdentifier})
		}
		out.CurrentOffering = od
	}
	if st.Catalog != nil {
		for id := range st.Catalog.Offerings {
			out.Offerings = append(out.Offerings, id)
		}
		sort.Strings(out.Offerings)
	}
	if st.LastError != nil {
		out.LastError = st.LastError.Error()
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads at most maxBodyBytes of r.Body into v. On failure it
// writes 413 or 400 with msg and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, msg string) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	writeError(w, http.StatusBadRequest, msg)
	return false
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
