package purchases

import (
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"applyassist/internal/infra/logging"
)

// WebhookHandler receives RevenueCat webhook events. RevenueCat sends the
// configured secret verbatim in the Authorization header.
type WebhookHandler struct {
	backend *RevenueCatBackend
	secret  string
	log     *zerolog.Logger
}

func NewWebhookHandler(backend *RevenueCatBackend, secret string, logger *zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{backend: backend, secret: secret, log: logging.Component(logger, "RevenueCatWebhook")}
}

type webhookEvent struct {
	Event struct {
		ID              string   `json:"id"`
		Type            string   `json:"type"`
		AppUserID       string   `json:"app_user_id"`
		OriginalAppUser string   `json:"original_app_user_id"`
		Aliases         []string `json:"aliases"`
	} `json:"event"`
}

// VerifyWebhookAuthorization compares the header against secret in constant time.
func VerifyWebhookAuthorization(secret, header string) bool {
	if secret == "" {
		return false
	}
	header = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return hmac.Equal([]byte(secret), []byte(header))
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logging.With(r.Context(), h.log)
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !VerifyWebhookAuthorization(h.secret, r.Header.Get("Authorization")) {
		log.Warn().Str("remote", r.RemoteAddr).Msg("webhook rejected: bad authorization")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var ev webhookEvent
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&ev); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if !h.concernsUs(ev) {
		log.Debug().Str("event", ev.Event.Type).Str("app_user_id", ev.Event.AppUserID).Msg("webhook ignored")
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx := logging.WithAppUserID(r.Context(), h.backend.AppUserID())
	log = logging.With(ctx, h.log)
	if err := h.backend.Sync(ctx); err != nil {
		// non-2xx makes RevenueCat retry
		log.Error().Err(err).Str("event", ev.Event.Type).Msg("webhook resync failed")
		http.Error(w, "resync failed", http.StatusBadGateway)
		return
	}
	log.Info().Str("event", ev.Event.Type).Str("event_id", ev.Event.ID).Msg("webhook applied")
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) concernsUs(ev webhookEvent) bool {
	me := h.backend.AppUserID()
	if ev.Event.AppUserID == me || ev.Event.OriginalAppUser == me {
		return true
	}
	for _, a := range ev.Event.Aliases {
		if a == me {
			return true
		}
	}
	return false
}
