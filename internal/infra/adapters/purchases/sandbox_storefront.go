package purchases

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"applyassist/internal/domain/model"
	"applyassist/internal/domain/ports/adapter"
	"applyassist/internal/infra/logging"
)

var _ adapter.StoreFront = (*SandboxStoreFront)(nil)

var nowFunc = time.Now

// SandboxStoreFront approves every purchase with a fresh token and logs
// screens instead of showing them.
type SandboxStoreFront struct {
	log *zerolog.Logger

	mu     sync.Mutex
	tokens []string
}

func NewSandboxStoreFront(logger *zerolog.Logger) *SandboxStoreFront {
	return &SandboxStoreFront{log: logging.Component(logger, "SandboxStoreFront")}
}

func (s *SandboxStoreFront) Purchase(ctx context.Context, pkg model.Package) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tok := "sandbox-" + uuid.NewString()
	s.mu.Lock()
	s.tokens = append(s.tokens, tok)
	s.mu.Unlock()
	s.log.Info().Str("product", pkg.ProductIdentifier).Msg("sandbox purchase approved")
	return tok, nil
}

func (s *SandboxStoreFront) RestoreTokens(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...), nil
}

func (s *SandboxStoreFront) PresentPaywall(ctx context.Context, offering *model.Offering) error {
	s.log.Info().Str("offering", offering.Identifier).Int("packages", len(offering.Packages)).Msg("paywall presented")
	return nil
}

func (s *SandboxStoreFront) PresentCustomerCenter(ctx context.Context) error {
	s.log.Info().Msg("customer center presented")
	return nil
}
