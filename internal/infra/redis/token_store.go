package redis

import (
	"context"
	"fmt"

	"applyassist/internal/domain/ports/repository"
	"applyassist/internal/infra/security"
)

var _ repository.SessionTokenStore = (*TokenStore)(nil)

// TokenStore keeps session tokens in redis, encrypted with the configured key.
// Tokens have no TTL here; expiry is carried by the tokens themselves.
type TokenStore struct {
	client RedisClient
	prefix string
	enc    *security.EncryptionService
}

func NewTokenStore(client RedisClient, prefix string, enc *security.EncryptionService) *TokenStore {
	return &TokenStore{client: client, prefix: prefix, enc: enc}
}

func (s *TokenStore) key(name string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, name)
}

func (s *TokenStore) Get(ctx context.Context, name string) (string, bool, error) {
	raw, err := s.client.Get(ctx, s.key(name))
	if IsNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", name, err)
	}
	v, err := s.enc.Decrypt(raw, name)
	if err != nil {
		return "", false, fmt.Errorf("decrypt %s: %w", name, err)
	}
	return v, true, nil
}

func (s *TokenStore) Set(ctx context.Context, name, value string) error {
	ct, err := s.enc.Encrypt(value, name)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", name, err)
	}
	if err := s.client.Set(ctx, s.key(name), ct, 0); err != nil {
		return fmt.Errorf("redis set %s: %w", name, err)
	}
	return nil
}

func (s *TokenStore) Delete(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, s.key(name)); err != nil {
		return fmt.Errorf("redis del %s: %w", name, err)
	}
	return nil
}
