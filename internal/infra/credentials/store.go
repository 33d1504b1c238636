// Package credentials stores provider API keys in Postgres for deployments
// that do not pass them through the environment.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"autovideo/internal/infra"
	"autovideo/internal/sqlinline"
)

const (
	ProviderAnthropic  = "anthropic"
	ProviderPexels     = "pexels"
	ProviderElevenLabs = "elevenlabs"
)

// Providers lists the providers a key can be stored for.
var Providers = []string{ProviderAnthropic, ProviderPexels, ProviderElevenLabs}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// EnsureSchema creates the integration_tokens table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.sql.Exec(ctx, sqlinline.QCreateIntegrationTokens)
	return err
}

// Token returns the stored key for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	if err := checkProvider(provider); err != nil {
		return "", err
	}
	var token string
	if err := s.sql.QueryRow(ctx, sqlinline.QSelectProviderKey, provider).Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("load %s key: %w", provider, err)
	}
	return strings.TrimSpace(token), nil
}

// Set stores key for provider, replacing any previous value.
func (s *Store) Set(ctx context.Context, provider, key string) error {
	if err := checkProvider(provider); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%s api key is required", provider)
	}
	raw, err := json.Marshal(map[string]any{"source": "apikey"})
	if err != nil {
		return err
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertProviderKey, provider, key, raw); err != nil {
		return fmt.Errorf("store %s key: %w", provider, err)
	}
	return nil
}

// Resolve prefers a key from the environment and falls back to the store.
func (s *Store) Resolve(ctx context.Context, provider, fromEnv string) (string, error) {
	if v := strings.TrimSpace(fromEnv); v != "" {
		return v, nil
	}
	if s == nil {
		return "", nil
	}
	return s.Token(ctx, provider)
}

func checkProvider(provider string) error {
	for _, p := range Providers {
		if p == provider {
			return nil
		}
	}
	return fmt.Errorf("unknown provider %q", provider)
}
