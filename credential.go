package storypager

import (
	"context"
	"fmt"
	"strings"
)

// CredentialSource supplies the bearer token for outgoing requests. An empty
// string means unauthenticated.
type CredentialSource interface {
	CurrentToken() string
}

// StaticToken is a CredentialSource with a fixed token.
type StaticToken string

func (t StaticToken) CurrentToken() string {
	return string(t)
}

// TokenPersister stores the token across process restarts.
type TokenPersister interface {
	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// TokenStore is the credential store: the current token as an observable value
// backed by an optional TokenPersister.
type TokenStore struct {
	value   *Value[string]
	persist TokenPersister
}

var _ CredentialSource = (*TokenStore)(nil)

// NewTokenStore creates an empty store. persist may be nil for an in-memory
// store.
func NewTokenStore(persist TokenPersister) *TokenStore {
	return &TokenStore{
		value:   NewValue(""),
		persist: persist,
	}
}

// Restore loads the persisted token, if any, into the store.
func (s *TokenStore) Restore(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}

	token, err := s.persist.LoadToken(ctx)
	if err != nil {
		return fmt.Errorf("cannot restore token: %w", err)
	}
	s.value.Store(strings.TrimSpace(token))

	return nil
}

// Save persists token and publishes it.
func (s *TokenStore) Save(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("cannot save an empty token")
	}

	if s.persist != nil {
		if err := s.persist.SaveToken(ctx, token); err != nil {
			return fmt.Errorf("cannot save token: %w", err)
		}
	}
	s.value.Store(token)

	return nil
}

// Clear drops the token; later requests fail fast as unauthenticated.
func (s *TokenStore) Clear(ctx context.Context) error {
	if s.persist != nil {
		if err := s.persist.ClearToken(ctx); err != nil {
			return fmt.Errorf("cannot clear token: %w", err)
		}
	}
	s.value.Store("")

	return nil
}

// CurrentToken - implements CredentialSource.
func (s *TokenStore) CurrentToken() string {
	return s.value.Load()
}

// Watch subscribes to token changes. The current token is delivered first.
func (s *TokenStore) Watch() (<-chan string, func()) {
	return s.value.Subscribe()
}
