package credential

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"

	"github.com/nhle/worklist/internal/model"
	"github.com/nhle/worklist/internal/source"
)

const serviceName = "worklist"

// ErrNoToken is returned when no access token is stored for a source.
var ErrNoToken = errors.New("no access token stored")

// ErrNoKeyring is returned by writes on an environment-only store.
var ErrNoKeyring = errors.New("no keyring available")

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/worklist/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("worklist-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Store reads and writes access tokens left by the external sign-in flow.
// Tokens are never refreshed here.
type Store struct {
	ring   keyring.Keyring
	getenv func(string) string
}

// Open opens the system keyring.
func Open() (*Store, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}
	return NewStore(ring), nil
}

// NewStore wraps an existing keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring, getenv: os.Getenv}
}

// EnvOnly returns a store that reads tokens from environment variables
// only. It is used when no keyring backend can be opened.
func EnvOnly() *Store {
	return &Store{getenv: os.Getenv}
}

// TokenKey is the keyring key holding a source's access token.
func TokenKey(st model.SourceType) string {
	return string(st) + "/access_token"
}

// EnvVar is the environment variable that overrides the stored token,
// e.g. WORKLIST_GMAIL_TOKEN.
func EnvVar(st model.SourceType) string {
	return "WORKLIST_" + strings.ToUpper(string(st)) + "_TOKEN"
}

// Get retrieves a credential value by key.
func (s *Store) Get(key string) (string, error) {
	if s.ring == nil {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNoToken)
	}
	item, err := s.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", fmt.Errorf("getting credential %q: %w", key, ErrNoToken)
		}
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key.
func (s *Store) Set(key string, value string) error {
	if s.ring == nil {
		return fmt.Errorf("setting credential %q: %w", key, ErrNoKeyring)
	}
	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: serviceName + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key.
func (s *Store) Delete(key string) error {
	if s.ring == nil {
		return fmt.Errorf("deleting credential %q: %w", key, ErrNoKeyring)
	}
	err := s.ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// TokenProvider returns a provider that reads the source's token on every
// request, so a token rotated by the sign-in flow is picked up without a
// restart. The environment variable, when set, takes precedence.
func (s *Store) TokenProvider(st model.SourceType) source.TokenProvider {
	return func(context.Context) (string, error) {
		if tok := strings.TrimSpace(s.getenv(EnvVar(st))); tok != "" {
			return tok, nil
		}
		return s.Get(TokenKey(st))
	}
}
