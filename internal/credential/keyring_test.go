package credential

import (
	"context"
	"errors"
	"testing"

	"github.com/99designs/keyring"

	"github.com/nhle/worklist/internal/model"
	"github.com/nhle/worklist/internal/source"
)

func newTestStore(env map[string]string) *Store {
	s := NewStore(keyring.NewArrayKeyring(nil))
	s.getenv = func(k string) string { return env[k] }
	return s
}

func TestTokenProviderReadsKeyring(t *testing.T) {
	s := newTestStore(nil)
	if err := s.Set(TokenKey(model.SourceTypeGmail), "ya29.token"); err != nil {
		t.Fatalf("set: %v", err)
	}

	tok, err := s.TokenProvider(model.SourceTypeGmail).Token(context.Background(), model.SourceTypeGmail, "fetch")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok.AccessToken != "ya29.token" {
		t.Fatalf("unexpected token %q", tok.AccessToken)
	}
}

func TestTokenProviderPicksUpRotation(t *testing.T) {
	s := newTestStore(nil)
	provider := s.TokenProvider(model.SourceTypeOutlook)
	key := TokenKey(model.SourceTypeOutlook)

	_ = s.Set(key, "first")
	if got, _ := provider(context.Background()); got != "first" {
		t.Fatalf("expected first, got %q", got)
	}
	_ = s.Set(key, "second")
	if got, _ := provider(context.Background()); got != "second" {
		t.Fatalf("expected rotated token, got %q", got)
	}
}

func TestTokenProviderEnvOverride(t *testing.T) {
	s := newTestStore(map[string]string{"WORKLIST_DEVOPS_TOKEN": " pat "})
	_ = s.Set(TokenKey(model.SourceTypeDevOps), "stored")

	got, err := s.TokenProvider(model.SourceTypeDevOps)(context.Background())
	if err != nil || got != "pat" {
		t.Fatalf("expected env token, got %q %v", got, err)
	}
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	s := newTestStore(nil)

	_, err := s.TokenProvider(model.SourceTypeGmail).Token(context.Background(), model.SourceTypeGmail, "fetch")
	if !source.IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken in chain, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(nil)
	key := TokenKey(model.SourceTypeGmail)
	_ = s.Set(key, "tok")

	if err := s.Delete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(key); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken after delete, got %v", err)
	}
}

func TestEnvOnlyStore(t *testing.T) {
	s := EnvOnly()
	s.getenv = func(string) string { return "" }

	if _, err := s.Get(TokenKey(model.SourceTypeOutlook)); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	if err := s.Set(TokenKey(model.SourceTypeOutlook), "tok"); !errors.Is(err, ErrNoKeyring) {
		t.Fatalf("expected ErrNoKeyring, got %v", err)
	}
}
