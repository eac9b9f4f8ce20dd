package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/nhle/worklist/internal/model"
)

func TestKindForStatus(t *testing.T) {
	t.Parallel()

	tests := map[int]ErrorKind{
		http.StatusUnauthorized:        KindUnauthorized,
		http.StatusForbidden:           KindUnauthorized,
		http.StatusTooManyRequests:     KindRateLimited,
		http.StatusBadGateway:          KindUnreachable,
		http.StatusServiceUnavailable:  KindUnreachable,
		http.StatusNotFound:            KindRejected,
		http.StatusBadRequest:          KindRejected,
		http.StatusUnprocessableEntity: KindRejected,
	}
	for status, want := range tests {
		if got := KindForStatus(status); got != want {
			t.Errorf("KindForStatus(%d) = %s, want %s", status, got, want)
		}
	}
}

func TestKindOfUnwrapsChain(t *testing.T) {
	t.Parallel()

	base := &AdapterError{
		Source: model.SourceTypeGmail, Op: "fetch",
		Kind: KindUnauthorized, StatusCode: 401,
	}
	wrapped := fmt.Errorf("refreshing: %w", base)

	if KindOf(wrapped) != KindUnauthorized {
		t.Fatalf("expected unauthorized, got %s", KindOf(wrapped))
	}
	if !IsAuthError(wrapped) {
		t.Fatalf("expected IsAuthError")
	}
	if KindOf(errors.New("plain")) != 0 {
		t.Fatalf("expected zero kind for plain error")
	}
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	err := &AdapterError{Kind: KindRejected, StatusCode: http.StatusNotFound}
	if !IsNotFound(err) {
		t.Fatalf("expected 404 to be not found")
	}
	if IsNotFound(&AdapterError{Kind: KindRejected, StatusCode: 400}) {
		t.Fatalf("400 is not a not-found")
	}
}

func TestRetryAfterOf(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("fetch: %w", &AdapterError{
		Kind: KindRateLimited, StatusCode: 429, RetryAfter: 5 * time.Second,
	})
	if got := RetryAfterOf(err); got != 5*time.Second {
		t.Fatalf("expected 5s, got %v", got)
	}
	if got := RetryAfterOf(errors.New("plain")); got != 0 {
		t.Fatalf("expected 0 for plain error, got %v", got)
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if got := ParseRetryAfter("7", now); got != 7*time.Second {
		t.Fatalf("seconds: got %v", got)
	}
	date := now.Add(90 * time.Second).Format(http.TimeFormat)
	if got := ParseRetryAfter(date, now); got != 90*time.Second {
		t.Fatalf("date: got %v", got)
	}
	if got := ParseRetryAfter("soon", now); got != 0 {
		t.Fatalf("garbage: got %v", got)
	}
}

func TestTokenProvider(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tok, err := StaticToken(" abc ").Token(ctx, model.SourceTypeOutlook, "fetch")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.AccessToken != "abc" || tok.Type() != "Bearer" {
		t.Fatalf("unexpected token: %+v", tok)
	}

	failing := TokenProvider(func(context.Context) (string, error) {
		return "", errors.New("keyring locked")
	})
	if _, err := failing.Token(ctx, model.SourceTypeOutlook, "fetch"); !IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}

	if _, err := StaticToken("").Token(ctx, model.SourceTypeOutlook, "fetch"); !IsAuthError(err) {
		t.Fatalf("expected auth error for empty token, got %v", err)
	}

	var none TokenProvider
	if _, err := none.Token(ctx, model.SourceTypeOutlook, "fetch"); !IsAuthError(err) {
		t.Fatalf("expected auth error for nil provider, got %v", err)
	}
}
