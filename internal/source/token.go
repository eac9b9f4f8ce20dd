package source

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2"

	"github.com/nhle/worklist/internal/model"
)

// TokenProvider returns a current access token for one request. It is the
// boundary to the external authentication layer: adapters never store or
// refresh credentials themselves.
type TokenProvider func(ctx context.Context) (string, error)

// StaticToken returns a TokenProvider that always yields token.
func StaticToken(token string) TokenProvider {
	return func(context.Context) (string, error) {
		return token, nil
	}
}

// Token asks the provider for a bearer token. Any failure, including an
// empty token, is reported as a KindUnauthorized AdapterError so the
// caller can trigger re-authentication.
func (p TokenProvider) Token(
	ctx context.Context,
	st model.SourceType,
	op string,
) (*oauth2.Token, error) {
	if p == nil {
		return nil, &AdapterError{
			Source: st, Op: op, Kind: KindUnauthorized,
			Err: errors.New("no token provider configured"),
		}
	}

	raw, err := p(ctx)
	if err != nil {
		return nil, &AdapterError{
			Source: st, Op: op, Kind: KindUnauthorized, Err: err,
		}
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &AdapterError{
			Source: st, Op: op, Kind: KindUnauthorized,
			Err: errors.New("access token is empty"),
		}
	}

	return &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}, nil
}
