package ports

import (
	"context"

	"github.com/layer-3/siwf/core"
)

// TokenVerifier checks a bearer token's signature and claims
type TokenVerifier interface {
	// Verify returns the token claims when the token is valid for audience.
	// Rejections match core.ErrInvalidToken; key retrieval problems match
	// core.ErrKeyFetchFailed.
	Verify(ctx context.Context, token string, audience string) (*core.Claims, error)
}

// TokenIssuer mints bearer tokens
type TokenIssuer interface {
	Issue(claims core.Claims) (string, error)
}
