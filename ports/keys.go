package ports

import (
	"context"
	"crypto"
	"time"
)

// KeySource provides the issuer's trusted public keys
type KeySource interface {
	// Key returns the public key for kid. An empty kid selects the only key
	// when the set holds exactly one.
	Key(ctx context.Context, kid string) (crypto.PublicKey, error)
}

// KeyCache stores the raw key set document shared by all requests
type KeyCache interface {
	Get(ctx context.Context) ([]byte, bool, error)
	Set(ctx context.Context, doc []byte, ttl time.Duration) error
}
